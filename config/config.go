package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CalDAVConfig enables publishing definitions to a remote calendar.
type CalDAVConfig struct {
	URL          string `yaml:"url"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	CalendarPath string `yaml:"calendar_path"`
}

type Config struct {
	TelegramToken      string  `yaml:"telegram_token"`
	OwnerTelegramID    int64   `yaml:"owner_telegram_id"`
	AllowedTelegramIDs []int64 `yaml:"allowed_telegram_ids"`
	DatabasePath       string  `yaml:"database_path"`

	TimezoneName string         `yaml:"timezone"`
	Timezone     *time.Location `yaml:"-"`

	// Digest times are 24h "HH:MM".
	MorningTime string `yaml:"morning_time"`
	EveningTime string `yaml:"evening_time"`

	// Empty WebhookURL switches the bot to long polling.
	WebhookURL string `yaml:"webhook_url"`
	ServerPort string `yaml:"server_port"`

	APIUser     string `yaml:"api_user"`
	APIPassword string `yaml:"api_password"`

	DefaultReminderMinutes int `yaml:"default_reminder_minutes"`

	LogLevel   string `yaml:"log_level"`
	LogConsole bool   `yaml:"log_console"`

	CalDAV CalDAVConfig `yaml:"caldav"`
}

// Load reads the optional YAML file named by CONFIG_PATH, applies environment
// overrides and defaults, then validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("TELEGRAM_BOT_TOKEN", &c.TelegramToken)
	str("DATABASE_PATH", &c.DatabasePath)
	str("TIMEZONE", &c.TimezoneName)
	str("MORNING_TIME", &c.MorningTime)
	str("EVENING_TIME", &c.EveningTime)
	str("WEBHOOK_URL", &c.WebhookURL)
	str("SERVER_PORT", &c.ServerPort)
	str("API_USER", &c.APIUser)
	str("API_PASSWORD", &c.APIPassword)
	str("LOG_LEVEL", &c.LogLevel)
	str("CALDAV_URL", &c.CalDAV.URL)
	str("CALDAV_USERNAME", &c.CalDAV.Username)
	str("CALDAV_PASSWORD", &c.CalDAV.Password)
	str("CALDAV_CALENDAR_PATH", &c.CalDAV.CalendarPath)

	if v := getenv("OWNER_TELEGRAM_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("OWNER_TELEGRAM_ID must be a number")
		}
		c.OwnerTelegramID = id
	}
	if v := getenv("ALLOWED_TELEGRAM_IDS"); v != "" {
		c.AllowedTelegramIDs = nil
		for _, f := range strings.Split(v, ",") {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			id, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				return fmt.Errorf("ALLOWED_TELEGRAM_IDS: %q is not a number", f)
			}
			c.AllowedTelegramIDs = append(c.AllowedTelegramIDs, id)
		}
	}
	if v := getenv("DEFAULT_REMINDER_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DEFAULT_REMINDER_MINUTES must be a number")
		}
		c.DefaultReminderMinutes = n
	}
	if v := getenv("LOG_CONSOLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_CONSOLE must be a boolean")
		}
		c.LogConsole = b
	}
	return nil
}

// Normalize fills in defaults for anything left empty.
func (c *Config) Normalize() {
	if c.DatabasePath == "" {
		c.DatabasePath = "./data/smartreminder.db"
	}
	if c.TimezoneName == "" {
		c.TimezoneName = "UTC"
	}
	if c.MorningTime == "" {
		c.MorningTime = "08:00"
	}
	if c.EveningTime == "" {
		c.EveningTime = "21:00"
	}
	if c.ServerPort == "" {
		c.ServerPort = "8080"
	}
	if c.DefaultReminderMinutes == 0 {
		c.DefaultReminderMinutes = 15
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.OwnerTelegramID == 0 {
		return errors.New("OWNER_TELEGRAM_ID is required")
	}
	tz, err := time.LoadLocation(c.TimezoneName)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	c.Timezone = tz
	if _, _, err := ParseClock(c.MorningTime); err != nil {
		return fmt.Errorf("invalid MORNING_TIME: %w", err)
	}
	if _, _, err := ParseClock(c.EveningTime); err != nil {
		return fmt.Errorf("invalid EVENING_TIME: %w", err)
	}
	if c.DefaultReminderMinutes < 0 {
		return errors.New("DEFAULT_REMINDER_MINUTES must not be negative")
	}
	return nil
}

// ParseClock parses a 24h "HH:MM" digest time.
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("%q is not HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

func (c *Config) IsAllowedUser(telegramID int64) bool {
	if telegramID == c.OwnerTelegramID {
		return true
	}
	for _, id := range c.AllowedTelegramIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// APIEnabled reports whether the REST API has credentials configured.
func (c *Config) APIEnabled() bool {
	return c.APIUser != "" && c.APIPassword != ""
}

// CalDAVEnabled reports whether enough CalDAV settings are present to publish.
func (c *Config) CalDAVEnabled() bool {
	return c.CalDAV.URL != "" && c.CalDAV.Username != "" && c.CalDAV.Password != ""
}
