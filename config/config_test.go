package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_PATH", "TELEGRAM_BOT_TOKEN", "OWNER_TELEGRAM_ID", "ALLOWED_TELEGRAM_IDS",
		"DATABASE_PATH", "TIMEZONE", "MORNING_TIME", "EVENING_TIME", "WEBHOOK_URL",
		"SERVER_PORT", "API_USER", "API_PASSWORD", "DEFAULT_REMINDER_MINUTES",
		"LOG_LEVEL", "LOG_CONSOLE", "CALDAV_URL", "CALDAV_USERNAME", "CALDAV_PASSWORD",
		"CALDAV_CALENDAR_PATH",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
telegram_token: file-token
owner_telegram_id: 100
allowed_telegram_ids: [200, 300]
timezone: Asia/Manila
morning_time: "07:30"
caldav:
  url: https://dav.example.com
  username: ann
  password: secret
  calendar_path: /calendars/ann/tasks/
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("DEFAULT_REMINDER_MINUTES", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TelegramToken != "env-token" {
		t.Fatalf("expected env to override file, got %q", cfg.TelegramToken)
	}
	if cfg.OwnerTelegramID != 100 || len(cfg.AllowedTelegramIDs) != 2 {
		t.Fatalf("unexpected ids %d %v", cfg.OwnerTelegramID, cfg.AllowedTelegramIDs)
	}
	if cfg.Timezone == nil || cfg.Timezone.String() != "Asia/Manila" {
		t.Fatalf("expected Asia/Manila, got %v", cfg.Timezone)
	}
	if cfg.MorningTime != "07:30" || cfg.EveningTime != "21:00" {
		t.Fatalf("unexpected digest times %s %s", cfg.MorningTime, cfg.EveningTime)
	}
	if cfg.DefaultReminderMinutes != 30 {
		t.Fatalf("expected 30, got %d", cfg.DefaultReminderMinutes)
	}
	if !cfg.CalDAVEnabled() || cfg.APIEnabled() {
		t.Fatalf("expected caldav on and api off")
	}
}

func TestLoadRequiresTokenAndOwner(t *testing.T) {
	clearEnv(t)
	if _, err := Load(); err == nil {
		t.Fatal("expected error without token")
	}

	t.Setenv("TELEGRAM_BOT_TOKEN", "x")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without owner")
	}

	t.Setenv("OWNER_TELEGRAM_ID", "abc")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric owner")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		mod  func(c *Config)
	}{
		{"timezone", func(c *Config) { c.TimezoneName = "Mars/Olympus" }},
		{"morning", func(c *Config) { c.MorningTime = "8am" }},
		{"evening", func(c *Config) { c.EveningTime = "25:00" }},
		{"reminder", func(c *Config) { c.DefaultReminderMinutes = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{TelegramToken: "x", OwnerTelegramID: 1}
			c.Normalize()
			tt.mod(c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestAllowList(t *testing.T) {
	c := &Config{OwnerTelegramID: 1, AllowedTelegramIDs: []int64{2}}
	if !c.IsAllowedUser(1) || !c.IsAllowedUser(2) || c.IsAllowedUser(3) {
		t.Fatal("unexpected allow-list result")
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:05")
	if err != nil || h != 7 || m != 5 {
		t.Fatalf("expected 7:05, got %d:%d %v", h, m, err)
	}
	if _, _, err := ParseClock("7pm"); err == nil {
		t.Fatal("expected error")
	}
}
