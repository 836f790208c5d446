package bot

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xmonx11/smartreminder/internal/calendar"
	"github.com/xmonx11/smartreminder/internal/domain"
	"github.com/xmonx11/smartreminder/internal/service"
)

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type TaskResponse struct {
	ID              int64               `json:"id"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	Location        string              `json:"location,omitempty"`
	Type            domain.Kind         `json:"type"`
	Date            string              `json:"date"`
	StartDate       string              `json:"start_date,omitempty"`
	EndDate         string              `json:"end_date,omitempty"`
	Time            string              `json:"time"`
	RepeatFrequency domain.Recurrence   `json:"repeat_frequency"`
	RepeatDays      calendar.WeekdaySet `json:"repeat_days"`
	Status          domain.Status       `json:"status"`
	ReminderMinutes int                 `json:"reminder_minutes"`
	CreatedAt       string              `json:"created_at"`
}

// OccurrenceResponse flattens the composite key to "<id>-<date>".
type OccurrenceResponse struct {
	Key       string        `json:"key"`
	TaskID    int64         `json:"task_id"`
	Title     string        `json:"title"`
	Type      domain.Kind   `json:"type"`
	Date      string        `json:"date"`
	Time      string        `json:"time"`
	Status    domain.Status `json:"status"`
	Countdown string        `json:"countdown,omitempty"`
	Recurring bool          `json:"recurring"`
}

// TaskRequest is the body of create and conflict-check requests.
type TaskRequest struct {
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Location        string              `json:"location"`
	Type            domain.Kind         `json:"type"`
	Date            string              `json:"date"`
	StartDate       string              `json:"start_date"`
	EndDate         string              `json:"end_date"`
	Time            string              `json:"time"`
	RepeatFrequency domain.Recurrence   `json:"repeat_frequency"`
	RepeatDays      calendar.WeekdaySet `json:"repeat_days"`
	ReminderMinutes *int                `json:"reminder_minutes"`
	ExcludeID       int64               `json:"exclude_id,omitempty"`
}

func (r TaskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:           r.Title,
		Description:     r.Description,
		Location:        r.Location,
		Kind:            r.Type,
		Date:            r.Date,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Time:            r.Time,
		Recurrence:      r.RepeatFrequency,
		RepeatDays:      r.RepeatDays,
		ReminderMinutes: r.ReminderMinutes,
	}
}

// taskPatch is the body of PUT; nil fields keep their value.
type taskPatch struct {
	Title           *string              `json:"title"`
	Description     *string              `json:"description"`
	Location        *string              `json:"location"`
	Type            *domain.Kind         `json:"type"`
	Date            *string              `json:"date"`
	StartDate       *string              `json:"start_date"`
	EndDate         *string              `json:"end_date"`
	Time            *string              `json:"time"`
	RepeatFrequency *domain.Recurrence   `json:"repeat_frequency"`
	RepeatDays      *calendar.WeekdaySet `json:"repeat_days"`
	ReminderMinutes *int                 `json:"reminder_minutes"`
}

func (p taskPatch) apply(in *service.TaskInput) {
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.Location != nil {
		in.Location = *p.Location
	}
	if p.Type != nil {
		in.Kind = *p.Type
	}
	if p.Date != nil {
		in.Date = *p.Date
	}
	if p.StartDate != nil {
		in.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		in.EndDate = *p.EndDate
	}
	if p.Time != nil {
		in.Time = *p.Time
	}
	if p.RepeatFrequency != nil {
		in.Recurrence = *p.RepeatFrequency
	}
	if p.RepeatDays != nil {
		in.RepeatDays = *p.RepeatDays
	}
	if p.ReminderMinutes != nil {
		in.ReminderMinutes = p.ReminderMinutes
	}
}

// Handler returns the HTTP routes: health always, the REST API when
// credentials are configured.
func (b *Bot) Handler() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if !b.cfg.APIEnabled() {
		return mux // API disabled if no credentials
	}

	mux.HandleFunc("/api/occurrences", b.basicAuth(b.apiOccurrences))
	mux.HandleFunc("/api/tasks", b.basicAuth(b.apiTasks))
	mux.HandleFunc("/api/tasks/upcoming", b.basicAuth(b.apiTasksUpcoming))
	mux.HandleFunc("/api/tasks/completed", b.basicAuth(b.apiTasksCompleted))
	mux.HandleFunc("/api/tasks/missed", b.basicAuth(b.apiTasksMissed))
	mux.HandleFunc("/api/task/", b.basicAuth(b.apiTask))
	mux.HandleFunc("/api/conflicts", b.basicAuth(b.apiConflicts))
	mux.HandleFunc("/api/calendar.ics", b.basicAuth(b.apiCalendarExport))
	return mux
}

// basicAuth middleware
func (b *Bot) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok || username != b.cfg.APIUser || password != b.cfg.APIPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="SmartReminder API"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (b *Bot) jsonResponse(w http.ResponseWriter, data interface{}) {
	b.jsonStatus(w, http.StatusOK, data)
}

func (b *Bot) jsonStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (b *Bot) jsonError(w http.ResponseWriter, err string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(APIResponse{Success: false, Error: err})
}

// serviceError maps service sentinels to HTTP statuses.
func (b *Bot) serviceError(w http.ResponseWriter, err error) {
	var fe *calendar.FormatError
	switch {
	case errors.Is(err, service.ErrConflict):
		b.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrValidation), errors.As(err, &fe):
		b.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		b.jsonError(w, "Task not found", http.StatusNotFound)
	case errors.Is(err, service.ErrAccessDenied):
		b.jsonError(w, "Access denied", http.StatusForbidden)
	default:
		log.Error().Err(err).Msg("api request failed")
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

// ownerUser returns the owner's user row, creating it on first API use.
func (b *Bot) ownerUser() (*domain.User, error) {
	user, err := b.storage.GetUserByTelegramID(b.cfg.OwnerTelegramID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	user = &domain.User{TelegramID: b.cfg.OwnerTelegramID, Name: "Owner"}
	if err := b.storage.CreateUser(user); err != nil {
		return nil, err
	}
	log.Info().Int64("telegram_id", user.TelegramID).Msg("created owner user for api")
	return user, nil
}

// withOwner resolves the owner and writes a 500 on failure.
func (b *Bot) withOwner(w http.ResponseWriter) (*domain.User, bool) {
	user, err := b.ownerUser()
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return user, true
}

func dateParam(r *http.Request, name string, def calendar.Date) (calendar.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return calendar.ParseDate(v)
}

// GET /api/occurrences?from=YYYY-MM-DD&to=YYYY-MM-DD
func (b *Bot) apiOccurrences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := b.withOwner(w)
	if !ok {
		return
	}

	from, err := dateParam(r, "from", b.taskService.Today())
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := dateParam(r, "to", from.AddDays(6))
	if err != nil {
		b.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if to.Before(from) {
		b.jsonError(w, "to must not be before from", http.StatusBadRequest)
		return
	}

	occs, err := b.taskService.Occurrences(user.ID, from, to)
	if err != nil {
		b.serviceError(w, err)
		return
	}
	b.jsonResponse(w, b.occurrencesToResponse(occs))
}

// GET /api/tasks[?date=YYYY-MM-DD] - list definitions
// POST /api/tasks - create
func (b *Bot) apiTasks(w http.ResponseWriter, r *http.Request) {
	user, ok := b.withOwner(w)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		var tasks []*domain.Task
		var err error
		if v := r.URL.Query().Get("date"); v != "" {
			d, perr := calendar.ParseDate(v)
			if perr != nil {
				b.jsonError(w, perr.Error(), http.StatusBadRequest)
				return
			}
			tasks, err = b.taskService.ListByDate(user.ID, d)
		} else {
			tasks, err = b.taskService.List(user.ID)
		}
		if err != nil {
			b.serviceError(w, err)
			return
		}
		b.jsonResponse(w, b.tasksToResponse(tasks))

	case http.MethodPost:
		var req TaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		task, err := b.taskService.Add(r.Context(), user.ID, req.input())
		if err != nil {
			b.serviceError(w, err)
			return
		}
		b.jsonStatus(w, http.StatusCreated, b.taskToResponse(task))

	default:
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (b *Bot) listTasks(w http.ResponseWriter, r *http.Request, list func(userID int64) ([]*domain.Task, error)) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := b.withOwner(w)
	if !ok {
		return
	}
	tasks, err := list(user.ID)
	if err != nil {
		b.serviceError(w, err)
		return
	}
	b.jsonResponse(w, b.tasksToResponse(tasks))
}

// GET /api/tasks/upcoming
func (b *Bot) apiTasksUpcoming(w http.ResponseWriter, r *http.Request) {
	b.listTasks(w, r, b.taskService.ListUpcoming)
}

// GET /api/tasks/completed
func (b *Bot) apiTasksCompleted(w http.ResponseWriter, r *http.Request) {
	b.listTasks(w, r, b.taskService.ListCompleted)
}

// GET /api/tasks/missed
func (b *Bot) apiTasksMissed(w http.ResponseWriter, r *http.Request) {
	b.listTasks(w, r, b.taskService.Missed)
}

// GET|PUT|DELETE /api/task/{ref}, POST /api/task/{ref}/done
// ref is a task id or an occurrence key.
func (b *Bot) apiTask(w http.ResponseWriter, r *http.Request) {
	user, ok := b.withOwner(w)
	if !ok {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/task/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		b.jsonError(w, "Task ID required", http.StatusBadRequest)
		return
	}

	taskID, err := service.ParseRef(parts[0])
	if err != nil {
		b.jsonError(w, "Invalid task ID", http.StatusBadRequest)
		return
	}

	// Handle sub-paths
	if len(parts) > 1 {
		switch parts[1] {
		case "done":
			if r.Method != http.MethodPost {
				b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if err := b.taskService.MarkDone(r.Context(), user.ID, taskID); err != nil {
				b.serviceError(w, err)
				return
			}
			b.jsonResponse(w, map[string]bool{"done": true})
		default:
			b.jsonError(w, "Not found", http.StatusNotFound)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := b.taskService.Get(user.ID, taskID)
		if err != nil {
			b.serviceError(w, err)
			return
		}
		b.jsonResponse(w, b.taskToResponse(task))

	case http.MethodPut:
		var patch taskPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		task, err := b.taskService.Get(user.ID, taskID)
		if err != nil {
			b.serviceError(w, err)
			return
		}
		in := service.InputFromTask(task)
		patch.apply(&in)
		updated, err := b.taskService.Update(r.Context(), user.ID, taskID, in)
		if err != nil {
			b.serviceError(w, err)
			return
		}
		b.jsonResponse(w, b.taskToResponse(updated))

	case http.MethodDelete:
		if err := b.taskService.Delete(r.Context(), user.ID, taskID); err != nil {
			b.serviceError(w, err)
			return
		}
		b.jsonResponse(w, map[string]bool{"deleted": true})

	default:
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/conflicts - check a candidate without saving it
func (b *Bot) apiConflicts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := b.withOwner(w)
	if !ok {
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.jsonError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	hit, err := b.taskService.CheckConflict(user.ID, req.input(), req.ExcludeID)
	if err != nil {
		b.serviceError(w, err)
		return
	}

	resp := map[string]interface{}{"conflict": hit != nil}
	if hit != nil {
		resp["with"] = b.taskToResponse(hit)
		resp["message"] = (&service.ConflictError{With: hit}).Error()
	}
	b.jsonResponse(w, resp)
}

// GET /api/calendar.ics - export definitions as iCalendar
func (b *Bot) apiCalendarExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		b.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user, ok := b.withOwner(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="smartreminder.ics"`)
	if err := b.calendarService.Export(w, user.ID); err != nil {
		log.Error().Err(err).Msg("export calendar")
	}
}

func (b *Bot) occurrencesToResponse(occs []domain.Occurrence) []OccurrenceResponse {
	result := make([]OccurrenceResponse, len(occs))
	for i, o := range occs {
		result[i] = OccurrenceResponse{
			Key:       o.Key.String(),
			TaskID:    o.Key.DefinitionID,
			Title:     o.Task.Title,
			Type:      o.Task.Kind,
			Date:      o.Key.Date.String(),
			Time:      o.Task.Time,
			Status:    b.taskService.DisplayStatus(o),
			Countdown: b.taskService.Countdown(o),
			Recurring: o.Task.IsRecurring(),
		}
	}
	return result
}

func (b *Bot) tasksToResponse(tasks []*domain.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = b.taskToResponse(t)
	}
	return result
}

func (b *Bot) taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		Location:        t.Location,
		Type:            t.Kind,
		Date:            t.Date,
		StartDate:       t.StartDate,
		EndDate:         t.EndDate,
		Time:            t.Time,
		RepeatFrequency: t.Recurrence,
		RepeatDays:      t.RepeatDays,
		Status:          t.Status,
		ReminderMinutes: t.ReminderMinutes,
		CreatedAt:       t.CreatedAt.Format("2006-01-02 15:04"),
	}
}
