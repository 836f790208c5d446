package bot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xmonx11/smartreminder/config"
	"github.com/xmonx11/smartreminder/internal/reminder"
	"github.com/xmonx11/smartreminder/internal/service"
	"github.com/xmonx11/smartreminder/internal/storage"
)

// Saturday 2024-03-02 08:00 UTC.
var apiNow = time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestAPI(t *testing.T) http.Handler {
	t.Helper()
	store, err := storage.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	notif := service.NewNotificationService(store)
	tasks := service.NewTaskService(store, reminder.NewScheduler(notif, time.UTC), 15).
		WithClock(func() time.Time { return apiNow })

	b := &Bot{
		cfg:             &config.Config{OwnerTelegramID: 7, APIUser: "api", APIPassword: "secret", Timezone: time.UTC},
		storage:         store,
		taskService:     tasks,
		calendarService: service.NewCalendarService(store, nil, time.UTC),
	}
	return b.Handler()
}

type apiResult struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, apiResult) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.SetBasicAuth("api", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res apiResult
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, res
}

func TestAPIRequiresBasicAuth(t *testing.T) {
	h := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health must be open, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAPIDisabledWithoutCredentials(t *testing.T) {
	b := &Bot{cfg: &config.Config{OwnerTelegramID: 7}}
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when api is disabled, got %d", rec.Code)
	}
}

func TestAPICreateListAndConflict(t *testing.T) {
	h := newTestAPI(t)

	rec, res := do(t, h, http.MethodPost, "/api/tasks", `{
		"title": "Math", "type": "Class", "start_date": "2024-03-01", "time": "2:00 PM",
		"repeat_frequency": "weekly", "repeat_days": ["Mon", "Wed"], "reminder_minutes": 10
	}`)
	if rec.Code != http.StatusCreated || !res.Success {
		t.Fatalf("expected 201, got %d %s", rec.Code, res.Error)
	}
	var created TaskResponse
	if err := json.Unmarshal(res.Data, &created); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	if created.Time != "02:00 PM" || created.RepeatDays.String() != "Mon,Wed" || created.ReminderMinutes != 10 {
		t.Fatalf("unexpected created task %+v", created)
	}

	rec, res = do(t, h, http.MethodPost, "/api/tasks", `{"title": "Standup", "type": "Meeting", "date": "2024-03-06", "time": "02:00 PM"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if res.Error != "You already have a schedule at 02:00 PM (Math)" {
		t.Fatalf("unexpected conflict message %q", res.Error)
	}

	_, res = do(t, h, http.MethodPost, "/api/conflicts", `{"title": "x", "type": "Work", "date": "2024-03-04", "time": "02:00 PM"}`)
	var check struct {
		Conflict bool   `json:"conflict"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(res.Data, &check); err != nil {
		t.Fatalf("decode conflict: %v", err)
	}
	if !check.Conflict || !strings.Contains(check.Message, "Math") {
		t.Fatalf("expected conflict with Math, got %+v", check)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/tasks", `{"title": "", "date": "2024-03-06", "time": "02:00 PM"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty title, got %d", rec.Code)
	}

	_, res = do(t, h, http.MethodGet, "/api/tasks", "")
	var list []TaskResponse
	if err := json.Unmarshal(res.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected only the class to be stored, got %d", len(list))
	}
}

func TestAPIOccurrencesUseStringKeys(t *testing.T) {
	h := newTestAPI(t)
	do(t, h, http.MethodPost, "/api/tasks", `{"title": "Math", "type": "Class", "start_date": "2024-03-01", "time": "02:00 PM", "repeat_frequency": "weekly", "repeat_days": ["Mon", "Wed"]}`)

	rec, res := do(t, h, http.MethodGet, "/api/occurrences?from=2024-03-02&to=2024-03-08", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, res.Error)
	}
	var occs []OccurrenceResponse
	if err := json.Unmarshal(res.Data, &occs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(occs) != 2 || occs[0].Key != "1-2024-03-04" || occs[1].Key != "1-2024-03-06" {
		t.Fatalf("unexpected occurrences %+v", occs)
	}
	if occs[0].Countdown != "2d 6h left" {
		t.Fatalf("unexpected countdown %q", occs[0].Countdown)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/occurrences?from=2024-03-08&to=2024-03-02", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/occurrences?from=03/02/2024", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestAPITaskByOccurrenceKey(t *testing.T) {
	h := newTestAPI(t)
	do(t, h, http.MethodPost, "/api/tasks", `{"title": "Essay", "date": "2024-03-01", "time": "09:00 AM"}`)

	_, res := do(t, h, http.MethodGet, "/api/tasks/missed", "")
	var missed []TaskResponse
	json.Unmarshal(res.Data, &missed)
	if len(missed) != 1 || missed[0].Title != "Essay" {
		t.Fatalf("expected Essay to be missed, got %+v", missed)
	}

	rec, res := do(t, h, http.MethodPut, "/api/task/1-2024-03-01", `{"date": "2024-03-05"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, res.Error)
	}
	var updated TaskResponse
	json.Unmarshal(res.Data, &updated)
	if updated.Date != "2024-03-05" || updated.Title != "Essay" {
		t.Fatalf("unexpected update %+v", updated)
	}

	rec, _ = do(t, h, http.MethodPost, "/api/task/1/done", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for done, got %d", rec.Code)
	}
	_, res = do(t, h, http.MethodGet, "/api/tasks/completed", "")
	var completed []TaskResponse
	json.Unmarshal(res.Data, &completed)
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed, got %d", len(completed))
	}

	rec, _ = do(t, h, http.MethodDelete, "/api/task/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for delete, got %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/task/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/task/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad ref, got %d", rec.Code)
	}
}

func TestAPICalendarExport(t *testing.T) {
	h := newTestAPI(t)
	do(t, h, http.MethodPost, "/api/tasks", `{"title": "Gym", "type": "Routine", "start_date": "2024-03-04", "time": "06:30 AM", "repeat_frequency": "daily"}`)

	rec, _ := do(t, h, http.MethodGet, "/api/calendar.ics", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("unexpected export response %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	body := rec.Body.String()
	for _, want := range []string{"BEGIN:VCALENDAR", "UID:task-1@smartreminder", "RRULE:FREQ=DAILY", "Gym"} {
		if !strings.Contains(body, want) {
			t.Fatalf("export missing %q:\n%s", want, body)
		}
	}
}
