package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/access-compliance/internal/application"
	"github.com/example/access-compliance/internal/compliance"
	"github.com/example/access-compliance/internal/notification"
)

var handlerNow = time.Date(2024, 1, 2, 9, 1, 0, 0, time.UTC)

type fakeSwipes struct {
	lastInput application.SwipeInput
	result    application.SwipeResult
	err       error
}

func (f *fakeSwipes) Ingest(ctx context.Context, in application.SwipeInput) (application.SwipeResult, error) {
	f.lastInput = in
	return f.result, f.err
}

type fakeLedger struct {
	events      []application.SwipeEvent
	lastAction  string
	lastSystem  string
	clearedRows int64
}

func (f *fakeLedger) Recent(ctx context.Context) ([]application.SwipeEvent, error) {
	return f.events, nil
}

func (f *fakeLedger) ByAction(ctx context.Context, action string) ([]application.SwipeEvent, error) {
	f.lastAction = action
	return f.events, nil
}

func (f *fakeLedger) ByTerminal(ctx context.Context, terminalID string) ([]application.SwipeEvent, error) {
	f.lastSystem = terminalID
	return f.events, nil
}

func (f *fakeLedger) Latest(ctx context.Context) (application.SwipeEvent, error) {
	if len(f.events) == 0 {
		return application.SwipeEvent{}, application.ErrNotFound
	}
	return f.events[0], nil
}

func (f *fakeLedger) Stats(ctx context.Context) (application.LedgerStats, error) {
	stats := application.LedgerStats{Total: int64(len(f.events))}
	if len(f.events) > 0 {
		latest := f.events[0]
		stats.Latest = &latest
		stats.ActiveSessions = latest.ActiveSessions
	}
	return stats, nil
}

func (f *fakeLedger) Clear(ctx context.Context) (int64, error) {
	f.clearedRows = int64(len(f.events))
	f.events = nil
	return f.clearedRows, nil
}

type fakeDirectory struct {
	employees       []application.Employee
	createErr       error
	lastCreate      application.CreateEmployeeParams
	lastDeleteActor string
	lastSupervisor  application.SupervisorInput
}

func (f *fakeDirectory) ListEmployees(ctx context.Context) ([]application.Employee, error) {
	return f.employees, nil
}

func (f *fakeDirectory) ListUnassignedEmployees(ctx context.Context) ([]application.Employee, error) {
	var out []application.Employee
	for _, e := range f.employees {
		if e.CardID == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeDirectory) GetEmployee(ctx context.Context, id string) (application.Employee, error) {
	for _, e := range f.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return application.Employee{}, application.ErrNotFound
}

func (f *fakeDirectory) CreateEmployee(ctx context.Context, params application.CreateEmployeeParams) (application.Employee, error) {
	f.lastCreate = params
	if f.createErr != nil {
		return application.Employee{}, f.createErr
	}
	return application.Employee{ID: "emp-new", FirstName: params.Input.FirstName, LastName: params.Input.LastName, CreatedAt: handlerNow, UpdatedAt: handlerNow}, nil
}

func (f *fakeDirectory) UpdateEmployee(ctx context.Context, id string, in application.EmployeeInput) (application.Employee, error) {
	return application.Employee{ID: id, FirstName: in.FirstName, LastName: in.LastName}, nil
}

func (f *fakeDirectory) DeleteEmployee(ctx context.Context, id, actor string) error {
	f.lastDeleteActor = actor
	_, err := f.GetEmployee(ctx, id)
	return err
}

func (f *fakeDirectory) ListSupervisors(ctx context.Context) ([]application.Supervisor, error) {
	return nil, nil
}

func (f *fakeDirectory) GetSupervisor(ctx context.Context, id string) (application.Supervisor, error) {
	return application.Supervisor{}, application.ErrNotFound
}

func (f *fakeDirectory) CreateSupervisor(ctx context.Context, in application.SupervisorInput) (application.Supervisor, error) {
	f.lastSupervisor = in
	if in.NotificationChannel < notification.ChannelNone || in.NotificationChannel > notification.ChannelSMS {
		return application.Supervisor{}, &application.ValidationError{FieldErrors: map[string]string{
			"notification_channel": "notification_channel must be none, email or sms",
		}}
	}
	return application.Supervisor{ID: "sup-1", FirstName: in.FirstName, LastName: in.LastName, Email: in.Email, NotificationChannel: in.NotificationChannel}, nil
}

func (f *fakeDirectory) UpdateSupervisor(ctx context.Context, id string, in application.SupervisorInput) (application.Supervisor, error) {
	return application.Supervisor{ID: id}, nil
}

func (f *fakeDirectory) DeleteSupervisor(ctx context.Context, id string) error {
	return nil
}

type fakeCards struct {
	assignErr   error
	released    bool
	resolved    application.ResolvedEmployee
	found       bool
	history     []application.CardAssignment
	lastAssign  application.AssignCardParams
	lastRelease string
}

func (f *fakeCards) AssignCard(ctx context.Context, params application.AssignCardParams) (application.Employee, error) {
	f.lastAssign = params
	if f.assignErr != nil {
		return application.Employee{}, f.assignErr
	}
	card := strings.TrimSpace(params.CardID)
	return application.Employee{ID: params.EmployeeID, FirstName: "Alice", LastName: "Johnson", CardID: &card, AccessGranted: params.GrantAccess}, nil
}

func (f *fakeCards) UnassignCard(ctx context.Context, cardID, actor string) (bool, error) {
	f.lastRelease = actor
	return f.released, nil
}

func (f *fakeCards) ResolveByCard(ctx context.Context, cardID string) (application.ResolvedEmployee, bool, error) {
	return f.resolved, f.found, nil
}

func (f *fakeCards) AssignmentHistory(ctx context.Context, cardID string) ([]application.CardAssignment, error) {
	return f.history, nil
}

type fakeAccess struct {
	status application.CardStatus
}

func (f *fakeAccess) CardStatus(ctx context.Context, cardID string) (application.CardStatus, error) {
	status := f.status
	status.CardID = cardID
	return status, nil
}

type testAPI struct {
	router    http.Handler
	swipes    *fakeSwipes
	ledger    *fakeLedger
	directory *fakeDirectory
	cards     *fakeCards
	access    *fakeAccess
}

func newTestAPI() *testAPI {
	api := &testAPI{
		swipes:    &fakeSwipes{},
		ledger:    &fakeLedger{},
		directory: &fakeDirectory{},
		cards:     &fakeCards{},
		access:    &fakeAccess{},
	}
	api.router = NewRouter(RouterConfig{
		TimeTracker: NewTimeTrackerHandler(api.swipes, api.ledger, nil, nil),
		Employees:   NewEmployeeHandler(api.directory, api.cards, api.access, nil),
		Supervisors: NewSupervisorHandler(api.directory, nil),
		Auth:        RequireAPIKey(nil, nil),
	})
	return api
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	a.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(recorder.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode body %q: %v", recorder.Body.String(), err)
	}
	return out
}

func TestTimeTrackerHandlers(t *testing.T) {
	t.Parallel()

	t.Run("ingest maps the device payload and enriches the response", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		employeeID := "emp-1"
		api.swipes.result = application.SwipeResult{
			Event: application.SwipeEvent{
				ID:              12,
				Status:          string(compliance.OutcomeSuccess),
				AccessLevel:     application.AccessAuthorized,
				ReceivedAt:      handlerNow,
				EmployeeID:      &employeeID,
				TimestampSource: compliance.SourceDevice,
			},
			AccessGranted: true,
			Employee:      &application.ResolvedEmployee{Employee: application.Employee{ID: employeeID, FirstName: "Alice", LastName: "Johnson", Position: "Developer"}},
			SystemMessage: "access granted",
		}

		recorder := api.do(t, http.MethodPost, "/api/timetracker/data",
			`{"system_id":" T1 ","action":"LOGIN","card_id":"CARD-1","timestamp_iso":"2024-01-02T09:01:00Z","active_sessions":3,"system_uptime":120,"wifi_connected":true}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}

		in := api.swipes.lastInput
		if in.TerminalID != "T1" || in.DeviceTimestamp != "2024-01-02T09:01:00Z" || in.ActiveSessions == nil || *in.ActiveSessions != 3 || in.UptimeSeconds == nil || *in.UptimeSeconds != 120 {
			t.Fatalf("unexpected swipe input: %#v", in)
		}

		resp := decodeBody[ingestResponse](t, recorder)
		if resp.Message != application.IngestAcknowledgement || !resp.AccessGranted || resp.EmployeeName != "Alice" || resp.EmployeeSurname != "Johnson" || resp.Position != "Developer" {
			t.Fatalf("unexpected ingest response: %#v", resp)
		}
		if resp.AccessLevel != "Authorized" || resp.EventID != 12 || resp.TimestampSource != "device" || resp.Timestamp != "2024-01-02T09:01:00Z" {
			t.Fatalf("unexpected ingest metadata: %#v", resp)
		}
	})

	t.Run("ingest rejects malformed bodies", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		recorder := api.do(t, http.MethodPost, "/api/timetracker/data", `{"system_id":`)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
		if body := decodeBody[errorResponse](t, recorder); body.Message != errBadRequestBody.Error() {
			t.Fatalf("unexpected message %q", body.Message)
		}
	})

	t.Run("ingest failures map to 500", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		api.swipes.err = errors.New("disk full")
		recorder := api.do(t, http.MethodPost, "/api/timetracker/data", `{"system_id":"T1"}`)
		if recorder.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", recorder.Code)
		}
	})

	t.Run("empty ledger views", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()

		recorder := api.do(t, http.MethodGet, "/api/timetracker/data", "")
		if recorder.Code != http.StatusOK || strings.TrimSpace(recorder.Body.String()) != "[]" {
			t.Fatalf("expected empty array, got %d %q", recorder.Code, recorder.Body.String())
		}

		recorder = api.do(t, http.MethodGet, "/api/timetracker/data/latest", "")
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
		if body := decodeBody[errorResponse](t, recorder); body.Message != "No data available" {
			t.Fatalf("unexpected message %q", body.Message)
		}

		stats := decodeBody[map[string]any](t, api.do(t, http.MethodGet, "/api/timetracker/stats", ""))
		for _, key := range []string{"total_records", "active_sessions", "last_system_id", "last_action", "last_received"} {
			if _, ok := stats[key]; !ok {
				t.Fatalf("stats missing %s: %v", key, stats)
			}
		}
		if stats["total_records"].(float64) != 0 || stats["last_system_id"] != nil {
			t.Fatalf("unexpected empty stats: %v", stats)
		}
	})

	t.Run("filters, stats and clear", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		sessions := 2
		api.ledger.events = []application.SwipeEvent{
			{ID: 2, TerminalID: "T1", Action: "LOGOUT", ReceivedAt: handlerNow, ActiveSessions: &sessions, AccessLevel: application.AccessUnknown},
			{ID: 1, TerminalID: "T1", Action: "LOGIN", ReceivedAt: handlerNow.Add(-time.Hour), AccessLevel: application.AccessAuthorized},
		}

		rows := decodeBody[[]swipeEventDTO](t, api.do(t, http.MethodGet, "/api/timetracker/data/action/logout", ""))
		if len(rows) != 2 || api.ledger.lastAction != "logout" {
			t.Fatalf("unexpected action view: %d rows, action %q", len(rows), api.ledger.lastAction)
		}
		api.do(t, http.MethodGet, "/api/timetracker/data/system/T1", "")
		if api.ledger.lastSystem != "T1" {
			t.Fatalf("expected terminal filter T1, got %q", api.ledger.lastSystem)
		}

		stats := decodeBody[statsResponse](t, api.do(t, http.MethodGet, "/api/timetracker/stats", ""))
		if stats.TotalRecords != 2 || stats.ActiveSessions == nil || *stats.ActiveSessions != 2 || stats.LastAction == nil || *stats.LastAction != "LOGOUT" {
			t.Fatalf("unexpected stats: %#v", stats)
		}

		recorder := api.do(t, http.MethodDelete, "/api/timetracker/data", "")
		if recorder.Code != http.StatusOK || api.ledger.clearedRows != 2 {
			t.Fatalf("expected clear to remove 2 rows, got %d (status %d)", api.ledger.clearedRows, recorder.Code)
		}
	})

	t.Run("stream without a hub is not found", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		if recorder := api.do(t, http.MethodGet, "/api/timetracker/stream", ""); recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})
}

func TestEmployeeHandlers(t *testing.T) {
	t.Parallel()

	t.Run("assign card reports the employee", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		recorder := api.do(t, http.MethodPost, "/api/employee/assign-card", `{"employee_id":"emp-1","card_id":"CARD-1","grant_access":true}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		resp := decodeBody[assignCardResponse](t, recorder)
		if resp.Message != "Card CARD-1 successfully assigned to Alice Johnson" || !resp.Employee.AccessGranted {
			t.Fatalf("unexpected response: %#v", resp)
		}
		if api.cards.lastAssign.Actor != CallerDevBypass {
			t.Fatalf("expected caller to be recorded as actor, got %q", api.cards.lastAssign.Actor)
		}
	})

	t.Run("assign card conflict names the holder", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		api.cards.assignErr = &application.CardConflictError{CardID: "CARD-1", HolderID: "emp-2", HolderName: "Bob Smith"}

		recorder := api.do(t, http.MethodPost, "/api/employee/assign-card", `{"employee_id":"emp-1","card_id":"CARD-1"}`)
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		body := decodeBody[errorResponse](t, recorder)
		if body.ErrorCode != "CARD_CONFLICT" || body.HolderID != "emp-2" || !strings.Contains(body.Message, "Bob Smith") {
			t.Fatalf("unexpected conflict body: %#v", body)
		}
	})

	t.Run("validation errors are localized", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		api.cards.assignErr = &application.ValidationError{FieldErrors: map[string]string{"card_id": "card_id is required"}}

		recorder := api.do(t, http.MethodPost, "/api/employee/assign-card", `{"employee_id":"emp-1"}`)
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		body := decodeBody[errorResponse](t, recorder)
		if body.Errors["card_id"] != "カード ID は必須です。" {
			t.Fatalf("unexpected field errors: %#v", body.Errors)
		}
	})

	t.Run("unassign unknown card is not found", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		recorder := api.do(t, http.MethodDelete, "/api/employee/unassign-card/CARD-9", "")
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
		if body := decodeBody[errorResponse](t, recorder); body.Message != "Card CARD-9 is not assigned to any employee" {
			t.Fatalf("unexpected message %q", body.Message)
		}

		api.cards.released = true
		if recorder := api.do(t, http.MethodPost, "/api/employee/unassign-card/CARD-9", ""); recorder.Code != http.StatusOK {
			t.Fatalf("expected 200 for bound card, got %d", recorder.Code)
		}
	})

	t.Run("create returns 201 with location and passes the card", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		recorder := api.do(t, http.MethodPost, "/api/employee", `{"first_name":" Alice ","last_name":"Johnson","card_id":" CARD-1 ","access_granted":true}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if recorder.Header().Get("Location") != "/api/employee/emp-new" {
			t.Fatalf("unexpected location %q", recorder.Header().Get("Location"))
		}
		if api.directory.lastCreate.CardID != "CARD-1" || api.directory.lastCreate.Input.FirstName != "Alice" || !api.directory.lastCreate.Input.AccessGranted {
			t.Fatalf("unexpected create params: %#v", api.directory.lastCreate)
		}
	})

	t.Run("duplicate create maps to conflict", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		api.directory.createErr = application.ErrAlreadyExists
		if recorder := api.do(t, http.MethodPost, "/api/employee", `{"first_name":"A","last_name":"B"}`); recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
	})

	t.Run("static routes win over ids", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()
		card := "CARD-1"
		api.directory.employees = []application.Employee{
			{ID: "emp-1", FirstName: "Alice", LastName: "Johnson", CardID: &card},
			{ID: "emp-2", FirstName: "Bob", LastName: "Smith"},
		}

		unassigned := decodeBody[[]employeeDTO](t, api.do(t, http.MethodGet, "/api/employee/unassigned", ""))
		if len(unassigned) != 1 || unassigned[0].ID != "emp-2" {
			t.Fatalf("unexpected unassigned list: %#v", unassigned)
		}

		employee := decodeBody[employeeDTO](t, api.do(t, http.MethodGet, "/api/employee/emp-1", ""))
		if employee.FullName != "Alice Johnson" || employee.CardID == nil || *employee.CardID != "CARD-1" || employee.AccessStatus != "Unauthorized" {
			t.Fatalf("unexpected employee: %#v", employee)
		}

		if recorder := api.do(t, http.MethodGet, "/api/employee/emp-404", ""); recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
		if recorder := api.do(t, http.MethodDelete, "/api/employee/emp-2", ""); recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
	})

	t.Run("card lookups", func(t *testing.T) {
		t.Parallel()
		api := newTestAPI()

		if recorder := api.do(t, http.MethodGet, "/api/employee/card/CARD-1", ""); recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404 for unbound card, got %d", recorder.Code)
		}

		api.cards.found = true
		api.cards.resolved = application.ResolvedEmployee{
			Employee:   application.Employee{ID: "emp-1", FirstName: "Alice", LastName: "Johnson"},
			Supervisor: &application.Supervisor{ID: "sup-1", FirstName: "John", LastName: "Manager", NotificationChannel: notification.ChannelEmail},
			Schedule:   &application.WorkSchedule{ID: "ws-1", Name: "Standard", SelectedDays: "Monday,Friday", TimeRanges: `[{"StartTime":"09:00:00","EndTime":"17:00:00"}]`},
		}
		resolved := decodeBody[resolvedEmployeeDTO](t, api.do(t, http.MethodGet, "/api/employee/card/CARD-1", ""))
		if resolved.ID != "emp-1" || resolved.Supervisor == nil || resolved.Supervisor.NotificationChannel != "email" {
			t.Fatalf("unexpected resolved employee: %#v", resolved)
		}
		if resolved.WorkSchedule == nil || len(resolved.WorkSchedule.Days) != 2 || len(resolved.WorkSchedule.Windows) != 1 || resolved.WorkSchedule.Windows[0].End != "17:00" {
			t.Fatalf("unexpected schedule: %#v", resolved.WorkSchedule)
		}

		api.access.status = application.CardStatus{
			Assigned: true,
			Decision: application.AccessDecision{Granted: true, Level: application.AccessAuthorized, Reason: application.ReasonAccessGranted, Employee: &api.cards.resolved},
		}
		status := decodeBody[cardStatusResponse](t, api.do(t, http.MethodGet, "/api/employee/card-status/CARD-1", ""))
		if status.CardID != "CARD-1" || !status.IsAssigned || !status.AccessGranted || status.Employee == nil || status.Employee.FullName != "Alice Johnson" {
			t.Fatalf("unexpected card status: %#v", status)
		}

		closedAt := handlerNow
		system := application.SystemActor
		api.cards.history = []application.CardAssignment{
			{ID: "a2", CardID: "CARD-1", EmployeeID: "emp-1", AssignedAt: handlerNow, AssignedBy: "admin", Active: true},
			{ID: "a1", CardID: "CARD-1", EmployeeID: "emp-2", AssignedAt: handlerNow.Add(-time.Hour), UnassignedAt: &closedAt, UnassignedBy: &system},
		}
		history := decodeBody[cardHistoryResponse](t, api.do(t, http.MethodGet, "/api/employee/card-history/CARD-1", ""))
		if len(history.Assignments) != 2 || history.Assignments[1].UnassignedBy == nil || *history.Assignments[1].UnassignedBy != "system" {
			t.Fatalf("unexpected history: %#v", history)
		}
	})
}

func TestSupervisorHandlers_ChannelDecoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channel  string
		status   int
		expected notification.Channel
	}{
		{name: "label", channel: `"sms"`, status: http.StatusCreated, expected: notification.ChannelSMS},
		{name: "numeric code", channel: `1`, status: http.StatusCreated, expected: notification.ChannelEmail},
		{name: "null", channel: `null`, status: http.StatusCreated, expected: notification.ChannelNone},
		{name: "unknown", channel: `"pager"`, status: http.StatusUnprocessableEntity, expected: notification.Channel(-1)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			api := newTestAPI()
			recorder := api.do(t, http.MethodPost, "/api/employee/supervisors",
				`{"first_name":"John","last_name":"Manager","email":"john@company.com","notification_channel":`+tc.channel+`}`)
			if recorder.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, recorder.Code, recorder.Body.String())
			}
			if api.directory.lastSupervisor.NotificationChannel != tc.expected {
				t.Fatalf("expected channel %d, got %d", tc.expected, api.directory.lastSupervisor.NotificationChannel)
			}
		})
	}
}

func TestEncodeLedgerEvent(t *testing.T) {
	t.Parallel()

	payload, err := EncodeLedgerEvent(application.LedgerEvent{
		Kind:  application.LedgerSwipeRecorded,
		Event: &application.SwipeEvent{ID: 5, TerminalID: "T1", Action: "LOGIN", AccessLevel: application.AccessAuthorized, ReceivedAt: handlerNow},
	})
	if err != nil {
		t.Fatalf("EncodeLedgerEvent returned error: %v", err)
	}

	var decoded ledgerEventDTO
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.Kind != "swipe_recorded" || decoded.Event == nil || decoded.Event.SystemID != "T1" || decoded.Event.ReceivedTimestamp != "2024-01-02T09:01:00Z" {
		t.Fatalf("unexpected payload: %s", payload)
	}

	payload, err = EncodeLedgerEvent(application.LedgerEvent{Kind: application.LedgerCleared, Removed: 3})
	if err != nil {
		t.Fatalf("EncodeLedgerEvent returned error: %v", err)
	}
	if string(payload) != `{"kind":"ledger_cleared","removed":3}` {
		t.Fatalf("unexpected cleared payload: %s", payload)
	}
}
