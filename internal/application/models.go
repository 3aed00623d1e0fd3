package application

import (
	"strings"
	"time"

	"github.com/example/access-compliance/internal/compliance"
	"github.com/example/access-compliance/internal/notification"
	"github.com/example/access-compliance/internal/workschedule"
)

// SystemActor is recorded when the service itself closes an assignment.
const SystemActor = "system"

const (
	// MaxCardIDLength bounds a trimmed card identifier.
	MaxCardIDLength = 20

	DefaultEmployeePosition   = "Employee"
	DefaultSupervisorPosition = "Manager"
)

// AccessLevel is the classification stored on every ledger row.
type AccessLevel string

const (
	AccessAuthorized   AccessLevel = "Authorized"
	AccessUnauthorized AccessLevel = "Unauthorized"
	AccessUnknown      AccessLevel = "Unknown"
)

// Ledger statuses written for swipes that never reach the evaluator.
const (
	StatusNoCard          = "NO_CARD"
	StatusCardNotAssigned = "CARD_NOT_ASSIGNED"
	StatusAccessDenied    = "ACCESS_DENIED"
)

// Employee is a badge holder.
type Employee struct {
	ID             string
	FirstName      string
	LastName       string
	Position       string
	SupervisorID   *string
	WorkScheduleID *string
	CardID         *string
	AccessGranted  bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName joins first and last name.
func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// AccessStatus reports the access flag as a ledger access level.
func (e Employee) AccessStatus() AccessLevel {
	if e.AccessGranted {
		return AccessAuthorized
	}
	return AccessUnauthorized
}

// Supervisor receives schedule notifications about their employees.
type Supervisor struct {
	ID                  string
	FirstName           string
	LastName            string
	Position            string
	Email               string
	Phone               *string
	NotificationChannel notification.Channel
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// FullName joins first and last name.
func (s Supervisor) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// WorkSchedule holds the canonical weekday and time window text.
type WorkSchedule struct {
	ID           string
	Name         string
	SelectedDays string
	TimeRanges   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Model parses the stored text into a workschedule.Schedule.
func (w WorkSchedule) Model() workschedule.Schedule {
	return workschedule.Parse(w.SelectedDays, w.TimeRanges)
}

// CardAssignment is one historical binding of a card to an employee.
type CardAssignment struct {
	ID           string
	CardID       string
	EmployeeID   string
	AssignedAt   time.Time
	AssignedBy   string
	UnassignedAt *time.Time
	UnassignedBy *string
	Active       bool
}

// SwipeEvent is one ledger row.
type SwipeEvent struct {
	ID                   int64
	TerminalID           string
	Action               string
	CardID               string
	Status               string
	DeviceTimestamp      string
	DeviceLocalTimestamp string
	ActiveSessions       *int
	UptimeSeconds        *int64
	WifiConnected        *bool
	ReceivedAt           time.Time
	EmployeeID           *string
	EmployeeName         string
	AccessLevel          AccessLevel
	TimestampSource      compliance.TimestampSource
}

// LedgerStats summarises the ledger.
type LedgerStats struct {
	Total          int64
	ActiveSessions *int
	Latest         *SwipeEvent
}

// ResolvedEmployee is an employee with the supervisor and schedule it references.
type ResolvedEmployee struct {
	Employee
	Supervisor *Supervisor
	Schedule   *WorkSchedule
}

// AccessDecision is the classification of a card presentation.
type AccessDecision struct {
	Granted  bool
	Level    AccessLevel
	Employee *ResolvedEmployee
	Reason   string
}

// CardStatus combines the binding, the access decision and the last ledger row for a card.
type CardStatus struct {
	CardID           string
	Assigned         bool
	Decision         AccessDecision
	ActiveAssignment *CardAssignment
	LastEvent        *SwipeEvent
}

// AssignCardParams describes a card assignment request.
type AssignCardParams struct {
	EmployeeID  string
	CardID      string
	GrantAccess bool
	Actor       string
}

// EmployeeInput carries the directory fields of an employee. The card is
// managed through the card registry only.
type EmployeeInput struct {
	FirstName      string
	LastName       string
	Position       string
	SupervisorID   *string
	WorkScheduleID *string
	AccessGranted  bool
}

// SupervisorInput carries the mutable fields of a supervisor.
type SupervisorInput struct {
	FirstName           string
	LastName            string
	Position            string
	Email               string
	Phone               *string
	NotificationChannel notification.Channel
}

// WorkScheduleInput carries raw schedule text in any accepted encoding.
type WorkScheduleInput struct {
	Name         string
	SelectedDays string
	TimeRanges   string
}

// SwipeInput is one device report as received by the ingest endpoint.
type SwipeInput struct {
	TerminalID           string
	Action               string
	CardID               string
	Status               string
	DeviceTimestamp      string
	DeviceLocalTimestamp string
	ActiveSessions       *int
	UptimeSeconds        *int64
	WifiConnected        *bool
}

// SwipeResult is returned to the device after ingestion.
type SwipeResult struct {
	Event         SwipeEvent
	AccessGranted bool
	Employee      *ResolvedEmployee
	SystemMessage string
	EffectiveAt   time.Time
	Notification  notification.Decision
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
