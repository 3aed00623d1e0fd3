package persistence

import "time"

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

// Supervisor receives late arrival and early departure notifications.
type Supervisor struct {
	ID                  string
	FirstName           string
	LastName            string
	Position            string
	Email               string
	Phone               *string
	NotificationChannel int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// WorkSchedule stores weekday and time window text in canonical form.
type WorkSchedule struct {
	ID           string
	Name         string
	SelectedDays string
	TimeRanges   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CardAssignment is one binding of a card to an employee. Rows are never deleted.
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
	AccessLevel          string
	TimestampSource      string
}

// SwipeStats summarises the ledger.
type SwipeStats struct {
	Total          int64
	ActiveSessions *int
	Latest         *SwipeEvent
}
