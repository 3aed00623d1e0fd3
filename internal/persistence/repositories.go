package persistence

import (
	"context"
	"time"
)

// EmployeeRepository exposes directory operations for employees. Card binding
// is owned by CardTx; UpdateEmployee never changes card_id.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) error
	UpdateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	GetEmployeeByCard(ctx context.Context, cardID string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	ListUnassignedEmployees(ctx context.Context) ([]Employee, error)
}

// SupervisorRepository exposes CRUD operations for supervisors.
type SupervisorRepository interface {
	CreateSupervisor(ctx context.Context, supervisor Supervisor) error
	UpdateSupervisor(ctx context.Context, supervisor Supervisor) error
	GetSupervisor(ctx context.Context, id string) (Supervisor, error)
	ListSupervisors(ctx context.Context) ([]Supervisor, error)
	DeleteSupervisor(ctx context.Context, id string) error
	CountSupervisors(ctx context.Context) (int, error)
}

// WorkScheduleRepository exposes CRUD operations for work schedules.
type WorkScheduleRepository interface {
	CreateWorkSchedule(ctx context.Context, schedule WorkSchedule) error
	UpdateWorkSchedule(ctx context.Context, schedule WorkSchedule) error
	GetWorkSchedule(ctx context.Context, id string) (WorkSchedule, error)
	ListWorkSchedules(ctx context.Context) ([]WorkSchedule, error)
	DeleteWorkSchedule(ctx context.Context, id string) error
}

// AssignmentFilter selects active assignments to close. Empty fields match anything.
type AssignmentFilter struct {
	CardID     string
	EmployeeID string
}

// CardTx is the transactional view used by card registry mutations.
type CardTx interface {
	GetEmployee(ctx context.Context, id string) (Employee, error)
	GetEmployeeByCard(ctx context.Context, cardID string) (Employee, error)
	SetEmployeeCard(ctx context.Context, employeeID string, cardID *string, accessGranted bool, updatedAt time.Time) error
	HasActiveAssignment(ctx context.Context, cardID, employeeID string) (bool, error)
	CreateAssignment(ctx context.Context, assignment CardAssignment) error
	CloseActiveAssignments(ctx context.Context, filter AssignmentFilter, closedAt time.Time, actor string) (int, error)
	DeleteEmployee(ctx context.Context, id string) error
}

// CardAssignmentRepository runs card transactions and reads assignment history.
type CardAssignmentRepository interface {
	WithinCardTx(ctx context.Context, fn func(tx CardTx) error) error
	ListAssignmentsForCard(ctx context.Context, cardID string) ([]CardAssignment, error)
	GetActiveAssignment(ctx context.Context, cardID string) (CardAssignment, error)
}

// SwipeEventRepository is the append-only ledger store.
type SwipeEventRepository interface {
	AppendSwipeEvent(ctx context.Context, event SwipeEvent) (SwipeEvent, error)
	ListRecentSwipeEvents(ctx context.Context, limit int) ([]SwipeEvent, error)
	ListSwipeEventsByAction(ctx context.Context, action string, limit int) ([]SwipeEvent, error)
	ListSwipeEventsByTerminal(ctx context.Context, terminalID string, limit int) ([]SwipeEvent, error)
	LatestSwipeEvent(ctx context.Context) (SwipeEvent, error)
	LatestSwipeEventForCard(ctx context.Context, cardID string) (SwipeEvent, error)
	SwipeStats(ctx context.Context, sessionWindow int) (SwipeStats, error)
	ClearSwipeEvents(ctx context.Context) (int64, error)
}
