package main

import (
	"context"
	"time"

	"github.com/example/access-compliance/internal/application"
	"github.com/example/access-compliance/internal/compliance"
	"github.com/example/access-compliance/internal/notification"
	"github.com/example/access-compliance/internal/persistence"
)

type employeeRepositoryAdapter struct {
	repo persistence.EmployeeRepository
}

func newEmployeeRepositoryAdapter(repo persistence.EmployeeRepository) *employeeRepositoryAdapter {
	return &employeeRepositoryAdapter{repo: repo}
}

func (a *employeeRepositoryAdapter) CreateEmployee(ctx context.Context, employee application.Employee) error {
	return a.repo.CreateEmployee(ctx, toPersistenceEmployee(employee))
}

func (a *employeeRepositoryAdapter) UpdateEmployee(ctx context.Context, employee application.Employee) error {
	return a.repo.UpdateEmployee(ctx, toPersistenceEmployee(employee))
}

func (a *employeeRepositoryAdapter) GetEmployee(ctx context.Context, id string) (application.Employee, error) {
	stored, err := a.repo.GetEmployee(ctx, id)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(stored), nil
}

func (a *employeeRepositoryAdapter) GetEmployeeByCard(ctx context.Context, cardID string) (application.Employee, error) {
	stored, err := a.repo.GetEmployeeByCard(ctx, cardID)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(stored), nil
}

func (a *employeeRepositoryAdapter) ListEmployees(ctx context.Context) ([]application.Employee, error) {
	stored, err := a.repo.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationEmployees(stored), nil
}

func (a *employeeRepositoryAdapter) ListUnassignedEmployees(ctx context.Context) ([]application.Employee, error) {
	stored, err := a.repo.ListUnassignedEmployees(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationEmployees(stored), nil
}

type supervisorRepositoryAdapter struct {
	repo persistence.SupervisorRepository
}

func newSupervisorRepositoryAdapter(repo persistence.SupervisorRepository) *supervisorRepositoryAdapter {
	return &supervisorRepositoryAdapter{repo: repo}
}

func (a *supervisorRepositoryAdapter) CreateSupervisor(ctx context.Context, supervisor application.Supervisor) error {
	return a.repo.CreateSupervisor(ctx, toPersistenceSupervisor(supervisor))
}

func (a *supervisorRepositoryAdapter) UpdateSupervisor(ctx context.Context, supervisor application.Supervisor) error {
	return a.repo.UpdateSupervisor(ctx, toPersistenceSupervisor(supervisor))
}

func (a *supervisorRepositoryAdapter) GetSupervisor(ctx context.Context, id string) (application.Supervisor, error) {
	stored, err := a.repo.GetSupervisor(ctx, id)
	if err != nil {
		return application.Supervisor{}, err
	}
	return toApplicationSupervisor(stored), nil
}

func (a *supervisorRepositoryAdapter) ListSupervisors(ctx context.Context) ([]application.Supervisor, error) {
	stored, err := a.repo.ListSupervisors(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]application.Supervisor, 0, len(stored))
	for _, supervisor := range stored {
		result = append(result, toApplicationSupervisor(supervisor))
	}
	return result, nil
}

func (a *supervisorRepositoryAdapter) DeleteSupervisor(ctx context.Context, id string) error {
	return a.repo.DeleteSupervisor(ctx, id)
}

func (a *supervisorRepositoryAdapter) CountSupervisors(ctx context.Context) (int, error) {
	return a.repo.CountSupervisors(ctx)
}

type workScheduleRepositoryAdapter struct {
	repo persistence.WorkScheduleRepository
}

func newWorkScheduleRepositoryAdapter(repo persistence.WorkScheduleRepository) *workScheduleRepositoryAdapter {
	return &workScheduleRepositoryAdapter{repo: repo}
}

func (a *workScheduleRepositoryAdapter) CreateWorkSchedule(ctx context.Context, schedule application.WorkSchedule) error {
	return a.repo.CreateWorkSchedule(ctx, persistence.WorkSchedule(schedule))
}

func (a *workScheduleRepositoryAdapter) UpdateWorkSchedule(ctx context.Context, schedule application.WorkSchedule) error {
	return a.repo.UpdateWorkSchedule(ctx, persistence.WorkSchedule(schedule))
}

func (a *workScheduleRepositoryAdapter) GetWorkSchedule(ctx context.Context, id string) (application.WorkSchedule, error) {
	stored, err := a.repo.GetWorkSchedule(ctx, id)
	if err != nil {
		return application.WorkSchedule{}, err
	}
	return application.WorkSchedule(stored), nil
}

func (a *workScheduleRepositoryAdapter) ListWorkSchedules(ctx context.Context) ([]application.WorkSchedule, error) {
	stored, err := a.repo.ListWorkSchedules(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]application.WorkSchedule, 0, len(stored))
	for _, schedule := range stored {
		result = append(result, application.WorkSchedule(schedule))
	}
	return result, nil
}

func (a *workScheduleRepositoryAdapter) DeleteWorkSchedule(ctx context.Context, id string) error {
	return a.repo.DeleteWorkSchedule(ctx, id)
}

// cardStoreAdapter exposes the assignment repository as an application.CardStore.
type cardStoreAdapter struct {
	repo persistence.CardAssignmentRepository
}

func newCardStoreAdapter(repo persistence.CardAssignmentRepository) *cardStoreAdapter {
	return &cardStoreAdapter{repo: repo}
}

func (a *cardStoreAdapter) WithinCardTx(ctx context.Context, fn func(tx application.CardTx) error) error {
	return a.repo.WithinCardTx(ctx, func(tx persistence.CardTx) error {
		return fn(cardTxAdapter{tx: tx})
	})
}

func (a *cardStoreAdapter) ListAssignmentsForCard(ctx context.Context, cardID string) ([]application.CardAssignment, error) {
	stored, err := a.repo.ListAssignmentsForCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	result := make([]application.CardAssignment, 0, len(stored))
	for _, assignment := range stored {
		result = append(result, application.CardAssignment(assignment))
	}
	return result, nil
}

func (a *cardStoreAdapter) GetActiveAssignment(ctx context.Context, cardID string) (application.CardAssignment, error) {
	stored, err := a.repo.GetActiveAssignment(ctx, cardID)
	if err != nil {
		return application.CardAssignment{}, err
	}
	return application.CardAssignment(stored), nil
}

type cardTxAdapter struct {
	tx persistence.CardTx
}

func (a cardTxAdapter) GetEmployee(ctx context.Context, id string) (application.Employee, error) {
	stored, err := a.tx.GetEmployee(ctx, id)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(stored), nil
}

func (a cardTxAdapter) GetEmployeeByCard(ctx context.Context, cardID string) (application.Employee, error) {
	stored, err := a.tx.GetEmployeeByCard(ctx, cardID)
	if err != nil {
		return application.Employee{}, err
	}
	return toApplicationEmployee(stored), nil
}

func (a cardTxAdapter) SetEmployeeCard(ctx context.Context, employeeID string, cardID *string, accessGranted bool, updatedAt time.Time) error {
	return a.tx.SetEmployeeCard(ctx, employeeID, cardID, accessGranted, updatedAt)
}

func (a cardTxAdapter) HasActiveAssignment(ctx context.Context, cardID, employeeID string) (bool, error) {
	return a.tx.HasActiveAssignment(ctx, cardID, employeeID)
}

func (a cardTxAdapter) CreateAssignment(ctx context.Context, assignment application.CardAssignment) error {
	return a.tx.CreateAssignment(ctx, persistence.CardAssignment(assignment))
}

func (a cardTxAdapter) CloseActiveAssignments(ctx context.Context, filter application.AssignmentFilter, closedAt time.Time, actor string) (int, error) {
	return a.tx.CloseActiveAssignments(ctx, persistence.AssignmentFilter(filter), closedAt, actor)
}

func (a cardTxAdapter) DeleteEmployee(ctx context.Context, id string) error {
	return a.tx.DeleteEmployee(ctx, id)
}

type swipeEventRepositoryAdapter struct {
	repo persistence.SwipeEventRepository
}

func newSwipeEventRepositoryAdapter(repo persistence.SwipeEventRepository) *swipeEventRepositoryAdapter {
	return &swipeEventRepositoryAdapter{repo: repo}
}

func (a *swipeEventRepositoryAdapter) AppendSwipeEvent(ctx context.Context, event application.SwipeEvent) (application.SwipeEvent, error) {
	stored, err := a.repo.AppendSwipeEvent(ctx, toPersistenceSwipeEvent(event))
	if err != nil {
		return application.SwipeEvent{}, err
	}
	return toApplicationSwipeEvent(stored), nil
}

func (a *swipeEventRepositoryAdapter) ListRecentSwipeEvents(ctx context.Context, limit int) ([]application.SwipeEvent, error) {
	return toApplicationSwipeEvents(a.repo.ListRecentSwipeEvents(ctx, limit))
}

func (a *swipeEventRepositoryAdapter) ListSwipeEventsByAction(ctx context.Context, action string, limit int) ([]application.SwipeEvent, error) {
	return toApplicationSwipeEvents(a.repo.ListSwipeEventsByAction(ctx, action, limit))
}

func (a *swipeEventRepositoryAdapter) ListSwipeEventsByTerminal(ctx context.Context, terminalID string, limit int) ([]application.SwipeEvent, error) {
	return toApplicationSwipeEvents(a.repo.ListSwipeEventsByTerminal(ctx, terminalID, limit))
}

func (a *swipeEventRepositoryAdapter) LatestSwipeEvent(ctx context.Context) (application.SwipeEvent, error) {
	stored, err := a.repo.LatestSwipeEvent(ctx)
	if err != nil {
		return application.SwipeEvent{}, err
	}
	return toApplicationSwipeEvent(stored), nil
}

func (a *swipeEventRepositoryAdapter) LatestSwipeEventForCard(ctx context.Context, cardID string) (application.SwipeEvent, error) {
	stored, err := a.repo.LatestSwipeEventForCard(ctx, cardID)
	if err != nil {
		return application.SwipeEvent{}, err
	}
	return toApplicationSwipeEvent(stored), nil
}

func (a *swipeEventRepositoryAdapter) SwipeStats(ctx context.Context, sessionWindow int) (application.LedgerStats, error) {
	stats, err := a.repo.SwipeStats(ctx, sessionWindow)
	if err != nil {
		return application.LedgerStats{}, err
	}
	result := application.LedgerStats{Total: stats.Total, ActiveSessions: stats.ActiveSessions}
	if stats.Latest != nil {
		latest := toApplicationSwipeEvent(*stats.Latest)
		result.Latest = &latest
	}
	return result, nil
}

func (a *swipeEventRepositoryAdapter) ClearSwipeEvents(ctx context.Context) (int64, error) {
	return a.repo.ClearSwipeEvents(ctx)
}

func toApplicationEmployee(employee persistence.Employee) application.Employee {
	return application.Employee(employee)
}

func toPersistenceEmployee(employee application.Employee) persistence.Employee {
	return persistence.Employee(employee)
}

func toApplicationEmployees(employees []persistence.Employee) []application.Employee {
	result := make([]application.Employee, 0, len(employees))
	for _, employee := range employees {
		result = append(result, toApplicationEmployee(employee))
	}
	return result
}

func toApplicationSupervisor(supervisor persistence.Supervisor) application.Supervisor {
	return application.Supervisor{
		ID:                  supervisor.ID,
		FirstName:           supervisor.FirstName,
		LastName:            supervisor.LastName,
		Position:            supervisor.Position,
		Email:               supervisor.Email,
		Phone:               supervisor.Phone,
		NotificationChannel: notification.Channel(supervisor.NotificationChannel),
		CreatedAt:           supervisor.CreatedAt,
		UpdatedAt:           supervisor.UpdatedAt,
	}
}

func toPersistenceSupervisor(supervisor application.Supervisor) persistence.Supervisor {
	return persistence.Supervisor{
		ID:                  supervisor.ID,
		FirstName:           supervisor.FirstName,
		LastName:            supervisor.LastName,
		Position:            supervisor.Position,
		Email:               supervisor.Email,
		Phone:               supervisor.Phone,
		NotificationChannel: int(supervisor.NotificationChannel),
		CreatedAt:           supervisor.CreatedAt,
		UpdatedAt:           supervisor.UpdatedAt,
	}
}

func toApplicationSwipeEvent(event persistence.SwipeEvent) application.SwipeEvent {
	return application.SwipeEvent{
		ID:                   event.ID,
		TerminalID:           event.TerminalID,
		Action:               event.Action,
		CardID:               event.CardID,
		Status:               event.Status,
		DeviceTimestamp:      event.DeviceTimestamp,
		DeviceLocalTimestamp: event.DeviceLocalTimestamp,
		ActiveSessions:       event.ActiveSessions,
		UptimeSeconds:        event.UptimeSeconds,
		WifiConnected:        event.WifiConnected,
		ReceivedAt:           event.ReceivedAt,
		EmployeeID:           event.EmployeeID,
		EmployeeName:         event.EmployeeName,
		AccessLevel:          application.AccessLevel(event.AccessLevel),
		TimestampSource:      compliance.TimestampSource(event.TimestampSource),
	}
}

func toPersistenceSwipeEvent(event application.SwipeEvent) persistence.SwipeEvent {
	return persistence.SwipeEvent{
		ID:                   event.ID,
		TerminalID:           event.TerminalID,
		Action:               event.Action,
		CardID:               event.CardID,
		Status:               event.Status,
		DeviceTimestamp:      event.DeviceTimestamp,
		DeviceLocalTimestamp: event.DeviceLocalTimestamp,
		ActiveSessions:       event.ActiveSessions,
		UptimeSeconds:        event.UptimeSeconds,
		WifiConnected:        event.WifiConnected,
		ReceivedAt:           event.ReceivedAt,
		EmployeeID:           event.EmployeeID,
		EmployeeName:         event.EmployeeName,
		AccessLevel:          string(event.AccessLevel),
		TimestampSource:      string(event.TimestampSource),
	}
}

func toApplicationSwipeEvents(events []persistence.SwipeEvent, err error) ([]application.SwipeEvent, error) {
	if err != nil {
		return nil, err
	}
	result := make([]application.SwipeEvent, 0, len(events))
	for _, event := range events {
		result = append(result, toApplicationSwipeEvent(event))
	}
	return result, nil
}
