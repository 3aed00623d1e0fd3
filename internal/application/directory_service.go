package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/access-compliance/internal/notification"
	"github.com/example/access-compliance/internal/persistence"
	"github.com/example/access-compliance/internal/workschedule"
)

// CardAdministrator is the slice of the card registry the directory needs.
type CardAdministrator interface {
	AssignCard(ctx context.Context, params AssignCardParams) (Employee, error)
	RetireEmployee(ctx context.Context, employeeID, actor string) error
}

// CreateEmployeeParams describes a new employee, optionally with a first card.
type CreateEmployeeParams struct {
	Input  EmployeeInput
	CardID string
	Actor  string
}

// DirectoryService manages employees, supervisors and work schedules.
type DirectoryService struct {
	employees   EmployeeRepository
	supervisors SupervisorRepository
	schedules   WorkScheduleRepository
	cards       CardAdministrator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDirectoryService constructs a directory service with the provided dependencies.
func NewDirectoryService(employees EmployeeRepository, supervisors SupervisorRepository, schedules WorkScheduleRepository, cards CardAdministrator, idGenerator func() string, now func() time.Time) *DirectoryService {
	return NewDirectoryServiceWithLogger(employees, supervisors, schedules, cards, idGenerator, now, nil)
}

// NewDirectoryServiceWithLogger constructs a directory service with a specified logger.
func NewDirectoryServiceWithLogger(employees EmployeeRepository, supervisors SupervisorRepository, schedules WorkScheduleRepository, cards CardAdministrator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DirectoryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DirectoryService{
		employees:   employees,
		supervisors: supervisors,
		schedules:   schedules,
		cards:       cards,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *DirectoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DirectoryService", operation, attrs...)
}

// ListEmployees returns every employee sorted by last name, then first name.
func (s *DirectoryService) ListEmployees(ctx context.Context) ([]Employee, error) {
	if s == nil || s.employees == nil {
		return nil, fmt.Errorf("employee repository not configured")
	}
	employees, err := s.employees.ListEmployees(ctx)
	if err != nil {
		return nil, mapDirectoryRepoError(err)
	}
	sortEmployees(employees)
	return employees, nil
}

// ListUnassignedEmployees returns employees without a card.
func (s *DirectoryService) ListUnassignedEmployees(ctx context.Context) ([]Employee, error) {
	if s == nil || s.employees == nil {
		return nil, fmt.Errorf("employee repository not configured")
	}
	employees, err := s.employees.ListUnassignedEmployees(ctx)
	if err != nil {
		return nil, mapDirectoryRepoError(err)
	}
	sortEmployees(employees)
	return employees, nil
}

// GetEmployee loads one employee.
func (s *DirectoryService) GetEmployee(ctx context.Context, id string) (Employee, error) {
	if s == nil || s.employees == nil {
		return Employee{}, fmt.Errorf("employee repository not configured")
	}
	employee, err := s.employees.GetEmployee(ctx, strings.TrimSpace(id))
	if err != nil {
		return Employee{}, mapDirectoryRepoError(err)
	}
	return employee, nil
}

// CreateEmployee stores a new employee. When params.CardID is set the card is
// assigned through the card registry; if that fails the employee is removed again.
func (s *DirectoryService) CreateEmployee(ctx context.Context, params CreateEmployeeParams) (employee Employee, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEmployee", "card_id", strings.TrimSpace(params.CardID))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create employee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("employee_id", employee.ID).InfoContext(ctx, "employee created")
	}()

	input := normalizeEmployeeInput(params.Input)
	cardID := normalizeCardID(params.CardID)
	vErr := s.validateEmployeeInput(ctx, input)
	if cardID != "" {
		vErr.merge(validateCardID(cardID))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	employee = Employee{
		ID:             s.idGenerator(),
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		Position:       input.Position,
		SupervisorID:   input.SupervisorID,
		WorkScheduleID: input.WorkScheduleID,
		AccessGranted:  input.AccessGranted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err = s.employees.CreateEmployee(ctx, employee); err != nil {
		err = mapDirectoryRepoError(err)
		employee = Employee{}
		return
	}

	if cardID != "" {
		if s.cards == nil {
			err = fmt.Errorf("card registry not configured")
			return
		}
		assigned, assignErr := s.cards.AssignCard(ctx, AssignCardParams{
			EmployeeID:  employee.ID,
			CardID:      cardID,
			GrantAccess: input.AccessGranted,
			Actor:       params.Actor,
		})
		if assignErr != nil {
			if rollbackErr := s.cards.RetireEmployee(ctx, employee.ID, params.Actor); rollbackErr != nil {
				logger.WarnContext(ctx, "failed to remove employee after card assignment error", "employee_id", employee.ID, "error", rollbackErr)
			}
			err = assignErr
			employee = Employee{}
			return
		}
		employee = assigned
	}
	return
}

// UpdateEmployee replaces the directory fields of an employee. The card is kept.
func (s *DirectoryService) UpdateEmployee(ctx context.Context, id string, in EmployeeInput) (employee Employee, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEmployee", "employee_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update employee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "employee updated")
	}()

	existing, err := s.GetEmployee(ctx, id)
	if err != nil {
		return
	}

	input := normalizeEmployeeInput(in)
	if vErr := s.validateEmployeeInput(ctx, input); vErr.HasErrors() {
		err = vErr
		return
	}

	existing.FirstName = input.FirstName
	existing.LastName = input.LastName
	existing.Position = input.Position
	existing.SupervisorID = input.SupervisorID
	existing.WorkScheduleID = input.WorkScheduleID
	existing.AccessGranted = input.AccessGranted
	existing.UpdatedAt = s.now()

	if err = s.employees.UpdateEmployee(ctx, existing); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	employee = existing
	return
}

// DeleteEmployee retires the employee through the card registry so that its
// assignments are closed in the same transaction.
func (s *DirectoryService) DeleteEmployee(ctx context.Context, id, actor string) error {
	if s == nil || s.cards == nil {
		return fmt.Errorf("card registry not configured")
	}
	return s.cards.RetireEmployee(ctx, strings.TrimSpace(id), actor)
}

func normalizeEmployeeInput(in EmployeeInput) EmployeeInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Position = strings.TrimSpace(in.Position)
	if in.Position == "" {
		in.Position = DefaultEmployeePosition
	}
	in.SupervisorID = normalizeOptionalString(in.SupervisorID)
	in.WorkScheduleID = normalizeOptionalString(in.WorkScheduleID)
	return in
}

func (s *DirectoryService) validateEmployeeInput(ctx context.Context, in EmployeeInput) *ValidationError {
	vErr := &ValidationError{}
	if in.FirstName == "" {
		vErr.add("first_name", "first_name is required")
	}
	if in.LastName == "" {
		vErr.add("last_name", "last_name is required")
	}
	if in.SupervisorID != nil && s.supervisors != nil {
		if _, err := s.supervisors.GetSupervisor(ctx, *in.SupervisorID); err != nil && isNotFound(err) {
			vErr.add("supervisor_id", "supervisor_id does not exist")
		}
	}
	if in.WorkScheduleID != nil && s.schedules != nil {
		if _, err := s.schedules.GetWorkSchedule(ctx, *in.WorkScheduleID); err != nil && isNotFound(err) {
			vErr.add("work_schedule_id", "work_schedule_id does not exist")
		}
	}
	return vErr
}

// ListSupervisors returns every supervisor sorted by last name, then first name.
func (s *DirectoryService) ListSupervisors(ctx context.Context) ([]Supervisor, error) {
	if s == nil || s.supervisors == nil {
		return nil, fmt.Errorf("supervisor repository not configured")
	}
	supervisors, err := s.supervisors.ListSupervisors(ctx)
	if err != nil {
		return nil, mapDirectoryRepoError(err)
	}
	sort.SliceStable(supervisors, func(i, j int) bool {
		if supervisors[i].LastName != supervisors[j].LastName {
			return supervisors[i].LastName < supervisors[j].LastName
		}
		return supervisors[i].FirstName < supervisors[j].FirstName
	})
	return supervisors, nil
}

// GetSupervisor loads one supervisor.
func (s *DirectoryService) GetSupervisor(ctx context.Context, id string) (Supervisor, error) {
	if s == nil || s.supervisors == nil {
		return Supervisor{}, fmt.Errorf("supervisor repository not configured")
	}
	supervisor, err := s.supervisors.GetSupervisor(ctx, strings.TrimSpace(id))
	if err != nil {
		return Supervisor{}, mapDirectoryRepoError(err)
	}
	return supervisor, nil
}

// CreateSupervisor stores a new supervisor.
func (s *DirectoryService) CreateSupervisor(ctx context.Context, in SupervisorInput) (supervisor Supervisor, err error) {
	if s == nil || s.supervisors == nil {
		err = fmt.Errorf("supervisor repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateSupervisor")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create supervisor", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("supervisor_id", supervisor.ID).InfoContext(ctx, "supervisor created")
	}()

	input := normalizeSupervisorInput(in)
	if vErr := validateSupervisorInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	now := s.now()
	candidate := Supervisor{
		ID:                  s.idGenerator(),
		FirstName:           input.FirstName,
		LastName:            input.LastName,
		Position:            input.Position,
		Email:               input.Email,
		Phone:               input.Phone,
		NotificationChannel: input.NotificationChannel,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err = s.supervisors.CreateSupervisor(ctx, candidate); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	supervisor = candidate
	return
}

// UpdateSupervisor replaces the mutable fields of a supervisor.
func (s *DirectoryService) UpdateSupervisor(ctx context.Context, id string, in SupervisorInput) (supervisor Supervisor, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateSupervisor", "supervisor_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update supervisor", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "supervisor updated")
	}()

	existing, err := s.GetSupervisor(ctx, id)
	if err != nil {
		return
	}

	input := normalizeSupervisorInput(in)
	if vErr := validateSupervisorInput(input); vErr.HasErrors() {
		err = vErr
		return
	}

	existing.FirstName = input.FirstName
	existing.LastName = input.LastName
	existing.Position = input.Position
	existing.Email = input.Email
	existing.Phone = input.Phone
	existing.NotificationChannel = input.NotificationChannel
	existing.UpdatedAt = s.now()

	if err = s.supervisors.UpdateSupervisor(ctx, existing); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	supervisor = existing
	return
}

// DeleteSupervisor removes a supervisor. Employees keep working without one.
func (s *DirectoryService) DeleteSupervisor(ctx context.Context, id string) (err error) {
	if s == nil || s.supervisors == nil {
		return fmt.Errorf("supervisor repository not configured")
	}
	logger := s.loggerWith(ctx, "DeleteSupervisor", "supervisor_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete supervisor", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "supervisor deleted")
	}()

	if err = s.supervisors.DeleteSupervisor(ctx, strings.TrimSpace(id)); err != nil {
		err = mapDirectoryRepoError(err)
	}
	return
}

// CountSupervisors reports how many supervisors exist.
func (s *DirectoryService) CountSupervisors(ctx context.Context) (int, error) {
	if s == nil || s.supervisors == nil {
		return 0, fmt.Errorf("supervisor repository not configured")
	}
	count, err := s.supervisors.CountSupervisors(ctx)
	if err != nil {
		return 0, mapDirectoryRepoError(err)
	}
	return count, nil
}

func normalizeSupervisorInput(in SupervisorInput) SupervisorInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Position = strings.TrimSpace(in.Position)
	if in.Position == "" {
		in.Position = DefaultSupervisorPosition
	}
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = normalizeOptionalString(in.Phone)
	return in
}

func validateSupervisorInput(in SupervisorInput) *ValidationError {
	vErr := &ValidationError{}
	if in.FirstName == "" {
		vErr.add("first_name", "first_name is required")
	}
	if in.LastName == "" {
		vErr.add("last_name", "last_name is required")
	}
	switch {
	case in.Email == "":
		vErr.add("email", "email is required")
	case !strings.Contains(in.Email, "@") || strings.ContainsAny(in.Email, " \t"):
		vErr.add("email", "email must be a valid address")
	}
	if in.NotificationChannel < notification.ChannelNone || in.NotificationChannel > notification.ChannelSMS {
		vErr.add("notification_channel", "notification_channel must be none, email or sms")
	}
	return vErr
}

// ListWorkSchedules returns every schedule sorted by name.
func (s *DirectoryService) ListWorkSchedules(ctx context.Context) ([]WorkSchedule, error) {
	if s == nil || s.schedules == nil {
		return nil, fmt.Errorf("work schedule repository not configured")
	}
	schedules, err := s.schedules.ListWorkSchedules(ctx)
	if err != nil {
		return nil, mapDirectoryRepoError(err)
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		return schedules[i].Name < schedules[j].Name
	})
	return schedules, nil
}

// GetWorkSchedule loads one schedule.
func (s *DirectoryService) GetWorkSchedule(ctx context.Context, id string) (WorkSchedule, error) {
	if s == nil || s.schedules == nil {
		return WorkSchedule{}, fmt.Errorf("work schedule repository not configured")
	}
	schedule, err := s.schedules.GetWorkSchedule(ctx, strings.TrimSpace(id))
	if err != nil {
		return WorkSchedule{}, mapDirectoryRepoError(err)
	}
	return schedule, nil
}

// CreateWorkSchedule stores a schedule. Day and window text is canonicalised;
// unreadable tokens are dropped rather than rejected.
func (s *DirectoryService) CreateWorkSchedule(ctx context.Context, in WorkScheduleInput) (schedule WorkSchedule, err error) {
	if s == nil || s.schedules == nil {
		err = fmt.Errorf("work schedule repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateWorkSchedule")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create work schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("work_schedule_id", schedule.ID).InfoContext(ctx, "work schedule created")
	}()

	input := canonicalScheduleInput(in)
	if input.Name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		err = vErr
		return
	}

	now := s.now()
	candidate := WorkSchedule{
		ID:           s.idGenerator(),
		Name:         input.Name,
		SelectedDays: input.SelectedDays,
		TimeRanges:   input.TimeRanges,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.schedules.CreateWorkSchedule(ctx, candidate); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	schedule = candidate
	return
}

// UpdateWorkSchedule replaces the name, days and windows of a schedule.
func (s *DirectoryService) UpdateWorkSchedule(ctx context.Context, id string, in WorkScheduleInput) (schedule WorkSchedule, err error) {
	if s == nil {
		err = fmt.Errorf("DirectoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateWorkSchedule", "work_schedule_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update work schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "work schedule updated")
	}()

	existing, err := s.GetWorkSchedule(ctx, id)
	if err != nil {
		return
	}

	input := canonicalScheduleInput(in)
	if input.Name == "" {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		err = vErr
		return
	}

	existing.Name = input.Name
	existing.SelectedDays = input.SelectedDays
	existing.TimeRanges = input.TimeRanges
	existing.UpdatedAt = s.now()

	if err = s.schedules.UpdateWorkSchedule(ctx, existing); err != nil {
		err = mapDirectoryRepoError(err)
		return
	}
	schedule = existing
	return
}

// DeleteWorkSchedule removes a schedule. Employees using it become unscheduled.
func (s *DirectoryService) DeleteWorkSchedule(ctx context.Context, id string) (err error) {
	if s == nil || s.schedules == nil {
		return fmt.Errorf("work schedule repository not configured")
	}
	logger := s.loggerWith(ctx, "DeleteWorkSchedule", "work_schedule_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete work schedule", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "work schedule deleted")
	}()

	if err = s.schedules.DeleteWorkSchedule(ctx, strings.TrimSpace(id)); err != nil {
		err = mapDirectoryRepoError(err)
	}
	return
}

func canonicalScheduleInput(in WorkScheduleInput) WorkScheduleInput {
	return WorkScheduleInput{
		Name:         strings.TrimSpace(in.Name),
		SelectedDays: workschedule.SerializeWeekdays(workschedule.ParseWeekdays(in.SelectedDays)),
		TimeRanges:   workschedule.SerializeTimeWindows(workschedule.ParseTimeWindows(in.TimeRanges)),
	}
}

func sortEmployees(employees []Employee) {
	sort.SliceStable(employees, func(i, j int) bool {
		if employees[i].LastName != employees[j].LastName {
			return employees[i].LastName < employees[j].LastName
		}
		return employees[i].FirstName < employees[j].FirstName
	})
}

func mapDirectoryRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFound(err):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("reference", "referenced record does not exist")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("record", "record violates a storage constraint")
		return vErr
	}
	return err
}
