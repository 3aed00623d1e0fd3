package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/access-compliance/internal/cardlock"
	"github.com/example/access-compliance/internal/persistence"
)

// CardRegistry owns the binding between cards and employees. Every mutation
// runs under the card and employee locks and inside one store transaction.
type CardRegistry struct {
	store       CardStore
	employees   EmployeeLookup
	supervisors SupervisorLookup
	schedules   ScheduleLookup
	locker      CardLocker
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	metrics     *Metrics
}

// NewCardRegistry constructs a card registry with the provided dependencies.
func NewCardRegistry(store CardStore, employees EmployeeLookup, supervisors SupervisorLookup, schedules ScheduleLookup, locker CardLocker, idGenerator func() string, now func() time.Time) *CardRegistry {
	return NewCardRegistryWithLogger(store, employees, supervisors, schedules, locker, idGenerator, now, nil)
}

// NewCardRegistryWithLogger constructs a card registry with a specified logger.
// A nil locker falls back to an in-process keyed mutex.
func NewCardRegistryWithLogger(store CardStore, employees EmployeeLookup, supervisors SupervisorLookup, schedules ScheduleLookup, locker CardLocker, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CardRegistry {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if locker == nil {
		locker = cardlock.NewLocal()
	}
	return &CardRegistry{
		store:       store,
		employees:   employees,
		supervisors: supervisors,
		schedules:   schedules,
		locker:      locker,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// UseMetrics records card conflicts on m and returns the registry.
func (r *CardRegistry) UseMetrics(m *Metrics) *CardRegistry {
	if r != nil {
		r.metrics = m
	}
	return r
}

func (r *CardRegistry) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, r.logger, "CardRegistry", operation, attrs...)
}

// AssignCard binds params.CardID to params.EmployeeID and sets the access flag.
// Re-assigning the card an employee already holds is idempotent apart from the
// access flag. A card held by someone else yields *CardConflictError.
func (r *CardRegistry) AssignCard(ctx context.Context, params AssignCardParams) (employee Employee, err error) {
	if r == nil {
		err = fmt.Errorf("CardRegistry is nil")
		return
	}

	cardID := normalizeCardID(params.CardID)
	actor := actorOrSystem(params.Actor)
	logger := r.loggerWith(ctx, "AssignCard",
		"employee_id", params.EmployeeID,
		"card_id", cardID,
		"actor", actor,
	)
	defer func() {
		if err != nil {
			if errors.Is(err, ErrCardConflict) {
				r.metrics.recordCardConflict(ctx)
				logger.WarnContext(ctx, "card assignment conflict", "error", err, "error_kind", ErrorKind(err))
				return
			}
			logger.ErrorContext(ctx, "failed to assign card", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("access_granted", employee.AccessGranted).InfoContext(ctx, "card assigned")
	}()

	vErr := &ValidationError{}
	if strings.TrimSpace(params.EmployeeID) == "" {
		vErr.add("employee_id", "employee_id is required")
	}
	vErr.merge(validateCardID(cardID))
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if r.store == nil {
		err = fmt.Errorf("card store not configured")
		return
	}

	unlock, err := r.locker.Lock(ctx, cardlock.CardKey(cardID), cardlock.EmployeeKey(params.EmployeeID))
	if err != nil {
		err = fmt.Errorf("acquire card lock: %w", err)
		return
	}
	defer unlock()

	err = r.store.WithinCardTx(ctx, func(tx CardTx) error {
		current, err := tx.GetEmployee(ctx, params.EmployeeID)
		if err != nil {
			return mapCardRepoError(err)
		}

		holder, err := tx.GetEmployeeByCard(ctx, cardID)
		switch {
		case err == nil && holder.ID != current.ID:
			return &CardConflictError{CardID: cardID, HolderID: holder.ID, HolderName: holder.FullName()}
		case err != nil && !isNotFound(err):
			return err
		}
		cardFree := err != nil

		now := r.now()
		if current.CardID != nil && *current.CardID != cardID {
			if _, err := tx.CloseActiveAssignments(ctx, AssignmentFilter{CardID: *current.CardID, EmployeeID: current.ID}, now, SystemActor); err != nil {
				return err
			}
		}
		if cardFree {
			// Open rows left behind for an unbound card belong to nobody.
			if _, err := tx.CloseActiveAssignments(ctx, AssignmentFilter{CardID: cardID}, now, SystemActor); err != nil {
				return err
			}
		}

		if err := tx.SetEmployeeCard(ctx, current.ID, &cardID, params.GrantAccess, now); err != nil {
			return err
		}

		active, err := tx.HasActiveAssignment(ctx, cardID, current.ID)
		if err != nil {
			return err
		}
		if !active {
			assignment := CardAssignment{
				ID:         r.idGenerator(),
				CardID:     cardID,
				EmployeeID: current.ID,
				AssignedAt: now,
				AssignedBy: actor,
				Active:     true,
			}
			if err := tx.CreateAssignment(ctx, assignment); err != nil {
				return err
			}
		}

		current.CardID = &cardID
		current.AccessGranted = params.GrantAccess
		current.UpdatedAt = now
		employee = current
		return nil
	})
	if err != nil {
		err = r.translateCardError(ctx, cardID, err)
		employee = Employee{}
	}
	return
}

// UnassignCard releases cardID from its holder and closes its open
// assignments. It reports false when the card is not bound. The holder's
// access flag is left unchanged.
func (r *CardRegistry) UnassignCard(ctx context.Context, cardID, actor string) (released bool, err error) {
	if r == nil {
		err = fmt.Errorf("CardRegistry is nil")
		return
	}

	cardID = normalizeCardID(cardID)
	actor = actorOrSystem(actor)
	logger := r.loggerWith(ctx, "UnassignCard", "card_id", cardID, "actor", actor)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to unassign card", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("released", released).InfoContext(ctx, "card unassign processed")
	}()

	if vErr := validateCardID(cardID); vErr.HasErrors() {
		err = vErr
		return
	}
	if r.store == nil {
		err = fmt.Errorf("card store not configured")
		return
	}

	unlock, err := r.locker.Lock(ctx, cardlock.CardKey(cardID))
	if err != nil {
		err = fmt.Errorf("acquire card lock: %w", err)
		return
	}
	defer unlock()

	err = r.store.WithinCardTx(ctx, func(tx CardTx) error {
		holder, err := tx.GetEmployeeByCard(ctx, cardID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}

		now := r.now()
		if err := tx.SetEmployeeCard(ctx, holder.ID, nil, holder.AccessGranted, now); err != nil {
			return err
		}
		if _, err := tx.CloseActiveAssignments(ctx, AssignmentFilter{CardID: cardID}, now, actor); err != nil {
			return err
		}
		released = true
		return nil
	})
	if err != nil {
		err = mapCardRepoError(err)
		released = false
	}
	return
}

// ReleaseAllForEmployee clears the employee's card and closes every open
// assignment it holds. It returns the number of assignments closed.
func (r *CardRegistry) ReleaseAllForEmployee(ctx context.Context, employeeID, actor string) (closed int, err error) {
	if r == nil {
		err = fmt.Errorf("CardRegistry is nil")
		return
	}

	actor = actorOrSystem(actor)
	logger := r.loggerWith(ctx, "ReleaseAllForEmployee", "employee_id", employeeID, "actor", actor)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to release cards", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("closed", closed).InfoContext(ctx, "cards released")
	}()

	err = r.withEmployeeLocks(ctx, employeeID, func(tx CardTx, current Employee) error {
		now := r.now()
		if current.CardID != nil {
			if err := tx.SetEmployeeCard(ctx, current.ID, nil, current.AccessGranted, now); err != nil {
				return err
			}
		}
		n, err := tx.CloseActiveAssignments(ctx, AssignmentFilter{EmployeeID: current.ID}, now, actor)
		closed = n
		return err
	})
	if err != nil {
		closed = 0
	}
	return
}

// RetireEmployee closes every assignment of the employee and deletes it in one
// transaction. Assignment history is kept.
func (r *CardRegistry) RetireEmployee(ctx context.Context, employeeID, actor string) (err error) {
	if r == nil {
		return fmt.Errorf("CardRegistry is nil")
	}

	actor = actorOrSystem(actor)
	logger := r.loggerWith(ctx, "RetireEmployee", "employee_id", employeeID, "actor", actor)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to retire employee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "employee retired")
	}()

	return r.withEmployeeLocks(ctx, employeeID, func(tx CardTx, current Employee) error {
		if _, err := tx.CloseActiveAssignments(ctx, AssignmentFilter{EmployeeID: current.ID}, r.now(), actor); err != nil {
			return err
		}
		return tx.DeleteEmployee(ctx, current.ID)
	})
}

// withEmployeeLocks locks the employee and the card it currently holds, then
// runs fn in a card transaction with the freshly loaded employee. When the
// held card changes between the first read and the lock, it retries with the
// new key set.
func (r *CardRegistry) withEmployeeLocks(ctx context.Context, employeeID string, fn func(tx CardTx, current Employee) error) error {
	if strings.TrimSpace(employeeID) == "" {
		vErr := &ValidationError{}
		vErr.add("employee_id", "employee_id is required")
		return vErr
	}
	if r.store == nil {
		return fmt.Errorf("card store not configured")
	}

	for attempt := 1; ; attempt++ {
		heldCard, err := r.heldCard(ctx, employeeID)
		if err != nil {
			return mapCardRepoError(err)
		}

		err = r.lockedEmployeeTx(ctx, employeeID, heldCard, fn)
		if errors.Is(err, errHeldCardChanged) && attempt < maxEmployeeLockAttempts {
			continue
		}
		return mapCardRepoError(err)
	}
}

const maxEmployeeLockAttempts = 3

var errHeldCardChanged = errors.New("held card changed while locking")

func (r *CardRegistry) heldCard(ctx context.Context, employeeID string) (heldCard string, err error) {
	err = r.store.WithinCardTx(ctx, func(tx CardTx) error {
		current, err := tx.GetEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		if current.CardID != nil {
			heldCard = *current.CardID
		}
		return nil
	})
	return heldCard, err
}

func (r *CardRegistry) lockedEmployeeTx(ctx context.Context, employeeID, heldCard string, fn func(tx CardTx, current Employee) error) error {
	keys := []string{cardlock.EmployeeKey(employeeID)}
	if heldCard != "" {
		keys = append(keys, cardlock.CardKey(heldCard))
	}

	unlock, err := r.locker.Lock(ctx, keys...)
	if err != nil {
		return fmt.Errorf("acquire card lock: %w", err)
	}
	defer unlock()

	return r.store.WithinCardTx(ctx, func(tx CardTx) error {
		current, err := tx.GetEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		nowHeld := ""
		if current.CardID != nil {
			nowHeld = *current.CardID
		}
		if nowHeld != heldCard {
			return fmt.Errorf("employee %s holds %q, locked %q: %w", employeeID, nowHeld, heldCard, errHeldCardChanged)
		}
		return fn(tx, current)
	})
}

// ResolveByCard returns the holder of cardID with its supervisor and schedule.
// Lookup is exact after trimming. The boolean is false when nobody holds the card.
func (r *CardRegistry) ResolveByCard(ctx context.Context, cardID string) (ResolvedEmployee, bool, error) {
	if r == nil {
		return ResolvedEmployee{}, false, fmt.Errorf("CardRegistry is nil")
	}
	cardID = normalizeCardID(cardID)
	if cardID == "" || len(cardID) > MaxCardIDLength || r.employees == nil {
		return ResolvedEmployee{}, false, nil
	}

	employee, err := r.employees.GetEmployeeByCard(ctx, cardID)
	if err != nil {
		if isNotFound(err) {
			return ResolvedEmployee{}, false, nil
		}
		return ResolvedEmployee{}, false, fmt.Errorf("resolve card %s: %w", cardID, err)
	}

	resolved := ResolvedEmployee{Employee: employee}
	if employee.SupervisorID != nil && r.supervisors != nil {
		supervisor, err := r.supervisors.GetSupervisor(ctx, *employee.SupervisorID)
		switch {
		case err == nil:
			resolved.Supervisor = &supervisor
		case !isNotFound(err):
			return ResolvedEmployee{}, false, fmt.Errorf("load supervisor: %w", err)
		}
	}
	if employee.WorkScheduleID != nil && r.schedules != nil {
		schedule, err := r.schedules.GetWorkSchedule(ctx, *employee.WorkScheduleID)
		switch {
		case err == nil:
			resolved.Schedule = &schedule
		case !isNotFound(err):
			return ResolvedEmployee{}, false, fmt.Errorf("load work schedule: %w", err)
		}
	}
	return resolved, true, nil
}

// ActiveAssignment returns the open assignment of cardID, if any.
func (r *CardRegistry) ActiveAssignment(ctx context.Context, cardID string) (*CardAssignment, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("card store not configured")
	}
	assignment, err := r.store.GetActiveAssignment(ctx, normalizeCardID(cardID))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// AssignmentHistory lists every assignment of cardID, newest first.
func (r *CardRegistry) AssignmentHistory(ctx context.Context, cardID string) ([]CardAssignment, error) {
	if r == nil || r.store == nil {
		return nil, fmt.Errorf("card store not configured")
	}
	cardID = normalizeCardID(cardID)
	if vErr := validateCardID(cardID); vErr.HasErrors() {
		return nil, vErr
	}

	history, err := r.store.ListAssignmentsForCard(ctx, cardID)
	if err != nil {
		return nil, mapCardRepoError(err)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].AssignedAt.After(history[j].AssignedAt)
	})
	return history, nil
}

// translateCardError turns a unique violation on the card column into a
// conflict naming the current holder.
func (r *CardRegistry) translateCardError(ctx context.Context, cardID string, err error) error {
	if errors.Is(err, persistence.ErrConstraintViolation) && len(cardID) > MaxCardIDLength {
		return validateCardID(cardID)
	}
	if !errors.Is(err, persistence.ErrDuplicate) {
		return mapCardRepoError(err)
	}
	conflict := &CardConflictError{CardID: cardID}
	if r.employees != nil {
		if holder, lookupErr := r.employees.GetEmployeeByCard(ctx, cardID); lookupErr == nil {
			conflict.HolderID = holder.ID
			conflict.HolderName = holder.FullName()
		}
	}
	return conflict
}

func normalizeCardID(cardID string) string {
	return strings.TrimSpace(cardID)
}

func validateCardID(cardID string) *ValidationError {
	vErr := &ValidationError{}
	switch {
	case cardID == "":
		vErr.add("card_id", "card_id is required")
	case len(cardID) > MaxCardIDLength:
		vErr.add("card_id", fmt.Sprintf("card_id must be at most %d characters", MaxCardIDLength))
	}
	return vErr
}

func actorOrSystem(actor string) string {
	if actor = strings.TrimSpace(actor); actor == "" {
		return SystemActor
	}
	return actor
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}

func mapCardRepoError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *CardConflictError
	if errors.As(err, &conflict) {
		return conflict
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr
	}
	if isNotFound(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("record", "the change violates a storage constraint")
		return vErr
	}
	return err
}
