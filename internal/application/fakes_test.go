package application

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/access-compliance/internal/persistence"
)

// memoryCardStore is an in-memory CardStore that enforces one holder per card
// and rolls back every change when the transaction callback fails.
type memoryCardStore struct {
	mu          sync.Mutex
	employees   map[string]Employee
	assignments []CardAssignment
	supervisors map[string]Supervisor
	schedules   map[string]WorkSchedule

	failCreateAssignment error
	// staleHolderReads makes in-transaction holder lookups miss, as when a
	// competing writer commits after the read.
	staleHolderReads bool
	txCount          int
}

func newMemoryCardStore(employees ...Employee) *memoryCardStore {
	store := &memoryCardStore{
		employees:   make(map[string]Employee),
		supervisors: make(map[string]Supervisor),
		schedules:   make(map[string]WorkSchedule),
	}
	for _, e := range employees {
		store.employees[e.ID] = e
	}
	return store
}

func (m *memoryCardStore) WithinCardTx(ctx context.Context, fn func(tx CardTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	employees := make(map[string]Employee, len(m.employees))
	for id, e := range m.employees {
		employees[id] = e
	}
	assignments := append([]CardAssignment(nil), m.assignments...)

	if err := fn(&memoryCardTx{store: m}); err != nil {
		m.employees = employees
		m.assignments = assignments
		return err
	}
	return nil
}

func (m *memoryCardStore) ListAssignmentsForCard(ctx context.Context, cardID string) ([]CardAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CardAssignment
	for _, a := range m.assignments {
		if a.CardID == cardID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AssignedAt.After(out[j].AssignedAt) })
	return out, nil
}

func (m *memoryCardStore) GetActiveAssignment(ctx context.Context, cardID string) (CardAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.assignments {
		if a.CardID == cardID && a.Active {
			return a, nil
		}
	}
	return CardAssignment{}, persistence.ErrNotFound
}

func (m *memoryCardStore) GetEmployeeByCard(ctx context.Context, cardID string) (Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.employeeByCardLocked(cardID)
}

func (m *memoryCardStore) GetSupervisor(ctx context.Context, id string) (Supervisor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.supervisors[id]
	if !ok {
		return Supervisor{}, persistence.ErrNotFound
	}
	return s, nil
}

func (m *memoryCardStore) GetWorkSchedule(ctx context.Context, id string) (WorkSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return WorkSchedule{}, persistence.ErrNotFound
	}
	return s, nil
}

func (m *memoryCardStore) employee(id string) (Employee, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.employees[id]
	return e, ok
}

func (m *memoryCardStore) activeAssignments() []CardAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []CardAssignment
	for _, a := range m.assignments {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

func (m *memoryCardStore) employeeByCardLocked(cardID string) (Employee, error) {
	for _, e := range m.employees {
		if e.CardID != nil && *e.CardID == cardID {
			return e, nil
		}
	}
	return Employee{}, persistence.ErrNotFound
}

type memoryCardTx struct {
	store *memoryCardStore
}

func (tx *memoryCardTx) GetEmployee(ctx context.Context, id string) (Employee, error) {
	e, ok := tx.store.employees[id]
	if !ok {
		return Employee{}, persistence.ErrNotFound
	}
	return e, nil
}

func (tx *memoryCardTx) GetEmployeeByCard(ctx context.Context, cardID string) (Employee, error) {
	if tx.store.staleHolderReads {
		return Employee{}, persistence.ErrNotFound
	}
	return tx.store.employeeByCardLocked(cardID)
}

func (tx *memoryCardTx) SetEmployeeCard(ctx context.Context, employeeID string, cardID *string, accessGranted bool, updatedAt time.Time) error {
	e, ok := tx.store.employees[employeeID]
	if !ok {
		return persistence.ErrNotFound
	}
	if cardID != nil {
		if holder, err := tx.store.employeeByCardLocked(*cardID); err == nil && holder.ID != employeeID {
			return persistence.ErrDuplicate
		}
		card := *cardID
		cardID = &card
	}
	e.CardID = cardID
	e.AccessGranted = accessGranted
	e.UpdatedAt = updatedAt
	tx.store.employees[employeeID] = e
	return nil
}

func (tx *memoryCardTx) HasActiveAssignment(ctx context.Context, cardID, employeeID string) (bool, error) {
	for _, a := range tx.store.assignments {
		if a.Active && a.CardID == cardID && a.EmployeeID == employeeID {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryCardTx) CreateAssignment(ctx context.Context, assignment CardAssignment) error {
	if tx.store.failCreateAssignment != nil {
		return tx.store.failCreateAssignment
	}
	for _, a := range tx.store.assignments {
		if a.Active && a.CardID == assignment.CardID {
			return persistence.ErrDuplicate
		}
	}
	tx.store.assignments = append(tx.store.assignments, assignment)
	return nil
}

func (tx *memoryCardTx) CloseActiveAssignments(ctx context.Context, filter AssignmentFilter, closedAt time.Time, actor string) (int, error) {
	closed := 0
	for i, a := range tx.store.assignments {
		if !a.Active {
			continue
		}
		if filter.CardID != "" && a.CardID != filter.CardID {
			continue
		}
		if filter.EmployeeID != "" && a.EmployeeID != filter.EmployeeID {
			continue
		}
		at := closedAt
		by := actor
		a.Active = false
		a.UnassignedAt = &at
		a.UnassignedBy = &by
		tx.store.assignments[i] = a
		closed++
	}
	return closed, nil
}

func (tx *memoryCardTx) DeleteEmployee(ctx context.Context, id string) error {
	if _, ok := tx.store.employees[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(tx.store.employees, id)
	return nil
}

// sequenceIDs returns a generator producing prefix-1, prefix-2, ...
func sequenceIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var errStoreUnavailable = errors.New("store unavailable")

func strPtr(s string) *string {
	return &s
}

func (m *memoryCardStore) CreateEmployee(ctx context.Context, employee Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[employee.ID]; ok {
		return persistence.ErrDuplicate
	}
	m.employees[employee.ID] = employee
	return nil
}

func (m *memoryCardStore) UpdateEmployee(ctx context.Context, employee Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.employees[employee.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	employee.CardID = existing.CardID
	m.employees[employee.ID] = employee
	return nil
}

func (m *memoryCardStore) GetEmployee(ctx context.Context, id string) (Employee, error) {
	e, ok := m.employee(id)
	if !ok {
		return Employee{}, persistence.ErrNotFound
	}
	return e, nil
}

func (m *memoryCardStore) ListEmployees(ctx context.Context) ([]Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryCardStore) ListUnassignedEmployees(ctx context.Context) ([]Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Employee
	for _, e := range m.employees {
		if e.CardID == nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryCardStore) CreateSupervisor(ctx context.Context, supervisor Supervisor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.supervisors {
		if strings.EqualFold(existing.Email, supervisor.Email) {
			return persistence.ErrDuplicate
		}
	}
	m.supervisors[supervisor.ID] = supervisor
	return nil
}

func (m *memoryCardStore) UpdateSupervisor(ctx context.Context, supervisor Supervisor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.supervisors[supervisor.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.supervisors[supervisor.ID] = supervisor
	return nil
}

func (m *memoryCardStore) ListSupervisors(ctx context.Context) ([]Supervisor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Supervisor, 0, len(m.supervisors))
	for _, s := range m.supervisors {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryCardStore) DeleteSupervisor(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.supervisors[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.supervisors, id)
	for eid, e := range m.employees {
		if e.SupervisorID != nil && *e.SupervisorID == id {
			e.SupervisorID = nil
			m.employees[eid] = e
		}
	}
	return nil
}

func (m *memoryCardStore) CountSupervisors(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.supervisors), nil
}

func (m *memoryCardStore) CreateWorkSchedule(ctx context.Context, schedule WorkSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[schedule.ID] = schedule
	return nil
}

func (m *memoryCardStore) UpdateWorkSchedule(ctx context.Context, schedule WorkSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[schedule.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.schedules[schedule.ID] = schedule
	return nil
}

func (m *memoryCardStore) ListWorkSchedules(ctx context.Context) ([]WorkSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WorkSchedule, 0, len(m.schedules))
	for _, s := range m.schedules {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryCardStore) DeleteWorkSchedule(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

// memorySwipeRepo is an in-memory SwipeEventRepository.
type memorySwipeRepo struct {
	mu        sync.Mutex
	events    []SwipeEvent
	nextID    int64
	appendErr error
	listCalls int
}

func (r *memorySwipeRepo) AppendSwipeEvent(ctx context.Context, event SwipeEvent) (SwipeEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return SwipeEvent{}, r.appendErr
	}
	r.nextID++
	event.ID = r.nextID
	r.events = append(r.events, event)
	return event, nil
}

func (r *memorySwipeRepo) newest(limit int, keep func(SwipeEvent) bool) []SwipeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := []SwipeEvent{}
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(r.events[i]) {
			out = append(out, r.events[i])
		}
	}
	return out
}

func (r *memorySwipeRepo) ListRecentSwipeEvents(ctx context.Context, limit int) ([]SwipeEvent, error) {
	return r.newest(limit, func(SwipeEvent) bool { return true }), nil
}

func (r *memorySwipeRepo) ListSwipeEventsByAction(ctx context.Context, action string, limit int) ([]SwipeEvent, error) {
	return r.newest(limit, func(e SwipeEvent) bool { return strings.EqualFold(e.Action, action) }), nil
}

func (r *memorySwipeRepo) ListSwipeEventsByTerminal(ctx context.Context, terminalID string, limit int) ([]SwipeEvent, error) {
	return r.newest(limit, func(e SwipeEvent) bool { return e.TerminalID == terminalID }), nil
}

func (r *memorySwipeRepo) LatestSwipeEvent(ctx context.Context) (SwipeEvent, error) {
	events := r.newest(1, func(SwipeEvent) bool { return true })
	if len(events) == 0 {
		return SwipeEvent{}, persistence.ErrNotFound
	}
	return events[0], nil
}

func (r *memorySwipeRepo) LatestSwipeEventForCard(ctx context.Context, cardID string) (SwipeEvent, error) {
	events := r.newest(1, func(e SwipeEvent) bool { return e.CardID == cardID })
	if len(events) == 0 {
		return SwipeEvent{}, persistence.ErrNotFound
	}
	return events[0], nil
}

func (r *memorySwipeRepo) SwipeStats(ctx context.Context, sessionWindow int) (LedgerStats, error) {
	window := r.newest(sessionWindow, func(SwipeEvent) bool { return true })
	r.mu.Lock()
	stats := LedgerStats{Total: int64(len(r.events))}
	r.mu.Unlock()
	if len(window) > 0 {
		latest := window[0]
		stats.Latest = &latest
	}
	for _, e := range window {
		if e.ActiveSessions != nil {
			sessions := *e.ActiveSessions
			stats.ActiveSessions = &sessions
			break
		}
	}
	return stats, nil
}

func (r *memorySwipeRepo) ClearSwipeEvents(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := int64(len(r.events))
	r.events = nil
	return removed, nil
}
