package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/access-compliance/internal/persistence"
	"github.com/example/access-compliance/internal/persistence/sqlite"
	"github.com/example/access-compliance/internal/persistence/sqlite/migration"
)

// SQLiteHarness exposes every repository over one migrated temporary database.
type SQLiteHarness struct {
	Pool          *sqlite.ConnectionPool
	Employees     persistence.EmployeeRepository
	Supervisors   persistence.SupervisorRepository
	WorkSchedules persistence.WorkScheduleRepository
	Cards         persistence.CardAssignmentRepository
	SwipeEvents   persistence.SwipeEventRepository

	cleanup func()
}

// Close releases the database. It is also registered with tb.Cleanup.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database file under tb.TempDir.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "compliance.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pool, err := sqlite.Open(context.Background(), migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	harness := &SQLiteHarness{
		Pool:          pool,
		Employees:     sqlite.NewEmployeeRepository(pool),
		Supervisors:   sqlite.NewSupervisorRepository(pool),
		WorkSchedules: sqlite.NewWorkScheduleRepository(pool),
		Cards:         sqlite.NewCardAssignmentRepository(pool),
		SwipeEvents:   sqlite.NewSwipeEventRepository(pool),
		cleanup: func() {
			_ = pool.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// Seed inserts supervisors, schedules and then employees so that foreign keys
// resolve. Employees carrying a card are stored with that card already bound.
func (h *SQLiteHarness) Seed(tb testing.TB, supervisors []SupervisorFixture, schedules []WorkScheduleFixture, employees []EmployeeFixture) {
	tb.Helper()
	ctx := context.Background()

	for _, s := range supervisors {
		if err := h.Supervisors.CreateSupervisor(ctx, s.Persistence()); err != nil {
			tb.Fatalf("failed to seed supervisor %s: %v", s.ID, err)
		}
	}
	for _, w := range schedules {
		if err := h.WorkSchedules.CreateWorkSchedule(ctx, w.Persistence()); err != nil {
			tb.Fatalf("failed to seed work schedule %s: %v", w.ID, err)
		}
	}
	for _, e := range employees {
		if err := h.Employees.CreateEmployee(ctx, e.Persistence()); err != nil {
			tb.Fatalf("failed to seed employee %s: %v", e.ID, err)
		}
	}
}
