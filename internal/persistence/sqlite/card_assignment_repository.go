package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/access-compliance/internal/persistence"
)

const cardAssignmentColumns = `id, card_id, employee_id, assigned_at, assigned_by, unassigned_at, unassigned_by, active`

// CardAssignmentRepository implements persistence.CardAssignmentRepository.
// Every card mutation runs through WithinCardTx so that the employee row and
// the assignment history change together.
type CardAssignmentRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewCardAssignmentRepository creates a new SQLite card assignment repository
func NewCardAssignmentRepository(pool *ConnectionPool) *CardAssignmentRepository {
	return &CardAssignmentRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// WithinCardTx runs fn in a write transaction.
func (r *CardAssignmentRepository) WithinCardTx(ctx context.Context, fn func(tx persistence.CardTx) error) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		return fn(&cardTx{helper: r.helper.WithTx(tx), mapper: r.mapper})
	})
}

// ListAssignmentsForCard returns the card's history, newest first.
func (r *CardAssignmentRepository) ListAssignmentsForCard(ctx context.Context, cardID string) ([]persistence.CardAssignment, error) {
	query := `SELECT ` + cardAssignmentColumns + ` FROM card_assignments WHERE card_id = ? ORDER BY assigned_at DESC, rowid DESC`
	rows, err := r.helper.Query(ctx, query, cardID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var assignments []persistence.CardAssignment
	for rows.Next() {
		assignment, err := scanCardAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return assignments, nil
}

// GetActiveAssignment returns the open assignment of cardID.
func (r *CardAssignmentRepository) GetActiveAssignment(ctx context.Context, cardID string) (persistence.CardAssignment, error) {
	if cardID == "" {
		return persistence.CardAssignment{}, persistence.ErrNotFound
	}
	query := `SELECT ` + cardAssignmentColumns + ` FROM card_assignments WHERE card_id = ? AND active = 1`
	assignment, err := scanCardAssignment(r.helper.QueryRow(ctx, query, cardID))
	if err != nil {
		return persistence.CardAssignment{}, r.mapper.MapError(err)
	}
	return assignment, nil
}

type cardTx struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

func (t *cardTx) GetEmployee(ctx context.Context, id string) (persistence.Employee, error) {
	return getEmployee(ctx, t.helper, t.mapper, "id", id)
}

func (t *cardTx) GetEmployeeByCard(ctx context.Context, cardID string) (persistence.Employee, error) {
	return getEmployee(ctx, t.helper, t.mapper, "card_id", cardID)
}

func (t *cardTx) SetEmployeeCard(ctx context.Context, employeeID string, cardID *string, accessGranted bool, updatedAt time.Time) error {
	query := `UPDATE employees SET card_id = ?, access_granted = ?, updated_at = ? WHERE id = ?`
	result, err := t.helper.Exec(ctx, query, nullableString(cardID), accessGranted, formatTimestamp(updatedAt), employeeID)
	if err != nil {
		return t.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (t *cardTx) HasActiveAssignment(ctx context.Context, cardID, employeeID string) (bool, error) {
	var count int
	query := `SELECT COUNT(*) FROM card_assignments WHERE card_id = ? AND employee_id = ? AND active = 1`
	if err := t.helper.QueryRow(ctx, query, cardID, employeeID).Scan(&count); err != nil {
		return false, t.mapper.MapError(err)
	}
	return count > 0, nil
}

func (t *cardTx) CreateAssignment(ctx context.Context, assignment persistence.CardAssignment) error {
	if assignment.ID == "" || assignment.CardID == "" || assignment.EmployeeID == "" {
		return persistence.ErrConstraintViolation
	}
	var unassignedAt any
	if assignment.UnassignedAt != nil {
		unassignedAt = formatTimestamp(*assignment.UnassignedAt)
	}

	query := `INSERT INTO card_assignments (` + cardAssignmentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := t.helper.Exec(ctx, query,
		assignment.ID,
		assignment.CardID,
		assignment.EmployeeID,
		formatTimestamp(assignment.AssignedAt),
		assignment.AssignedBy,
		unassignedAt,
		nullableString(assignment.UnassignedBy),
		assignment.Active,
	)
	if err != nil {
		return t.mapper.MapError(err)
	}
	return nil
}

func (t *cardTx) CloseActiveAssignments(ctx context.Context, filter persistence.AssignmentFilter, closedAt time.Time, actor string) (int, error) {
	var (
		conditions = []string{"active = 1"}
		args       = []any{formatTimestamp(closedAt), actor}
	)
	if filter.CardID != "" {
		conditions = append(conditions, "card_id = ?")
		args = append(args, filter.CardID)
	}
	if filter.EmployeeID != "" {
		conditions = append(conditions, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}

	query := `UPDATE card_assignments SET active = 0, unassigned_at = ?, unassigned_by = ? WHERE ` + strings.Join(conditions, " AND ")
	result, err := t.helper.Exec(ctx, query, args...)
	if err != nil {
		return 0, t.mapper.MapError(err)
	}
	closed, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(closed), nil
}

func (t *cardTx) DeleteEmployee(ctx context.Context, id string) error {
	result, err := t.helper.Exec(ctx, `DELETE FROM employees WHERE id = ?`, id)
	if err != nil {
		return t.mapper.MapError(err)
	}
	return requireAffected(result)
}

func scanCardAssignment(row rowScanner) (persistence.CardAssignment, error) {
	var (
		assignment                 persistence.CardAssignment
		assignedAt                 string
		unassignedAt, unassignedBy sql.NullString
	)
	err := row.Scan(
		&assignment.ID,
		&assignment.CardID,
		&assignment.EmployeeID,
		&assignedAt,
		&assignment.AssignedBy,
		&unassignedAt,
		&unassignedBy,
		&assignment.Active,
	)
	if err != nil {
		return persistence.CardAssignment{}, err
	}
	if assignment.AssignedAt, err = parseTimestamp("assigned_at", assignedAt); err != nil {
		return persistence.CardAssignment{}, err
	}
	if unassignedAt.Valid {
		closed, err := parseTimestamp("unassigned_at", unassignedAt.String)
		if err != nil {
			return persistence.CardAssignment{}, err
		}
		assignment.UnassignedAt = &closed
	}
	assignment.UnassignedBy = stringPtr(unassignedBy)
	return assignment, nil
}
