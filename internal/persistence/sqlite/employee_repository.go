package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/access-compliance/internal/persistence"
)

const employeeColumns = `id, first_name, last_name, position, supervisor_id, work_schedule_id, card_id, access_granted, created_at, updated_at`

// EmployeeRepository implements persistence.EmployeeRepository using SQLite
type EmployeeRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewEmployeeRepository creates a new SQLite employee repository
func NewEmployeeRepository(pool *ConnectionPool) *EmployeeRepository {
	return &EmployeeRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// CreateEmployee inserts a new employee, including its initial card binding.
func (r *EmployeeRepository) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = r.now()
	}
	if employee.UpdatedAt.IsZero() {
		employee.UpdatedAt = employee.CreatedAt
	}

	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		employee.ID,
		employee.FirstName,
		employee.LastName,
		employee.Position,
		nullableString(employee.SupervisorID),
		nullableString(employee.WorkScheduleID),
		nullableString(employee.CardID),
		employee.AccessGranted,
		formatTimestamp(employee.CreatedAt),
		formatTimestamp(employee.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateEmployee updates directory fields. card_id is left unchanged.
func (r *EmployeeRepository) UpdateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if employee.UpdatedAt.IsZero() {
		employee.UpdatedAt = r.now()
	}

	query := `
		UPDATE employees
		SET first_name = ?, last_name = ?, position = ?, supervisor_id = ?, work_schedule_id = ?,
			access_granted = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		employee.FirstName,
		employee.LastName,
		employee.Position,
		nullableString(employee.SupervisorID),
		nullableString(employee.WorkScheduleID),
		employee.AccessGranted,
		formatTimestamp(employee.UpdatedAt),
		employee.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetEmployee retrieves an employee by ID
func (r *EmployeeRepository) GetEmployee(ctx context.Context, id string) (persistence.Employee, error) {
	return getEmployee(ctx, r.helper, r.mapper, "id", id)
}

// GetEmployeeByCard retrieves the employee holding cardID. Matching is exact.
func (r *EmployeeRepository) GetEmployeeByCard(ctx context.Context, cardID string) (persistence.Employee, error) {
	return getEmployee(ctx, r.helper, r.mapper, "card_id", cardID)
}

// ListEmployees returns every employee ordered by last name, then first name.
func (r *EmployeeRepository) ListEmployees(ctx context.Context) ([]persistence.Employee, error) {
	return r.list(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY last_name, first_name, id`)
}

// ListUnassignedEmployees returns employees without a card.
func (r *EmployeeRepository) ListUnassignedEmployees(ctx context.Context) ([]persistence.Employee, error) {
	return r.list(ctx, `SELECT `+employeeColumns+` FROM employees WHERE card_id IS NULL ORDER BY last_name, first_name, id`)
}

func (r *EmployeeRepository) list(ctx context.Context, query string) ([]persistence.Employee, error) {
	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var employees []persistence.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return employees, nil
}

func getEmployee(ctx context.Context, helper *QueryHelper, mapper *ErrorMapper, column, value string) (persistence.Employee, error) {
	if value == "" {
		return persistence.Employee{}, persistence.ErrNotFound
	}
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE ` + column + ` = ?`
	employee, err := scanEmployee(helper.QueryRow(ctx, query, value))
	if err != nil {
		return persistence.Employee{}, mapper.MapError(err)
	}
	return employee, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (persistence.Employee, error) {
	var (
		employee                       persistence.Employee
		supervisorID, scheduleID, card sql.NullString
		createdAt, updatedAt           string
	)
	err := row.Scan(
		&employee.ID,
		&employee.FirstName,
		&employee.LastName,
		&employee.Position,
		&supervisorID,
		&scheduleID,
		&card,
		&employee.AccessGranted,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Employee{}, err
	}

	employee.SupervisorID = stringPtr(supervisorID)
	employee.WorkScheduleID = stringPtr(scheduleID)
	employee.CardID = stringPtr(card)
	if employee.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.Employee{}, err
	}
	if employee.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return persistence.Employee{}, err
	}
	return employee, nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
