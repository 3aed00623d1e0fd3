package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/access-compliance/internal/persistence"
)

const supervisorColumns = `id, first_name, last_name, position, email, phone, notification_channel, created_at, updated_at`

// SupervisorRepository implements persistence.SupervisorRepository using SQLite
type SupervisorRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewSupervisorRepository creates a new SQLite supervisor repository
func NewSupervisorRepository(pool *ConnectionPool) *SupervisorRepository {
	return &SupervisorRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// CreateSupervisor inserts a supervisor. Emails are unique ignoring case.
func (r *SupervisorRepository) CreateSupervisor(ctx context.Context, supervisor persistence.Supervisor) error {
	if supervisor.ID == "" || strings.TrimSpace(supervisor.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	if supervisor.CreatedAt.IsZero() {
		supervisor.CreatedAt = r.now()
	}
	if supervisor.UpdatedAt.IsZero() {
		supervisor.UpdatedAt = supervisor.CreatedAt
	}

	query := `
		INSERT INTO supervisors (` + supervisorColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.helper.Exec(ctx, query,
		supervisor.ID,
		supervisor.FirstName,
		supervisor.LastName,
		supervisor.Position,
		strings.TrimSpace(supervisor.Email),
		nullableString(supervisor.Phone),
		supervisor.NotificationChannel,
		formatTimestamp(supervisor.CreatedAt),
		formatTimestamp(supervisor.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// UpdateSupervisor replaces the mutable fields of a supervisor.
func (r *SupervisorRepository) UpdateSupervisor(ctx context.Context, supervisor persistence.Supervisor) error {
	if supervisor.ID == "" || strings.TrimSpace(supervisor.Email) == "" {
		return persistence.ErrConstraintViolation
	}
	if supervisor.UpdatedAt.IsZero() {
		supervisor.UpdatedAt = r.now()
	}

	query := `
		UPDATE supervisors
		SET first_name = ?, last_name = ?, position = ?, email = ?, phone = ?, notification_channel = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		supervisor.FirstName,
		supervisor.LastName,
		supervisor.Position,
		strings.TrimSpace(supervisor.Email),
		nullableString(supervisor.Phone),
		supervisor.NotificationChannel,
		formatTimestamp(supervisor.UpdatedAt),
		supervisor.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetSupervisor retrieves a supervisor by ID
func (r *SupervisorRepository) GetSupervisor(ctx context.Context, id string) (persistence.Supervisor, error) {
	if id == "" {
		return persistence.Supervisor{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+supervisorColumns+` FROM supervisors WHERE id = ?`, id)
	supervisor, err := scanSupervisor(row)
	if err != nil {
		return persistence.Supervisor{}, r.mapper.MapError(err)
	}
	return supervisor, nil
}

// ListSupervisors returns supervisors ordered by last name, then first name.
func (r *SupervisorRepository) ListSupervisors(ctx context.Context) ([]persistence.Supervisor, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+supervisorColumns+` FROM supervisors ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var supervisors []persistence.Supervisor
	for rows.Next() {
		supervisor, err := scanSupervisor(rows)
		if err != nil {
			return nil, err
		}
		supervisors = append(supervisors, supervisor)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return supervisors, nil
}

// DeleteSupervisor removes a supervisor. Employees reporting to it keep no supervisor.
func (r *SupervisorRepository) DeleteSupervisor(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, `DELETE FROM supervisors WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// CountSupervisors returns the number of supervisors.
func (r *SupervisorRepository) CountSupervisors(ctx context.Context) (int, error) {
	var count int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM supervisors`).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

func scanSupervisor(row rowScanner) (persistence.Supervisor, error) {
	var (
		supervisor           persistence.Supervisor
		phone                sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(
		&supervisor.ID,
		&supervisor.FirstName,
		&supervisor.LastName,
		&supervisor.Position,
		&supervisor.Email,
		&phone,
		&supervisor.NotificationChannel,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Supervisor{}, err
	}
	supervisor.Phone = stringPtr(phone)
	if supervisor.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.Supervisor{}, err
	}
	if supervisor.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return persistence.Supervisor{}, err
	}
	return supervisor, nil
}
