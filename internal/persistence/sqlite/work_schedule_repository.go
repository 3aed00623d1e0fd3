package sqlite

import (
	"context"
	"time"

	"github.com/example/access-compliance/internal/persistence"
)

const workScheduleColumns = `id, name, selected_days, time_ranges, created_at, updated_at`

// WorkScheduleRepository implements persistence.WorkScheduleRepository using SQLite
type WorkScheduleRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewWorkScheduleRepository creates a new SQLite work schedule repository
func NewWorkScheduleRepository(pool *ConnectionPool) *WorkScheduleRepository {
	return &WorkScheduleRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

func (r *WorkScheduleRepository) CreateWorkSchedule(ctx context.Context, schedule persistence.WorkSchedule) error {
	if schedule.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = r.now()
	}
	if schedule.UpdatedAt.IsZero() {
		schedule.UpdatedAt = schedule.CreatedAt
	}

	query := `INSERT INTO work_schedules (` + workScheduleColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.helper.Exec(ctx, query,
		schedule.ID,
		schedule.Name,
		schedule.SelectedDays,
		schedule.TimeRanges,
		formatTimestamp(schedule.CreatedAt),
		formatTimestamp(schedule.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func (r *WorkScheduleRepository) UpdateWorkSchedule(ctx context.Context, schedule persistence.WorkSchedule) error {
	if schedule.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if schedule.UpdatedAt.IsZero() {
		schedule.UpdatedAt = r.now()
	}

	query := `UPDATE work_schedules SET name = ?, selected_days = ?, time_ranges = ?, updated_at = ? WHERE id = ?`
	result, err := r.helper.Exec(ctx, query,
		schedule.Name,
		schedule.SelectedDays,
		schedule.TimeRanges,
		formatTimestamp(schedule.UpdatedAt),
		schedule.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func (r *WorkScheduleRepository) GetWorkSchedule(ctx context.Context, id string) (persistence.WorkSchedule, error) {
	if id == "" {
		return persistence.WorkSchedule{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+workScheduleColumns+` FROM work_schedules WHERE id = ?`, id)
	schedule, err := scanWorkSchedule(row)
	if err != nil {
		return persistence.WorkSchedule{}, r.mapper.MapError(err)
	}
	return schedule, nil
}

func (r *WorkScheduleRepository) ListWorkSchedules(ctx context.Context) ([]persistence.WorkSchedule, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+workScheduleColumns+` FROM work_schedules ORDER BY name, id`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var schedules []persistence.WorkSchedule
	for rows.Next() {
		schedule, err := scanWorkSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return schedules, nil
}

func (r *WorkScheduleRepository) DeleteWorkSchedule(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, `DELETE FROM work_schedules WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

func scanWorkSchedule(row rowScanner) (persistence.WorkSchedule, error) {
	var (
		schedule             persistence.WorkSchedule
		createdAt, updatedAt string
	)
	if err := row.Scan(&schedule.ID, &schedule.Name, &schedule.SelectedDays, &schedule.TimeRanges, &createdAt, &updatedAt); err != nil {
		return persistence.WorkSchedule{}, err
	}
	var err error
	if schedule.CreatedAt, err = parseTimestamp("created_at", createdAt); err != nil {
		return persistence.WorkSchedule{}, err
	}
	if schedule.UpdatedAt, err = parseTimestamp("updated_at", updatedAt); err != nil {
		return persistence.WorkSchedule{}, err
	}
	return schedule, nil
}
