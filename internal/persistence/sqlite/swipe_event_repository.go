package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/access-compliance/internal/persistence"
)

const swipeEventColumns = `id, terminal_id, action, card_id, status, device_timestamp, device_local_timestamp,
	active_sessions, uptime_seconds, wifi_connected, received_at, employee_id, employee_name, access_level, timestamp_source`

const swipeEventOrder = ` ORDER BY received_at DESC, id DESC`

// SwipeEventRepository implements persistence.SwipeEventRepository using SQLite.
// Rows are only ever inserted or cleared in bulk.
type SwipeEventRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewSwipeEventRepository creates a new SQLite swipe ledger repository
func NewSwipeEventRepository(pool *ConnectionPool) *SwipeEventRepository {
	return &SwipeEventRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// AppendSwipeEvent inserts event and returns it with its assigned ID.
// Inserts that hit lock contention are retried.
func (r *SwipeEventRepository) AppendSwipeEvent(ctx context.Context, event persistence.SwipeEvent) (persistence.SwipeEvent, error) {
	if event.ReceivedAt.IsZero() {
		return persistence.SwipeEvent{}, persistence.ErrConstraintViolation
	}

	query := `
		INSERT INTO swipe_events (terminal_id, action, card_id, status, device_timestamp, device_local_timestamp,
			active_sessions, uptime_seconds, wifi_connected, received_at, employee_id, employee_name, access_level, timestamp_source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var wifi any
	if event.WifiConnected != nil {
		wifi = *event.WifiConnected
	}
	var sessions any
	if event.ActiveSessions != nil {
		sessions = *event.ActiveSessions
	}
	var uptime any
	if event.UptimeSeconds != nil {
		uptime = *event.UptimeSeconds
	}

	err := r.retry.WithRetry(ctx, func() error {
		result, err := r.helper.Exec(ctx, query,
			event.TerminalID,
			event.Action,
			event.CardID,
			event.Status,
			event.DeviceTimestamp,
			event.DeviceLocalTimestamp,
			sessions,
			uptime,
			wifi,
			formatTimestamp(event.ReceivedAt),
			nullableString(event.EmployeeID),
			event.EmployeeName,
			event.AccessLevel,
			event.TimestampSource,
		)
		if err != nil {
			return err
		}
		event.ID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return persistence.SwipeEvent{}, err
	}
	event.ReceivedAt = event.ReceivedAt.UTC()
	return event, nil
}

// ListRecentSwipeEvents returns up to limit events, newest first.
func (r *SwipeEventRepository) ListRecentSwipeEvents(ctx context.Context, limit int) ([]persistence.SwipeEvent, error) {
	return r.list(ctx, `SELECT `+swipeEventColumns+` FROM swipe_events`+swipeEventOrder+` LIMIT ?`, limit)
}

// ListSwipeEventsByAction matches action ignoring case.
func (r *SwipeEventRepository) ListSwipeEventsByAction(ctx context.Context, action string, limit int) ([]persistence.SwipeEvent, error) {
	return r.list(ctx, `SELECT `+swipeEventColumns+` FROM swipe_events WHERE action = ? COLLATE NOCASE`+swipeEventOrder+` LIMIT ?`, action, limit)
}

// ListSwipeEventsByTerminal matches the terminal id exactly.
func (r *SwipeEventRepository) ListSwipeEventsByTerminal(ctx context.Context, terminalID string, limit int) ([]persistence.SwipeEvent, error) {
	return r.list(ctx, `SELECT `+swipeEventColumns+` FROM swipe_events WHERE terminal_id = ?`+swipeEventOrder+` LIMIT ?`, terminalID, limit)
}

// LatestSwipeEvent returns persistence.ErrNotFound when the ledger is empty.
func (r *SwipeEventRepository) LatestSwipeEvent(ctx context.Context) (persistence.SwipeEvent, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+swipeEventColumns+` FROM swipe_events`+swipeEventOrder+` LIMIT 1`)
	event, err := scanSwipeEvent(row)
	if err != nil {
		return persistence.SwipeEvent{}, r.mapper.MapError(err)
	}
	return event, nil
}

func (r *SwipeEventRepository) LatestSwipeEventForCard(ctx context.Context, cardID string) (persistence.SwipeEvent, error) {
	if cardID == "" {
		return persistence.SwipeEvent{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+swipeEventColumns+` FROM swipe_events WHERE card_id = ?`+swipeEventOrder+` LIMIT 1`, cardID)
	event, err := scanSwipeEvent(row)
	if err != nil {
		return persistence.SwipeEvent{}, r.mapper.MapError(err)
	}
	return event, nil
}

// SwipeStats counts the ledger and reports the first non-null active session
// count among the latest sessionWindow rows.
func (r *SwipeEventRepository) SwipeStats(ctx context.Context, sessionWindow int) (persistence.SwipeStats, error) {
	var stats persistence.SwipeStats
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM swipe_events`).Scan(&stats.Total); err != nil {
		return persistence.SwipeStats{}, r.mapper.MapError(err)
	}
	if stats.Total == 0 {
		return stats, nil
	}

	query := `
		SELECT active_sessions FROM (
			SELECT active_sessions, received_at, id FROM swipe_events` + swipeEventOrder + ` LIMIT ?
		)
		WHERE active_sessions IS NOT NULL` + swipeEventOrder + `
		LIMIT 1
	`
	var sessions sql.NullInt64
	err := r.helper.QueryRow(ctx, query, sessionWindow).Scan(&sessions)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return persistence.SwipeStats{}, r.mapper.MapError(err)
	case sessions.Valid:
		v := int(sessions.Int64)
		stats.ActiveSessions = &v
	}

	latest, err := r.LatestSwipeEvent(ctx)
	if err != nil {
		return persistence.SwipeStats{}, err
	}
	stats.Latest = &latest
	return stats, nil
}

// ClearSwipeEvents deletes every row and returns how many were removed.
func (r *SwipeEventRepository) ClearSwipeEvents(ctx context.Context) (int64, error) {
	result, err := r.helper.Exec(ctx, `DELETE FROM swipe_events`)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}

func (r *SwipeEventRepository) list(ctx context.Context, query string, args ...any) ([]persistence.SwipeEvent, error) {
	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.SwipeEvent
	for rows.Next() {
		event, err := scanSwipeEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

func scanSwipeEvent(row rowScanner) (persistence.SwipeEvent, error) {
	var (
		event      persistence.SwipeEvent
		sessions   sql.NullInt64
		uptime     sql.NullInt64
		wifi       sql.NullBool
		receivedAt string
		employeeID sql.NullString
	)
	err := row.Scan(
		&event.ID,
		&event.TerminalID,
		&event.Action,
		&event.CardID,
		&event.Status,
		&event.DeviceTimestamp,
		&event.DeviceLocalTimestamp,
		&sessions,
		&uptime,
		&wifi,
		&receivedAt,
		&employeeID,
		&event.EmployeeName,
		&event.AccessLevel,
		&event.TimestampSource,
	)
	if err != nil {
		return persistence.SwipeEvent{}, err
	}

	if sessions.Valid {
		v := int(sessions.Int64)
		event.ActiveSessions = &v
	}
	if uptime.Valid {
		v := uptime.Int64
		event.UptimeSeconds = &v
	}
	if wifi.Valid {
		v := wifi.Bool
		event.WifiConnected = &v
	}
	event.EmployeeID = stringPtr(employeeID)
	if event.ReceivedAt, err = parseTimestamp("received_at", receivedAt); err != nil {
		return persistence.SwipeEvent{}, err
	}
	return event, nil
}
