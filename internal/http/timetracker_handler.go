package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/access-compliance/internal/application"
)

type swipeIngester interface {
	Ingest(ctx context.Context, in application.SwipeInput) (application.SwipeResult, error)
}

type ledgerReader interface {
	Recent(ctx context.Context) ([]application.SwipeEvent, error)
	ByAction(ctx context.Context, action string) ([]application.SwipeEvent, error)
	ByTerminal(ctx context.Context, terminalID string) ([]application.SwipeEvent, error)
	Latest(ctx context.Context) (application.SwipeEvent, error)
	Stats(ctx context.Context) (application.LedgerStats, error)
	Clear(ctx context.Context) (int64, error)
}

// TimeTrackerHandler serves the badge terminal endpoints.
type TimeTrackerHandler struct {
	swipes    swipeIngester
	ledger    ledgerReader
	stream    http.Handler
	responder responder
	logger    *slog.Logger
}

// NewTimeTrackerHandler wires the ingest service and ledger views. stream may
// be nil, in which case GET /stream answers 404.
func NewTimeTrackerHandler(swipes swipeIngester, ledger ledgerReader, stream http.Handler, logger *slog.Logger) *TimeTrackerHandler {
	base := defaultLogger(logger)
	return &TimeTrackerHandler{swipes: swipes, ledger: ledger, stream: stream, responder: newResponder(base), logger: base}
}

func (h *TimeTrackerHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "TimeTrackerHandler", operation, attrs...)
}

func (h *TimeTrackerHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.swipes == nil || h.ledger == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *TimeTrackerHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req swipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Ingest", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode swipe", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Ingest", "system_id", req.SystemID, "action", req.Action)

	result, err := h.swipes.Ingest(r.Context(), req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "swipe ingestion failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", result.Event.ID, "access_granted", result.AccessGranted).InfoContext(r.Context(), "swipe ingested")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toIngestResponse(result))
}

func (h *TimeTrackerHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.writeEvents(w, r, "Recent", func(ctx context.Context) ([]application.SwipeEvent, error) {
		return h.ledger.Recent(ctx)
	})
}

func (h *TimeTrackerHandler) ByAction(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	action := strings.TrimSpace(chi.URLParam(r, "action"))
	h.writeEvents(w, r, "ByAction", func(ctx context.Context) ([]application.SwipeEvent, error) {
		return h.ledger.ByAction(ctx, action)
	}, "filter_action", action)
}

func (h *TimeTrackerHandler) BySystem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	systemID := strings.TrimSpace(chi.URLParam(r, "systemID"))
	h.writeEvents(w, r, "BySystem", func(ctx context.Context) ([]application.SwipeEvent, error) {
		return h.ledger.ByTerminal(ctx, systemID)
	}, "system_id", systemID)
}

func (h *TimeTrackerHandler) writeEvents(w http.ResponseWriter, r *http.Request, operation string, load func(context.Context) ([]application.SwipeEvent, error), attrs ...any) {
	logger := h.log(r.Context(), operation, attrs...)
	events, err := load(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "ledger read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	logger.With("result_count", len(events)).DebugContext(r.Context(), "ledger view served")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSwipeEventDTOs(events))
}

func (h *TimeTrackerHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	event, err := h.ledger.Latest(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrNotFound) {
			h.responder.writeError(r.Context(), w, http.StatusNotFound, errNoLedgerData)
			return
		}
		h.log(r.Context(), "Latest").ErrorContext(r.Context(), "latest read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSwipeEventDTO(event))
}

func (h *TimeTrackerHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		h.log(r.Context(), "Stats").ErrorContext(r.Context(), "stats read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toStatsResponse(stats))
}

func (h *TimeTrackerHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Clear", "actor", actorFromContext(r.Context()))
	removed, err := h.ledger.Clear(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "ledger clear failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("removed", removed).InfoContext(r.Context(), "ledger cleared")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageResponse{Message: "All time tracker data cleared successfully"})
}

func (h *TimeTrackerHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if h.stream == nil {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errLedgerNotEnabled)
		return
	}
	h.stream.ServeHTTP(w, r)
}

type swipeRequest struct {
	SystemID       string `json:"system_id"`
	Action         string `json:"action"`
	CardID         string `json:"card_id"`
	Status         string `json:"status"`
	TimestampISO   string `json:"timestamp_iso"`
	TimestampLocal string `json:"timestamp_local"`
	ActiveSessions *int   `json:"active_sessions"`
	SystemUptime   *int64 `json:"system_uptime"`
	WifiConnected  *bool  `json:"wifi_connected"`
}

func (r swipeRequest) toInput() application.SwipeInput {
	return application.SwipeInput{
		TerminalID:           strings.TrimSpace(r.SystemID),
		Action:               strings.TrimSpace(r.Action),
		CardID:               r.CardID,
		Status:               r.Status,
		DeviceTimestamp:      strings.TrimSpace(r.TimestampISO),
		DeviceLocalTimestamp: strings.TrimSpace(r.TimestampLocal),
		ActiveSessions:       r.ActiveSessions,
		UptimeSeconds:        r.SystemUptime,
		WifiConnected:        r.WifiConnected,
	}
}

type ingestResponse struct {
	Message         string `json:"message"`
	AccessGranted   bool   `json:"access_granted"`
	EmployeeName    string `json:"employee_name,omitempty"`
	EmployeeSurname string `json:"employee_surname,omitempty"`
	Position        string `json:"position,omitempty"`
	AccessLevel     string `json:"access_level"`
	SystemMessage   string `json:"system_message"`
	Timestamp       string `json:"timestamp"`
	Status          string `json:"status"`
	TimestampSource string `json:"timestamp_source"`
	EventID         int64  `json:"event_id"`
}

func toIngestResponse(result application.SwipeResult) ingestResponse {
	resp := ingestResponse{
		Message:         application.IngestAcknowledgement,
		AccessGranted:   result.AccessGranted,
		AccessLevel:     string(result.Event.AccessLevel),
		SystemMessage:   result.SystemMessage,
		Timestamp:       formatTime(result.Event.ReceivedAt),
		Status:          result.Event.Status,
		TimestampSource: string(result.Event.TimestampSource),
		EventID:         result.Event.ID,
	}
	if result.Employee != nil {
		resp.EmployeeName = result.Employee.FirstName
		resp.EmployeeSurname = result.Employee.LastName
		resp.Position = result.Employee.Position
	}
	return resp
}

type swipeEventDTO struct {
	ID                int64   `json:"id"`
	SystemID          string  `json:"system_id"`
	Action            string  `json:"action"`
	CardID            string  `json:"card_id,omitempty"`
	Status            string  `json:"status"`
	TimestampISO      string  `json:"timestamp_iso,omitempty"`
	TimestampLocal    string  `json:"timestamp_local,omitempty"`
	ActiveSessions    *int    `json:"active_sessions,omitempty"`
	SystemUptime      *int64  `json:"system_uptime,omitempty"`
	WifiConnected     *bool   `json:"wifi_connected,omitempty"`
	ReceivedTimestamp string  `json:"received_timestamp"`
	EmployeeID        *string `json:"employee_id,omitempty"`
	EmployeeName      string  `json:"employee_name,omitempty"`
	AccessLevel       string  `json:"access_level"`
	TimestampSource   string  `json:"timestamp_source,omitempty"`
}

func toSwipeEventDTO(event application.SwipeEvent) swipeEventDTO {
	return swipeEventDTO{
		ID:                event.ID,
		SystemID:          event.TerminalID,
		Action:            event.Action,
		CardID:            event.CardID,
		Status:            event.Status,
		TimestampISO:      event.DeviceTimestamp,
		TimestampLocal:    event.DeviceLocalTimestamp,
		ActiveSessions:    event.ActiveSessions,
		SystemUptime:      event.UptimeSeconds,
		WifiConnected:     event.WifiConnected,
		ReceivedTimestamp: formatTime(event.ReceivedAt),
		EmployeeID:        event.EmployeeID,
		EmployeeName:      event.EmployeeName,
		AccessLevel:       string(event.AccessLevel),
		TimestampSource:   string(event.TimestampSource),
	}
}

// toSwipeEventDTOs always returns a non-nil slice so empty views encode as [].
func toSwipeEventDTOs(events []application.SwipeEvent) []swipeEventDTO {
	out := make([]swipeEventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toSwipeEventDTO(event))
	}
	return out
}

type statsResponse struct {
	TotalRecords   int64   `json:"total_records"`
	ActiveSessions *int    `json:"active_sessions"`
	LastSystemID   *string `json:"last_system_id"`
	LastAction     *string `json:"last_action"`
	LastReceived   *string `json:"last_received"`
}

func toStatsResponse(stats application.LedgerStats) statsResponse {
	resp := statsResponse{TotalRecords: stats.Total, ActiveSessions: stats.ActiveSessions}
	if stats.Latest != nil {
		systemID := stats.Latest.TerminalID
		action := stats.Latest.Action
		received := formatTime(stats.Latest.ReceivedAt)
		resp.LastSystemID = &systemID
		resp.LastAction = &action
		resp.LastReceived = &received
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}
