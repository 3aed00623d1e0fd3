package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/access-compliance/internal/application"
)

type workScheduleDirectory interface {
	ListWorkSchedules(ctx context.Context) ([]application.WorkSchedule, error)
	GetWorkSchedule(ctx context.Context, id string) (application.WorkSchedule, error)
	CreateWorkSchedule(ctx context.Context, in application.WorkScheduleInput) (application.WorkSchedule, error)
	UpdateWorkSchedule(ctx context.Context, id string, in application.WorkScheduleInput) (application.WorkSchedule, error)
	DeleteWorkSchedule(ctx context.Context, id string) error
}

type WorkScheduleHandler struct {
	service   workScheduleDirectory
	responder responder
	logger    *slog.Logger
}

func NewWorkScheduleHandler(service workScheduleDirectory, logger *slog.Logger) *WorkScheduleHandler {
	base := defaultLogger(logger)
	return &WorkScheduleHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *WorkScheduleHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "WorkScheduleHandler", operation, attrs...)
}

func (h *WorkScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "List")
	schedules, err := h.service.ListWorkSchedules(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "schedule list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]workScheduleDTO, 0, len(schedules))
	for _, schedule := range schedules {
		out = append(out, toWorkScheduleDTO(schedule))
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "schedules listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *WorkScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	schedule, err := h.service.GetWorkSchedule(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "Get", "schedule_id", id).ErrorContext(r.Context(), "schedule read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toWorkScheduleDTO(schedule))
}

func (h *WorkScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req workScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode schedule request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")
	schedule, err := h.service.CreateWorkSchedule(r.Context(), req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "schedule creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("schedule_id", schedule.ID).InfoContext(r.Context(), "schedule created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toWorkScheduleDTO(schedule))
}

func (h *WorkScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req workScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "schedule_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode schedule update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "schedule_id", id)
	schedule, err := h.service.UpdateWorkSchedule(r.Context(), id, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "schedule update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "schedule updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toWorkScheduleDTO(schedule))
}

func (h *WorkScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	logger := h.log(r.Context(), "Delete", "schedule_id", id)
	if err := h.service.DeleteWorkSchedule(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "schedule delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "schedule deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type workScheduleRequest struct {
	Name         string `json:"name"`
	SelectedDays string `json:"selected_days"`
	TimeRanges   string `json:"time_ranges"`
}

func (r workScheduleRequest) toInput() application.WorkScheduleInput {
	return application.WorkScheduleInput{
		Name:         strings.TrimSpace(r.Name),
		SelectedDays: r.SelectedDays,
		TimeRanges:   r.TimeRanges,
	}
}

type timeWindowDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type workScheduleDTO struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SelectedDays string          `json:"selected_days"`
	TimeRanges   string          `json:"time_ranges"`
	Days         []string        `json:"days"`
	Windows      []timeWindowDTO `json:"windows"`
	CreatedAt    string          `json:"created_at"`
	UpdatedAt    string          `json:"updated_at"`
}

// toWorkScheduleDTO exposes the stored text next to its parsed form.
func toWorkScheduleDTO(schedule application.WorkSchedule) workScheduleDTO {
	model := schedule.Model()
	dto := workScheduleDTO{
		ID:           schedule.ID,
		Name:         schedule.Name,
		SelectedDays: schedule.SelectedDays,
		TimeRanges:   schedule.TimeRanges,
		Days:         make([]string, 0, 7),
		Windows:      make([]timeWindowDTO, 0, len(model.Windows)),
		CreatedAt:    formatTime(schedule.CreatedAt),
		UpdatedAt:    formatTime(schedule.UpdatedAt),
	}
	for _, day := range model.Weekdays.Days() {
		dto.Days = append(dto.Days, day.String())
	}
	for _, window := range model.Windows {
		dto.Windows = append(dto.Windows, timeWindowDTO{Start: window.Start.HourMinute(), End: window.End.HourMinute()})
	}
	return dto
}
