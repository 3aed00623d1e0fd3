package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/access-compliance/internal/application"
	"github.com/example/access-compliance/internal/notification"
)

type supervisorDirectory interface {
	ListSupervisors(ctx context.Context) ([]application.Supervisor, error)
	GetSupervisor(ctx context.Context, id string) (application.Supervisor, error)
	CreateSupervisor(ctx context.Context, in application.SupervisorInput) (application.Supervisor, error)
	UpdateSupervisor(ctx context.Context, id string, in application.SupervisorInput) (application.Supervisor, error)
	DeleteSupervisor(ctx context.Context, id string) error
}

type SupervisorHandler struct {
	service   supervisorDirectory
	responder responder
	logger    *slog.Logger
}

func NewSupervisorHandler(service supervisorDirectory, logger *slog.Logger) *SupervisorHandler {
	base := defaultLogger(logger)
	return &SupervisorHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SupervisorHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SupervisorHandler", operation, attrs...)
}

func (h *SupervisorHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "List")
	supervisors, err := h.service.ListSupervisors(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "supervisor list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]supervisorDTO, 0, len(supervisors))
	for _, supervisor := range supervisors {
		out = append(out, toSupervisorDTO(supervisor))
	}
	logger.With("result_count", len(out)).InfoContext(r.Context(), "supervisors listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, out)
}

func (h *SupervisorHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	supervisor, err := h.service.GetSupervisor(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "Get", "supervisor_id", id).ErrorContext(r.Context(), "supervisor read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSupervisorDTO(supervisor))
}

func (h *SupervisorHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req supervisorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode supervisor request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create")
	supervisor, err := h.service.CreateSupervisor(r.Context(), req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "supervisor creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("supervisor_id", supervisor.ID).InfoContext(r.Context(), "supervisor created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSupervisorDTO(supervisor))
}

func (h *SupervisorHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req supervisorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "supervisor_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode supervisor update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "supervisor_id", id)
	supervisor, err := h.service.UpdateSupervisor(r.Context(), id, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "supervisor update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "supervisor updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSupervisorDTO(supervisor))
}

func (h *SupervisorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	logger := h.log(r.Context(), "Delete", "supervisor_id", id)
	if err := h.service.DeleteSupervisor(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "supervisor delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "supervisor deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// channelField accepts "email" style labels as well as the numeric codes
// older clients send. Unknown values decode to an out of range channel so
// the service reports them as a validation error.
type channelField notification.Channel

func (c *channelField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = channelField(notification.ChannelNone)
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	channel, ok := notification.ParseChannel(raw)
	if !ok {
		*c = channelField(-1)
		return nil
	}
	*c = channelField(channel)
	return nil
}

type supervisorRequest struct {
	FirstName           string       `json:"first_name"`
	LastName            string       `json:"last_name"`
	Position            string       `json:"position"`
	Email               string       `json:"email"`
	Phone               *string      `json:"phone"`
	NotificationChannel channelField `json:"notification_channel"`
}

func (r supervisorRequest) toInput() application.SupervisorInput {
	return application.SupervisorInput{
		FirstName:           strings.TrimSpace(r.FirstName),
		LastName:            strings.TrimSpace(r.LastName),
		Position:            strings.TrimSpace(r.Position),
		Email:               strings.TrimSpace(r.Email),
		Phone:               r.Phone,
		NotificationChannel: notification.Channel(r.NotificationChannel),
	}
}

type supervisorDTO struct {
	ID                  string  `json:"id"`
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	FullName            string  `json:"full_name"`
	Position            string  `json:"position"`
	Email               string  `json:"email"`
	Phone               *string `json:"phone,omitempty"`
	NotificationChannel string  `json:"notification_channel"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

func toSupervisorDTO(supervisor application.Supervisor) supervisorDTO {
	return supervisorDTO{
		ID:                  supervisor.ID,
		FirstName:           supervisor.FirstName,
		LastName:            supervisor.LastName,
		FullName:            supervisor.FullName(),
		Position:            supervisor.Position,
		Email:               supervisor.Email,
		Phone:               supervisor.Phone,
		NotificationChannel: supervisor.NotificationChannel.String(),
		CreatedAt:           formatTime(supervisor.CreatedAt),
		UpdatedAt:           formatTime(supervisor.UpdatedAt),
	}
}
