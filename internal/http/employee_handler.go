package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/access-compliance/internal/application"
)

type employeeDirectory interface {
	ListEmployees(ctx context.Context) ([]application.Employee, error)
	ListUnassignedEmployees(ctx context.Context) ([]application.Employee, error)
	GetEmployee(ctx context.Context, id string) (application.Employee, error)
	CreateEmployee(ctx context.Context, params application.CreateEmployeeParams) (application.Employee, error)
	UpdateEmployee(ctx context.Context, id string, in application.EmployeeInput) (application.Employee, error)
	DeleteEmployee(ctx context.Context, id, actor string) error
}

type cardRegistry interface {
	AssignCard(ctx context.Context, params application.AssignCardParams) (application.Employee, error)
	UnassignCard(ctx context.Context, cardID, actor string) (bool, error)
	ResolveByCard(ctx context.Context, cardID string) (application.ResolvedEmployee, bool, error)
	AssignmentHistory(ctx context.Context, cardID string) ([]application.CardAssignment, error)
}

type cardStatusReader interface {
	CardStatus(ctx context.Context, cardID string) (application.CardStatus, error)
}

// EmployeeHandler serves employee CRUD and card management.
type EmployeeHandler struct {
	directory employeeDirectory
	cards     cardRegistry
	access    cardStatusReader
	responder responder
	logger    *slog.Logger
}

func NewEmployeeHandler(directory employeeDirectory, cards cardRegistry, access cardStatusReader, logger *slog.Logger) *EmployeeHandler {
	base := defaultLogger(logger)
	return &EmployeeHandler{directory: directory, cards: cards, access: access, responder: newResponder(base), logger: base}
}

func (h *EmployeeHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EmployeeHandler", operation, attrs...)
}

func (h *EmployeeHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.directory == nil || h.cards == nil || h.access == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *EmployeeHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.writeEmployees(w, r, "List", h.directory.ListEmployees)
}

func (h *EmployeeHandler) ListUnassigned(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	h.writeEmployees(w, r, "ListUnassigned", h.directory.ListUnassignedEmployees)
}

func (h *EmployeeHandler) writeEmployees(w http.ResponseWriter, r *http.Request, operation string, load func(context.Context) ([]application.Employee, error)) {
	logger := h.log(r.Context(), operation)
	employees, err := load(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "employee list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(employees)).InfoContext(r.Context(), "employees listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEmployeeDTOs(employees))
}

func (h *EmployeeHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	employee, err := h.directory.GetEmployee(r.Context(), id)
	if err != nil {
		h.log(r.Context(), "Get", "employee_id", id).ErrorContext(r.Context(), "employee read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEmployeeDTO(employee))
}

func (h *EmployeeHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode employee request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	actor := actorFromContext(r.Context())
	logger := h.log(r.Context(), "Create", "actor", actor)

	employee, err := h.directory.CreateEmployee(r.Context(), application.CreateEmployeeParams{
		Input:  req.toInput(),
		CardID: req.cardID(),
		Actor:  actor,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "employee creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("employee_id", employee.ID).InfoContext(r.Context(), "employee created")
	w.Header().Set("Location", "/api/employee/"+employee.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toEmployeeDTO(employee))
}

func (h *EmployeeHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	var req employeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "employee_id", id, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode employee update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "employee_id", id)
	employee, err := h.directory.UpdateEmployee(r.Context(), id, req.toInput())
	if err != nil {
		logger.ErrorContext(r.Context(), "employee update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "employee updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEmployeeDTO(employee))
}

func (h *EmployeeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	actor := actorFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "employee_id", id, "actor", actor)
	if err := h.directory.DeleteEmployee(r.Context(), id, actor); err != nil {
		logger.ErrorContext(r.Context(), "employee delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "employee deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *EmployeeHandler) AssignCard(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req assignCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "AssignCard", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode card assignment", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	actor := actorFromContext(r.Context())
	logger := h.log(r.Context(), "AssignCard", "employee_id", req.EmployeeID, "card_id", req.CardID, "actor", actor)

	employee, err := h.cards.AssignCard(r.Context(), application.AssignCardParams{
		EmployeeID:  strings.TrimSpace(req.EmployeeID),
		CardID:      req.CardID,
		GrantAccess: req.GrantAccess,
		Actor:       actor,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "card assignment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	cardID := req.CardID
	if employee.CardID != nil {
		cardID = *employee.CardID
	}
	logger.InfoContext(r.Context(), "card assigned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, assignCardResponse{
		Message:  fmt.Sprintf("Card %s successfully assigned to %s", cardID, employee.FullName()),
		Employee: toEmployeeDTO(employee),
	})
}

func (h *EmployeeHandler) UnassignCard(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	cardID := strings.TrimSpace(chi.URLParam(r, "cardID"))
	if cardID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingCardID)
		return
	}

	actor := actorFromContext(r.Context())
	logger := h.log(r.Context(), "UnassignCard", "card_id", cardID, "actor", actor)

	released, err := h.cards.UnassignCard(r.Context(), cardID, actor)
	if err != nil {
		logger.ErrorContext(r.Context(), "card unassignment failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !released {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errCardNotBound(cardID))
		return
	}

	logger.InfoContext(r.Context(), "card unassigned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Card %s has been unassigned successfully", cardID),
	})
}

func (h *EmployeeHandler) ByCard(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	cardID := strings.TrimSpace(chi.URLParam(r, "cardID"))

	resolved, found, err := h.cards.ResolveByCard(r.Context(), cardID)
	if err != nil {
		h.log(r.Context(), "ByCard", "card_id", cardID).ErrorContext(r.Context(), "card resolution failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if !found {
		h.responder.writeError(r.Context(), w, http.StatusNotFound, errNoEmployeeForCard(cardID))
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toResolvedEmployeeDTO(resolved))
}

func (h *EmployeeHandler) CardStatus(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	cardID := strings.TrimSpace(chi.URLParam(r, "cardID"))

	status, err := h.access.CardStatus(r.Context(), cardID)
	if err != nil {
		h.log(r.Context(), "CardStatus", "card_id", cardID).ErrorContext(r.Context(), "card status failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toCardStatusResponse(status))
}

func (h *EmployeeHandler) CardHistory(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	cardID := strings.TrimSpace(chi.URLParam(r, "cardID"))

	history, err := h.cards.AssignmentHistory(r.Context(), cardID)
	if err != nil {
		h.log(r.Context(), "CardHistory", "card_id", cardID).ErrorContext(r.Context(), "card history failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, cardHistoryResponse{
		CardID:      cardID,
		Assignments: toCardAssignmentDTOs(history),
	})
}

type employeeRequest struct {
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Position       string  `json:"position"`
	SupervisorID   *string `json:"supervisor_id"`
	WorkScheduleID *string `json:"work_schedule_id"`
	CardID         *string `json:"card_id"`
	AccessGranted  bool    `json:"access_granted"`
}

func (r employeeRequest) toInput() application.EmployeeInput {
	return application.EmployeeInput{
		FirstName:      strings.TrimSpace(r.FirstName),
		LastName:       strings.TrimSpace(r.LastName),
		Position:       strings.TrimSpace(r.Position),
		SupervisorID:   r.SupervisorID,
		WorkScheduleID: r.WorkScheduleID,
		AccessGranted:  r.AccessGranted,
	}
}

func (r employeeRequest) cardID() string {
	if r.CardID == nil {
		return ""
	}
	return strings.TrimSpace(*r.CardID)
}

type assignCardRequest struct {
	EmployeeID  string `json:"employee_id"`
	CardID      string `json:"card_id"`
	GrantAccess bool   `json:"grant_access"`
}

type assignCardResponse struct {
	Message  string      `json:"message"`
	Employee employeeDTO `json:"employee"`
}

type employeeDTO struct {
	ID             string  `json:"id"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	FullName       string  `json:"full_name"`
	Position       string  `json:"position"`
	SupervisorID   *string `json:"supervisor_id,omitempty"`
	WorkScheduleID *string `json:"work_schedule_id,omitempty"`
	CardID         *string `json:"card_id,omitempty"`
	AccessGranted  bool    `json:"access_granted"`
	AccessStatus   string  `json:"access_status"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

func toEmployeeDTO(employee application.Employee) employeeDTO {
	return employeeDTO{
		ID:             employee.ID,
		FirstName:      employee.FirstName,
		LastName:       employee.LastName,
		FullName:       employee.FullName(),
		Position:       employee.Position,
		SupervisorID:   employee.SupervisorID,
		WorkScheduleID: employee.WorkScheduleID,
		CardID:         employee.CardID,
		AccessGranted:  employee.AccessGranted,
		AccessStatus:   string(employee.AccessStatus()),
		CreatedAt:      formatTime(employee.CreatedAt),
		UpdatedAt:      formatTime(employee.UpdatedAt),
	}
}

func toEmployeeDTOs(employees []application.Employee) []employeeDTO {
	out := make([]employeeDTO, 0, len(employees))
	for _, employee := range employees {
		out = append(out, toEmployeeDTO(employee))
	}
	return out
}

type resolvedEmployeeDTO struct {
	employeeDTO
	Supervisor   *supervisorDTO   `json:"supervisor,omitempty"`
	WorkSchedule *workScheduleDTO `json:"work_schedule,omitempty"`
}

func toResolvedEmployeeDTO(resolved application.ResolvedEmployee) resolvedEmployeeDTO {
	dto := resolvedEmployeeDTO{employeeDTO: toEmployeeDTO(resolved.Employee)}
	if resolved.Supervisor != nil {
		supervisor := toSupervisorDTO(*resolved.Supervisor)
		dto.Supervisor = &supervisor
	}
	if resolved.Schedule != nil {
		schedule := toWorkScheduleDTO(*resolved.Schedule)
		dto.WorkSchedule = &schedule
	}
	return dto
}

type cardStatusEmployeeDTO struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Position     string `json:"position"`
	AccessStatus string `json:"access_status"`
}

type cardStatusResponse struct {
	CardID           string                 `json:"card_id"`
	IsAssigned       bool                   `json:"is_assigned"`
	AccessGranted    bool                   `json:"access_granted"`
	AccessLevel      string                 `json:"access_level"`
	Message          string                 `json:"message"`
	Employee         *cardStatusEmployeeDTO `json:"employee"`
	ActiveAssignment *cardAssignmentDTO     `json:"active_assignment,omitempty"`
	LastEvent        *swipeEventDTO         `json:"last_event,omitempty"`
}

func toCardStatusResponse(status application.CardStatus) cardStatusResponse {
	resp := cardStatusResponse{
		CardID:        status.CardID,
		IsAssigned:    status.Assigned,
		AccessGranted: status.Decision.Granted,
		AccessLevel:   string(status.Decision.Level),
		Message:       status.Decision.Reason,
	}
	if employee := status.Decision.Employee; employee != nil {
		resp.Employee = &cardStatusEmployeeDTO{
			ID:           employee.ID,
			FullName:     employee.FullName(),
			Position:     employee.Position,
			AccessStatus: string(employee.AccessStatus()),
		}
	}
	if status.ActiveAssignment != nil {
		assignment := toCardAssignmentDTO(*status.ActiveAssignment)
		resp.ActiveAssignment = &assignment
	}
	if status.LastEvent != nil {
		event := toSwipeEventDTO(*status.LastEvent)
		resp.LastEvent = &event
	}
	return resp
}

type cardAssignmentDTO struct {
	ID           string  `json:"id"`
	CardID       string  `json:"card_id"`
	EmployeeID   string  `json:"employee_id"`
	AssignedAt   string  `json:"assigned_at"`
	AssignedBy   string  `json:"assigned_by"`
	UnassignedAt *string `json:"unassigned_at,omitempty"`
	UnassignedBy *string `json:"unassigned_by,omitempty"`
	Active       bool    `json:"active"`
}

func toCardAssignmentDTO(assignment application.CardAssignment) cardAssignmentDTO {
	return cardAssignmentDTO{
		ID:           assignment.ID,
		CardID:       assignment.CardID,
		EmployeeID:   assignment.EmployeeID,
		AssignedAt:   formatTime(assignment.AssignedAt),
		AssignedBy:   assignment.AssignedBy,
		UnassignedAt: formatTimePtr(assignment.UnassignedAt),
		UnassignedBy: assignment.UnassignedBy,
		Active:       assignment.Active,
	}
}

func toCardAssignmentDTOs(assignments []application.CardAssignment) []cardAssignmentDTO {
	out := make([]cardAssignmentDTO, 0, len(assignments))
	for _, assignment := range assignments {
		out = append(out, toCardAssignmentDTO(assignment))
	}
	return out
}

type cardHistoryResponse struct {
	CardID      string              `json:"card_id"`
	Assignments []cardAssignmentDTO `json:"assignments"`
}
