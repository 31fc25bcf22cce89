package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/domain"
	"github.com/YelzhanWeb/orderflow/internal/interfaces"
)

type StatusHandler struct {
	service  interfaces.StatusService
	validate *validator.Validate
	logger   logger.Logger
}

func NewStatusHandler(service interfaces.StatusService, logger logger.Logger) *StatusHandler {
	return &StatusHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type UpdateStatusRequest struct {
	Status    string  `json:"status" validate:"required"`
	ActorRole string  `json:"actor_role" validate:"required"`
	ActorID   *int64  `json:"actor_id,omitempty" validate:"omitempty,gt=0"`
	Reason    *string `json:"reason,omitempty" validate:"omitempty,max=255"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type OrderResponse struct {
	ID           int64     `json:"id"`
	Number       string    `json:"order_number"`
	UserID       int64     `json:"user_id"`
	RestaurantID int64     `json:"restaurant_id"`
	TotalAmount  float64   `json:"total_amount"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UpdateStatusResponse struct {
	Order      OrderResponse `json:"order"`
	FromStatus string        `json:"from_status"`
}

type HistoryEntryResponse struct {
	ID          int64     `json:"id"`
	FromStatus  *string   `json:"from_status"`
	ToStatus    string    `json:"to_status"`
	ChangedBy   string    `json:"changed_by"`
	ChangedByID *int64    `json:"changed_by_id,omitempty"`
	Reason      *string   `json:"reason,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type TrackingResponse struct {
	OrderID              int64             `json:"order_id"`
	OrderNumber          string            `json:"order_number"`
	CurrentStatus        string            `json:"current_status"`
	Info                 domain.StatusInfo `json:"status_info"`
	UpdatedAt            time.Time         `json:"updated_at"`
	AvailableTransitions []string          `json:"available_transitions"`
}

type TransitionsResponse struct {
	Status      string   `json:"status"`
	Role        string   `json:"role"`
	Transitions []string `json:"transitions"`
}

const maxBodyBytes = 1 << 20

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *StatusHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE",
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if errs := h.validateRequest(req); len(errs) > 0 {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "VALIDATION_FAILED", Message: "Validation failed", Errors: errs,
		})
		return
	}

	// Неизвестные значения отсекает сервис (INVALID_STATUS / INVALID_ROLE)
	result, err := h.service.UpdateOrderStatus(r.Context(), interfaces.UpdateStatusCommand{
		OrderID:   orderID,
		NewStatus: domain.Status(strings.TrimSpace(req.Status)),
		ActorRole: domain.Role(strings.TrimSpace(req.ActorRole)),
		ActorID:   req.ActorID,
		Reason:    req.Reason,
		Notes:     req.Notes,
	})
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondOK(w, result.Message, UpdateStatusResponse{
		Order:      toOrderResponse(result.Order),
		FromStatus: string(result.FromStatus),
	})
}

// GetOrder handles GET /orders/{id}?role=.
func (h *StatusHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	role, ok := h.optionalRole(w, r)
	if !ok {
		return
	}

	tracking, err := h.service.GetOrderStatus(r.Context(), orderID, role)
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondOK(w, "", TrackingResponse{
		OrderID:              tracking.OrderID,
		OrderNumber:          tracking.OrderNumber,
		CurrentStatus:        string(tracking.CurrentStatus),
		Info:                 tracking.Info,
		UpdatedAt:            tracking.UpdatedAt,
		AvailableTransitions: statusStrings(tracking.AvailableTransitions),
	})
}

// GetHistory handles GET /orders/{id}/history.
func (h *StatusHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	entries, err := h.service.GetOrderStatusHistory(r.Context(), orderID)
	if err != nil {
		respondFailure(w, err)
		return
	}

	resp := make([]HistoryEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = HistoryEntryResponse{
			ID:          e.ID,
			ToStatus:    string(e.ToStatus),
			ChangedBy:   string(e.ChangedBy),
			ChangedByID: e.ChangedByID,
			Reason:      e.Reason,
			Notes:       e.Notes,
			Timestamp:   e.Timestamp,
		}
		if e.FromStatus != nil {
			from := string(*e.FromStatus)
			resp[i].FromStatus = &from
		}
	}
	respondOK(w, "", resp)
}

// GetTransitions handles GET /transitions?status=&role=.
func (h *StatusHandler) GetTransitions(w http.ResponseWriter, r *http.Request) {
	current, err := domain.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		respondFailure(w, err)
		return
	}
	role, err := domain.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		respondFailure(w, err)
		return
	}

	respondOK(w, "", TransitionsResponse{
		Status:      string(current),
		Role:        string(role),
		Transitions: statusStrings(h.service.GetAvailableTransitions(current, role)),
	})
}

// ListStatuses handles GET /statuses.
func (h *StatusHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	respondOK(w, "", domain.Catalog())
}

func (h *StatusHandler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_ORDER_ID", fmt.Sprintf("invalid order id %q", raw))
		return 0, false
	}
	return id, true
}

func (h *StatusHandler) optionalRole(w http.ResponseWriter, r *http.Request) (domain.Role, bool) {
	raw := r.URL.Query().Get("role")
	if raw == "" {
		return "", true
	}
	role, err := domain.ParseRole(raw)
	if err != nil {
		respondFailure(w, err)
		return "", false
	}
	return role, true
}

func (h *StatusHandler) validateRequest(req UpdateStatusRequest) []ValidationError {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Field: "body", Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   jsonFieldName(fe.Field()),
			Message: fmt.Sprintf("failed on the %q rule", fe.Tag()),
		})
	}
	h.logger.Debug("validation_failed", "Status update validation failed", "", map[string]interface{}{"errors": out})
	return out
}

var jsonFieldNames = map[string]string{
	"Status":    "status",
	"ActorRole": "actor_role",
	"ActorID":   "actor_id",
	"Reason":    "reason",
	"Notes":     "notes",
}

func jsonFieldName(field string) string {
	if name, ok := jsonFieldNames[field]; ok {
		return name
	}
	return field
}

func toOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:           o.ID,
		Number:       o.Number,
		UserID:       o.UserID,
		RestaurantID: o.RestaurantID,
		TotalAmount:  o.TotalAmount,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
