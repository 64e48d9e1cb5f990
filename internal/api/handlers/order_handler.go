package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"store-service/internal/models"
)

type OrderAssembler interface {
	CreateOrder(ctx context.Context, username string, lines []models.LineRequest) (*models.Order, error)
	FindOrdersByUsername(ctx context.Context, username string) ([]models.Order, error)
	FindOrderByID(ctx context.Context, id int64) (*models.Order, error)
	DeleteOrderByID(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}

type OrderHandler struct {
	orders OrderAssembler
	log    *slog.Logger
}

func NewOrderHandler(orders OrderAssembler, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: logger}
}

type CreateOrderRequest struct {
	Items []models.LineRequest `json:"items"`
}

// Create places an order for the authenticated user.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	var req CreateOrderRequest
	if ok := decodeJSON(w, r, &req); !ok {
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), principal.Username, req.Items)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	w.Header().Set("Location", "/orders/"+strconv.FormatInt(order.ID, 10))
	writeJSON(w, http.StatusCreated, order)
}

func (h *OrderHandler) Mine(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		unauthorized(w)
		return
	}

	orders, err := h.orders.FindOrdersByUsername(r.Context(), principal.Username)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	order, ok := h.owned(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	order, ok := h.owned(w, r)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrderByID(r.Context(), order.ID); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

func (h *OrderHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.DeleteAll(r.Context()); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// owned loads the {id} order and checks it belongs to the caller. Orders of
// other users answer 403, admins included.
func (h *OrderHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Order, bool) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		unauthorized(w)
		return nil, false
	}

	id, ok := idParam(w, r, "order")
	if !ok {
		return nil, false
	}

	order, err := h.orders.FindOrderByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return nil, false
	}

	if order.Username != principal.Username {
		h.log.WarnContext(r.Context(), "order access denied",
			"order_id", id,
			"owner", order.Username,
			"username", principal.Username,
		)
		writeError(w, http.StatusForbidden, "forbidden", "order belongs to another user", nil)
		return nil, false
	}

	return order, true
}
