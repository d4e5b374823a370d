package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/morinoya/order-api/internal/database"
	"github.com/morinoya/order-api/internal/enum"
	mw "github.com/morinoya/order-api/internal/middleware"
	"github.com/morinoya/order-api/internal/service"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// OrderStore defines the database methods needed by order read/update handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrderByNumber(ctx context.Context, orderNo string) (database.Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	CountOrders(ctx context.Context, status pgtype.Text) (int64, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	DeleteFinishedOrders(ctx context.Context) (int64, error)
}

// ChangePublisher pushes order change events to the admin change feed.
// Satisfied by *notify.Notifier.
type ChangePublisher interface {
	OrderChanged(eventType string, payload interface{})
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	store  OrderStore
	events ChangePublisher
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore, events ChangePublisher) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, events: events}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /api/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.With(mw.RequireAdmin).Post("/reset", h.Reset)
	r.Get("/{ref}", h.Get)
	r.Patch("/{ref}", h.UpdateStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items []createOrderItemRequest `json:"items"`
	Note  string                   `json:"note"`
}

type createOrderItemRequest struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Quantity int32       `json:"qty"`
	Price    json.Number `json:"price"`
}

type orderResponse struct {
	ID        uuid.UUID            `json:"id"`
	OrderNo   string               `json:"order_no"`
	Items     []database.OrderItem `json:"items"`
	Note      *string              `json:"note"`
	Status    string               `json:"status"`
	Source    string               `json:"source"`
	Urgency   string               `json:"urgency,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// orderListResponse wraps a page of orders. pending_count covers all pending
// orders regardless of the active filter; the dashboard badge relies on that.
type orderListResponse struct {
	OK           bool            `json:"ok"`
	Items        []orderResponse `json:"items"`
	TotalCount   int64           `json:"total_count"`
	PendingCount int64           `json:"pending_count"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateOrderItemRequest{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price.String(),
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		Items:          items,
		Note:           req.Note,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderingStopped):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrOrderNoExhausted):
			log.Printf("ERROR: create order: %v", err)
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("ERROR: create order: %v", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	resp := toOrderResponse(result.Order, time.Now())
	status := http.StatusCreated
	if result.Replayed {
		// No row was inserted; nothing changed for the dashboards either.
		status = http.StatusOK
	} else {
		h.events.OrderChanged(enum.EventOrderCreated, map[string]string{
			"order_no": resp.OrderNo,
			"status":   resp.Status,
		})
	}

	writeJSON(w, status, map[string]interface{}{
		"ok":       true,
		"order":    resp,
		"order_no": resp.OrderNo,
	})
}

// List handles GET /api/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := pgtype.Text{}
	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidOrderStatus(s) {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		filter = pgtype.Text{String: s, Valid: true}
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	if offset > math.MaxInt32 {
		// Anything past here is an empty page anyway; clamping keeps the
		// int32 cast from wrapping negative.
		offset = math.MaxInt32
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{
		Status: filter,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	total, err := h.store.CountOrders(r.Context(), filter)
	if err != nil {
		log.Printf("ERROR: count orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	pending, err := h.store.CountOrders(r.Context(), pgtype.Text{String: enum.OrderStatusPending, Valid: true})
	if err != nil {
		log.Printf("ERROR: count pending orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now()
	items := make([]orderResponse, len(orders))
	for i, o := range orders {
		items[i] = toOrderResponse(o, now)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		OK:           true,
		Items:        items,
		TotalCount:   total,
		PendingCount: pending,
	})
}

// Get handles GET /api/orders/{ref}, where ref is an order_no or an order id.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.resolveOrder(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"item": toOrderResponse(order, time.Now()),
	})
}

// UpdateStatus handles PATCH /api/orders/{ref}.
// The overwrite is unconditional: any status can be set over any other, and
// concurrent updates resolve as last writer wins.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}
	if !isValidOrderStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	order, err := h.resolveOrder(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: get order for status update: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Deleted between lookup and update
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.events.OrderChanged(enum.EventOrderUpdated, map[string]string{
		"order_no": updated.OrderNo,
		"status":   updated.Status,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    true,
		"order": toOrderResponse(updated, time.Now()),
	})
}

// Reset handles POST /api/orders/reset (admin only). Deletes every completed
// and cancelled order; pending orders survive. Calling it twice is harmless.
func (h *OrderHandler) Reset(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.store.DeleteFinishedOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: reset orders: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.events.OrderChanged(enum.EventOrdersReset, map[string]int64{"deleted": deleted})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"deleted": deleted,
	})
}

// --- Helpers ---

// resolveOrder looks up by order_no first; when that misses and ref parses as
// a UUID, it falls back to lookup by id. An order_no that happens to look like
// a UUID would shadow the id lookup; accepted as a known edge case.
func (h *OrderHandler) resolveOrder(ctx context.Context, ref string) (database.Order, error) {
	order, err := h.store.GetOrderByNumber(ctx, ref)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, err
	}
	id, parseErr := uuid.Parse(ref)
	if parseErr != nil {
		return database.Order{}, pgx.ErrNoRows
	}
	return h.store.GetOrderByID(ctx, id)
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrItemID) ||
		errors.Is(err, service.ErrItemName) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidPrice) ||
		errors.Is(err, service.ErrNoteTooLong)
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusCompleted, enum.OrderStatusCancelled:
		return true
	}
	return false
}

func toOrderResponse(o database.Order, now time.Time) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		OrderNo:   o.OrderNo,
		Items:     o.Items,
		Status:    o.Status,
		Source:    o.Source,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	if o.Note.Valid {
		resp.Note = &o.Note.String
	}
	if o.Status == enum.OrderStatusPending {
		resp.Urgency = service.UrgencyFor(o.CreatedAt, now)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"ok": false, "error": msg})
}
