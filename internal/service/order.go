package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/morinoya/order-api/internal/database"
	"github.com/morinoya/order-api/internal/enum"
)

const (
	maxOrderNoRetries = 10
	maxNoteLength     = 500
)

// Errors returned by the order service.
var (
	ErrEmptyItems       = errors.New("items are required")
	ErrItemID           = errors.New("item id is required")
	ErrItemName         = errors.New("item name is required")
	ErrInvalidQuantity  = errors.New("qty must be a positive integer")
	ErrInvalidPrice     = errors.New("price must be a non-negative number")
	ErrNoteTooLong      = errors.New("note must be 500 characters or fewer")
	ErrOrderingStopped  = errors.New("ordering is currently stopped")
	ErrOrderNoExhausted = errors.New("could not allocate a unique order number")
)

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (database.Order, error)
	GetSetting(ctx context.Context, key string) (database.Setting, error)
}

// CreateOrderItemRequest is a single item in the order. Price is an optional
// decimal string; empty means no price was supplied.
type CreateOrderItemRequest struct {
	ID       string
	Name     string
	Quantity int32
	Price    string
}

// CreateOrderRequest is the input for creating an order.
type CreateOrderRequest struct {
	Items          []CreateOrderItemRequest
	Note           string
	IdempotencyKey string
}

// CreateOrderResult is the created (or replayed) order.
type CreateOrderResult struct {
	Order database.Order
	// Replayed is true when an existing order was returned because the same
	// idempotency key was seen before. No row was inserted in that case.
	Replayed bool
}

// OrderService handles order creation business logic.
type OrderService struct {
	store  OrderStore
	format string
}

// NewOrderService creates a new OrderService. format is one of the
// enum.OrderNoFormat* constants and controls the order number shape.
func NewOrderService(store OrderStore, format string) *OrderService {
	return &OrderService{store: store, format: format}
}

// CreateOrder handles idempotent replays, validates the request, checks the
// global stop flag, and inserts a new pending order with a unique order
// number. On an order_no collision the insert is retried with a fresh random
// suffix, up to maxOrderNoRetries attempts.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	// Idempotent replay wins over everything else: a repeated create with the
	// same key returns the original order even when the retried payload
	// differs, fails validation, or ordering has been stopped since.
	if req.IdempotencyKey != "" {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return &CreateOrderResult{Order: existing, Replayed: true}, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	items, err := validateItems(req.Items)
	if err != nil {
		return nil, err
	}

	if utf8.RuneCountInString(req.Note) > maxNoteLength {
		return nil, ErrNoteTooLong
	}

	stopped, err := s.orderingStopped(ctx)
	if err != nil {
		return nil, err
	}
	if stopped {
		return nil, ErrOrderingStopped
	}

	note := pgtype.Text{}
	if req.Note != "" {
		note = pgtype.Text{String: req.Note, Valid: true}
	}
	idemKey := pgtype.Text{}
	if req.IdempotencyKey != "" {
		idemKey = pgtype.Text{String: req.IdempotencyKey, Valid: true}
	}

	for attempt := 0; attempt < maxOrderNoRetries; attempt++ {
		order, err := s.store.CreateOrder(ctx, database.CreateOrderParams{
			OrderNo:        NextOrderNumber(s.format),
			Items:          items,
			Note:           note,
			Source:         enum.OrderSourceWeb,
			IdempotencyKey: idemKey,
		})
		if err == nil {
			return &CreateOrderResult{Order: order}, nil
		}
		if isUniqueViolation(err, "orders_order_no_key") {
			continue
		}
		if req.IdempotencyKey != "" && isUniqueViolation(err, "orders_idempotency_key_key") {
			// Lost the race against a concurrent create with the same key.
			// Exactly one row exists; return it to both callers.
			existing, lookupErr := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr != nil {
				return nil, fmt.Errorf("lookup idempotency key after conflict: %w", lookupErr)
			}
			return &CreateOrderResult{Order: existing, Replayed: true}, nil
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	return nil, ErrOrderNoExhausted
}

// orderingStopped reads the order_stop flag. A missing settings row means
// ordering is open; a store error propagates so it is not mistaken for "open".
func (s *OrderService) orderingStopped(ctx context.Context) (bool, error) {
	setting, err := s.store.GetSetting(ctx, enum.SettingOrderStop)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read stop flag: %w", err)
	}
	flag, err := DecodeStopFlag(setting.Value)
	if err != nil {
		return false, fmt.Errorf("decode stop flag: %w", err)
	}
	return flag, nil
}

func validateItems(items []CreateOrderItemRequest) ([]database.OrderItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	out := make([]database.OrderItem, len(items))
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrItemID)
		}
		if item.Name == "" {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrItemName)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}

		out[i] = database.OrderItem{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
		}
		if item.Price != "" {
			price, err := decimal.NewFromString(item.Price)
			if err != nil || price.IsNegative() {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidPrice)
			}
			out[i].Price = &price
		}
	}
	return out, nil
}

// isUniqueViolation checks for a pg unique constraint violation (code 23505)
// on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
