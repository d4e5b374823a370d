package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// OrderItem is a single line item, stored inside the orders.items JSONB column.
// Price is optional; when present it is a non-negative decimal.
type OrderItem struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Quantity int32            `json:"qty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// Order is a row in the orders table.
type Order struct {
	ID             uuid.UUID
	OrderNo        string
	Items          []OrderItem
	Note           pgtype.Text
	Status         string
	Source         string
	IdempotencyKey pgtype.Text
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Setting is a row in the app_settings key-value table.
type Setting struct {
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}
