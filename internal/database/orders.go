package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_no, items, note, status, source, idempotency_key, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...interface{}) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNo,
		&o.Items,
		&o.Note,
		&o.Status,
		&o.Source,
		&o.IdempotencyKey,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (order_no, items, note, source, idempotency_key)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNo        string
	Items          []OrderItem
	Note           pgtype.Text
	Source         string
	IdempotencyKey pgtype.Text
}

// CreateOrder inserts a new pending order. Unique violations on order_no or
// idempotency_key surface as *pgconn.PgError with code 23505.
func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNo,
		arg.Items,
		arg.Note,
		arg.Source,
		arg.IdempotencyKey,
	)
	return scanOrder(row)
}

const getOrderByNumber = `
SELECT ` + orderColumns + ` FROM orders WHERE order_no = $1`

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNo string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, orderNo))
}

const getOrderByID = `
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrderByID(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

const getOrderByIdempotencyKey = `
SELECT ` + orderColumns + ` FROM orders WHERE idempotency_key = $1`

func (q *Queries) GetOrderByIdempotencyKey(ctx context.Context, key string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByIdempotencyKey, key))
}

const listOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListOrdersParams struct {
	Status pgtype.Text
	Limit  int32
	Offset int32
}

// ListOrders returns orders newest-first, optionally filtered by status.
func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const countOrders = `
SELECT count(*) FROM orders WHERE ($1::text IS NULL OR status = $1)`

// CountOrders counts orders matching the optional status filter.
func (q *Queries) CountOrders(ctx context.Context, status pgtype.Text) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countOrders, status).Scan(&n)
	return n, err
}

const updateOrderStatus = `
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	Status string
}

// UpdateOrderStatus overwrites the status unconditionally (last writer wins).
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}

const deleteFinishedOrders = `
DELETE FROM orders WHERE status IN ('completed', 'cancelled')`

// DeleteFinishedOrders removes all completed and cancelled orders and reports
// how many rows were deleted. Pending orders are never touched.
func (q *Queries) DeleteFinishedOrders(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteFinishedOrders)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
