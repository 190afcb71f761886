package db

import (
	"context"

	"github.com/google/uuid"
)

const orderColumns = `id, buyer_id, vendor_id, status, payment_status, payment_reference, total_kobo, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.BuyerID,
		&i.VendorID,
		&i.Status,
		&i.PaymentStatus,
		&i.PaymentReference,
		&i.TotalKobo,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `
INSERT INTO orders (buyer_id, vendor_id, payment_reference, total_kobo)
VALUES ($1, $2, $3, $4)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	BuyerID          uuid.UUID `json:"buyer_id"`
	VendorID         uuid.UUID `json:"vendor_id"`
	PaymentReference *string   `json:"payment_reference"`
	TotalKobo        int64     `json:"total_kobo"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder, arg.BuyerID, arg.VendorID, arg.PaymentReference, arg.TotalKobo))
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByReference = `SELECT ` + orderColumns + ` FROM orders WHERE payment_reference = $1`

func (q *Queries) GetOrderByReference(ctx context.Context, reference string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByReference, reference))
}

const listOrdersByVendor = `
SELECT ` + orderColumns + `
FROM orders
WHERE vendor_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListOrdersByVendorParams struct {
	VendorID uuid.UUID `json:"vendor_id"`
	Limit    int64     `json:"limit"`
	Offset   int64     `json:"offset"`
}

func (q *Queries) ListOrdersByVendor(ctx context.Context, arg ListOrdersByVendorParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByVendor, arg.VendorID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `
UPDATE orders SET status = $2, updated_at = NOW()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}

const updateOrderPayment = `
UPDATE orders SET status = $2, payment_status = $3, updated_at = NOW()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderPaymentParams struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
}

func (q *Queries) UpdateOrderPayment(ctx context.Context, arg UpdateOrderPaymentParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderPayment, arg.ID, arg.Status, arg.PaymentStatus))
}
