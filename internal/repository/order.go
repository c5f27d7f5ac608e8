package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (user_id, total_amount, status, payment_method, payment_status, address, phone)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	orderSelectSQL = `SELECT o.id, o.user_id, u.name, o.total_amount, o.status, o.payment_method,
		o.payment_status, o.address, o.phone, o.created_at
		FROM orders o JOIN users u ON u.id = o.user_id`

	getOrderByIDSQL   = orderSelectSQL + ` WHERE o.id = $1`
	listUserOrdersSQL = orderSelectSQL + ` WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id DESC`
	listOrdersSQL     = orderSelectSQL + ` ORDER BY o.created_at DESC, o.id DESC`

	listOrderItemsSQL = `SELECT order_id, id, product_id, product_name, unit_price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	setOrderStatusSQL = `UPDATE orders SET status = $2, payment_status = $3 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository that uses db.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts the order header and queues every item insert in a single
// batch. It must run inside DB.InTx to be atomic.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	q := r.db.q(ctx)
	err := q.QueryRow(ctx, createOrderSQL,
		o.UserID, o.TotalAmount, string(o.Status), o.PaymentMethod, string(o.PaymentStatus), o.Address, o.Phone,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		batch.Queue(createOrderItemSQL, o.ID, it.ProductID, it.ProductName, it.UnitPrice, it.Quantity).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&it.ID)
			})
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("creating items of order %d: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	orders, err := r.list(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	if len(orders) == 0 {
		return nil, order.ErrNotFound
	}
	return &orders[0], nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	orders, err := r.list(ctx, listUserOrdersSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %d: %w", userID, err)
	}
	return orders, nil
}

func (r *OrderRepository) ListAll(ctx context.Context) ([]order.Order, error) {
	orders, err := r.list(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) SetStatus(ctx context.Context, id int64, status order.Status, payment order.PaymentStatus) error {
	if err := r.db.exec(ctx, order.ErrNotFound, setOrderStatusSQL, id, string(status), string(payment)); err != nil {
		return fmt.Errorf("setting status of order %d: %w", id, err)
	}
	return nil
}

// list loads the orders selected by sql and attaches their items.
func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "scan orders")
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err = r.db.q(ctx).Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "query order items")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID int64
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ID, &it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		o := &orders[index[orderID]]
		o.Items = append(o.Items, it)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o              order.Order
		status, paySts string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.UserName, &o.TotalAmount, &status, &o.PaymentMethod,
		&paySts, &o.Address, &o.Phone, &o.CreatedAt)
	o.Status = order.Status(status)
	o.PaymentStatus = order.PaymentStatus(paySts)
	return o, err
}
