package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = apperr.NotFound("order not found")

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// ParseStatus converts s into a Status. Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusPending, StatusPaid, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", apperr.Invalid("unknown order status %q", s)
	}
}

// PaymentStatus records whether the order has been settled.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

// Order is a placed order. Items and TotalAmount never change after
// creation; only Status and PaymentStatus do.
type Order struct {
	ID            int64
	UserID        int64
	UserName      string
	TotalAmount   decimal.Decimal
	Status        Status
	PaymentMethod string
	PaymentStatus PaymentStatus
	Address       string
	Phone         string
	CreatedAt     time.Time
	Items         []Item
}

// Item is an immutable snapshot of a purchased product.
type Item struct {
	ID int64
	// ProductID is nil once the product has been deleted.
	ProductID   *int64
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// Total returns the line total at the snapshotted unit price.
func (i Item) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create inserts the order with its items and fills in generated ids and
	// the creation timestamp.
	Create(ctx context.Context, o *Order) error
	// GetByID returns the order with its items and owner name, or ErrNotFound.
	GetByID(ctx context.Context, id int64) (*Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// ListAll returns every order, newest first.
	ListAll(ctx context.Context) ([]Order, error)
	// SetStatus overwrites the status pair of an order, or returns ErrNotFound.
	SetStatus(ctx context.Context, id int64, status Status, payment PaymentStatus) error
}
