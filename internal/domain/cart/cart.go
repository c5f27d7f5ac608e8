// Package cart implements the per-user shopping cart. Cart lines are priced
// live from the product record; only checkout freezes prices.
package cart

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

var (
	// ErrNotFound is returned when the user has no cart yet.
	ErrNotFound = apperr.NotFound("cart not found")
	// ErrItemNotFound is returned when a cart line does not exist.
	ErrItemNotFound = apperr.NotFound("cart item not found")
)

// Cart is a user's staging area of intended purchases.
type Cart struct {
	ID     int64
	UserID int64
	// Items are ordered by line id, i.e. insertion order.
	Items []Item
}

// Item is a cart line.
type Item struct {
	ID       int64
	CartID   int64
	Product  product.Product
	Quantity int
}

// Total returns the line total at the product's current price.
func (i Item) Total() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OwnedItem is a cart line together with the user owning its cart.
type OwnedItem struct {
	Item
	OwnerID int64
}

// View is the priced content of a cart.
type View struct {
	CartID   int64
	Items    []Item
	Subtotal decimal.Decimal
	Total    decimal.Decimal
}

// NewView prices the lines of c.
func NewView(c *Cart) *View {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.Total())
	}
	return &View{CartID: c.ID, Items: c.Items, Subtotal: sum, Total: sum}
}

// Repository defines persistence operations for carts and their lines.
type Repository interface {
	// GetOrCreate returns the user's cart with its lines, creating an empty
	// cart first when none exists. Concurrent calls for the same user yield
	// the same cart.
	GetOrCreate(ctx context.Context, userID int64) (*Cart, error)
	// FindByUser returns the user's cart with its lines, or ErrNotFound.
	FindByUser(ctx context.Context, userID int64) (*Cart, error)
	// LockByUser is FindByUser with the cart row locked until the
	// surrounding transaction ends. Every change to the cart's lines takes
	// this lock first.
	LockByUser(ctx context.Context, userID int64) (*Cart, error)
	// GetItem returns a line with its live product and owner, or ErrItemNotFound.
	// The line stays locked until the surrounding transaction ends.
	GetItem(ctx context.Context, itemID int64) (*OwnedItem, error)
	// FindItem returns the line for productID in cartID, or ErrItemNotFound.
	// The line stays locked until the surrounding transaction ends.
	FindItem(ctx context.Context, cartID, productID int64) (*Item, error)
	// SaveItem sets the quantity of the (cartID, productID) line, inserting
	// it when missing, and returns the line id.
	SaveItem(ctx context.Context, cartID, productID int64, quantity int) (int64, error)
	SetItemQuantity(ctx context.Context, itemID int64, quantity int) error
	DeleteItem(ctx context.Context, itemID int64) error
	// Clear deletes every line of the cart.
	Clear(ctx context.Context, cartID int64) error
}
