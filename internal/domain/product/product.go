package product

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/category"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = apperr.NotFound("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	// Category is nil for uncategorized products.
	Category  *category.Category
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CategoryID returns the id of the product's category, or nil.
func (p *Product) CategoryID() *int64 {
	if p.Category == nil {
		return nil
	}
	id := p.Category.ID
	return &id
}

// Filter narrows a product listing. Zero values mean "no constraint".
type Filter struct {
	Search     string
	CategoryID int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Page       int
	Size       int
}

// Page is one page of a filtered listing.
type Page struct {
	Content       []Product
	TotalElements int
	TotalPages    int
	Size          int
	Number        int
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	// List returns the requested page and the total number of matches.
	List(ctx context.Context, f Filter) ([]Product, int, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	// LockByIDs returns the products with the given ids and holds a row lock
	// on each of them until the surrounding transaction ends.
	LockByIDs(ctx context.Context, ids []int64) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	// SetStock overwrites the stock of a product.
	SetStock(ctx context.Context, id int64, stock int) error
	Delete(ctx context.Context, id int64) error
}
