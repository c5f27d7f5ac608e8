package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/category"
)

const (
	defaultPageSize = 12
	maxPageSize     = 100
)

// CategoryLookup resolves category references on product writes.
type CategoryLookup interface {
	GetByID(ctx context.Context, id int64) (*category.Category, error)
}

// Input holds the writable fields of a product.
type Input struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	CategoryID  *int64
}

// Service implements catalog browsing and product administration.
type Service struct {
	repo       Repository
	categories CategoryLookup
}

// NewService creates a product Service.
func NewService(repo Repository, categories CategoryLookup) *Service {
	return &Service{repo: repo, categories: categories}
}

// List returns one page of products matching f.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Page < 0 {
		f.Page = 0
	}
	switch {
	case f.Size <= 0:
		f.Size = defaultPageSize
	case f.Size > maxPageSize:
		f.Size = maxPageSize
	}
	f.Search = strings.TrimSpace(f.Search)

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return &Page{
		Content:       items,
		TotalElements: total,
		TotalPages:    (total + f.Size - 1) / f.Size,
		Size:          f.Size,
		Number:        f.Page,
	}, nil
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// Create adds a product to the catalog.
func (s *Service) Create(ctx context.Context, p auth.Principal, in Input) (*Product, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	prod := &Product{}
	if err := s.apply(ctx, prod, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, prod); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return prod, nil
}

// Update replaces the writable fields of an existing product.
func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, in Input) (*Product, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	prod, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, prod, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, prod); err != nil {
		return nil, err
	}
	return prod, nil
}

// Delete removes a product. Order history keeps its snapshot lines.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// maxPrice is the first price that no longer fits NUMERIC(10,2).
var maxPrice = decimal.New(1, 8)

func (s *Service) apply(ctx context.Context, prod *Product, in Input) error {
	name := strings.TrimSpace(in.Name)
	price := in.Price.Round(2)
	switch {
	case name == "":
		return apperr.Invalid("product name is required")
	case in.Price.IsNegative():
		return apperr.Invalid("price must not be negative")
	case price.GreaterThanOrEqual(maxPrice):
		return apperr.Invalid("price must be less than 100000000")
	case in.Stock < 0:
		return apperr.Invalid("stock must not be negative")
	}

	prod.Category = nil
	if in.CategoryID != nil {
		c, err := s.categories.GetByID(ctx, *in.CategoryID)
		if err != nil {
			return err
		}
		prod.Category = c
	}

	prod.Name = name
	prod.Description = in.Description
	prod.Price = price
	prod.Stock = in.Stock
	prod.ImageURL = in.ImageURL
	return nil
}
