package category

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

var (
	// ErrNotFound is returned when a requested category does not exist.
	ErrNotFound = apperr.NotFound("category not found")
	// ErrDuplicateName is returned when another category already uses the name.
	ErrDuplicateName = apperr.Invalid("category name already exists")
)

// Category groups products in the catalog.
type Category struct {
	ID   int64
	Name string
}

// Repository defines persistence operations for categories. Create and
// Update return ErrDuplicateName on a unique-name violation.
type Repository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id int64) (*Category, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id int64) error
}

// Service implements category browsing and administration.
type Service struct {
	repo Repository
}

// NewService creates a category Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all categories.
func (s *Service) List(ctx context.Context) ([]Category, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return out, nil
}

// Get returns a category by id.
func (s *Service) Get(ctx context.Context, id int64) (*Category, error) {
	return s.repo.GetByID(ctx, id)
}

// Create adds a category with a unique name.
func (s *Service) Create(ctx context.Context, p auth.Principal, name string) (*Category, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("category name is required")
	}

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "check category name")
	}
	if exists {
		return nil, ErrDuplicateName
	}

	c := &Category{Name: name}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update renames a category. Keeping the current name is not a conflict.
func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, name string) (*Category, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Invalid("category name is required")
	}

	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Name != name {
		exists, err := s.repo.ExistsByName(ctx, name)
		if err != nil {
			return nil, errors.Wrap(err, "check category name")
		}
		if exists {
			return nil, ErrDuplicateName
		}
	}

	c.Name = name
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a category. Products in it become uncategorized.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
