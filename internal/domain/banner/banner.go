// Package banner manages the hero banners shown on the storefront home page.
package banner

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
)

// ErrNotFound is returned when a requested banner does not exist.
var ErrNotFound = apperr.NotFound("hero banner not found")

// Banner is a promotional slide.
type Banner struct {
	ID           int64
	ImageURL     string
	Title        string
	Subtitle     string
	DisplayOrder int
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Input holds the writable banner fields. Nil DisplayOrder defaults to 0 and
// nil Active defaults to true.
type Input struct {
	ImageURL     string
	Title        string
	Subtitle     string
	DisplayOrder *int
	Active       *bool
}

// Repository defines persistence operations for banners. List orders by
// display order, then id.
type Repository interface {
	List(ctx context.Context, activeOnly bool) ([]Banner, error)
	GetByID(ctx context.Context, id int64) (*Banner, error)
	Create(ctx context.Context, b *Banner) error
	Update(ctx context.Context, b *Banner) error
	Delete(ctx context.Context, id int64) error
}

// Service implements banner display and administration.
type Service struct {
	repo Repository
}

// NewService creates a banner Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListActive returns the banners visible to shoppers.
func (s *Service) ListActive(ctx context.Context) ([]Banner, error) {
	out, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, errors.Wrap(err, "list active banners")
	}
	return out, nil
}

// ListAll returns every banner, including inactive ones.
func (s *Service) ListAll(ctx context.Context, p auth.Principal) ([]Banner, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	out, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, errors.Wrap(err, "list banners")
	}
	return out, nil
}

// Get returns a banner by id.
func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (*Banner, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Create adds a banner.
func (s *Service) Create(ctx context.Context, p auth.Principal, in Input) (*Banner, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	b := &Banner{DisplayOrder: 0, Active: true}
	if err := apply(b, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, errors.Wrap(err, "create banner")
	}
	return b, nil
}

// Update replaces the writable fields of a banner.
func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, in Input) (*Banner, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(b, in); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes a banner.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id int64) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func apply(b *Banner, in Input) error {
	url := strings.TrimSpace(in.ImageURL)
	if url == "" {
		return apperr.Invalid("image URL is required")
	}
	b.ImageURL = url
	b.Title = in.Title
	b.Subtitle = in.Subtitle
	if in.DisplayOrder != nil {
		b.DisplayOrder = *in.DisplayOrder
	}
	if in.Active != nil {
		b.Active = *in.Active
	}
	return nil
}
