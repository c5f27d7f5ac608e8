package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
)

// Seeder loads reference data idempotently: running it twice leaves the
// same rows in place.
type Seeder struct {
	db *DB
}

// NewSeeder creates a Seeder.
func NewSeeder(db *DB) *Seeder {
	return &Seeder{db: db}
}

const upsertCategorySQL = `
INSERT INTO categories (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id`

// Category returns the id of the named category, creating it when missing.
func (s *Seeder) Category(ctx context.Context, name string) (int64, error) {
	var id int64
	if err := s.db.q(ctx).QueryRow(ctx, upsertCategorySQL, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upserting category %q: %w", name, err)
	}
	return id, nil
}

// SeedProduct is a catalog entry keyed by name.
type SeedProduct struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	CategoryID  *int64
}

const insertProductSQL = `
INSERT INTO products (name, description, price, stock, image_url, category_id)
SELECT $1, $2, $3, $4, $5, $6
WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $1)`

// Product inserts p unless a product with the same name exists. It reports
// whether a row was inserted.
func (s *Seeder) Product(ctx context.Context, p SeedProduct) (bool, error) {
	tag, err := s.db.q(ctx).Exec(ctx, insertProductSQL,
		p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.CategoryID)
	if err != nil {
		return false, fmt.Errorf("inserting product %q: %w", p.Name, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SeedBanner is a hero banner keyed by image URL.
type SeedBanner struct {
	ImageURL     string
	Title        string
	Subtitle     string
	DisplayOrder int
	Active       bool
}

const insertBannerSQL = `
INSERT INTO hero_banners (image_url, title, subtitle, display_order, active)
SELECT $1, $2, $3, $4, $5
WHERE NOT EXISTS (SELECT 1 FROM hero_banners WHERE image_url = $1)`

// Banner inserts b unless a banner with the same image exists.
func (s *Seeder) Banner(ctx context.Context, b SeedBanner) (bool, error) {
	tag, err := s.db.q(ctx).Exec(ctx, insertBannerSQL, b.ImageURL, b.Title, b.Subtitle, b.DisplayOrder, b.Active)
	if err != nil {
		return false, fmt.Errorf("inserting banner %q: %w", b.ImageURL, err)
	}
	return tag.RowsAffected() == 1, nil
}

const upsertUserSQL = `
INSERT INTO users (email, name, role) VALUES ($1, $2, $3)
ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role
RETURNING id`

const upsertAPIKeySQL = `
INSERT INTO api_keys (key_hash, user_id) VALUES ($1, $2)
ON CONFLICT (key_hash) DO UPDATE SET user_id = EXCLUDED.user_id, active = TRUE`

// User upserts a user by email and binds the hashed API key to it.
func (s *Seeder) User(ctx context.Context, email, name string, role auth.Role, keyHash string) (int64, error) {
	var id int64
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.db.q(ctx).QueryRow(ctx, upsertUserSQL, email, name, string(role)).Scan(&id); err != nil {
			return fmt.Errorf("upserting user %q: %w", email, err)
		}
		if _, err := s.db.q(ctx).Exec(ctx, upsertAPIKeySQL, keyHash, id); err != nil {
			return fmt.Errorf("upserting api key of %q: %w", email, err)
		}
		return nil
	})
	return id, err
}
