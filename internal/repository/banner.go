package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/banner"
)

const (
	bannerColumns = `id, image_url, title, subtitle, display_order, active, created_at, updated_at`

	listBannersSQL = `SELECT ` + bannerColumns + ` FROM hero_banners
		WHERE active OR NOT $1 ORDER BY display_order, id`

	getBannerByIDSQL = `SELECT ` + bannerColumns + ` FROM hero_banners WHERE id = $1`

	createBannerSQL = `INSERT INTO hero_banners (image_url, title, subtitle, display_order, active)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`

	updateBannerSQL = `UPDATE hero_banners
		SET image_url = $2, title = $3, subtitle = $4, display_order = $5, active = $6, updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	deleteBannerSQL = `DELETE FROM hero_banners WHERE id = $1`
)

var _ banner.Repository = (*BannerRepository)(nil)

// BannerRepository implements banner.Repository backed by PostgreSQL.
type BannerRepository struct {
	db *DB
}

// NewBannerRepository returns a BannerRepository that uses db.
func NewBannerRepository(db *DB) *BannerRepository {
	return &BannerRepository{db: db}
}

func (r *BannerRepository) List(ctx context.Context, activeOnly bool) ([]banner.Banner, error) {
	rows, err := r.db.q(ctx).Query(ctx, listBannersSQL, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("listing banners: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[banner.Banner])
}

func (r *BannerRepository) GetByID(ctx context.Context, id int64) (*banner.Banner, error) {
	rows, err := r.db.q(ctx).Query(ctx, getBannerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting banner %d: %w", id, err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[banner.Banner])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, banner.ErrNotFound
		}
		return nil, fmt.Errorf("getting banner %d: %w", id, err)
	}
	return &b, nil
}

func (r *BannerRepository) Create(ctx context.Context, b *banner.Banner) error {
	err := r.db.q(ctx).QueryRow(ctx, createBannerSQL,
		b.ImageURL, b.Title, b.Subtitle, b.DisplayOrder, b.Active,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating banner: %w", err)
	}
	return nil
}

func (r *BannerRepository) Update(ctx context.Context, b *banner.Banner) error {
	err := r.db.q(ctx).QueryRow(ctx, updateBannerSQL,
		b.ID, b.ImageURL, b.Title, b.Subtitle, b.DisplayOrder, b.Active,
	).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return banner.ErrNotFound
		}
		return fmt.Errorf("updating banner %d: %w", b.ID, err)
	}
	return nil
}

func (r *BannerRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.exec(ctx, banner.ErrNotFound, deleteBannerSQL, id); err != nil {
		return fmt.Errorf("deleting banner %d: %w", id, err)
	}
	return nil
}
