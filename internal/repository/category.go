package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/category"
)

const (
	listCategoriesSQL    = `SELECT id, name FROM categories ORDER BY id`
	getCategoryByIDSQL   = `SELECT id, name FROM categories WHERE id = $1`
	categoryNameTakenSQL = `SELECT EXISTS (SELECT 1 FROM categories WHERE name = $1)`
	createCategorySQL    = `INSERT INTO categories (name) VALUES ($1) RETURNING id`
	updateCategorySQL    = `UPDATE categories SET name = $2 WHERE id = $1`
	deleteCategorySQL    = `DELETE FROM categories WHERE id = $1`
)

var _ category.Repository = (*CategoryRepository)(nil)

// CategoryRepository implements category.Repository backed by PostgreSQL.
type CategoryRepository struct {
	db *DB
}

// NewCategoryRepository returns a CategoryRepository that uses db.
func NewCategoryRepository(db *DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	rows, err := r.db.q(ctx).Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[category.Category])
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*category.Category, error) {
	rows, err := r.db.q(ctx).Query(ctx, getCategoryByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[category.Category])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, category.ErrNotFound
		}
		return nil, fmt.Errorf("getting category %d: %w", id, err)
	}
	return &c, nil
}

func (r *CategoryRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var taken bool
	if err := r.db.q(ctx).QueryRow(ctx, categoryNameTakenSQL, name).Scan(&taken); err != nil {
		return false, fmt.Errorf("checking category name: %w", err)
	}
	return taken, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	err := r.db.q(ctx).QueryRow(ctx, createCategorySQL, c.Name).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return category.ErrDuplicateName
		}
		return fmt.Errorf("creating category: %w", err)
	}
	return nil
}

func (r *CategoryRepository) Update(ctx context.Context, c *category.Category) error {
	err := r.db.exec(ctx, category.ErrNotFound, updateCategorySQL, c.ID, c.Name)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return category.ErrDuplicateName
	case errors.Is(err, category.ErrNotFound):
		return err
	default:
		return fmt.Errorf("updating category %d: %w", c.ID, err)
	}
}

// Delete removes the category; its products become uncategorized.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.exec(ctx, category.ErrNotFound, deleteCategorySQL, id); err != nil {
		return fmt.Errorf("deleting category %d: %w", id, err)
	}
	return nil
}
