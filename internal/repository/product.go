package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/product"
)

const productColumns = `p.id, p.name, p.description, p.price, p.stock, p.image_url,
	p.created_at, p.updated_at, c.id, c.name`

const (
	productFromSQL = ` FROM products p LEFT JOIN categories c ON c.id = p.category_id`

	productFilterSQL = ` WHERE ($1 = '' OR p.name ILIKE $1 OR p.description ILIKE $1)
		AND ($2::bigint = 0 OR p.category_id = $2)
		AND ($3::numeric IS NULL OR p.price >= $3)
		AND ($4::numeric IS NULL OR p.price <= $4)`

	listProductsSQL = `SELECT ` + productColumns + productFromSQL + productFilterSQL +
		` ORDER BY p.id LIMIT $5 OFFSET $6`

	countProductsSQL = `SELECT count(*)` + productFromSQL + productFilterSQL

	getProductByIDSQL = `SELECT ` + productColumns + productFromSQL + ` WHERE p.id = $1`

	lockProductsSQL = `SELECT ` + productColumns + productFromSQL +
		` WHERE p.id = ANY($1) ORDER BY p.id FOR UPDATE OF p`

	createProductSQL = `INSERT INTO products (name, description, price, stock, image_url, category_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, price = $4, stock = $5, image_url = $6, category_id = $7, updated_at = now()
		WHERE id = $1 RETURNING updated_at`

	setStockSQL      = `UPDATE products SET stock = $2, updated_at = now() WHERE id = $1`
	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository that uses db.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns one page of matching products ordered by id, and the total
// number of matches.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, int, error) {
	pattern := ""
	if f.Search != "" {
		pattern = "%" + likeEscaper.Replace(f.Search) + "%"
	}
	args := []any{pattern, f.CategoryID, f.MinPrice, f.MaxPrice}

	var total int
	if err := r.db.q(ctx).QueryRow(ctx, countProductsSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	rows, err := r.db.q(ctx).Query(ctx, listProductsSQL, append(args, f.Size, f.Page*f.Size)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	return items, total, nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// LockByIDs selects the products FOR UPDATE in id order.
func (r *ProductRepository) LockByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.db.q(ctx).Query(ctx, lockProductsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("locking products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.db.q(ctx).QueryRow(ctx, createProductSQL,
		p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.CategoryID(),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	err := r.db.q(ctx).QueryRow(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.ImageURL, p.CategoryID(),
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.ErrNotFound
		}
		return fmt.Errorf("updating product %d: %w", p.ID, err)
	}
	return nil
}

func (r *ProductRepository) SetStock(ctx context.Context, id int64, stock int) error {
	if err := r.db.exec(ctx, product.ErrNotFound, setStockSQL, id, stock); err != nil {
		return fmt.Errorf("setting stock of product %d: %w", id, err)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	if err := r.db.exec(ctx, product.ErrNotFound, deleteProductSQL, id); err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var pr productRow
	if err := row.Scan(pr.dest()...); err != nil {
		return product.Product{}, err
	}
	return pr.product(), nil
}

// productRow holds the scan targets for productColumns.
type productRow struct {
	p       product.Product
	catID   *int64
	catName *string
}

func (r *productRow) dest() []any {
	return []any{
		&r.p.ID, &r.p.Name, &r.p.Description, &r.p.Price, &r.p.Stock, &r.p.ImageURL,
		&r.p.CreatedAt, &r.p.UpdatedAt, &r.catID, &r.catName,
	}
}

func (r *productRow) product() product.Product {
	if r.catID != nil && r.catName != nil {
		r.p.Category = &category.Category{ID: *r.catID, Name: *r.catName}
	}
	return r.p
}
