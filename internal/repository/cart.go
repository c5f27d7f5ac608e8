package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	ensureCartSQL   = `INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	findCartSQL     = `SELECT id FROM carts WHERE user_id = $1`
	lockCartSQL     = findCartSQL + ` FOR UPDATE`
	cartItemFromSQL = ` FROM cart_items ci
		JOIN carts ca ON ca.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id`

	cartItemSelectSQL = `SELECT ci.id, ci.cart_id, ci.quantity, ca.user_id, ` + productColumns + cartItemFromSQL

	listCartItemsSQL = cartItemSelectSQL + ` WHERE ci.cart_id = $1 ORDER BY ci.id`
	getCartItemSQL   = cartItemSelectSQL + ` WHERE ci.id = $1 FOR UPDATE OF ci`
	findCartItemSQL  = cartItemSelectSQL + ` WHERE ci.cart_id = $1 AND ci.product_id = $2 FOR UPDATE OF ci`

	saveCartItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id`

	setCartItemQuantitySQL = `UPDATE cart_items SET quantity = $2 WHERE id = $1`
	deleteCartItemSQL      = `DELETE FROM cart_items WHERE id = $1`
	clearCartSQL           = `DELETE FROM cart_items WHERE cart_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db *DB
}

// NewCartRepository returns a CartRepository that uses db.
func NewCartRepository(db *DB) *CartRepository {
	return &CartRepository{db: db}
}

// GetOrCreate relies on the unique user_id constraint so that concurrent
// first accesses converge on one cart.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID int64) (*cart.Cart, error) {
	if _, err := r.db.q(ctx).Exec(ctx, ensureCartSQL, userID); err != nil {
		return nil, fmt.Errorf("creating cart for user %d: %w", userID, err)
	}
	return r.FindByUser(ctx, userID)
}

func (r *CartRepository) FindByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	return r.load(ctx, findCartSQL, userID)
}

func (r *CartRepository) LockByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	return r.load(ctx, lockCartSQL, userID)
}

func (r *CartRepository) load(ctx context.Context, sql string, userID int64) (*cart.Cart, error) {
	c := &cart.Cart{UserID: userID}
	if err := r.db.q(ctx).QueryRow(ctx, sql, userID).Scan(&c.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("finding cart of user %d: %w", userID, err)
	}

	rows, err := r.db.q(ctx).Query(ctx, listCartItemsSQL, c.ID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	owned, err := pgx.CollectRows(rows, scanCartItem)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	c.Items = make([]cart.Item, 0, len(owned))
	for _, it := range owned {
		c.Items = append(c.Items, it.Item)
	}
	return c, nil
}

func (r *CartRepository) GetItem(ctx context.Context, itemID int64) (*cart.OwnedItem, error) {
	return r.oneItem(ctx, getCartItemSQL, itemID)
}

func (r *CartRepository) FindItem(ctx context.Context, cartID, productID int64) (*cart.Item, error) {
	it, err := r.oneItem(ctx, findCartItemSQL, cartID, productID)
	if err != nil {
		return nil, err
	}
	return &it.Item, nil
}

func (r *CartRepository) oneItem(ctx context.Context, sql string, args ...any) (*cart.OwnedItem, error) {
	rows, err := r.db.q(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting cart item: %w", err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("getting cart item: %w", err)
	}
	return &it, nil
}

func (r *CartRepository) SaveItem(ctx context.Context, cartID, productID int64, quantity int) (int64, error) {
	var id int64
	if err := r.db.q(ctx).QueryRow(ctx, saveCartItemSQL, cartID, productID, quantity).Scan(&id); err != nil {
		return 0, fmt.Errorf("saving cart item: %w", err)
	}
	return id, nil
}

func (r *CartRepository) SetItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	if err := r.db.exec(ctx, cart.ErrItemNotFound, setCartItemQuantitySQL, itemID, quantity); err != nil {
		return fmt.Errorf("updating cart item %d: %w", itemID, err)
	}
	return nil
}

func (r *CartRepository) DeleteItem(ctx context.Context, itemID int64) error {
	if err := r.db.exec(ctx, cart.ErrItemNotFound, deleteCartItemSQL, itemID); err != nil {
		return fmt.Errorf("deleting cart item %d: %w", itemID, err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, cartID int64) error {
	if _, err := r.db.q(ctx).Exec(ctx, clearCartSQL, cartID); err != nil {
		return fmt.Errorf("clearing cart %d: %w", cartID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.OwnedItem, error) {
	var (
		it cart.OwnedItem
		pr productRow
	)
	dest := append([]any{&it.ID, &it.CartID, &it.Quantity, &it.OwnerID}, pr.dest()...)
	if err := row.Scan(dest...); err != nil {
		return cart.OwnedItem{}, err
	}
	it.Product = pr.product()
	return it, nil
}
