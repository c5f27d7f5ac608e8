package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/txn"
)

// ErrInsufficientStock is returned when a requested quantity exceeds stock.
var ErrInsufficientStock = apperr.Invalid("insufficient stock")

// ProductLookup reads live product state.
type ProductLookup interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
}

// Service implements cart operations for the calling user.
type Service struct {
	tx       txn.Runner
	carts    Repository
	products ProductLookup
}

// NewService creates a cart Service.
func NewService(tx txn.Runner, carts Repository, products ProductLookup) *Service {
	return &Service{tx: tx, carts: carts, products: products}
}

// GetOrCreate returns the caller's cart, creating it on first access.
func (s *Service) GetOrCreate(ctx context.Context, p auth.Principal) (*Cart, error) {
	if err := p.RequireUser(); err != nil {
		return nil, err
	}
	c, err := s.carts.GetOrCreate(ctx, p.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create cart")
	}
	return c, nil
}

// View returns the caller's cart lines with subtotal and total.
func (s *Service) View(ctx context.Context, p auth.Principal) (*View, error) {
	c, err := s.GetOrCreate(ctx, p)
	if err != nil {
		return nil, err
	}
	return NewView(c), nil
}

// AddItem adds quantity units of a product to the caller's cart, merging
// into an existing line for the same product.
func (s *Service) AddItem(ctx context.Context, p auth.Principal, productID int64, quantity int) (*Item, error) {
	if err := p.RequireUser(); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		return nil, apperr.Invalid("quantity must be greater than 0")
	}

	var out *Item
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		prod, err := s.products.GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if quantity > prod.Stock {
			return ErrInsufficientStock
		}

		if _, err := s.carts.GetOrCreate(ctx, p.UserID); err != nil {
			return errors.Wrap(err, "get or create cart")
		}
		c, err := s.carts.LockByUser(ctx, p.UserID)
		if err != nil {
			return errors.Wrap(err, "lock cart")
		}

		total := quantity
		existing, err := s.carts.FindItem(ctx, c.ID, productID)
		switch {
		case err == nil:
			total += existing.Quantity
			if total > prod.Stock {
				return ErrInsufficientStock
			}
		case errors.Is(err, ErrItemNotFound):
		default:
			return errors.Wrap(err, "find cart item")
		}

		id, err := s.carts.SaveItem(ctx, c.ID, productID, total)
		if err != nil {
			return errors.Wrap(err, "save cart item")
		}
		out = &Item{ID: id, CartID: c.ID, Product: *prod, Quantity: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateItem sets the quantity of one of the caller's cart lines.
func (s *Service) UpdateItem(ctx context.Context, p auth.Principal, itemID int64, quantity int) (*Item, error) {
	if err := p.RequireUser(); err != nil {
		return nil, err
	}

	var out *Item
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.lockCart(ctx, p); err != nil {
			return err
		}
		it, err := s.ownedItem(ctx, p, itemID)
		if err != nil {
			return err
		}
		if quantity <= 0 {
			return apperr.Invalid("quantity must be greater than 0")
		}
		if quantity > it.Product.Stock {
			return ErrInsufficientStock
		}
		if err := s.carts.SetItemQuantity(ctx, itemID, quantity); err != nil {
			return errors.Wrap(err, "update cart item")
		}
		it.Quantity = quantity
		out = &it.Item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveItem deletes one of the caller's cart lines.
func (s *Service) RemoveItem(ctx context.Context, p auth.Principal, itemID int64) error {
	if err := p.RequireUser(); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.lockCart(ctx, p); err != nil {
			return err
		}
		if _, err := s.ownedItem(ctx, p, itemID); err != nil {
			return err
		}
		if err := s.carts.DeleteItem(ctx, itemID); err != nil {
			return errors.Wrap(err, "delete cart item")
		}
		return nil
	})
}

// Clear empties the caller's cart. It is a no-op when no cart exists.
func (s *Service) Clear(ctx context.Context, p auth.Principal) error {
	if err := p.RequireUser(); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.LockByUser(ctx, p.UserID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "lock cart")
		}
		if err := s.carts.Clear(ctx, c.ID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	})
}

// lockCart locks the caller's cart, if any, before its lines are read so
// that line edits and checkout take locks in the same order.
func (s *Service) lockCart(ctx context.Context, p auth.Principal) error {
	_, err := s.carts.LockByUser(ctx, p.UserID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "lock cart")
	}
	return nil
}

func (s *Service) ownedItem(ctx context.Context, p auth.Principal, itemID int64) (*OwnedItem, error) {
	it, err := s.carts.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if it.OwnerID != p.UserID {
		return nil, apperr.Forbidden("cart item belongs to another user")
	}
	return it, nil
}
