package order_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storetest"
)

// --- Helpers ---

var (
	alice = auth.Principal{UserID: 1, Name: "Alice", Roles: []auth.Role{auth.RoleCustomer}}
	bob   = auth.Principal{UserID: 2, Name: "Bob", Roles: []auth.Role{auth.RoleCustomer}}
	admin = auth.Principal{UserID: 3, Name: "Admin", Roles: []auth.Role{auth.RoleAdmin, auth.RoleCustomer}}
)

type fixture struct {
	store  *storetest.Store
	orders *order.Service
	carts  *cart.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storetest.New()
	var mu sync.Mutex
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	}

	orders, err := order.NewService(store, store.Products(), store.Carts(), store.Orders(), order.Config{})
	require.NoError(t, err)

	return &fixture{
		store:  store,
		orders: orders,
		carts:  cart.NewService(store, store.Carts(), store.Products()),
	}
}

func (f *fixture) addProduct(t *testing.T, name, price string, stock int) int64 {
	t.Helper()
	p := &product.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p.ID
}

func (f *fixture) addToCart(t *testing.T, p auth.Principal, productID int64, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), p, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	p, err := f.store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) cartLines(t *testing.T, p auth.Principal) int {
	t.Helper()
	v, err := f.carts.View(context.Background(), p)
	require.NoError(t, err)
	return len(v.Items)
}

func checkoutReq(method string) order.CheckoutRequest {
	return order.CheckoutRequest{
		Address:       "1 Main St",
		Phone:         "+1 555 0100",
		PaymentMethod: method,
	}
}

// --- Tests ---

func TestCheckout_CreatesSnapshotOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.addProduct(t, "Widget", "10.00", 5)
	b := f.addProduct(t, "Gadget", "5.00", 3)
	f.addToCart(t, alice, a, 2)
	f.addToCart(t, alice, b, 1)

	o, err := f.orders.Checkout(ctx, alice, checkoutReq("Cash on Delivery"))
	require.NoError(t, err)

	assert.NotZero(t, o.ID)
	assert.Equal(t, alice.UserID, o.UserID)
	assert.Equal(t, "Alice", o.UserName)
	assert.True(t, decimal.RequireFromString("25.00").Equal(o.TotalAmount), "total %s", o.TotalAmount)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentUnpaid, o.PaymentStatus)
	assert.Equal(t, "Cash on Delivery", o.PaymentMethod)
	assert.Equal(t, "1 Main St", o.Address)
	assert.Equal(t, "+1 555 0100", o.Phone)
	assert.False(t, o.CreatedAt.IsZero())

	require.Len(t, o.Items, 2)
	assert.Equal(t, "Widget", o.Items[0].ProductName)
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.Items[0].UnitPrice))
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, a, *o.Items[0].ProductID)
	assert.Equal(t, "Gadget", o.Items[1].ProductName)
	assert.True(t, decimal.RequireFromString("5.00").Equal(o.Items[1].UnitPrice))
	assert.Equal(t, 1, o.Items[1].Quantity)

	assert.Equal(t, 3, f.stock(t, a))
	assert.Equal(t, 2, f.stock(t, b))
	assert.Zero(t, f.cartLines(t, alice))

	stored, err := f.orders.GetMine(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.Equal(stored.TotalAmount))
	assert.Len(t, stored.Items, 2)
}

func TestCheckout_SettlementMethod(t *testing.T) {
	tests := []struct {
		method      string
		wantStatus  order.Status
		wantPayment order.PaymentStatus
	}{
		{"Card Payment", order.StatusPaid, order.PaymentPaid},
		{"card payment", order.StatusPaid, order.PaymentPaid},
		{"CARD PAYMENT", order.StatusPaid, order.PaymentPaid},
		{"Cash on Delivery", order.StatusPending, order.PaymentUnpaid},
		{"Card", order.StatusPending, order.PaymentUnpaid},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			id := f.addProduct(t, "Widget", "3.50", 1)
			f.addToCart(t, alice, id, 1)

			o, err := f.orders.Checkout(ctx, alice, checkoutReq(tt.method))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, o.Status)
			assert.Equal(t, tt.wantPayment, o.PaymentStatus)

			stored, err := f.orders.GetMine(ctx, alice, o.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Equal(t, tt.wantPayment, stored.PaymentStatus)
		})
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("no cart", func(t *testing.T) {
		_, err := f.orders.Checkout(ctx, alice, checkoutReq("Card Payment"))
		require.ErrorIs(t, err, order.ErrEmptyCart)
		assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	})

	t.Run("cart without lines", func(t *testing.T) {
		_, err := f.carts.GetOrCreate(ctx, alice)
		require.NoError(t, err)

		_, err = f.orders.Checkout(ctx, alice, checkoutReq("Card Payment"))
		require.ErrorIs(t, err, order.ErrEmptyCart)
	})

	assert.Zero(t, f.store.Orders().Count())
}

func TestCheckout_InsufficientStockIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.addProduct(t, "Widget", "10.00", 5)
	b := f.addProduct(t, "Gadget", "5.00", 3)
	f.addToCart(t, alice, a, 2)
	f.addToCart(t, alice, b, 3)

	// Stock drops after the items were added.
	require.NoError(t, f.store.Products().SetStock(ctx, b, 1))

	_, err := f.orders.Checkout(ctx, alice, checkoutReq("Card Payment"))
	require.Error(t, err)

	var stockErr *order.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b, stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	assert.Equal(t, "insufficient stock for product: Gadget", apperr.Message(err))

	assert.Equal(t, 5, f.stock(t, a))
	assert.Equal(t, 1, f.stock(t, b))
	assert.Equal(t, 2, f.cartLines(t, alice))
	assert.Zero(t, f.store.Orders().Count())
}

func TestCheckout_RollsBackOnPersistenceFailure(t *testing.T) {
	for _, op := range []string{"orders.Create", "orders.SetStatus", "carts.Clear"} {
		t.Run(op, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			a := f.addProduct(t, "Widget", "10.00", 5)
			f.addToCart(t, alice, a, 2)

			failErr := errors.New("connection reset")
			f.store.FailOn = func(got string) error {
				if got == op {
					return failErr
				}
				return nil
			}

			_, err := f.orders.Checkout(ctx, alice, checkoutReq("Card Payment"))
			require.ErrorIs(t, err, failErr)
			assert.Equal(t, apperr.KindUnknown, apperr.KindOf(err))

			f.store.FailOn = nil
			assert.Equal(t, 5, f.stock(t, a), "stock decrement must be rolled back")
			assert.Equal(t, 1, f.cartLines(t, alice))
			assert.Zero(t, f.store.Orders().Count())
		})
	}
}

func TestCheckout_SnapshotSurvivesProductChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.addProduct(t, "Widget", "10.00", 5)
	b := f.addProduct(t, "Gadget", "5.00", 3)
	f.addToCart(t, alice, a, 2)
	f.addToCart(t, alice, b, 1)

	o, err := f.orders.Checkout(ctx, alice, checkoutReq("Cash"))
	require.NoError(t, err)

	edited, err := f.store.Products().GetByID(ctx, a)
	require.NoError(t, err)
	edited.Name = "Widget Pro"
	edited.Price = decimal.RequireFromString("99.99")
	require.NoError(t, f.store.Products().Update(ctx, edited))
	require.NoError(t, f.store.Products().Delete(ctx, b))

	got, err := f.orders.GetMine(ctx, alice, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)

	assert.Equal(t, "Widget", got.Items[0].ProductName)
	assert.True(t, decimal.RequireFromString("10.00").Equal(got.Items[0].UnitPrice))
	assert.Equal(t, "Gadget", got.Items[1].ProductName)
	assert.True(t, decimal.RequireFromString("5.00").Equal(got.Items[1].UnitPrice))
	assert.Nil(t, got.Items[1].ProductID, "deleted product reference is cleared")
	assert.True(t, decimal.RequireFromString("25.00").Equal(got.TotalAmount))
}

func TestCheckout_ConcurrentOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addProduct(t, "Widget", "10.00", 3)
	f.addToCart(t, alice, id, 2)
	f.addToCart(t, bob, id, 2)

	var (
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	var g errgroup.Group
	for _, p := range []auth.Principal{alice, bob} {
		g.Go(func() error {
			_, err := f.orders.Checkout(ctx, p, checkoutReq("Card Payment"))
			mu.Lock()
			defer mu.Unlock()
			var stockErr *order.InsufficientStockError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &stockErr):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, f.stock(t, id))
	assert.Equal(t, 1, f.store.Orders().Count())
}

func TestCheckout_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.orders.Checkout(ctx, auth.Principal{}, checkoutReq("Card Payment"))
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	for _, req := range []order.CheckoutRequest{
		{Phone: "1", PaymentMethod: "Cash"},
		{Address: "a", PaymentMethod: "Cash"},
		{Address: "a", Phone: "1", PaymentMethod: "  "},
	} {
		_, err := f.orders.Checkout(ctx, alice, req)
		assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err), "%+v", req)
	}
}

func TestGetMine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addProduct(t, "Widget", "1.00", 10)
	f.addToCart(t, alice, id, 1)
	o, err := f.orders.Checkout(ctx, alice, checkoutReq("Cash"))
	require.NoError(t, err)

	_, err = f.orders.GetMine(ctx, bob, o.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = f.orders.GetMine(ctx, alice, 999)
	require.ErrorIs(t, err, order.ErrNotFound)

	got, err := f.orders.Get(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.orders.Get(ctx, alice, o.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestListOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addProduct(t, "Widget", "1.00", 10)

	var placed []int64
	for _, p := range []auth.Principal{alice, bob, alice} {
		f.addToCart(t, p, id, 1)
		o, err := f.orders.Checkout(ctx, p, checkoutReq("Cash"))
		require.NoError(t, err)
		placed = append(placed, o.ID)
	}

	mine, err := f.orders.ListMine(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, placed[2], mine[0].ID, "newest first")
	assert.Equal(t, placed[0], mine[1].ID)

	all, err := f.orders.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.orders.ListAll(ctx, bob)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addProduct(t, "Widget", "1.00", 10)
	f.addToCart(t, alice, id, 1)
	o, err := f.orders.Checkout(ctx, alice, checkoutReq("Cash"))
	require.NoError(t, err)

	got, err := f.orders.UpdateStatus(ctx, admin, o.ID, order.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, got.Status)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus)

	got, err = f.orders.UpdateStatus(ctx, admin, o.ID, order.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)

	// Any transition is accepted, including moving backwards.
	got, err = f.orders.UpdateStatus(ctx, admin, o.ID, order.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, order.PaymentPaid, got.PaymentStatus, "payment status is never reset")

	_, err = f.orders.UpdateStatus(ctx, admin, 999, order.StatusShipped)
	require.ErrorIs(t, err, order.ErrNotFound)

	_, err = f.orders.UpdateStatus(ctx, alice, o.ID, order.StatusShipped)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}

func TestParseStatus(t *testing.T) {
	st, err := order.ParseStatus("shipped")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, st)

	_, err = order.ParseStatus("LOST")
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
}

type lockRecordingCarts struct {
	*storetest.Carts
	locked []int64
}

func (c *lockRecordingCarts) LockByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	c.locked = append(c.locked, userID)
	return c.Carts.LockByUser(ctx, userID)
}

func TestCheckout_LocksCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.addProduct(t, "Widget", "10.00", 10)
	f.addToCart(t, alice, id, 2)

	carts := &lockRecordingCarts{Carts: f.store.Carts()}
	orders, err := order.NewService(f.store, f.store.Products(), carts, f.store.Orders(), order.Config{})
	require.NoError(t, err)

	_, err = orders.Checkout(ctx, alice, checkoutReq("Cash"))
	require.NoError(t, err)
	assert.Equal(t, []int64{alice.UserID}, carts.locked)

	// A checkout that lost the race for the cart lock finds it empty.
	_, err = orders.Checkout(ctx, alice, checkoutReq("Cash"))
	require.ErrorIs(t, err, order.ErrEmptyCart)
	assert.Equal(t, 8, f.stock(t, id))
	assert.Equal(t, 1, f.store.Orders().Count())
}
