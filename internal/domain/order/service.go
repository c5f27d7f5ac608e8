package order

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/txn"
)

// DefaultSettlementMethod is the payment method settled at checkout.
const DefaultSettlementMethod = "Card Payment"

// ErrEmptyCart is returned when checking out without any cart lines.
var ErrEmptyCart = apperr.Invalid("cart is empty")

// InsufficientStockError names the product whose stock cannot cover a line.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return "insufficient stock for product: " + e.ProductName
}

// Unwrap classifies the error as an invalid request.
func (e *InsufficientStockError) Unwrap() error {
	return apperr.Invalid("%s", e.Error())
}

// CheckoutRequest holds the shipping and payment details for a checkout.
type CheckoutRequest struct {
	Address       string
	Phone         string
	PaymentMethod string
}

// CartSource locks and empties the cart being checked out.
type CartSource interface {
	LockByUser(ctx context.Context, userID int64) (*cart.Cart, error)
	Clear(ctx context.Context, cartID int64) error
}

// Config holds the non-dependency settings of the Service.
type Config struct {
	// SettlementMethod is the payment method label (compared
	// case-insensitively) that marks an order paid at checkout.
	SettlementMethod string
	MeterProvider    metric.MeterProvider
	TracerProvider   trace.TracerProvider
}

// Service encapsulates checkout and order administration.
type Service struct {
	tx         txn.Runner
	products   product.Repository
	carts      CartSource
	orders     Repository
	settlement string

	tracer  trace.Tracer
	created metric.Int64Counter
	failed  metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	tx txn.Runner,
	products product.Repository,
	carts CartSource,
	orders Repository,
	cfg Config,
) (*Service, error) {
	if cfg.SettlementMethod == "" {
		cfg.SettlementMethod = DefaultSettlementMethod
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}

	meter := cfg.MeterProvider.Meter("storefront/order")
	created, err := meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Orders created by checkout"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	failed, err := meter.Int64Counter("storefront.checkout.failed",
		metric.WithDescription("Checkouts rejected or aborted"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "checkout failed counter")
	}

	return &Service{
		tx:         tx,
		products:   products,
		carts:      carts,
		orders:     orders,
		settlement: cfg.SettlementMethod,
		tracer:     cfg.TracerProvider.Tracer("storefront/order"),
		created:    created,
		failed:     failed,
	}, nil
}

// Checkout turns the caller's cart into an order in a single transaction:
// stock is re-validated and decremented, product names and prices are
// snapshotted into the order lines, the settlement payment method is marked
// paid, and the cart is emptied. Any failure leaves every table untouched.
func (s *Service) Checkout(ctx context.Context, p auth.Principal, req CheckoutRequest) (*Order, error) {
	if err := p.RequireUser(); err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(req.Address) == "":
		return nil, apperr.Invalid("address is required")
	case strings.TrimSpace(req.Phone) == "":
		return nil, apperr.Invalid("phone is required")
	case strings.TrimSpace(req.PaymentMethod) == "":
		return nil, apperr.Invalid("payment method is required")
	}

	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.Int64("user.id", p.UserID)),
	)
	defer span.End()

	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.checkout(ctx, p, req)
		return err
	})
	if err != nil {
		s.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", apperr.KindOf(err).String())))
		span.RecordError(err)
		span.SetStatus(codes.Error, "checkout failed")
		if apperr.KindOf(err) == apperr.KindUnknown {
			return nil, errors.Wrap(err, "checkout")
		}
		return nil, err
	}

	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("payment_status", string(o.PaymentStatus))))
	zctx.From(ctx).Info("Order placed",
		zap.Int64("order_id", o.ID),
		zap.Int64("user_id", o.UserID),
		zap.String("total", o.TotalAmount.StringFixed(2)),
		zap.String("status", string(o.Status)),
	)
	return o, nil
}

func (s *Service) checkout(ctx context.Context, p auth.Principal, req CheckoutRequest) (*Order, error) {
	// The cart lock makes a concurrent checkout of the same cart wait and
	// then see it empty, and keeps line edits out until the cart is cleared.
	c, err := s.carts.LockByUser(ctx, p.UserID)
	if errors.Is(err, cart.ErrNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Lock every product row up front, in id order, so concurrent checkouts
	// touching the same products serialize instead of deadlocking.
	ids := make([]int64, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.Product.ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	locked, err := s.products.LockByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lock products")
	}
	live := make(map[int64]product.Product, len(locked))
	for _, lp := range locked {
		live[lp.ID] = lp
	}

	// Stock checks run in cart order against the locked rows.
	remaining := make(map[int64]int, len(live))
	for id, lp := range live {
		remaining[id] = lp.Stock
	}
	for _, it := range c.Items {
		lp, ok := live[it.Product.ID]
		if !ok {
			return nil, apperr.NotFound("product %d not found", it.Product.ID)
		}
		if remaining[lp.ID] < it.Quantity {
			return nil, &InsufficientStockError{
				ProductID:   lp.ID,
				ProductName: lp.Name,
				Requested:   it.Quantity,
				Available:   remaining[lp.ID],
			}
		}
		remaining[lp.ID] -= it.Quantity
	}

	for _, id := range ids {
		if err := s.products.SetStock(ctx, id, remaining[id]); err != nil {
			return nil, errors.Wrapf(err, "decrement stock of product %d", id)
		}
	}

	total := decimal.Zero
	items := make([]Item, 0, len(c.Items))
	for _, it := range c.Items {
		lp := live[it.Product.ID]
		productID := lp.ID
		line := Item{
			ProductID:   &productID,
			ProductName: lp.Name,
			UnitPrice:   lp.Price,
			Quantity:    it.Quantity,
		}
		total = total.Add(line.Total())
		items = append(items, line)
	}

	o := &Order{
		UserID:        p.UserID,
		UserName:      p.Name,
		TotalAmount:   total.Round(2),
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: PaymentUnpaid,
		Address:       req.Address,
		Phone:         req.Phone,
		Items:         items,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if strings.EqualFold(req.PaymentMethod, s.settlement) {
		if err := s.orders.SetStatus(ctx, o.ID, StatusPaid, PaymentPaid); err != nil {
			return nil, errors.Wrap(err, "settle order")
		}
		o.Status = StatusPaid
		o.PaymentStatus = PaymentPaid
	}

	if err := s.carts.Clear(ctx, c.ID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return o, nil
}

// ListMine returns the caller's orders, newest first.
func (s *Service) ListMine(ctx context.Context, p auth.Principal) ([]Order, error) {
	if err := p.RequireUser(); err != nil {
		return nil, err
	}
	out, err := s.orders.ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return out, nil
}

// GetMine returns one of the caller's orders.
func (s *Service) GetMine(ctx context.Context, p auth.Principal, id int64) (*Order, error) {
	if err := p.RequireUser(); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != p.UserID {
		return nil, apperr.Forbidden("order belongs to another user")
	}
	return o, nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context, p auth.Principal) ([]Order, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	out, err := s.orders.ListAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list all orders")
	}
	return out, nil
}

// Get returns any order by id.
func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (*Order, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// UpdateStatus sets an order's status. Any transition is accepted; setting
// PAID also marks the payment as paid.
func (s *Service) UpdateStatus(ctx context.Context, p auth.Principal, id int64, status Status) (*Order, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}

	var o *Order
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		// Any status may follow any other.
		o.Status = status
		if status == StatusPaid {
			o.PaymentStatus = PaymentPaid
		}
		return s.orders.SetStatus(ctx, id, o.Status, o.PaymentStatus)
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Order status updated",
		zap.Int64("order_id", id),
		zap.String("status", string(o.Status)),
		zap.String("payment_status", string(o.PaymentStatus)),
	)
	return o, nil
}
