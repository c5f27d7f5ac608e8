// Package handler exposes the storefront services over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/banner"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

// ProductService is the catalog API used by the handlers.
type ProductService interface {
	List(ctx context.Context, f product.Filter) (*product.Page, error)
	Get(ctx context.Context, id int64) (*product.Product, error)
	Create(ctx context.Context, p auth.Principal, in product.Input) (*product.Product, error)
	Update(ctx context.Context, p auth.Principal, id int64, in product.Input) (*product.Product, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
}

// CategoryService is the category API used by the handlers.
type CategoryService interface {
	List(ctx context.Context) ([]category.Category, error)
	Get(ctx context.Context, id int64) (*category.Category, error)
	Create(ctx context.Context, p auth.Principal, name string) (*category.Category, error)
	Update(ctx context.Context, p auth.Principal, id int64, name string) (*category.Category, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
}

// BannerService is the hero banner API used by the handlers.
type BannerService interface {
	ListActive(ctx context.Context) ([]banner.Banner, error)
	ListAll(ctx context.Context, p auth.Principal) ([]banner.Banner, error)
	Get(ctx context.Context, p auth.Principal, id int64) (*banner.Banner, error)
	Create(ctx context.Context, p auth.Principal, in banner.Input) (*banner.Banner, error)
	Update(ctx context.Context, p auth.Principal, id int64, in banner.Input) (*banner.Banner, error)
	Delete(ctx context.Context, p auth.Principal, id int64) error
}

// CartService is the cart API used by the handlers.
type CartService interface {
	View(ctx context.Context, p auth.Principal) (*cart.View, error)
	AddItem(ctx context.Context, p auth.Principal, productID int64, quantity int) (*cart.Item, error)
	UpdateItem(ctx context.Context, p auth.Principal, itemID int64, quantity int) (*cart.Item, error)
	RemoveItem(ctx context.Context, p auth.Principal, itemID int64) error
	Clear(ctx context.Context, p auth.Principal) error
}

// OrderService is the checkout and order API used by the handlers.
type OrderService interface {
	Checkout(ctx context.Context, p auth.Principal, req order.CheckoutRequest) (*order.Order, error)
	ListMine(ctx context.Context, p auth.Principal) ([]order.Order, error)
	GetMine(ctx context.Context, p auth.Principal, id int64) (*order.Order, error)
	ListAll(ctx context.Context, p auth.Principal) ([]order.Order, error)
	Get(ctx context.Context, p auth.Principal, id int64) (*order.Order, error)
	UpdateStatus(ctx context.Context, p auth.Principal, id int64, status order.Status) (*order.Order, error)
}

// Services groups the domain services served by the Handler.
type Services struct {
	Products   ProductService
	Categories CategoryService
	Banners    BannerService
	Carts      CartService
	Orders     OrderService
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product and
	// banner responses. When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler serves the storefront REST API.
type Handler struct {
	products   ProductService
	categories CategoryService
	banners    BannerService
	carts      CartService
	orders     OrderService

	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain services.
func NewHandler(cfg HandlerConfig, s Services) *Handler {
	return &Handler{
		products:     s.Products,
		categories:   s.Categories,
		banners:      s.Banners,
		carts:        s.Carts,
		orders:       s.Orders,
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
	}
}

// Register mounts every API route on mux under /api.
func (h *Handler) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		fn      handlerFunc
	}{
		{"GET /api/products", h.listProducts},
		{"GET /api/products/{id}", h.getProduct},
		{"GET /api/categories", h.listCategories},
		{"GET /api/categories/{id}", h.getCategory},
		{"GET /api/hero-banners", h.listActiveBanners},

		{"GET /api/cart", h.getCart},
		{"DELETE /api/cart", h.clearCart},
		{"POST /api/cart/items", h.addCartItem},
		{"PUT /api/cart/items/{id}", h.updateCartItem},
		{"DELETE /api/cart/items/{id}", h.removeCartItem},

		{"POST /api/orders", h.checkout},
		{"GET /api/orders", h.listMyOrders},
		{"GET /api/orders/{id}", h.getMyOrder},

		{"GET /api/admin/orders", h.listAllOrders},
		{"GET /api/admin/orders/{id}", h.getAnyOrder},
		{"PUT /api/admin/orders/{id}/status", h.updateOrderStatus},

		{"POST /api/admin/products", h.createProduct},
		{"PUT /api/admin/products/{id}", h.updateProduct},
		{"DELETE /api/admin/products/{id}", h.deleteProduct},

		{"POST /api/admin/categories", h.createCategory},
		{"PUT /api/admin/categories/{id}", h.updateCategory},
		{"DELETE /api/admin/categories/{id}", h.deleteCategory},

		{"GET /api/admin/hero-banners", h.listAllBanners},
		{"POST /api/admin/hero-banners", h.createBanner},
		{"GET /api/admin/hero-banners/{id}", h.getBanner},
		{"PUT /api/admin/hero-banners/{id}", h.updateBanner},
		{"DELETE /api/admin/hero-banners/{id}", h.deleteBanner},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, rt.fn)
	}
	mux.Handle("/api/", handlerFunc(func(http.ResponseWriter, *http.Request) error {
		return apperr.NotFound("route not found")
	}))
}

// handlerFunc is an HTTP handler whose error is rendered as a JSON error
// response.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (fn handlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		writeError(w, r, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("invalid id %q", raw)
	}
	return id, nil
}

// imageURL resolves a stored image path against the configured base URL.
func (h *Handler) imageURL(path string) string {
	if h.imageBaseURL == "" || path == "" || strings.Contains(path, "://") || strings.HasPrefix(path, "//") {
		return path
	}
	return h.imageBaseURL + "/" + strings.TrimLeft(path, "/")
}

func principal(r *http.Request) auth.Principal {
	return auth.FromContext(r.Context())
}
