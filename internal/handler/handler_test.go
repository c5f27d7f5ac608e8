package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/banner"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/storetest"
)

var testPepper = []byte("test-pepper")

const (
	adminKey = "admin-key"
	aliceKey = "alice-key"
	bobKey   = "bob-key"
)

// --- Helpers ---

type testServer struct {
	t     *testing.T
	store *storetest.Store
	http  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := storetest.New()
	store.Users().Add("Admin", auth.RoleAdmin, auth.HashKey(testPepper, adminKey))
	store.Users().Add("Alice", auth.RoleCustomer, auth.HashKey(testPepper, aliceKey))
	store.Users().Add("Bob", auth.RoleCustomer, auth.HashKey(testPepper, bobKey))

	orders, err := order.NewService(store, store.Products(), store.Carts(), store.Orders(), order.Config{})
	require.NoError(t, err)

	h := NewHandler(HandlerConfig{ImageBaseURL: "https://cdn.example.com/"}, Services{
		Products:   product.NewService(store.Products(), store.Categories()),
		Categories: category.NewService(store.Categories()),
		Banners:    banner.NewService(store.Banners()),
		Carts:      cart.NewService(store, store.Carts(), store.Products()),
		Orders:     orders,
	})
	mux := http.NewServeMux()
	h.Register(mux)

	sec := NewSecurityHandler(store.Users(), testPepper)
	return &testServer{t: t, store: store, http: sec.Middleware(mux)}
}

func (s *testServer) do(method, path, key, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	s.http.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeJSONArray(t *testing.T, w *httptest.ResponseRecorder) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	body := decodeJSON(t, w)
	assert.EqualValues(t, status, body["code"])
	assert.NotEmpty(t, body["message"])
}

func (s *testServer) seedProducts() (widget, gadget int64) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/admin/products", adminKey,
		`{"name":"Widget","price":"10.00","stock":5,"imageUrl":"img/widget.png"}`)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	widget = int64(decodeJSON(s.t, w)["id"].(float64))

	w = s.do(http.MethodPost, "/api/admin/products", adminKey,
		`{"name":"Gadget","price":5,"stock":3}`)
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	gadget = int64(decodeJSON(s.t, w)["id"].(float64))
	return widget, gadget
}

// --- Tests ---

func TestCheckoutFlow(t *testing.T) {
	s := newTestServer(t)
	widget, gadget := s.seedProducts()

	w := s.do(http.MethodPost, "/api/cart/items", aliceKey, `{"productId":`+itoa(widget)+`,"quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	line := decodeJSON(t, w)
	assert.Equal(t, "20.00", line["itemTotal"])
	assert.Equal(t, "https://cdn.example.com/img/widget.png", line["product"].(map[string]any)["imageUrl"])

	w = s.do(http.MethodPost, "/api/cart/items", aliceKey, `{"productId":`+itoa(gadget)+`,"quantity":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/cart", aliceKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	c := decodeJSON(t, w)
	assert.Len(t, c["items"], 2)
	assert.Equal(t, "25.00", c["subtotal"])
	assert.Equal(t, "25.00", c["total"])

	w = s.do(http.MethodPost, "/api/orders", aliceKey,
		`{"address":"1 Main St","phone":"555","paymentMethod":"card payment"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	o := decodeJSON(t, w)
	assert.Equal(t, "25.00", o["totalAmount"])
	assert.Equal(t, "PAID", o["status"])
	assert.Equal(t, "PAID", o["paymentStatus"])
	assert.Equal(t, "Alice", o["userName"])
	items := o["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "Widget", first["productName"])
	assert.Equal(t, "10.00", first["unitPrice"])
	assert.NotContains(t, first, "price")
	assert.Equal(t, "20.00", first["total"])
	orderPath := "/api/orders/" + itoa(int64(o["id"].(float64)))

	w = s.do(http.MethodGet, "/api/cart", aliceKey, "")
	assert.Empty(t, decodeJSON(t, w)["items"])

	w = s.do(http.MethodGet, "/api/orders", aliceKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSONArray(t, w), 1)

	w = s.do(http.MethodGet, orderPath, aliceKey, "")
	assert.Equal(t, http.StatusOK, w.Code)

	assertError(t, s.do(http.MethodGet, orderPath, bobKey, ""), http.StatusForbidden)
	assertError(t, s.do(http.MethodPost, "/api/orders", bobKey,
		`{"address":"a","phone":"1","paymentMethod":"Cash"}`), http.StatusBadRequest)
}

func TestCheckout_InsufficientStock(t *testing.T) {
	s := newTestServer(t)
	widget, _ := s.seedProducts()

	w := s.do(http.MethodPost, "/api/cart/items", aliceKey, `{"productId":`+itoa(widget)+`,"quantity":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, s.store.Products().SetStock(context.Background(), widget, 4))

	w = s.do(http.MethodPost, "/api/orders", aliceKey, `{"address":"a","phone":"1","paymentMethod":"Cash"}`)
	assertError(t, w, http.StatusBadRequest)
	assert.Equal(t, "insufficient stock for product: Widget", decodeJSON(t, w)["message"])
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	assertError(t, s.do(http.MethodGet, "/api/cart", "", ""), http.StatusUnauthorized)
	assertError(t, s.do(http.MethodGet, "/api/products", "wrong-key", ""), http.StatusUnauthorized)
	assertError(t, s.do(http.MethodGet, "/api/admin/orders", aliceKey, ""), http.StatusForbidden)
	assertError(t, s.do(http.MethodPost, "/api/admin/products", aliceKey, `{"name":"x","price":1}`), http.StatusForbidden)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("api_key", aliceKey)
	w := httptest.NewRecorder()
	s.http.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/products", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/admin/categories", adminKey, `{"name":"Tools"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	catID := itoa(int64(decodeJSON(t, w)["id"].(float64)))

	assertError(t, s.do(http.MethodPost, "/api/admin/categories", adminKey, `{"name":"Tools"}`), http.StatusBadRequest)

	w = s.do(http.MethodPost, "/api/admin/products", adminKey,
		`{"name":"Hammer","price":12.5,"stock":2,"categoryId":`+catID+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decodeJSON(t, w)
	assert.Equal(t, "12.50", p["price"])
	assert.Equal(t, "Tools", p["category"].(map[string]any)["name"])
	s.seedProducts()

	w = s.do(http.MethodGet, "/api/products?category="+catID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decodeJSON(t, w)
	assert.EqualValues(t, 1, page["totalElements"])

	w = s.do(http.MethodGet, "/api/products?size=2&page=1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	page = decodeJSON(t, w)
	assert.EqualValues(t, 3, page["totalElements"])
	assert.EqualValues(t, 2, page["totalPages"])
	assert.Len(t, page["content"], 1)

	assertError(t, s.do(http.MethodGet, "/api/products?page=abc", "", ""), http.StatusBadRequest)
	assertError(t, s.do(http.MethodGet, "/api/products/999", "", ""), http.StatusNotFound)
	assertError(t, s.do(http.MethodGet, "/api/products/abc", "", ""), http.StatusBadRequest)
	assertError(t, s.do(http.MethodPost, "/api/admin/products", adminKey, `{"name":`), http.StatusBadRequest)
	assertError(t, s.do(http.MethodPost, "/api/admin/products", adminKey, `{"name":"x","price":"ten"}`), http.StatusBadRequest)

	w = s.do(http.MethodDelete, "/api/admin/categories/"+catID, adminKey, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCartItems(t *testing.T) {
	s := newTestServer(t)
	widget, _ := s.seedProducts()

	assertError(t, s.do(http.MethodPost, "/api/cart/items", aliceKey, `{"quantity":1}`), http.StatusBadRequest)
	assertError(t, s.do(http.MethodPost, "/api/cart/items", aliceKey, `{"productId":999,"quantity":1}`), http.StatusNotFound)
	assertError(t, s.do(http.MethodPost, "/api/cart/items", aliceKey, `{"productId":`+itoa(widget)+`,"quantity":6}`), http.StatusBadRequest)

	w := s.do(http.MethodPost, "/api/cart/items", aliceKey, `{"productId":`+itoa(widget)+`,"quantity":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	itemPath := "/api/cart/items/" + itoa(int64(decodeJSON(t, w)["id"].(float64)))

	w = s.do(http.MethodPut, itemPath, aliceKey, `{"quantity":3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30.00", decodeJSON(t, w)["itemTotal"])

	assertError(t, s.do(http.MethodPut, itemPath, bobKey, `{"quantity":1}`), http.StatusForbidden)
	assertError(t, s.do(http.MethodDelete, itemPath, bobKey, ""), http.StatusForbidden)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, itemPath, aliceKey, "").Code)
	assertError(t, s.do(http.MethodDelete, itemPath, aliceKey, ""), http.StatusNotFound)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/cart", aliceKey, "").Code)
}

func TestBanners(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/admin/hero-banners", adminKey,
		`{"imageUrl":"https://img.example.com/a.jpg","title":"Sale","displayOrder":1,"isActive":true}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decodeJSON(t, w)
	assert.Equal(t, "https://img.example.com/a.jpg", b["imageUrl"])

	w = s.do(http.MethodPost, "/api/admin/hero-banners", adminKey, `{"imageUrl":"b.jpg","isActive":false}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodGet, "/api/hero-banners", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSONArray(t, w), 1)

	w = s.do(http.MethodGet, "/api/admin/hero-banners", adminKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSONArray(t, w), 2)

	assertError(t, s.do(http.MethodPost, "/api/admin/hero-banners", adminKey, `{"title":"x"}`), http.StatusBadRequest)
	assertError(t, s.do(http.MethodGet, "/api/admin/hero-banners/42", adminKey, ""), http.StatusNotFound)
}

func TestAdminOrderStatus(t *testing.T) {
	s := newTestServer(t)
	widget, _ := s.seedProducts()
	s.do(http.MethodPost, "/api/cart/items", aliceKey, `{"productId":`+itoa(widget)+`,"quantity":1}`)
	w := s.do(http.MethodPost, "/api/orders", aliceKey, `{"address":"a","phone":"1","paymentMethod":"Cash"}`)
	require.Equal(t, http.StatusOK, w.Code)
	o := decodeJSON(t, w)
	assert.Equal(t, "PENDING", o["status"])
	assert.Equal(t, "UNPAID", o["paymentStatus"])
	statusPath := "/api/admin/orders/" + itoa(int64(o["id"].(float64))) + "/status"

	w = s.do(http.MethodPut, statusPath, adminKey, `{"status":"PAID"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	o = decodeJSON(t, w)
	assert.Equal(t, "PAID", o["status"])
	assert.Equal(t, "PAID", o["paymentStatus"])

	assertError(t, s.do(http.MethodPut, statusPath, adminKey, `{"status":"LOST"}`), http.StatusBadRequest)
	assertError(t, s.do(http.MethodPut, statusPath, aliceKey, `{"status":"SHIPPED"}`), http.StatusForbidden)
	assertError(t, s.do(http.MethodPut, "/api/admin/orders/77/status", adminKey, `{"status":"SHIPPED"}`), http.StatusNotFound)

	w = s.do(http.MethodGet, "/api/admin/orders", adminKey, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeJSONArray(t, w), 1)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	assertError(t, s.do(http.MethodGet, "/api/nope", "", ""), http.StatusNotFound)
}

func TestImageURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"", "img/a.png", "img/a.png"},
		{"https://cdn.test", "img/a.png", "https://cdn.test/img/a.png"},
		{"https://cdn.test", "/img/a.png", "https://cdn.test/img/a.png"},
		{"https://cdn.test", "https://other.test/a.png", "https://other.test/a.png"},
		{"https://cdn.test", "", ""},
	}
	for _, tt := range tests {
		h := NewHandler(HandlerConfig{ImageBaseURL: tt.base}, Services{})
		assert.Equal(t, tt.want, h.imageURL(tt.path), "%s + %s", tt.base, tt.path)
	}
}
