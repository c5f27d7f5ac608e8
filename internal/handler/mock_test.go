package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/order"
)

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) Checkout(ctx context.Context, p auth.Principal, req order.CheckoutRequest) (*order.Order, error) {
	args := m.Called(ctx, p, req)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *mockOrderService) ListMine(ctx context.Context, p auth.Principal) ([]order.Order, error) {
	args := m.Called(ctx, p)
	list, _ := args.Get(0).([]order.Order)
	return list, args.Error(1)
}

func (m *mockOrderService) GetMine(ctx context.Context, p auth.Principal, id int64) (*order.Order, error) {
	args := m.Called(ctx, p, id)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *mockOrderService) ListAll(ctx context.Context, p auth.Principal) ([]order.Order, error) {
	args := m.Called(ctx, p)
	list, _ := args.Get(0).([]order.Order)
	return list, args.Error(1)
}

func (m *mockOrderService) Get(ctx context.Context, p auth.Principal, id int64) (*order.Order, error) {
	args := m.Called(ctx, p, id)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, p auth.Principal, id int64, status order.Status) (*order.Order, error) {
	args := m.Called(ctx, p, id, status)
	o, _ := args.Get(0).(*order.Order)
	return o, args.Error(1)
}

func serveOrders(t *testing.T, svc OrderService, p auth.Principal, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(HandlerConfig{}, Services{Orders: svc}).Register(mux)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(auth.WithPrincipal(req.Context(), p))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestCheckout_ErrorMapping(t *testing.T) {
	alice := auth.Principal{UserID: 7, Name: "Alice", Roles: []auth.Role{auth.RoleCustomer}}
	req := order.CheckoutRequest{Address: "a", Phone: "1", PaymentMethod: "Cash"}
	body := `{"address":"a","phone":"1","paymentMethod":"Cash","unknown":[1,2]}`

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "insufficient stock",
			err:        &order.InsufficientStockError{ProductID: 1, ProductName: "Widget", Requested: 3, Available: 1},
			wantStatus: http.StatusBadRequest,
			wantMsg:    "insufficient stock for product: Widget",
		},
		{
			name:       "empty cart",
			err:        order.ErrEmptyCart,
			wantStatus: http.StatusBadRequest,
			wantMsg:    "cart is empty",
		},
		{
			name:       "database failure",
			err:        errors.Wrap(errors.New("connection refused"), "checkout"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{}
			svc.On("Checkout", mock.Anything, alice, req).Return(nil, tt.err).Once()

			w := serveOrders(t, svc, alice, http.MethodPost, "/api/orders", body)
			assert.Equal(t, tt.wantStatus, w.Code)
			got := decodeJSON(t, w)
			assert.EqualValues(t, tt.wantStatus, got["code"])
			assert.Equal(t, tt.wantMsg, got["message"])
			svc.AssertExpectations(t)
		})
	}
}

func TestUpdateOrderStatus_ParsesStatus(t *testing.T) {
	admin := auth.Principal{UserID: 1, Roles: []auth.Role{auth.RoleAdmin}}
	svc := &mockOrderService{}
	svc.On("UpdateStatus", mock.Anything, admin, int64(12), order.StatusShipped).
		Return(&order.Order{ID: 12, Status: order.StatusShipped, PaymentStatus: order.PaymentPaid}, nil).Once()

	w := serveOrders(t, svc, admin, http.MethodPut, "/api/admin/orders/12/status", `{"status":"shipped"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "SHIPPED", decodeJSON(t, w)["status"])

	w = serveOrders(t, svc, admin, http.MethodPut, "/api/admin/orders/12/status", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}
