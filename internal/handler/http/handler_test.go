package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
	"github.com/WASandaruwan/onlinesales-backend/internal/service"
	"github.com/WASandaruwan/onlinesales-backend/pkg/httputil"
	"github.com/WASandaruwan/onlinesales-backend/pkg/middleware"
)

const (
	testOrderID = "550e8400-e29b-41d4-a716-446655440001"
	testItemID  = "550e8400-e29b-41d4-a716-446655440010"
)

// --- Mock OrderService ---

type mockOrderService struct {
	mock.Mock
}

func (m *mockOrderService) CreateOrder(ctx context.Context, input service.CreateOrderInput) (*domain.Order, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Order), args.Int(1), args.Error(2)
}

func (m *mockOrderService) UpdateOrder(ctx context.Context, id string, input service.UpdateOrderInput) (*domain.Order, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) DeleteOrder(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOrderService) AddItem(ctx context.Context, orderID string, input service.AddItemInput) (*domain.Order, *domain.OrderItem, error) {
	args := m.Called(ctx, orderID, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Order), args.Get(1).(*domain.OrderItem), args.Error(2)
}

func (m *mockOrderService) UpdateItem(ctx context.Context, orderID, itemID string, input service.UpdateItemInput) (*domain.Order, *domain.OrderItem, error) {
	args := m.Called(ctx, orderID, itemID, input)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Order), args.Get(1).(*domain.OrderItem), args.Error(2)
}

func (m *mockOrderService) RemoveItem(ctx context.Context, orderID, itemID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderService) GetItem(ctx context.Context, orderID, itemID string) (*domain.OrderItem, error) {
	args := m.Called(ctx, orderID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderItem), args.Error(1)
}

func (m *mockOrderService) ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OrderItem), args.Error(1)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupOrderRouter creates a chi router matching the production route layout.
func setupOrderRouter(svc OrderService) *chi.Mux {
	h := NewOrderHandler(svc, testLogger())
	r := chi.NewRouter()
	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Patch("/", h.UpdateOrder)
			r.Delete("/", h.DeleteOrder)
			r.Get("/items", h.ListItems)
			r.Post("/items", h.AddItem)
			r.Get("/items/{itemID}", h.GetItem)
			r.Patch("/items/{itemID}", h.UpdateItem)
			r.Delete("/items/{itemID}", h.RemoveItem)
		})
	})
	return r
}

func doRequest(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// decodeResponse reads the response body into the httputil.Response struct.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

// dataMap returns the response data as a JSON object.
func dataMap(t *testing.T, resp httputil.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data should be an object, got %T", resp.Data)
	return data
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// sampleOrder returns a priced order with one item's worth of totals.
func sampleOrder() *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:            testOrderID,
		RefNo:         "INV-2024-001",
		Currency:      "EUR",
		ExchangeRate:  dec("1.1"),
		CurrencyTotal: dec("20"),
		Total:         dec("22"),
		Quantity:      2,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func sampleItem() *domain.OrderItem {
	now := time.Now().UTC()
	return &domain.OrderItem{
		ID:            testItemID,
		OrderID:       testOrderID,
		ProductName:   "Annual License",
		LicenseCode:   "LIC-1",
		UnitPrice:     dec("10"),
		Quantity:      2,
		CurrencyTotal: dec("20"),
		Total:         dec("22"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
