package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/repository"
	"github.com/WASandaruwan/onlinesales-backend/internal/service"
	"github.com/WASandaruwan/onlinesales-backend/pkg/httputil"
	"github.com/WASandaruwan/onlinesales-backend/pkg/pagination"
	"github.com/WASandaruwan/onlinesales-backend/pkg/validator"
)

// OrderService is the service surface used by the handlers.
// *service.OrderService implements it.
type OrderService interface {
	CreateOrder(ctx context.Context, input service.CreateOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error)
	UpdateOrder(ctx context.Context, id string, input service.UpdateOrderInput) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error

	AddItem(ctx context.Context, orderID string, input service.AddItemInput) (*domain.Order, *domain.OrderItem, error)
	UpdateItem(ctx context.Context, orderID, itemID string, input service.UpdateItemInput) (*domain.Order, *domain.OrderItem, error)
	RemoveItem(ctx context.Context, orderID, itemID string) (*domain.Order, error)
	GetItem(ctx context.Context, orderID, itemID string) (*domain.OrderItem, error)
	ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
}

var _ OrderService = (*service.OrderService)(nil)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	service OrderService
	logger  *slog.Logger
}

// NewOrderHandler creates a new order HTTP handler.
func NewOrderHandler(svc OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateOrderRequest is the JSON request body for creating an order.
type CreateOrderRequest struct {
	RefNo        string          `json:"ref_no" validate:"max=64"`
	Currency     string          `json:"currency" validate:"required,iso4217"`
	ExchangeRate decimal.Decimal `json:"exchange_rate" validate:"gt=0"`
}

// UpdateOrderRequest is the JSON request body for PATCH /orders/{id}.
type UpdateOrderRequest struct {
	RefNo        *string          `json:"ref_no" validate:"omitempty,max=64"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate" validate:"omitempty,gt=0"`
}

// --- Handlers ---

// CreateOrder handles POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), service.CreateOrderInput{
		RefNo:        req.RefNo,
		Currency:     req.Currency,
		ExchangeRate: req.ExchangeRate,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: order})
}

// ListOrders handles GET /api/v1/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromRequest(r)
	filter := repository.OrderFilter{
		Page:    page.Page,
		PerPage: page.PerPage,
	}
	if v := r.URL.Query().Get("currency"); v != "" {
		currency := strings.ToUpper(v)
		filter.Currency = &currency
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: pagination.NewResult(orders, total, page)})
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// UpdateOrder handles PATCH /api/v1/orders/{id}
func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateOrderRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, err := h.service.UpdateOrder(r.Context(), id, service.UpdateOrderInput{
		RefNo:        req.RefNo,
		ExchangeRate: req.ExchangeRate,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

// DeleteOrder handles DELETE /api/v1/orders/{id}
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
