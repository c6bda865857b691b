package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/WASandaruwan/onlinesales-backend/internal/domain"
	"github.com/WASandaruwan/onlinesales-backend/internal/service"
	"github.com/WASandaruwan/onlinesales-backend/pkg/httputil"
	"github.com/WASandaruwan/onlinesales-backend/pkg/validator"
)

// AddItemRequest is the JSON request body for adding an order item.
type AddItemRequest struct {
	ProductName string          `json:"product_name" validate:"required,max=255"`
	LicenseCode string          `json:"license_code" validate:"max=255"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Quantity    int             `json:"quantity" validate:"gte=1"`
}

// UpdateItemRequest is the JSON request body for PATCH on an order item.
type UpdateItemRequest struct {
	ProductName *string          `json:"product_name" validate:"omitempty,min=1,max=255"`
	LicenseCode *string          `json:"license_code" validate:"omitempty,max=255"`
	UnitPrice   *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
	Quantity    *int             `json:"quantity" validate:"omitempty,gte=1"`
}

// ItemResponse carries an item together with the order totals it produced.
type ItemResponse struct {
	Order *domain.Order     `json:"order"`
	Item  *domain.OrderItem `json:"item"`
}

// pathIDs reads and validates {id} and {itemID}.
func pathIDs(w http.ResponseWriter, r *http.Request) (orderID, itemID string, ok bool) {
	orderID, ok = httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return "", "", false
	}
	itemID, ok = httputil.ParseUUID(w, chi.URLParam(r, "itemID"))
	if !ok {
		return "", "", false
	}
	return orderID, itemID, true
}

// ListItems handles GET /api/v1/orders/{id}/items
func (h *OrderHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	items, err := h.service.ListItems(r.Context(), orderID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: items})
}

// AddItem handles POST /api/v1/orders/{id}/items
func (h *OrderHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req AddItemRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, item, err := h.service.AddItem(r.Context(), orderID, service.AddItemInput{
		ProductName: req.ProductName,
		LicenseCode: req.LicenseCode,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: ItemResponse{Order: order, Item: item}})
}

// GetItem handles GET /api/v1/orders/{id}/items/{itemID}
func (h *OrderHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	item, err := h.service.GetItem(r.Context(), orderID, itemID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: item})
}

// UpdateItem handles PATCH /api/v1/orders/{id}/items/{itemID}
func (h *OrderHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	order, item, err := h.service.UpdateItem(r.Context(), orderID, itemID, service.UpdateItemInput{
		ProductName: req.ProductName,
		LicenseCode: req.LicenseCode,
		UnitPrice:   req.UnitPrice,
		Quantity:    req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ItemResponse{Order: order, Item: item}})
}

// RemoveItem handles DELETE /api/v1/orders/{id}/items/{itemID}
func (h *OrderHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	orderID, itemID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	order, err := h.service.RemoveItem(r.Context(), orderID, itemID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}
