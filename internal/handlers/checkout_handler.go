package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-gate/internal/services"
	"ticket-gate/internal/status"
	"ticket-gate/models"
)

type CheckoutHandler struct {
	app       *pocketbase.PocketBase
	orders    *services.OrderService
	inventory *services.InventoryService
}

func NewCheckoutHandler(app *pocketbase.PocketBase, orders *services.OrderService, inventory *services.InventoryService) *CheckoutHandler {
	return &CheckoutHandler{
		app:       app,
		orders:    orders,
		inventory: inventory,
	}
}

// CreateOrder - reserve inventory and create an order
func (h *CheckoutHandler) CreateOrder(e *core.RequestEvent) error {
	var req services.CreateOrderRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	result, err := h.orders.CreateOrder(e.Request.Context(), req)
	if err != nil {
		if ie, ok := status.IsInsufficientInventory(err); ok {
			return e.JSON(http.StatusConflict, map[string]any{
				"error":     "Insufficient inventory",
				"remaining": ie.Remaining,
			})
		}
		switch {
		case errors.Is(err, status.ErrTicketTypeNotFound):
			return apis.NewNotFoundError("Ticket type not found", nil)
		case errors.Is(err, status.ErrTicketTypeUnavailable):
			return apis.NewBadRequestError("This ticket type is not available", nil)
		case errors.Is(err, status.ErrInvalidQuantity):
			return apis.NewBadRequestError("Invalid quantity", nil)
		case errors.Is(err, status.ErrIdempotencyKeyRequired):
			return apis.NewBadRequestError("Idempotency key required", nil)
		case errors.Is(err, status.ErrOrderInFlight):
			return e.JSON(http.StatusConflict, map[string]string{
				"error": "A request with this idempotency key is already in progress",
			})
		case errors.Is(err, status.ErrStorageUnavailable):
			return e.JSON(http.StatusServiceUnavailable, map[string]string{
				"error": "Checkout temporarily unavailable",
			})
		}
		return apis.NewBadRequestError("Failed to create order: "+err.Error(), err)
	}

	code := http.StatusCreated
	if result.Duplicate {
		code = http.StatusOK
	}
	return e.JSON(code, result)
}

// GetOrder - fetch one order by id
func (h *CheckoutHandler) GetOrder(e *core.RequestEvent) error {
	order, err := h.orders.GetOrder(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apis.NewNotFoundError("Order not found", nil)
	}
	return e.JSON(http.StatusOK, order)
}

// ListTicketTypes - public catalog with derived availability
func (h *CheckoutHandler) ListTicketTypes(e *core.RequestEvent) error {
	ticketTypes, err := h.inventory.ListTicketTypes(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Failed to list ticket types", err)
	}

	out := make([]map[string]any, len(ticketTypes))
	for i, tt := range ticketTypes {
		out[i] = enrichTicketType(tt)
	}
	return e.JSON(http.StatusOK, out)
}

// GetTicketType - one catalog entry with derived availability
func (h *CheckoutHandler) GetTicketType(e *core.RequestEvent) error {
	tt, err := h.inventory.GetTicketType(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		return apis.NewNotFoundError("Ticket type not found", nil)
	}
	return e.JSON(http.StatusOK, enrichTicketType(tt))
}

// enrichTicketType adds the derived fields a storefront needs. The
// availability status is computed here, never stored.
func enrichTicketType(tt *models.TicketType) map[string]any {
	soldPercentage := 0
	if tt.Capacity > 0 {
		soldPercentage = tt.SoldCount * 100 / tt.Capacity
	}

	return map[string]any{
		"id":              tt.ID,
		"name":            tt.Name,
		"base_price":      tt.BasePrice,
		"service_fee":     tt.ServiceFee,
		"final_price":     tt.FinalPrice(),
		"capacity":        tt.Capacity,
		"sold_count":      tt.SoldCount,
		"available":       tt.Remaining(),
		"status":          tt.EffectiveStatus(),
		"sold_percentage": soldPercentage,
	}
}
