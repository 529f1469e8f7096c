package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-gate/internal/security"
	"ticket-gate/internal/services"
	"ticket-gate/internal/status"
)

type AdminHandler struct {
	app       *pocketbase.PocketBase
	tickets   *services.TicketService
	inventory *services.InventoryService
}

func NewAdminHandler(app *pocketbase.PocketBase, tickets *services.TicketService, inventory *services.InventoryService) *AdminHandler {
	return &AdminHandler{
		app:       app,
		tickets:   tickets,
		inventory: inventory,
	}
}

func (h *AdminHandler) requireSuperuser(e *core.RequestEvent) error {
	if e.Auth == nil || !e.Auth.IsSuperuser() {
		return apis.NewUnauthorizedError("Admin access required", nil)
	}
	return nil
}

// RevokeTicket - operator override, any state to revoked
func (h *AdminHandler) RevokeTicket(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	ticket, err := h.tickets.Revoke(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return apis.NewNotFoundError("Ticket not found", nil)
		}
		return apis.NewBadRequestError("Failed to revoke ticket", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket":  ticket,
		"message": "Ticket revoked successfully",
	})
}

// UpdateTicketType - allow-listed field edits plus the guarded capacity
// path. Capacity edits below sold_count are rejected with the counts
// left untouched.
func (h *AdminHandler) UpdateTicketType(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	var req struct {
		services.TicketTypePatch
		Capacity *int `json:"capacity"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()
	id := e.Request.PathValue("id")

	if req.Capacity != nil {
		if err := h.inventory.UpdateCapacity(ctx, id, *req.Capacity); err != nil {
			switch {
			case errors.Is(err, status.ErrTicketTypeNotFound):
				return apis.NewNotFoundError("Ticket type not found", nil)
			case errors.Is(err, status.ErrCapacityBelowSold):
				return e.JSON(http.StatusConflict, map[string]string{
					"error": "Capacity cannot be set below the current sold count",
				})
			}
			return apis.NewBadRequestError("Failed to update capacity: "+err.Error(), err)
		}
	}

	ticketType, err := h.inventory.UpdateTicketType(ctx, id, req.TicketTypePatch)
	if err != nil {
		if errors.Is(err, status.ErrTicketTypeNotFound) {
			return apis.NewNotFoundError("Ticket type not found", nil)
		}
		return apis.NewBadRequestError("Failed to update ticket type: "+err.Error(), err)
	}

	return e.JSON(http.StatusOK, ticketType)
}

// ListValidations - newest audit entries for fraud review
func (h *AdminHandler) ListValidations(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	records, err := h.tickets.ListValidations(e.Request.Context(), 200)
	if err != nil {
		return apis.NewBadRequestError("Failed to list validations", err)
	}

	return e.JSON(http.StatusOK, records)
}

// RegisterDevice - enroll a scanner device; the secret is stored only
// as a bcrypt hash
func (h *AdminHandler) RegisterDevice(e *core.RequestEvent) error {
	if err := h.requireSuperuser(e); err != nil {
		return err
	}

	var req struct {
		Name   string `json:"name"`
		Secret string `json:"secret"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Name == "" || len(req.Secret) < 8 {
		return apis.NewBadRequestError("Device name and a secret of at least 8 characters are required", nil)
	}

	hash, err := security.HashSecret(req.Secret)
	if err != nil {
		return apis.NewInternalServerError("Failed to hash secret", err)
	}

	collection, err := h.app.FindCollectionByNameOrId("devices")
	if err != nil {
		return apis.NewInternalServerError("Devices collection unavailable", err)
	}

	record := core.NewRecord(collection)
	record.Set("name", req.Name)
	record.Set("secret_hash", hash)
	record.Set("active", true)

	if err := h.app.Save(record); err != nil {
		return apis.NewBadRequestError("Failed to register device", err)
	}

	return e.JSON(http.StatusCreated, map[string]string{
		"id":   record.Id,
		"name": req.Name,
	})
}
