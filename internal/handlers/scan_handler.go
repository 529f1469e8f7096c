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
	"ticket-gate/models"
)

type ScanHandler struct {
	app               *pocketbase.PocketBase
	tickets           *services.TicketService
	limiter           *security.RateLimiter
	devices           *security.DeviceAuth
	requireDeviceAuth bool
}

func NewScanHandler(app *pocketbase.PocketBase, tickets *services.TicketService, limiter *security.RateLimiter, devices *security.DeviceAuth, requireDeviceAuth bool) *ScanHandler {
	return &ScanHandler{
		app:               app,
		tickets:           tickets,
		limiter:           limiter,
		devices:           devices,
		requireDeviceAuth: requireDeviceAuth,
	}
}

// Validate - atomically mark a presented token as used
func (h *ScanHandler) Validate(e *core.RequestEvent) error {
	var req struct {
		Token     string `json:"token"`
		DeviceID  string `json:"device_id"`
		DeviceKey string `json:"device_key"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if req.Token == "" {
		return apis.NewBadRequestError("Token required", nil)
	}

	ctx := e.Request.Context()

	if err := h.limiter.Allow(ctx, e.RealIP()); err != nil {
		return e.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Rate limit exceeded. Please try again later.",
		})
	}

	if h.requireDeviceAuth {
		if err := h.devices.Verify(req.DeviceID, req.DeviceKey); err != nil {
			return apis.NewUnauthorizedError("Device not authorized", nil)
		}
	}

	deviceID := req.DeviceID
	if deviceID == "" {
		deviceID = e.Request.UserAgent()
	}

	result, err := h.tickets.Validate(ctx, req.Token, services.ScanContext{
		DeviceID:   deviceID,
		RemoteAddr: e.RealIP(),
	})
	if err != nil {
		if errors.Is(err, status.ErrInvalidToken) {
			// Deliberately indistinguishable from an unknown token so
			// callers learn nothing about the expected format.
			return e.JSON(http.StatusNotFound, map[string]any{
				"success": false,
				"message": "Ticket not found",
			})
		}
		if errors.Is(err, status.ErrStorageUnavailable) {
			return e.JSON(http.StatusServiceUnavailable, map[string]string{
				"error": "Validation temporarily unavailable",
			})
		}
		return apis.NewInternalServerError("Validation failed", err)
	}

	code := http.StatusOK
	if !result.Success {
		code = http.StatusBadRequest
		if result.Outcome == models.OutcomeInvalid {
			code = http.StatusNotFound
		}
	}

	return e.JSON(code, result)
}

// Show - re-display a ticket for a caller already holding its token
func (h *ScanHandler) Show(e *core.RequestEvent) error {
	tkn := e.Request.URL.Query().Get("tkn")
	if tkn == "" {
		return apis.NewBadRequestError("Missing token parameter", nil)
	}

	ticket, scanURL, err := h.tickets.ShowByToken(e.Request.Context(), tkn)
	if err != nil {
		return apis.NewNotFoundError("Ticket not found", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket":   ticket,
		"scan_url": scanURL,
	})
}
