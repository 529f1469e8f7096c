package status

import (
	"errors"
	"fmt"
)

var (
	ErrTicketTypeNotFound    = errors.New("ticket type: not found")
	ErrTicketTypeUnavailable = errors.New("ticket type: not available")
	ErrCapacityBelowSold     = errors.New("ticket type: capacity below sold count")
	ErrInventoryUnderflow    = errors.New("inventory: release below zero")

	ErrInvalidToken   = errors.New("token: malformed")
	ErrTicketNotFound = errors.New("ticket: not found")

	ErrOrderNotFound          = errors.New("order: not found")
	ErrOrderNotPending        = errors.New("order: not pending")
	ErrIdempotencyKeyRequired = errors.New("order: idempotency key required")
	ErrOrderInFlight          = errors.New("order: duplicate request in flight")
	ErrInvalidQuantity        = errors.New("order: invalid quantity")

	ErrRateLimited     = errors.New("scan: rate limit exceeded")
	ErrDeviceUnknown   = errors.New("device: unknown or inactive")
	ErrDeviceBadSecret = errors.New("device: secret mismatch")
	ErrBadWebhookHMAC  = errors.New("webhook: signature mismatch")

	// ErrStorageUnavailable wraps storage-layer failures under the
	// conditional updates so handler edges can answer 503 instead of a
	// generic 500.
	ErrStorageUnavailable = errors.New("storage: unavailable")
)

// InsufficientInventoryError is returned by Reserve when the requested
// quantity exceeds remaining capacity. Remaining carries the actual
// count so callers can offer a reduced quantity.
type InsufficientInventoryError struct {
	TicketTypeID string
	Requested    int
	Remaining    int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("inventory: insufficient for %s: requested %d, remaining %d",
		e.TicketTypeID, e.Requested, e.Remaining)
}

// IsInsufficientInventory reports whether err is an inventory shortage
// and, if so, returns the typed error.
func IsInsufficientInventory(err error) (*InsufficientInventoryError, bool) {
	var ie *InsufficientInventoryError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
