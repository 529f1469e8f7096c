package status

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsInsufficientInventory(t *testing.T) {
	err := &InsufficientInventoryError{
		TicketTypeID: "tt-1",
		Requested:    5,
		Remaining:    2,
	}

	ie, ok := IsInsufficientInventory(err)
	require.True(t, ok)
	assert.Equal(t, 2, ie.Remaining)
	assert.Equal(t, 5, ie.Requested)

	// Survives wrapping
	wrapped := fmt.Errorf("create order: %w", err)
	ie, ok = IsInsufficientInventory(wrapped)
	require.True(t, ok)
	assert.Equal(t, "tt-1", ie.TicketTypeID)

	// Other errors are not shortages
	_, ok = IsInsufficientInventory(ErrTicketTypeNotFound)
	assert.False(t, ok)
	_, ok = IsInsufficientInventory(nil)
	assert.False(t, ok)
}

func TestInsufficientInventoryError_Message(t *testing.T) {
	err := &InsufficientInventoryError{TicketTypeID: "tt-1", Requested: 5, Remaining: 2}
	assert.Equal(t, "inventory: insufficient for tt-1: requested 5, remaining 2", err.Error())
}
