package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketType_FinalPrice(t *testing.T) {
	tt := TicketType{
		BasePrice:  decimal.NewFromFloat(1500.50),
		ServiceFee: decimal.NewFromFloat(150.05),
	}

	assert.True(t, tt.FinalPrice().Equal(decimal.NewFromFloat(1650.55)))
}

func TestTicketType_Remaining(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		soldCount int
		expected  int
	}{
		{"Nothing sold", 100, 0, 100},
		{"Partially sold", 100, 37, 63},
		{"Exactly sold out", 100, 100, 0},
		{"Over capacity never goes negative", 100, 105, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tt := TicketType{Capacity: tc.capacity, SoldCount: tc.soldCount}
			assert.Equal(t, tc.expected, tt.Remaining())
		})
	}
}

func TestTicketType_EffectiveStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    TicketTypeStatus
		capacity  int
		soldCount int
		expected  TicketTypeStatus
	}{
		{"Active with stock", TicketTypeActive, 100, 50, TicketTypeActive},
		{"Active sold out is derived", TicketTypeActive, 100, 100, TicketTypeSoldOut},
		{"Inactive stays inactive even at capacity", TicketTypeInactive, 100, 100, TicketTypeInactive},
		{"Inactive with stock", TicketTypeInactive, 100, 10, TicketTypeInactive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tt := TicketType{Status: tc.status, Capacity: tc.capacity, SoldCount: tc.soldCount}
			assert.Equal(t, tc.expected, tt.EffectiveStatus())
		})
	}
}

func TestAttendeeInfo_FullName(t *testing.T) {
	tests := []struct {
		name     string
		attendee AttendeeInfo
		expected string
	}{
		{"First and last", AttendeeInfo{FirstName: "Ana", LastName: "Gomez"}, "Ana Gomez"},
		{"First only", AttendeeInfo{FirstName: "Ana"}, "Ana"},
		{"Last only", AttendeeInfo{LastName: "Gomez"}, "Gomez"},
		{"Empty", AttendeeInfo{}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.attendee.FullName())
		})
	}
}

func TestTicket_TokenDigestNeverSerialized(t *testing.T) {
	ticket := Ticket{
		ID:          "ticket-1",
		OrderID:     "order-1",
		TokenDigest: "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef",
		Status:      TicketValid,
	}

	jsonData, err := json.Marshal(ticket)
	require.NoError(t, err)

	assert.NotContains(t, string(jsonData), ticket.TokenDigest)
	assert.NotContains(t, string(jsonData), "token_digest")
}

func TestOrder_JSONSerialization(t *testing.T) {
	order := Order{
		ID:                "order-123",
		BuyerName:         "Ana Gomez",
		BuyerEmail:        "ana@example.com",
		TicketTypeID:      "tt-456",
		Quantity:          2,
		Amount:            decimal.NewFromFloat(3301.10),
		Currency:          "ARS",
		Status:            OrderPending,
		IdempotencyKey:    "key-789",
		ExternalReference: "ORD-1700000000-ABCD1234",
	}

	jsonData, err := json.Marshal(order)
	require.NoError(t, err)

	var unmarshaled Order
	require.NoError(t, json.Unmarshal(jsonData, &unmarshaled))

	assert.Equal(t, order.ID, unmarshaled.ID)
	assert.Equal(t, order.Status, unmarshaled.Status)
	assert.True(t, order.Amount.Equal(unmarshaled.Amount))
	assert.Nil(t, unmarshaled.PaidAt)
}
