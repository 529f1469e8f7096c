package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-gate/config"
	"ticket-gate/internal/status"
	"ticket-gate/models"
)

func newTestOrderService(t *testing.T) (*OrderService, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	cfg := &config.Config{
		MaxTicketsPerOrder: 10,
		Currency:           "ARS",
		IdempotencyGuard:   30 * time.Second,
	}
	return NewOrderService(nil, db, nil, nil, nil, cfg), mock
}

func TestCreateOrder_RequiresIdempotencyKey(t *testing.T) {
	svc, _ := newTestOrderService(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TicketTypeID: "tt-1",
		Quantity:     1,
		BuyerName:    "Ana Gomez",
		BuyerEmail:   "ana@example.com",
	})
	assert.ErrorIs(t, err, status.ErrIdempotencyKeyRequired)
}

func TestCreateOrder_QuantityBounds(t *testing.T) {
	svc, _ := newTestOrderService(t)

	base := CreateOrderRequest{
		TicketTypeID:   "tt-1",
		BuyerName:      "Ana Gomez",
		BuyerEmail:     "ana@example.com",
		IdempotencyKey: "key-1",
	}

	tests := []struct {
		name     string
		quantity int
	}{
		{"Zero quantity", 0},
		{"Negative quantity", -3},
		{"Over per-order cap", 11},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			req.Quantity = tc.quantity
			_, err := svc.CreateOrder(context.Background(), req)
			assert.ErrorIs(t, err, status.ErrInvalidQuantity)
		})
	}
}

func TestCreateOrder_RequiresBuyer(t *testing.T) {
	svc, _ := newTestOrderService(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TicketTypeID:   "tt-1",
		Quantity:       1,
		IdempotencyKey: "key-1",
	})
	assert.Error(t, err)
}

func TestCreateOrder_AttendeeCountMustMatchQuantity(t *testing.T) {
	svc, _ := newTestOrderService(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TicketTypeID:   "tt-1",
		Quantity:       2,
		BuyerName:      "Ana Gomez",
		BuyerEmail:     "ana@example.com",
		IdempotencyKey: "key-1",
		Attendees: []models.AttendeeInfo{
			{FirstName: "Ana", LastName: "Gomez"},
		},
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not match quantity")
}

func TestCreateOrder_AttendeesNeedFirstAndLastName(t *testing.T) {
	svc, _ := newTestOrderService(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TicketTypeID:   "tt-1",
		Quantity:       1,
		BuyerName:      "Ana Gomez",
		BuyerEmail:     "ana@example.com",
		IdempotencyKey: "key-1",
		Attendees: []models.AttendeeInfo{
			{FirstName: "Ana", LastName: "  "},
		},
	})
	assert.Error(t, err)
}

func TestNormalizeAttendees_DefaultsToBuyer(t *testing.T) {
	svc, _ := newTestOrderService(t)

	attendees, err := svc.normalizeAttendees(CreateOrderRequest{
		Quantity:  3,
		BuyerName: "Ana Maria Gomez",
	})
	require.NoError(t, err)
	require.Len(t, attendees, 3)

	for _, a := range attendees {
		assert.Equal(t, "Ana Maria", a.FirstName)
		assert.Equal(t, "Gomez", a.LastName)
	}
}

func TestAcquireGuard(t *testing.T) {
	svc, mock := newTestOrderService(t)

	mock.ExpectSetNX("idem:order:key-1", "1", 30*time.Second).SetVal(true)
	mock.ExpectDel("idem:order:key-1").SetVal(1)

	release, acquired := svc.acquireGuard(context.Background(), "key-1")
	assert.True(t, acquired)
	release()
}

func TestAcquireGuard_HeldByConcurrentRequest(t *testing.T) {
	svc, mock := newTestOrderService(t)

	mock.ExpectSetNX("idem:order:key-1", "1", 30*time.Second).SetVal(false)

	_, acquired := svc.acquireGuard(context.Background(), "key-1")
	assert.False(t, acquired)
}

func TestAcquireGuard_FailsOpenOnRedisError(t *testing.T) {
	svc, mock := newTestOrderService(t)

	mock.ExpectSetNX("idem:order:key-1", "1", 30*time.Second).SetErr(errors.New("connection refused"))

	release, acquired := svc.acquireGuard(context.Background(), "key-1")
	assert.True(t, acquired)
	release()
}

func TestAcquireGuard_DisabledWithoutRedis(t *testing.T) {
	cfg := &config.Config{IdempotencyGuard: 30 * time.Second}
	svc := NewOrderService(nil, nil, nil, nil, nil, cfg)

	release, acquired := svc.acquireGuard(context.Background(), "key-1")
	assert.True(t, acquired)
	release()
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name      string
		full      string
		firstName string
		lastName  string
	}{
		{"Two parts", "Ana Gomez", "Ana", "Gomez"},
		{"Three parts keep last as surname", "Ana Maria Gomez", "Ana Maria", "Gomez"},
		{"Single name", "Ana", "Ana", ""},
		{"Empty", "", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			attendee := splitName(tc.full)
			assert.Equal(t, tc.firstName, attendee.FirstName)
			assert.Equal(t, tc.lastName, attendee.LastName)
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errors.New("UNIQUE constraint failed: orders.idempotency_key")))
	assert.True(t, isUniqueViolation(errors.New("unique constraint violation")))
	assert.False(t, isUniqueViolation(errors.New("no such table: orders")))
	assert.False(t, isUniqueViolation(nil))
}

func TestAttendeesForIssue(t *testing.T) {
	supplied := []models.AttendeeInfo{{FirstName: "Juan", LastName: "Perez", DNI: "12345678"}}

	tests := []struct {
		name     string
		order    models.Order
		expected []models.AttendeeInfo
	}{
		{
			"Checkout attendees win",
			models.Order{BuyerName: "Ana Gomez", Quantity: 1, Attendees: supplied},
			supplied,
		},
		{
			"No attendees falls back to buyer",
			models.Order{BuyerName: "Ana Gomez", Quantity: 2},
			[]models.AttendeeInfo{{FirstName: "Ana", LastName: "Gomez"}, {FirstName: "Ana", LastName: "Gomez"}},
		},
		{
			"Count mismatch falls back to buyer",
			models.Order{BuyerName: "Ana Gomez", Quantity: 2, Attendees: supplied},
			[]models.AttendeeInfo{{FirstName: "Ana", LastName: "Gomez"}, {FirstName: "Ana", LastName: "Gomez"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, attendeesForIssue(&tc.order))
		})
	}
}

func newCheckoutService(t *testing.T, app core.App) *OrderService {
	t.Helper()

	cfg := &config.Config{
		MaxTicketsPerOrder: 10,
		Currency:           "ARS",
		IdempotencyGuard:   30 * time.Second,
	}
	inventory := NewInventoryService(app)
	tickets := NewTicketService(app, "http://localhost:8090")
	return NewOrderService(app, nil, inventory, tickets, nil, cfg)
}

func TestConfirmPayment_IssuesCheckoutAttendees(t *testing.T) {
	app := newTestApp(t)
	setupCheckoutCollections(t, app)
	typeID := seedTicketType(t, app, "General", 10, 0, "active")

	svc := newCheckoutService(t, app)

	created, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TicketTypeID:   typeID,
		Quantity:       1,
		BuyerName:      "Ana Gomez",
		BuyerEmail:     "ana@example.com",
		IdempotencyKey: "key-pending-1",
		Attendees: []models.AttendeeInfo{
			{FirstName: "Juan", LastName: "Perez", DNI: "12345678"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, created.Order.Status)
	assert.Empty(t, created.Tickets)

	confirmed, err := svc.ConfirmPayment(context.Background(), created.Order.ExternalReference, true)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, confirmed.Order.Status)
	require.Len(t, confirmed.Tickets, 1)

	// The seat carries the attendee captured at checkout, not the buyer
	assert.Equal(t, "Juan Perez", confirmed.Tickets[0].Ticket.AttendeeName)
	assert.Equal(t, "12345678", confirmed.Tickets[0].Ticket.AttendeeDNI)

	record, err := app.FindFirstRecordByFilter("tickets", "order_id = {:id}", dbx.Params{"id": created.Order.ID})
	require.NoError(t, err)
	assert.Equal(t, "Juan Perez", record.GetString("attendee_name"))
	assert.Equal(t, "12345678", record.GetString("attendee_dni"))
}

func TestConfirmPayment_RejectedReleasesReservation(t *testing.T) {
	app := newTestApp(t)
	setupCheckoutCollections(t, app)
	typeID := seedTicketType(t, app, "General", 10, 0, "active")

	svc := newCheckoutService(t, app)

	created, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		TicketTypeID:   typeID,
		Quantity:       2,
		BuyerName:      "Ana Gomez",
		BuyerEmail:     "ana@example.com",
		IdempotencyKey: "key-rejected-1",
	})
	require.NoError(t, err)

	tt, err := svc.inventory.GetTicketType(context.Background(), typeID)
	require.NoError(t, err)
	assert.Equal(t, 2, tt.SoldCount)

	result, err := svc.ConfirmPayment(context.Background(), created.Order.ExternalReference, false)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCanceled, result.Order.Status)
	assert.Empty(t, result.Tickets)

	tt, err = svc.inventory.GetTicketType(context.Background(), typeID)
	require.NoError(t, err)
	assert.Equal(t, 0, tt.SoldCount)
}

func TestCreateOrder_DuplicateKeyReturnsExistingOrder(t *testing.T) {
	app := newTestApp(t)
	setupCheckoutCollections(t, app)
	typeID := seedTicketType(t, app, "General", 10, 0, "active")

	svc := newCheckoutService(t, app)

	req := CreateOrderRequest{
		TicketTypeID:   typeID,
		Quantity:       1,
		BuyerName:      "Ana Gomez",
		BuyerEmail:     "ana@example.com",
		IdempotencyKey: "key-dup-1",
	}

	first, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Order.ID, second.Order.ID)

	// No second reservation burned
	tt, err := svc.inventory.GetTicketType(context.Background(), typeID)
	require.NoError(t, err)
	assert.Equal(t, 1, tt.SoldCount)
}
