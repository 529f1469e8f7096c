package services

import (
	"testing"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tests"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *tests.TestApp {
	t.Helper()

	app, err := tests.NewTestApp()
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return app
}

func setupTicketTypesCollection(t *testing.T, app core.App) {
	t.Helper()

	collection := core.NewBaseCollection("ticket_types")
	collection.Fields.Add(
		&core.TextField{Name: "name", Required: true},
		&core.NumberField{Name: "base_price", Min: types.Pointer(0.0)},
		&core.NumberField{Name: "service_fee", Min: types.Pointer(0.0)},
		&core.NumberField{Name: "capacity", Min: types.Pointer(0.0), OnlyInt: true},
		&core.NumberField{Name: "sold_count", Min: types.Pointer(0.0), OnlyInt: true},
		&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"active", "inactive"}},
		&core.AutodateField{Name: "created", OnCreate: true},
	)
	require.NoError(t, app.Save(collection))
}

func seedTicketType(t *testing.T, app core.App, name string, capacity, sold int, status string) string {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("ticket_types")
	require.NoError(t, err)

	record := core.NewRecord(collection)
	record.Set("name", name)
	record.Set("base_price", 1000.0)
	record.Set("service_fee", 100.0)
	record.Set("capacity", capacity)
	record.Set("sold_count", sold)
	record.Set("status", status)
	require.NoError(t, app.Save(record))
	return record.Id
}

func setupTicketsCollection(t *testing.T, app core.App) {
	t.Helper()

	collection := core.NewBaseCollection("tickets")
	collection.Fields.Add(
		&core.TextField{Name: "order_id"},
		&core.TextField{Name: "ticket_type_id"},
		&core.TextField{Name: "token_digest", Required: true},
		&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"valid", "used", "revoked", "expired"}},
		&core.TextField{Name: "attendee_name"},
		&core.EmailField{Name: "attendee_email"},
		&core.TextField{Name: "attendee_dni"},
		&core.DateField{Name: "used_at"},
		&core.AutodateField{Name: "created", OnCreate: true},
	)
	collection.AddIndex("idx_test_tickets_token_digest", true, "token_digest", "")
	require.NoError(t, app.Save(collection))
}

func seedTicket(t *testing.T, app core.App, ticketTypeID, digest, status, attendee string) string {
	t.Helper()

	collection, err := app.FindCollectionByNameOrId("tickets")
	require.NoError(t, err)

	record := core.NewRecord(collection)
	record.Set("order_id", "order-seed")
	record.Set("ticket_type_id", ticketTypeID)
	record.Set("token_digest", digest)
	record.Set("status", status)
	record.Set("attendee_name", attendee)
	record.Set("attendee_email", "seed@example.com")
	require.NoError(t, app.Save(record))
	return record.Id
}

func setupValidationsCollection(t *testing.T, app core.App) {
	t.Helper()

	collection := core.NewBaseCollection("validations")
	collection.Fields.Add(
		&core.TextField{Name: "ticket_id"},
		&core.SelectField{Name: "outcome", Required: true, MaxSelect: 1, Values: []string{"success", "already_used", "revoked", "expired", "invalid"}},
		&core.TextField{Name: "device_id"},
		&core.TextField{Name: "remote_addr"},
		&core.DateField{Name: "validated_at"},
	)
	require.NoError(t, app.Save(collection))
}

func setupOrdersCollection(t *testing.T, app core.App) {
	t.Helper()

	collection := core.NewBaseCollection("orders")
	collection.Fields.Add(
		&core.TextField{Name: "buyer_name", Required: true},
		&core.EmailField{Name: "buyer_email", Required: true},
		&core.TextField{Name: "ticket_type_id", Required: true},
		&core.NumberField{Name: "quantity", Min: types.Pointer(1.0), OnlyInt: true},
		&core.NumberField{Name: "amount", Min: types.Pointer(0.0)},
		&core.TextField{Name: "currency"},
		&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: []string{"pending", "paid", "refunded", "canceled"}},
		&core.TextField{Name: "idempotency_key", Required: true},
		&core.TextField{Name: "external_reference"},
		&core.JSONField{Name: "attendees"},
		&core.DateField{Name: "paid_at"},
		&core.AutodateField{Name: "created", OnCreate: true},
	)
	collection.AddIndex("idx_test_orders_idempotency_key", true, "idempotency_key", "")
	require.NoError(t, app.Save(collection))
}

func setupCheckoutCollections(t *testing.T, app core.App) {
	t.Helper()

	setupTicketTypesCollection(t, app)
	setupOrdersCollection(t, app)
	setupTicketsCollection(t, app)
	setupValidationsCollection(t, app)
}
