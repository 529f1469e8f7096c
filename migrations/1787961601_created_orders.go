package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("orders")

		collection.Fields.Add(
			&core.TextField{
				Name:     "buyer_name",
				Required: true,
			},
			&core.EmailField{
				Name:     "buyer_email",
				Required: true,
			},
			&core.TextField{
				Name:     "ticket_type_id",
				Required: true,
			},
			&core.NumberField{
				Name:    "quantity",
				Min:     types.Pointer(1.0),
				OnlyInt: true,
			},
			&core.NumberField{
				Name: "amount",
				Min:  types.Pointer(0.0),
			},
			&core.TextField{
				Name: "currency",
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"pending", "paid", "refunded", "canceled"},
			},
			&core.TextField{
				Name:     "idempotency_key",
				Required: true,
			},
			&core.TextField{
				Name: "external_reference",
			},
			// Captured at checkout so a later payment confirmation can
			// issue tickets with the right per-seat identities.
			&core.JSONField{
				Name: "attendees",
			},
			&core.DateField{
				Name: "paid_at",
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
			&core.AutodateField{
				Name:     "updated",
				OnCreate: true,
				OnUpdate: true,
			},
		)

		// The unique index is the durable idempotency arbiter.
		collection.AddIndex("idx_orders_idempotency_key", true, "idempotency_key", "")
		collection.AddIndex("idx_orders_external_reference", false, "external_reference", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("orders")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
