package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{
				Name:     "order_id",
				Required: true,
			},
			&core.TextField{
				Name:     "ticket_type_id",
				Required: true,
			},
			&core.TextField{
				Name:     "token_digest",
				Required: true,
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"valid", "used", "revoked", "expired"},
			},
			&core.TextField{
				Name: "attendee_name",
			},
			&core.EmailField{
				Name: "attendee_email",
			},
			&core.TextField{
				Name: "attendee_dni",
			},
			&core.DateField{
				Name: "used_at",
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
		)

		// Scans look tickets up by digest only; the unique index doubles
		// as the collision guard.
		collection.AddIndex("idx_tickets_token_digest", true, "token_digest", "")
		collection.AddIndex("idx_tickets_order_id", false, "order_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
