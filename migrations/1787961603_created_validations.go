package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("validations")

		collection.Fields.Add(
			// Empty when no ticket matched the presented token.
			&core.TextField{
				Name: "ticket_id",
			},
			&core.SelectField{
				Name:      "outcome",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"success", "already_used", "revoked", "expired", "invalid"},
			},
			&core.TextField{
				Name: "device_id",
			},
			&core.TextField{
				Name: "remote_addr",
			},
			&core.DateField{
				Name:     "validated_at",
				Required: true,
			},
		)

		collection.AddIndex("idx_validations_ticket_id", false, "ticket_id", "")
		collection.AddIndex("idx_validations_validated_at", false, "validated_at", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("validations")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
