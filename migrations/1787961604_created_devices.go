package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("devices")

		collection.Fields.Add(
			&core.TextField{
				Name:     "name",
				Required: true,
			},
			&core.TextField{
				Name:     "secret_hash",
				Required: true,
			},
			&core.BoolField{
				Name: "active",
			},
			&core.AutodateField{
				Name:     "created",
				OnCreate: true,
			},
		)

		collection.AddIndex("idx_devices_name", true, "name", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("devices")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
