package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("ticket_types")

		collection.Fields.Add(
			&core.TextField{
				Name:     "name",
				Required: true,
			},
			&core.NumberField{
				Name: "base_price",
				Min:  types.Pointer(0.0),
			},
			&core.NumberField{
				Name: "service_fee",
				Min:  types.Pointer(0.0),
			},
			&core.NumberField{
				Name:    "capacity",
				Min:     types.Pointer(0.0),
				OnlyInt: true,
			},
			&core.NumberField{
				Name:    "sold_count",
				Min:     types.Pointer(0.0),
				OnlyInt: true,
			},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"active", "inactive"},
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

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("ticket_types")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
