package models

import (
	"time"

	"store-service/internal/patch"
)

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name" validate:"required,max=255"`
	Description string    `json:"description" validate:"max=1000"`
	Price       float64   `json:"price" validate:"gte=0"`
	Quantity    int       `json:"quantity" validate:"gte=0,lte=2147483647"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductPatch is the partial form of Product. Nil fields were not sent.
type ProductPatch struct {
	Name        *string  `json:"name,omitempty" validate:"omitnil,min=1,max=255"`
	Description *string  `json:"description,omitempty" validate:"omitnil,max=1000"`
	Price       *float64 `json:"price,omitempty" validate:"omitnil,gte=0"`
	Quantity    *int     `json:"quantity,omitempty" validate:"omitnil,gte=0,lte=2147483647"`
}

// ProductFields is the merge schema for product patches. ID and the
// timestamps are owned by the store and have no entry.
var ProductFields = patch.MustNewSchema(
	patch.Optional("name",
		func(p *ProductPatch) *string { return p.Name },
		func(t *Product, v string) { t.Name = v }),
	patch.Optional("description",
		func(p *ProductPatch) *string { return p.Description },
		func(t *Product, v string) { t.Description = v }),
	patch.Optional("price",
		func(p *ProductPatch) *float64 { return p.Price },
		func(t *Product, v float64) { t.Price = v }),
	patch.Optional("quantity",
		func(p *ProductPatch) *int { return p.Quantity },
		func(t *Product, v int) { t.Quantity = v }),
)
