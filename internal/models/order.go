package models

import "time"

// Order owns its lines. Lines keep only the order id, never a pointer back.
type Order struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderLine captures the product as it was when the order was placed.
type OrderLine struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	UnitPrice   float64 `json:"unit_price"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
}

type LineRequest struct {
	ProductID int64 `json:"product_id" validate:"gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0,lte=2147483647"`
}

func (o *Order) Total() float64 {
	var total float64
	for _, l := range o.Lines {
		total += l.UnitPrice * float64(l.Quantity)
	}
	return total
}
