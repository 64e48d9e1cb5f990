package repository

import (
	"context"

	"store-service/internal/models"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	// Save inserts when ID is zero and updates otherwise. ID and timestamps
	// are written back onto p.
	Save(ctx context.Context, p *models.Product) error
	DeleteByID(ctx context.Context, id int64) error
	FindAll(ctx context.Context) ([]models.Product, error)
	// FindExpensiveLowStock returns products with price > minPrice and
	// quantity < maxQuantity, most expensive first.
	FindExpensiveLowStock(ctx context.Context, minPrice float64, maxQuantity int) ([]models.Product, error)
}

type OrderRepository interface {
	// Save stores a new order together with its lines. Stored orders are
	// immutable.
	Save(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	FindByUsername(ctx context.Context, username string) ([]models.Order, error)
	DeleteByID(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}

// Transactor runs fn inside one unit of work. The unit commits when fn
// returns nil and is discarded on any other exit. Calls made while a unit
// is already open on ctx join it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	WithinReadOnlyTx(ctx context.Context, fn func(ctx context.Context) error) error
}
