package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"store-service/internal/models"
	"store-service/internal/patch"
	"store-service/internal/repository"
)

// ProductService is the product catalog. Every public call runs in its own
// unit of work, or joins the one already open on ctx.
type ProductService struct {
	products repository.ProductRepository
	tx       repository.Transactor
	fields   *patch.Schema[models.Product, models.ProductPatch]
	log      *slog.Logger
}

type ProductOption func(*ProductService)

// WithPatchSchema replaces models.ProductFields as the merge schema used by
// Patch.
func WithPatchSchema(schema *patch.Schema[models.Product, models.ProductPatch]) ProductOption {
	return func(s *ProductService) {
		s.fields = schema
	}
}

func NewProductService(products repository.ProductRepository, tx repository.Transactor, logger *slog.Logger, opts ...ProductOption) *ProductService {
	s := &ProductService{
		products: products,
		tx:       tx,
		fields:   models.ProductFields,
		log:      logger.With("component", "product_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores a new product. A name already in use is only logged; the
// store's unique constraint decides whether the insert goes through.
func (s *ProductService) Add(ctx context.Context, p *models.Product) (*models.Product, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: product cannot be nil", repository.ErrInvalidInput)
	}
	if err := validate.Struct(p); err != nil {
		return nil, invalid(err)
	}

	created := models.Product{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.products.ExistsByName(ctx, created.Name)
		if err != nil {
			return err
		}
		if exists {
			s.log.WarnContext(ctx, "product with this name already exists", "name", created.Name)
		}

		return s.products.Save(ctx, &created)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "product added", "product_id", created.ID, "name", created.Name)
	return &created, nil
}

func (s *ProductService) Find(ctx context.Context, id int64) (*models.Product, error) {
	var product *models.Product

	err := s.tx.WithinReadOnlyTx(ctx, func(ctx context.Context) error {
		p, err := s.products.GetByID(ctx, id)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, productError(id, err)
	}

	s.log.DebugContext(ctx, "product found", "product_id", id)
	return product, nil
}

// Update replaces name, description, price and quantity of product id.
func (s *ProductService) Update(ctx context.Context, id int64, replacement *models.Product) (*models.Product, error) {
	if replacement == nil {
		return nil, fmt.Errorf("%w: product cannot be nil", repository.ErrInvalidInput)
	}
	if err := validate.Struct(replacement); err != nil {
		return nil, invalid(err)
	}

	var updated *models.Product

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.products.GetByID(ctx, id)
		if err != nil {
			return err
		}

		existing.Name = replacement.Name
		existing.Description = replacement.Description
		existing.Price = replacement.Price
		existing.Quantity = replacement.Quantity

		if err := s.products.Save(ctx, existing); err != nil {
			return err
		}
		updated = existing
		return nil
	})
	if err != nil {
		return nil, productError(id, err)
	}

	s.log.InfoContext(ctx, "product updated", "product_id", id)
	return updated, nil
}

// Patch merges the provided fields of partial onto product id.
func (s *ProductService) Patch(ctx context.Context, id int64, partial *models.ProductPatch) (*models.Product, error) {
	if partial != nil {
		if err := validate.Struct(partial); err != nil {
			return nil, invalid(err)
		}
	}

	var patched *models.Product

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.products.GetByID(ctx, id)
		if err != nil {
			return err
		}

		merged, err := s.fields.Merge(existing, partial)
		if err != nil {
			return fmt.Errorf("%w: product %d: %w", ErrPatch, id, err)
		}

		if err := s.products.Save(ctx, merged); err != nil {
			return err
		}
		patched = merged
		return nil
	})
	if err != nil {
		return nil, productError(id, err)
	}

	s.log.InfoContext(ctx, "product patched",
		"product_id", id,
		"fields", s.fields.Present(partial),
	)
	return patched, nil
}

func (s *ProductService) Remove(ctx context.Context, id int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		exists, err := s.products.ExistsByID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			s.log.WarnContext(ctx, "attempt to remove missing product", "product_id", id)
			return repository.ErrNotFound
		}

		return s.products.DeleteByID(ctx, id)
	})
	if err != nil {
		return productError(id, err)
	}

	s.log.InfoContext(ctx, "product removed", "product_id", id)
	return nil
}

func (s *ProductService) ListAll(ctx context.Context) ([]models.Product, error) {
	var products []models.Product

	err := s.tx.WithinReadOnlyTx(ctx, func(ctx context.Context) error {
		var err error
		products, err = s.products.FindAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.DebugContext(ctx, "products listed", "count", len(products))
	return products, nil
}

// FindExpensiveLowStock returns products priced above minPrice with fewer
// than maxQuantity units in stock, most expensive first. An empty result is
// not an error.
func (s *ProductService) FindExpensiveLowStock(ctx context.Context, minPrice float64, maxQuantity int) ([]models.Product, error) {
	if maxQuantity < math.MinInt32 || maxQuantity > math.MaxInt32 {
		return nil, fmt.Errorf("%w: maxQuantity %d is out of range", repository.ErrInvalidInput, maxQuantity)
	}

	var products []models.Product

	err := s.tx.WithinReadOnlyTx(ctx, func(ctx context.Context) error {
		var err error
		products, err = s.products.FindExpensiveLowStock(ctx, minPrice, maxQuantity)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.DebugContext(ctx, "expensive low-stock query",
		"min_price", minPrice,
		"max_quantity", maxQuantity,
		"count", len(products),
	)
	return products, nil
}

func productError(id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: product %d", repository.ErrNotFound, id)
	}
	return err
}
