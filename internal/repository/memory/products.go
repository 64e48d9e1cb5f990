package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"store-service/internal/models"
	"store-service/internal/repository"
)

type productRepo struct {
	s *Store
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	var (
		p  models.Product
		ok bool
	)
	r.s.read(ctx, func() { p, ok = r.s.products[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *productRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var ok bool
	r.s.read(ctx, func() { _, ok = r.s.products[id] })
	return ok, nil
}

func (r *productRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var found bool
	r.s.read(ctx, func() {
		for _, p := range r.s.products {
			if p.Name == name {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r *productRepo) Save(ctx context.Context, p *models.Product) error {
	if p == nil {
		return fmt.Errorf("%w: product cannot be nil", repository.ErrInvalidInput)
	}

	return r.s.write(ctx, func() error {
		if p.Price < 0 {
			return checkViolation("products_price_check")
		}
		if p.Quantity < 0 {
			return checkViolation("products_quantity_check")
		}
		for id, other := range r.s.products {
			if other.Name == p.Name && id != p.ID {
				return uniqueViolation(p.Name)
			}
		}

		now := r.s.now()
		if p.ID == 0 {
			r.s.nextProduct++
			p.ID = r.s.nextProduct
			p.CreatedAt = now
			p.UpdatedAt = now
			r.s.products[p.ID] = *p
			return nil
		}

		stored, ok := r.s.products[p.ID]
		if !ok {
			return repository.ErrNotFound
		}
		p.CreatedAt = stored.CreatedAt
		p.UpdatedAt = now
		r.s.products[p.ID] = *p
		return nil
	})
}

func (r *productRepo) DeleteByID(ctx context.Context, id int64) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.products[id]; !ok {
			return repository.ErrNotFound
		}
		delete(r.s.products, id)
		return nil
	})
}

func (r *productRepo) FindAll(ctx context.Context) ([]models.Product, error) {
	return r.filter(ctx, func(models.Product) bool { return true }, func(a, b models.Product) int {
		return cmp.Compare(a.ID, b.ID)
	}), nil
}

func (r *productRepo) FindExpensiveLowStock(ctx context.Context, minPrice float64, maxQuantity int) ([]models.Product, error) {
	match := func(p models.Product) bool {
		return p.Price > minPrice && p.Quantity < maxQuantity
	}
	byPriceDesc := func(a, b models.Product) int {
		if c := cmp.Compare(b.Price, a.Price); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
	return r.filter(ctx, match, byPriceDesc), nil
}

func (r *productRepo) filter(ctx context.Context, match func(models.Product) bool, order func(a, b models.Product) int) []models.Product {
	products := []models.Product{}
	r.s.read(ctx, func() {
		for _, p := range r.s.products {
			if match(p) {
				products = append(products, p)
			}
		}
	})
	slices.SortFunc(products, order)
	return products
}
