package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"store-service/internal/models"
	"store-service/internal/repository"
)

type orderRepo struct {
	s *Store
}

func (r *orderRepo) Save(ctx context.Context, o *models.Order) error {
	if o == nil {
		return fmt.Errorf("%w: order cannot be nil", repository.ErrInvalidInput)
	}
	if o.ID != 0 {
		return fmt.Errorf("%w: order %d is already stored", repository.ErrInvalidInput, o.ID)
	}
	if strings.TrimSpace(o.Username) == "" {
		return checkViolation("orders_username_check")
	}

	return r.s.write(ctx, func() error {
		for _, l := range o.Lines {
			if l.Quantity < 0 {
				return checkViolation("order_lines_quantity_check")
			}
		}

		r.s.nextOrder++
		o.ID = r.s.nextOrder
		o.CreatedAt = r.s.now()

		lines := make([]models.OrderLine, len(o.Lines))
		for i := range o.Lines {
			r.s.nextLine++
			o.Lines[i].ID = r.s.nextLine
			o.Lines[i].OrderID = o.ID
			lines[i] = o.Lines[i]
		}

		stored := *o
		stored.Lines = lines
		r.s.orders[o.ID] = stored
		return nil
	})
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var (
		o  models.Order
		ok bool
	)
	r.s.read(ctx, func() { o, ok = r.s.orders[id] })
	if !ok {
		return nil, repository.ErrNotFound
	}
	o.Lines = slices.Clone(o.Lines)
	return &o, nil
}

func (r *orderRepo) FindByUsername(ctx context.Context, username string) ([]models.Order, error) {
	orders := []models.Order{}
	r.s.read(ctx, func() {
		for _, o := range r.s.orders {
			if o.Username == username {
				o.Lines = slices.Clone(o.Lines)
				orders = append(orders, o)
			}
		}
	})
	slices.SortFunc(orders, func(a, b models.Order) int { return cmp.Compare(a.ID, b.ID) })
	return orders, nil
}

func (r *orderRepo) DeleteByID(ctx context.Context, id int64) error {
	return r.s.write(ctx, func() error {
		delete(r.s.orders, id)
		return nil
	})
}

func (r *orderRepo) DeleteAll(ctx context.Context) error {
	return r.s.write(ctx, func() error {
		clear(r.s.orders)
		return nil
	})
}
