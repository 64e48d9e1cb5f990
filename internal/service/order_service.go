package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"store-service/internal/models"
	"store-service/internal/repository"
)

// ProductFinder resolves products for order lines.
type ProductFinder interface {
	Find(ctx context.Context, id int64) (*models.Product, error)
}

type OrderService struct {
	orders   repository.OrderRepository
	products ProductFinder
	tx       repository.Transactor
	log      *slog.Logger
}

func NewOrderService(orders repository.OrderRepository, products ProductFinder, tx repository.Transactor, logger *slog.Logger) *OrderService {
	return &OrderService{
		orders:   orders,
		products: products,
		tx:       tx,
		log:      logger.With("component", "order_service"),
	}
}

// CreateOrder validates every requested line against current stock and
// only then stores the order with all of its lines. The first failing line
// aborts the call and nothing is written. Stock is checked, not reserved:
// product quantities are left as they are.
func (s *OrderService) CreateOrder(ctx context.Context, username string, lines []models.LineRequest) (*models.Order, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", repository.ErrInvalidInput)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one line", repository.ErrInvalidInput)
	}
	for i := range lines {
		if err := validate.Struct(&lines[i]); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, invalid(err))
		}
	}

	order := &models.Order{
		Username: username,
		Lines:    make([]models.OrderLine, 0, len(lines)),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, req := range lines {
			product, err := s.products.Find(ctx, req.ProductID)
			if err != nil {
				return err
			}

			if req.Quantity > product.Quantity {
				return &InsufficientQuantityError{
					ProductID: product.ID,
					Requested: req.Quantity,
					Available: product.Quantity,
				}
			}

			order.Lines = append(order.Lines, models.OrderLine{
				ProductID:   product.ID,
				ProductName: product.Name,
				UnitPrice:   product.Price,
				Quantity:    req.Quantity,
			})
		}

		return s.orders.Save(ctx, order)
	})
	if err != nil {
		var iq *InsufficientQuantityError
		if errors.As(err, &iq) {
			s.log.WarnContext(ctx, "order rejected",
				"username", username,
				"product_id", iq.ProductID,
				"requested", iq.Requested,
				"available", iq.Available,
			)
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "order created",
		"order_id", order.ID,
		"username", username,
		"lines", len(order.Lines),
	)
	return order, nil
}

func (s *OrderService) FindOrdersByUsername(ctx context.Context, username string) ([]models.Order, error) {
	var orders []models.Order

	err := s.tx.WithinReadOnlyTx(ctx, func(ctx context.Context) error {
		var err error
		orders, err = s.orders.FindByUsername(ctx, username)
		return err
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (s *OrderService) FindOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order *models.Order

	err := s.tx.WithinReadOnlyTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: order %d", repository.ErrNotFound, id)
		}
		return nil, err
	}

	return order, nil
}

// DeleteOrderByID removes the order and its lines. Deleting a missing order
// succeeds.
func (s *OrderService) DeleteOrderByID(ctx context.Context, id int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.orders.DeleteByID(ctx, id)
	})
	if err != nil {
		return err
	}

	s.log.InfoContext(ctx, "order deleted", "order_id", id)
	return nil
}

func (s *OrderService) DeleteAll(ctx context.Context) error {
	s.log.WarnContext(ctx, "deleting all orders")

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.orders.DeleteAll(ctx)
	})
}
