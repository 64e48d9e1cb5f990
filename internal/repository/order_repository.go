package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"store-service/internal/database"
	"store-service/internal/models"
)

type orderRepo struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepo{pool: pool}
}

// Save writes the order row and all of its lines. Callers wanting all or
// nothing run it inside a Transactor unit.
func (r *orderRepo) Save(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("%w: order cannot be nil", ErrInvalidInput)
	}
	if order.ID != 0 {
		return fmt.Errorf("%w: order %d is already stored", ErrInvalidInput, order.ID)
	}
	if strings.TrimSpace(order.Username) == "" {
		return fmt.Errorf("%w: username cannot be empty", ErrInvalidInput)
	}

	db := database.Executor(ctx, r.pool)

	err := db.QueryRow(ctx,
		`INSERT INTO orders (username) VALUES ($1) RETURNING id, created_at`,
		order.Username,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		if ie := integrityError(err); ie != nil {
			return ie
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	insertLine := `
	INSERT INTO order_lines (order_id, position, product_id, product_name, unit_price, quantity)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id
	`

	for i := range order.Lines {
		line := &order.Lines[i]
		line.OrderID = order.ID

		err := db.QueryRow(ctx, insertLine,
			order.ID,
			i,
			line.ProductID,
			line.ProductName,
			line.UnitPrice,
			line.Quantity,
		).Scan(&line.ID)
		if err != nil {
			if ie := integrityError(err); ie != nil {
				return ie
			}
			return fmt.Errorf("failed to create order line %d: %w", i, err)
		}
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	sql := `SELECT
	o.id,
	o.username,
	o.created_at,
	l.id,
	l.product_id,
	l.product_name,
	l.unit_price,
	l.quantity
	FROM orders o
	LEFT JOIN order_lines l ON o.id = l.order_id
	WHERE o.id = $1
	ORDER BY l.position
	`

	rows, err := database.Executor(ctx, r.pool).Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	defer rows.Close()

	var order *models.Order

	for rows.Next() {
		var current models.Order
		var lineID pgtype.Int8
		var productID pgtype.Int8
		var productName pgtype.Text
		var unitPrice pgtype.Float8
		var quantity pgtype.Int4

		err := rows.Scan(
			&current.ID,
			&current.Username,
			&current.CreatedAt,
			&lineID,
			&productID,
			&productName,
			&unitPrice,
			&quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order/line: %w", err)
		}

		if order == nil {
			current.Lines = []models.OrderLine{}
			order = &current
		}

		if lineID.Valid {
			order.Lines = append(order.Lines, models.OrderLine{
				ID:          lineID.Int64,
				OrderID:     order.ID,
				ProductID:   productID.Int64,
				ProductName: productName.String,
				UnitPrice:   unitPrice.Float64,
				Quantity:    int(quantity.Int32),
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	if order == nil {
		return nil, ErrNotFound
	}

	return order, nil
}

func (r *orderRepo) FindByUsername(ctx context.Context, username string) ([]models.Order, error) {
	db := database.Executor(ctx, r.pool)

	rows, err := db.Query(ctx,
		`SELECT id, username, created_at FROM orders WHERE username = $1 ORDER BY id`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders by username: %w", err)
	}

	orders := []models.Order{}
	index := make(map[int64]int)
	var ids []int64

	for rows.Next() {
		o := models.Order{Lines: []models.OrderLine{}}
		if err := rows.Scan(&o.ID, &o.Username, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan orders by username: %w", err)
		}
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	lineRows, err := db.Query(ctx, `
	SELECT id, order_id, product_id, product_name, unit_price, quantity
	FROM order_lines
	WHERE order_id = ANY($1::bigint[])
	ORDER BY order_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get order lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l models.OrderLine
		err := lineRows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.UnitPrice, &l.Quantity)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order lines: %w", err)
		}
		o := &orders[index[l.OrderID]]
		o.Lines = append(o.Lines, l)
	}

	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return orders, nil
}

// DeleteByID removes the order and, through the cascade, its lines. A
// missing order is not an error.
func (r *orderRepo) DeleteByID(ctx context.Context, id int64) error {
	_, err := database.Executor(ctx, r.pool).Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", id, err)
	}
	return nil
}

func (r *orderRepo) DeleteAll(ctx context.Context) error {
	_, err := database.Executor(ctx, r.pool).Exec(ctx, `DELETE FROM orders`)
	if err != nil {
		return fmt.Errorf("failed to delete orders: %w", err)
	}
	return nil
}
