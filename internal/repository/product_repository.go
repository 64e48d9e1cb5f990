package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"store-service/internal/database"
	"store-service/internal/models"
)

type productRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &productRepo{pool: pool}
}

const productColumns = `id, name, description, price, quantity, created_at, updated_at`

func scanProduct(row pgx.Row, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Quantity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	var product models.Product
	err := scanProduct(database.Executor(ctx, r.pool).QueryRow(ctx, sql, id), &product)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product by id %d: %w", id, err)
	}

	return &product, nil
}

func (r *productRepo) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := database.Executor(ctx, r.pool).
		QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, id).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product %d: %w", id, err)
	}
	return exists, nil
}

func (r *productRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := database.Executor(ctx, r.pool).
		QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE name = $1)`, name).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product name: %w", err)
	}
	return exists, nil
}

func (r *productRepo) Save(ctx context.Context, p *models.Product) error {
	if p == nil {
		return fmt.Errorf("%w: product cannot be nil", ErrInvalidInput)
	}

	db := database.Executor(ctx, r.pool)

	if p.ID == 0 {
		sql := `
		INSERT INTO products (name, description, price, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
		`
		err := db.QueryRow(ctx, sql, p.Name, p.Description, p.Price, p.Quantity).
			Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if ie := integrityError(err); ie != nil {
				return ie
			}
			return fmt.Errorf("failed to create product: %w", err)
		}
		return nil
	}

	sql := `
	UPDATE products
	SET
		name = $1,
		description = $2,
		price = $3,
		quantity = $4,
		updated_at = NOW()
	WHERE id = $5
	RETURNING created_at, updated_at
	`
	err := db.QueryRow(ctx, sql, p.Name, p.Description, p.Price, p.Quantity, p.ID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if ie := integrityError(err); ie != nil {
			return ie
		}
		return fmt.Errorf("failed to update product %d: %w", p.ID, err)
	}

	return nil
}

func (r *productRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := database.Executor(ctx, r.pool).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if ie := integrityError(err); ie != nil {
			return ie
		}
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *productRepo) FindAll(ctx context.Context) ([]models.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products ORDER BY id`
	return r.query(ctx, "all products", sql)
}

func (r *productRepo) FindExpensiveLowStock(ctx context.Context, minPrice float64, maxQuantity int) ([]models.Product, error) {
	sql := `
	SELECT ` + productColumns + `
	FROM products
	WHERE price > $1 AND quantity < $2
	ORDER BY price DESC, id
	`
	return r.query(ctx, "expensive low-stock products", sql, minPrice, maxQuantity)
}

func (r *productRepo) query(ctx context.Context, what, sql string, args ...any) ([]models.Product, error) {
	rows, err := database.Executor(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan products: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return products, nil
}
