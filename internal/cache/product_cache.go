package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"store-service/internal/database"
	"store-service/internal/models"
	"store-service/internal/repository"
)

const (
	allProductsKey = "products:all"
	notFoundMarker = "notfound"
	notFoundTTL    = time.Minute
)

// CachedProductRepository is a read-through Redis cache in front of a
// ProductRepository. Redis failures are logged and the call falls through to
// the wrapped repository. Reads inside a writable unit of work go straight to
// the wrapped repository, and writes clear their keys again once the unit
// commits.
type CachedProductRepository struct {
	realRepo repository.ProductRepository
	redis    *redis.Client
	ttl      time.Duration
	log      *slog.Logger
}

func NewCachedProductRepository(realRepo repository.ProductRepository, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedProductRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProductRepository{
		realRepo: realRepo,
		redis:    rdb,
		ttl:      ttl,
		log:      logger.With("component", "product_cache"),
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *CachedProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	if database.InWriteUnit(ctx) {
		return c.realRepo.GetByID(ctx, id)
	}

	key := productKey(id)

	data, err := c.redis.Get(ctx, key).Bytes()

	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, repository.ErrNotFound
		}

		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			c.log.WarnContext(ctx, "failed to unmarshal cached product, continuing with store", "key", key, "error", err)
			break
		}

		return &product, nil

	case errors.Is(err, redis.Nil):

	default:
		c.log.WarnContext(ctx, "redis error, continuing with store", "key", key, "error", err)
	}

	product, err := c.realRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundMarker, notFoundTTL).Err(); setErr != nil {
				c.log.WarnContext(ctx, "failed to cache notfound", "key", key, "error", setErr)
			}
		}
		return nil, err
	}

	c.store(ctx, key, product)
	return product, nil
}

func (c *CachedProductRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return c.realRepo.ExistsByID(ctx, id)
}

func (c *CachedProductRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return c.realRepo.ExistsByName(ctx, name)
}

func (c *CachedProductRepository) Save(ctx context.Context, p *models.Product) error {
	if p != nil && p.ID != 0 {
		c.invalidate(ctx, p.ID)
	}

	if err := c.realRepo.Save(ctx, p); err != nil {
		return err
	}

	// a new product also replaces a cached "notfound" for its id
	c.invalidateAfterCommit(ctx, p.ID)
	return nil
}

func (c *CachedProductRepository) DeleteByID(ctx context.Context, id int64) error {
	c.invalidate(ctx, id)

	if err := c.realRepo.DeleteByID(ctx, id); err != nil {
		return err
	}

	c.invalidateAfterCommit(ctx, id)
	return nil
}

func (c *CachedProductRepository) FindAll(ctx context.Context) ([]models.Product, error) {
	if database.InWriteUnit(ctx) {
		return c.realRepo.FindAll(ctx)
	}

	data, err := c.redis.Get(ctx, allProductsKey).Bytes()

	if err == nil {
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			return products, nil
		}
		c.log.WarnContext(ctx, "failed to unmarshal cached product list, continuing with store", "error", err)
	} else if !errors.Is(err, redis.Nil) {
		c.log.WarnContext(ctx, "redis error, continuing with store", "key", allProductsKey, "error", err)
	}

	products, err := c.realRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	c.store(ctx, allProductsKey, products)
	return products, nil
}

// FindExpensiveLowStock always reads the wrapped repository.
func (c *CachedProductRepository) FindExpensiveLowStock(ctx context.Context, minPrice float64, maxQuantity int) ([]models.Product, error) {
	return c.realRepo.FindExpensiveLowStock(ctx, minPrice, maxQuantity)
}

func (c *CachedProductRepository) store(ctx context.Context, key string, v any) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		c.log.WarnContext(ctx, "failed to marshal value for cache", "key", key, "error", err)
		return
	}

	if err := c.redis.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "failed to cache value", "key", key, "error", err)
	}
}

func (c *CachedProductRepository) invalidate(ctx context.Context, id int64) {
	if err := c.redis.Del(ctx, productKey(id), allProductsKey).Err(); err != nil {
		c.log.WarnContext(ctx, "failed to invalidate product cache", "product_id", id, "error", err)
	}
}

// invalidateAfterCommit clears now and again once the enclosing unit commits,
// dropping anything cached from the pre-commit state in between.
func (c *CachedProductRepository) invalidateAfterCommit(ctx context.Context, id int64) {
	c.invalidate(ctx, id)
	database.AfterCommit(ctx, func(ctx context.Context) {
		c.invalidate(ctx, id)
	})
}
