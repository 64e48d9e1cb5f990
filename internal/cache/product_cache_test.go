package cache

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"store-service/internal/database"
	"store-service/internal/models"
	"store-service/internal/repository"
	"store-service/internal/repository/memory"
)

// testRedis connects to REDIS_ADDR (default localhost:6379) on database 15
// and skips the test when nothing answers.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	require.NoError(t, rdb.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = rdb.FlushDB(context.Background()).Err()
		_ = rdb.Close()
	})

	return rdb
}

func newCached(t *testing.T) (*CachedProductRepository, repository.ProductRepository, *redis.Client) {
	rdb := testRedis(t)
	backing := memory.New().Products()
	return NewCachedProductRepository(backing, rdb, time.Minute, slog.New(slog.DiscardHandler)), backing, rdb
}

func TestGetByID_ReadThrough(t *testing.T) {
	c, backing, rdb := newCached(t)
	ctx := context.Background()

	p := models.Product{Name: "lamp", Price: 10, Quantity: 1}
	require.NoError(t, backing.Save(ctx, &p))

	got, err := c.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", got.Name)

	exists, err := rdb.Exists(ctx, productKey(p.ID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	// served from cache even though the backing row changed behind its back
	p.Name = "changed"
	require.NoError(t, backing.Save(ctx, &p))

	got, err = c.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", got.Name)
}

func TestGetByID_NegativeCaching(t *testing.T) {
	c, _, rdb := newCached(t)
	ctx := context.Background()

	_, err := c.GetByID(ctx, 77)
	require.ErrorIs(t, err, repository.ErrNotFound)

	val, err := rdb.Get(ctx, productKey(77)).Result()
	require.NoError(t, err)
	assert.Equal(t, notFoundMarker, val)

	_, err = c.GetByID(ctx, 77)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSave_InvalidatesEntries(t *testing.T) {
	c, _, rdb := newCached(t)
	ctx := context.Background()

	p := models.Product{Name: "lamp", Price: 10, Quantity: 1}
	require.NoError(t, c.Save(ctx, &p))

	_, err := c.FindAll(ctx)
	require.NoError(t, err)
	_, err = c.GetByID(ctx, p.ID)
	require.NoError(t, err)

	p.Quantity = 9
	require.NoError(t, c.Save(ctx, &p))

	n, err := rdb.Exists(ctx, productKey(p.ID), allProductsKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := c.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Quantity)
}

func TestDeleteByID_Invalidates(t *testing.T) {
	c, _, _ := newCached(t)
	ctx := context.Background()

	p := models.Product{Name: "lamp", Price: 10, Quantity: 1}
	require.NoError(t, c.Save(ctx, &p))
	_, err := c.GetByID(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, c.DeleteByID(ctx, p.ID))

	_, err = c.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	all, err := c.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRedisDown_FallsThrough(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	backing := memory.New().Products()
	c := NewCachedProductRepository(backing, rdb, time.Minute, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	p := models.Product{Name: "lamp", Price: 10, Quantity: 1}
	require.NoError(t, c.Save(ctx, &p))

	got, err := c.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "lamp", got.Name)

	all, err := c.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// committedView serves GetByID from the last committed row only, like a
// second connection reading while a transaction is still open.
type committedView struct {
	repository.ProductRepository
	committed models.Product
}

func (v *committedView) GetByID(_ context.Context, id int64) (*models.Product, error) {
	if v.committed.ID != id {
		return nil, repository.ErrNotFound
	}
	p := v.committed
	return &p, nil
}

func (v *committedView) Save(context.Context, *models.Product) error { return nil }

func TestSave_ClearsEntriesCachedBeforeCommit(t *testing.T) {
	rdb := testRedis(t)
	view := &committedView{committed: models.Product{ID: 1, Name: "lamp", Price: 10, Quantity: 10}}
	c := NewCachedProductRepository(view, rdb, time.Minute, slog.New(slog.DiscardHandler))
	bg := context.Background()

	unitCtx, commit := database.WithCommitHooks(bg)
	require.NoError(t, c.Save(unitCtx, &models.Product{ID: 1, Name: "lamp", Price: 10, Quantity: 0}))

	// another reader caches the row as it was before the commit
	got, err := c.GetByID(bg, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Quantity)

	view.committed.Quantity = 0
	commit(bg)

	got, err = c.GetByID(bg, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestReadsInsideWriteUnit_BypassCache(t *testing.T) {
	c, backing, rdb := newCached(t)
	bg := context.Background()

	p := models.Product{Name: "lamp", Price: 10, Quantity: 4}
	require.NoError(t, backing.Save(bg, &p))
	require.NoError(t, rdb.Set(bg, productKey(p.ID), `{"id":1,"name":"lamp","price":10,"quantity":99}`, time.Minute).Err())

	unitCtx, _ := database.WithCommitHooks(bg)

	got, err := c.GetByID(unitCtx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)

	all, err := c.FindAll(unitCtx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	n, err := rdb.Exists(bg, allProductsKey).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithinTx_ClearsEntriesOnCommit(t *testing.T) {
	rdb := testRedis(t)
	store := memory.New()
	c := NewCachedProductRepository(store.Products(), rdb, time.Minute, slog.New(slog.DiscardHandler))
	bg := context.Background()

	p := models.Product{Name: "lamp", Price: 10, Quantity: 5}
	require.NoError(t, c.Save(bg, &p))

	err := store.WithinTx(bg, func(ctx context.Context) error {
		p.Quantity = 0
		return c.Save(ctx, &p)
	})
	require.NoError(t, err)

	got, err := c.GetByID(bg, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}
