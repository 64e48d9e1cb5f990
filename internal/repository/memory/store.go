// Package memory is an in-process implementation of the repository
// contracts. A unit of work holds the store lock for its whole duration and
// restores a snapshot of every table when it is discarded.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"store-service/internal/database"
	"store-service/internal/models"
	"store-service/internal/repository"
)

type unitKey struct{}

type unit struct {
	store    *Store
	readOnly bool
}

type tables struct {
	products    map[int64]models.Product
	orders      map[int64]models.Order
	nextProduct int64
	nextOrder   int64
	nextLine    int64
}

func (t *tables) clone() tables {
	c := *t
	c.products = maps.Clone(t.products)
	c.orders = maps.Clone(t.orders)
	return c
}

type Store struct {
	mu  sync.RWMutex
	now func() time.Time
	tables
}

func New() *Store {
	return &Store{
		now: time.Now,
		tables: tables{
			products: make(map[int64]models.Product),
			orders:   make(map[int64]models.Order),
		},
	}
}

func (s *Store) Products() repository.ProductRepository { return &productRepo{s: s} }

func (s *Store) Orders() repository.OrderRepository { return &orderRepo{s: s} }

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) WithinReadOnlyTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) error {
	if u, ok := ctx.Value(unitKey{}).(*unit); ok && u.store == s {
		return fn(ctx)
	}

	if readOnly {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return fn(context.WithValue(ctx, unitKey{}, &unit{store: s, readOnly: true}))
	}

	unitCtx, fire := database.WithCommitHooks(context.WithValue(ctx, unitKey{}, &unit{store: s}))
	if err := s.commit(unitCtx, fn); err != nil {
		return err
	}
	// after unlock so hooks may read the store
	fire(ctx)
	return nil
}

func (s *Store) commit(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.tables.clone()
	committed := false
	defer func() {
		if !committed {
			s.tables = snapshot
		}
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}

// read runs fn under the read lock unless ctx already holds a unit.
func (s *Store) read(ctx context.Context, fn func()) {
	if u, ok := ctx.Value(unitKey{}).(*unit); ok && u.store == s {
		fn()
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// write runs fn under the write lock unless ctx already holds a writable
// unit. Writes inside a read-only unit fail.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if u, ok := ctx.Value(unitKey{}).(*unit); ok && u.store == s {
		if u.readOnly {
			return repository.ErrReadOnly
		}
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// Reset drops all data and restarts id sequences.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = tables{
		products: make(map[int64]models.Product),
		orders:   make(map[int64]models.Order),
	}
}

func uniqueViolation(name string) error {
	return &repository.IntegrityError{
		Constraint: "products_name_key",
		Message:    fmt.Sprintf("duplicate key value violates unique constraint \"products_name_key\". Key (name)=(%s) already exists.", name),
	}
}

func checkViolation(constraint string) error {
	return &repository.IntegrityError{
		Constraint: constraint,
		Message:    fmt.Sprintf("new row violates check constraint %q", constraint),
	}
}
