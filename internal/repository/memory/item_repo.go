package memory

import (
	"context"
	"sync"
	"time"

	"checkout-service/internal/domain"
)

type itemEntry struct {
	mu   sync.Mutex
	item domain.Item
}

// ItemRepository is the in-process inventory ledger. Each item carries its
// own lock, so reservations on different items run fully in parallel while
// reservations on the same item serialize.
type ItemRepository struct {
	mu    sync.RWMutex
	items map[uint64]*itemEntry
}

func NewItemRepository() *ItemRepository {
	return &ItemRepository{items: make(map[uint64]*itemEntry)}
}

// Seed lets tests and bootstrap code install items directly.
func (r *ItemRepository) Seed(item domain.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = &itemEntry{item: item}
}

// Stock reports the current stock, for assertions.
func (r *ItemRepository) Stock(id uint64) int {
	e := r.entry(id)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.item.Stock
}

func (r *ItemRepository) entry(id uint64) *itemEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[id]
}

func (r *ItemRepository) FindByID(ctx context.Context, id uint64) (*domain.Item, error) {
	e := r.entry(id)
	if e == nil {
		return nil, domain.ErrItemNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	it := e.item
	return &it, nil
}

func (r *ItemRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*domain.Item, error) {
	out := make(map[uint64]*domain.Item, len(ids))
	for _, id := range ids {
		it, err := r.FindByID(ctx, id)
		if err != nil {
			continue
		}
		out[id] = it
	}
	return out, nil
}

func (r *ItemRepository) Reserve(ctx context.Context, itemID uint64, qty int) error {
	if qty <= 0 {
		return domain.ErrValidation
	}
	e := r.entry(itemID)
	if e == nil {
		return domain.ErrItemNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if qty > e.item.Stock {
		return domain.ErrInsufficientStock
	}
	e.item.Stock -= qty
	e.item.UpdatedAt = time.Now()
	return nil
}

func (r *ItemRepository) Release(ctx context.Context, itemID uint64, qty int) error {
	e := r.entry(itemID)
	if e == nil {
		return domain.ErrItemNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.item.Stock += qty
	e.item.UpdatedAt = time.Now()
	return nil
}
