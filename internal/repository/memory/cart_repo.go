package memory

import (
	"context"
	"sort"
	"sync"

	"checkout-service/internal/domain"
)

type CartRepository struct {
	mu    sync.Mutex
	carts map[uint64]map[uint64]int
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[uint64]map[uint64]int)}
}

func (r *CartRepository) Get(ctx context.Context, userID uint64) ([]domain.CartEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart := r.carts[userID]
	entries := make([]domain.CartEntry, 0, len(cart))
	for itemID, qty := range cart {
		entries = append(entries, domain.CartEntry{ItemID: itemID, Quantity: qty})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ItemID < entries[j].ItemID })
	return entries, nil
}

func (r *CartRepository) Put(ctx context.Context, userID uint64, entry domain.CartEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[userID]
	if !ok {
		cart = make(map[uint64]int)
		r.carts[userID] = cart
	}
	cart[entry.ItemID] = entry.Quantity
	return nil
}

func (r *CartRepository) Remove(ctx context.Context, userID uint64, itemID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart := r.carts[userID]
	if _, ok := cart[itemID]; !ok {
		return domain.ErrCartEntryNotFound
	}
	delete(cart, itemID)
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, userID)
	return nil
}
