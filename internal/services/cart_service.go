package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"github.com/go-redis/redis/v8"
)

type CartService struct {
	carts       repository.CartRepository
	items       repository.ItemRepository
	redisClient *redis.Client
}

func NewCartService(carts repository.CartRepository, items repository.ItemRepository) *CartService {
	return &CartService{carts: carts, items: items}
}

// SetRedisClient enables the short-lived item-detail cache used by List.
// Stock checks in Add/Update never go through the cache.
func (s *CartService) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// Add inserts the item into the user's cart, merging with an existing
// entry for the same item instead of duplicating it.
func (s *CartService) Add(ctx context.Context, userID, itemID uint64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.SellerID == userID {
		return domain.ErrSelfPurchase
	}

	existing := 0
	entries, err := s.carts.Get(ctx, userID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.ItemID == itemID {
			existing = e.Quantity
			break
		}
	}

	if existing+qty > item.Stock {
		return fmt.Errorf("%w: item %d", domain.ErrInsufficientStock, itemID)
	}
	return s.carts.Put(ctx, userID, domain.CartEntry{ItemID: itemID, Quantity: existing + qty})
}

// Update replaces the entry's quantity. Zero is not a valid update;
// removal is a separate call.
func (s *CartService) Update(ctx context.Context, userID, itemID uint64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}

	entries, err := s.carts.Get(ctx, userID)
	if err != nil {
		return err
	}
	found := false
	for _, e := range entries {
		if e.ItemID == itemID {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrCartEntryNotFound
	}

	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if qty > item.Stock {
		return fmt.Errorf("%w: item %d", domain.ErrInsufficientStock, itemID)
	}
	return s.carts.Put(ctx, userID, domain.CartEntry{ItemID: itemID, Quantity: qty})
}

func (s *CartService) Remove(ctx context.Context, userID, itemID uint64) error {
	return s.carts.Remove(ctx, userID, itemID)
}

// List resolves the cart entries against current item details for display.
// Entries whose item has disappeared are skipped.
func (s *CartService) List(ctx context.Context, userID uint64) ([]domain.CartLine, error) {
	entries, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CartLine, 0, len(entries))
	for _, e := range entries {
		item, err := s.getItemWithCache(ctx, e.ItemID)
		if err != nil {
			continue
		}
		lines = append(lines, domain.CartLine{
			ItemID:     item.ID,
			Quantity:   e.Quantity,
			Name:       item.Name,
			PriceCents: item.PriceCents,
			Stock:      item.Stock,
		})
	}
	return lines, nil
}

func (s *CartService) getItemWithCache(ctx context.Context, itemID uint64) (*domain.Item, error) {
	cacheKey := fmt.Sprintf("item:%d", itemID)

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var item domain.Item
			if err := json.Unmarshal([]byte(cached), &item); err == nil {
				return &item, nil
			}
		}
	}

	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(item); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, time.Minute)
		}
	}
	return item, nil
}
