package redis

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"github.com/go-redis/redis/v8"
)

// cartRepo keeps one redis hash per user: field = item id, value = quantity.
type cartRepo struct {
	rdb *redis.Client
}

func NewCartRepository(rdb *redis.Client) repository.CartRepository {
	return &cartRepo{rdb: rdb}
}

func cartKey(userID uint64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func (r *cartRepo) Get(ctx context.Context, userID uint64) ([]domain.CartEntry, error) {
	fields, err := r.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		log.Printf("cart Get error: %v", err)
		return nil, err
	}

	entries := make([]domain.CartEntry, 0, len(fields))
	for field, val := range fields {
		itemID, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(val)
		if err != nil || qty <= 0 {
			continue
		}
		entries = append(entries, domain.CartEntry{ItemID: itemID, Quantity: qty})
	}
	// hashes have no ordering; keep listings stable
	sort.Slice(entries, func(i, j int) bool { return entries[i].ItemID < entries[j].ItemID })
	return entries, nil
}

func (r *cartRepo) Put(ctx context.Context, userID uint64, entry domain.CartEntry) error {
	field := strconv.FormatUint(entry.ItemID, 10)
	if err := r.rdb.HSet(ctx, cartKey(userID), field, entry.Quantity).Err(); err != nil {
		log.Printf("cart Put error: %v", err)
		return err
	}
	return nil
}

func (r *cartRepo) Remove(ctx context.Context, userID uint64, itemID uint64) error {
	field := strconv.FormatUint(itemID, 10)
	n, err := r.rdb.HDel(ctx, cartKey(userID), field).Result()
	if err != nil {
		log.Printf("cart Remove error: %v", err)
		return err
	}
	if n == 0 {
		return domain.ErrCartEntryNotFound
	}
	return nil
}

func (r *cartRepo) Clear(ctx context.Context, userID uint64) error {
	if err := r.rdb.Del(ctx, cartKey(userID)).Err(); err != nil {
		log.Printf("cart Clear error: %v", err)
		return err
	}
	return nil
}
