package mysql

import (
	"context"
	"errors"
	"log"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"gorm.io/gorm"
)

type itemRepo struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) repository.ItemRepository {
	return &itemRepo{db: db}
}

func (r *itemRepo) FindByID(ctx context.Context, id uint64) (*domain.Item, error) {
	var it domain.Item
	if err := r.db.WithContext(ctx).First(&it, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		log.Printf("item FindByID error: %v", err)
		return nil, err
	}
	return &it, nil
}

func (r *itemRepo) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*domain.Item, error) {
	var items []domain.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		log.Printf("item FindByIDs error: %v", err)
		return nil, err
	}
	out := make(map[uint64]*domain.Item, len(items))
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

// Reserve runs the stock check and the decrement as one conditional UPDATE
// so concurrent reservations on the same item serialize on the row; the
// guard never lets stock go below zero.
func (r *itemRepo) Reserve(ctx context.Context, itemID uint64, qty int) error {
	res := r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("id = ? AND stock >= ?", itemID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		log.Printf("item Reserve error: %v", res.Error)
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// The guard rejected: either the item is gone or the stock is short.
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Item{}).Where("id = ?", itemID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}
	return domain.ErrInsufficientStock
}

func (r *itemRepo) Release(ctx context.Context, itemID uint64, qty int) error {
	res := r.db.WithContext(ctx).Model(&domain.Item{}).
		Where("id = ?", itemID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		log.Printf("item Release error: %v", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}
