package mysql

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/repository"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	result := r.db.WithContext(ctx).Create(order)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) ||
			strings.Contains(result.Error.Error(), "Duplicate entry") {
			return domain.ErrDuplicateTransactionCode
		}
		log.Printf("order Save error: %v", result.Error)
		return result.Error
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.WithContext(ctx).Preload("Lines").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		log.Printf("order FindByID error: %v", err)
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]domain.Order, error) {
	return r.list(ctx, "buyer_id = ?", buyerID)
}

func (r *orderRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]domain.Order, error) {
	return r.list(ctx, "seller_id = ?", sellerID)
}

func (r *orderRepo) list(ctx context.Context, cond string, arg uint64) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.WithContext(ctx).Preload("Lines").
		Where(cond, arg).Order("created_at DESC").Find(&out).Error
	if err != nil {
		log.Printf("order list error: %v", err)
		return nil, err
	}
	return out, nil
}

// TransitionStatus is a conditional UPDATE guarded on the current status;
// of any number of racing callers, exactly one sees RowsAffected == 1.
func (r *orderRepo) TransitionStatus(ctx context.Context, orderID uint64, from, to domain.OrderStatus) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, domain.ErrInvalidOrderState
	}
	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		log.Printf("order TransitionStatus error: %v", res.Error)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepo) SwapOTPHashIfPending(ctx context.Context, orderID uint64, hash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ? AND status = ?", orderID, domain.StatusPending).
		Update("otp_hash", hash)
	if res.Error != nil {
		log.Printf("order SwapOTPHashIfPending error: %v", res.Error)
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	var out []domain.Order
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("status = ? AND created_at < ?", domain.StatusPending, cutoff).
		Find(&out).Error
	if err != nil {
		log.Printf("order ListPendingBefore error: %v", err)
		return nil, err
	}
	return out, nil
}
