package repository

import (
	"context"
	"time"

	"checkout-service/internal/domain"
)

// ItemRepository is the inventory ledger. Reserve and Release are the only
// ways stock moves; both must be atomic with respect to concurrent callers
// on the same item.
type ItemRepository interface {
	FindByID(ctx context.Context, id uint64) (*domain.Item, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*domain.Item, error)

	// Reserve decrements stock by qty only if qty <= current stock, as a
	// single indivisible step. Returns domain.ErrInsufficientStock when the
	// item is short and domain.ErrItemNotFound when it does not exist.
	Reserve(ctx context.Context, itemID uint64, qty int) error

	// Release returns qty units to stock, compensating a failed commit or
	// a canceled order.
	Release(ctx context.Context, itemID uint64, qty int) error
}

type OrderRepository interface {
	// Save persists a new order with its lines. A transaction-code
	// collision surfaces as domain.ErrDuplicateTransactionCode so the
	// caller can regenerate and retry.
	Save(ctx context.Context, order *domain.Order) error

	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID uint64) ([]domain.Order, error)
	ListBySeller(ctx context.Context, sellerID uint64) ([]domain.Order, error)

	// TransitionStatus moves the order from one status to another only if
	// it is still in the from status, returning whether the transition was
	// applied. Concurrent callers racing on the same order see at most one
	// true result.
	TransitionStatus(ctx context.Context, orderID uint64, from, to domain.OrderStatus) (bool, error)

	// SwapOTPHashIfPending atomically replaces the stored OTP hash while
	// the order is still pending, invalidating the previous code.
	SwapOTPHashIfPending(ctx context.Context, orderID uint64, hash string) (bool, error)

	// ListPendingBefore returns pending orders created before the cutoff,
	// for the expiry sweeper.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]domain.Order, error)
}

type CartRepository interface {
	Get(ctx context.Context, userID uint64) ([]domain.CartEntry, error)

	// Put inserts or overwrites the entry for the item.
	Put(ctx context.Context, userID uint64, entry domain.CartEntry) error

	// Remove deletes the entry, returning domain.ErrCartEntryNotFound when
	// the item is not in the cart.
	Remove(ctx context.Context, userID uint64, itemID uint64) error

	Clear(ctx context.Context, userID uint64) error
}
