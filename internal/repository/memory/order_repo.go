package memory

import (
	"context"
	"sync"
	"time"

	"checkout-service/internal/domain"
)

// OrderRepository keeps orders in process memory under a single lock, which
// makes every status transition and hash swap trivially atomic.
type OrderRepository struct {
	mu     sync.Mutex
	nextID uint64
	orders map[uint64]*domain.Order
	txIDs  map[string]bool
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		nextID: 1,
		orders: make(map[uint64]*domain.Order),
		txIDs:  make(map[string]bool),
	}
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = make([]domain.LineItem, len(o.Lines))
	copy(cp.Lines, o.Lines)
	return &cp
}

func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.txIDs[order.TransactionID] {
		return domain.ErrDuplicateTransactionCode
	}
	order.ID = r.nextID
	r.nextID++
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
	}
	r.txIDs[order.TransactionID] = true
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) ListByBuyer(ctx context.Context, buyerID uint64) ([]domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.BuyerID == buyerID })
}

func (r *OrderRepository) ListBySeller(ctx context.Context, sellerID uint64) ([]domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.SellerID == sellerID })
}

func (r *OrderRepository) list(keep func(*domain.Order) bool) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	return out, nil
}

func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID uint64, from, to domain.OrderStatus) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, domain.ErrInvalidOrderState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return true, nil
}

func (r *OrderRepository) SwapOTPHashIfPending(ctx context.Context, orderID uint64, hash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != domain.StatusPending {
		return false, nil
	}
	o.OTPHash = hash
	o.UpdatedAt = time.Now()
	return true, nil
}

func (r *OrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	return r.list(func(o *domain.Order) bool {
		return o.Status == domain.StatusPending && o.CreatedAt.Before(cutoff)
	})
}
