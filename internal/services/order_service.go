package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	rabbit "checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/repository"

	"github.com/google/uuid"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// saveRetries bounds the regenerate-and-retry loop for transaction code
// collisions.
const saveRetries = 3

// OrderView is an order enriched with buyer/seller display names for
// listing.
type OrderView struct {
	domain.Order
	BuyerName  string `json:"buyerName,omitempty"`
	SellerName string `json:"sellerName,omitempty"`
}

type OrderService struct {
	orders    repository.OrderRepository
	items     repository.ItemRepository
	carts     repository.CartRepository
	users     infra.UserClientInterface
	publisher rabbit.PublisherInterface
	otp       *OTPCodec

	// verify, regenerate and cancel on the same order must not interleave
	orderLocks sync.Map
}

func NewOrderService(
	orders repository.OrderRepository,
	items repository.ItemRepository,
	carts repository.CartRepository,
	users infra.UserClientInterface,
	publisher rabbit.PublisherInterface,
	otp *OTPCodec,
) *OrderService {
	return &OrderService{
		orders:    orders,
		items:     items,
		carts:     carts,
		users:     users,
		publisher: publisher,
		otp:       otp,
	}
}

func (s *OrderService) lockOrder(orderID uint64) func() {
	v, _ := s.orderLocks.LoadOrStore(orderID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateOrder turns the requested lines into a committed pending order.
// Stock for every line is reserved through the ledger; if any line comes up
// short partway, every reservation already taken is released and no order
// exists. The returned plaintext code is shown to the buyer exactly once
// and cannot be recovered afterward.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID uint64, lines []domain.CartEntry) (*domain.Order, string, error) {
	if len(lines) == 0 {
		return nil, "", fmt.Errorf("%w: order has no lines", domain.ErrValidation)
	}

	merged := make([]domain.CartEntry, 0, len(lines))
	index := make(map[uint64]int, len(lines))
	for _, l := range lines {
		if l.ItemID == 0 || l.Quantity <= 0 {
			return nil, "", fmt.Errorf("%w: bad line for item %d", domain.ErrValidation, l.ItemID)
		}
		if i, ok := index[l.ItemID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ItemID] = len(merged)
		merged = append(merged, l)
	}

	ids := make([]uint64, 0, len(merged))
	for _, l := range merged {
		ids = append(ids, l.ItemID)
	}
	resolved, err := s.items.FindByIDs(ctx, ids)
	if err != nil {
		return nil, "", err
	}

	var sellerID uint64
	var amount int64
	orderLines := make([]domain.LineItem, 0, len(merged))
	for _, l := range merged {
		item, ok := resolved[l.ItemID]
		if !ok {
			return nil, "", fmt.Errorf("%w: item %d", domain.ErrItemNotFound, l.ItemID)
		}
		if item.SellerID == buyerID {
			return nil, "", domain.ErrSelfPurchase
		}
		if sellerID == 0 {
			sellerID = item.SellerID
		} else if item.SellerID != sellerID {
			return nil, "", domain.ErrMultipleSellers
		}
		if l.Quantity > item.Stock {
			return nil, "", fmt.Errorf("%w: item %d", domain.ErrInsufficientStock, l.ItemID)
		}
		amount += item.PriceCents * int64(l.Quantity)
		orderLines = append(orderLines, domain.LineItem{
			ItemID:     item.ID,
			Quantity:   l.Quantity,
			PriceCents: item.PriceCents,
		})
	}

	plaintext, hash, err := s.otp.Generate()
	if err != nil {
		return nil, "", err
	}

	// two-phase commit: reserve every line, compensating on the first
	// failure so no partial order is ever observable
	reserved := make([]domain.LineItem, 0, len(orderLines))
	for _, l := range orderLines {
		if err := s.items.Reserve(ctx, l.ItemID, l.Quantity); err != nil {
			if relErr := s.releaseAll(ctx, reserved); relErr != nil {
				return nil, "", relErr
			}
			if errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrItemNotFound) {
				return nil, "", fmt.Errorf("%w: item %d", err, l.ItemID)
			}
			return nil, "", err
		}
		reserved = append(reserved, l)
	}

	order := &domain.Order{
		TransactionID: uuid.NewString(),
		BuyerID:       buyerID,
		SellerID:      sellerID,
		AmountCents:   amount,
		OTPHash:       hash,
		Status:        domain.StatusPending,
		Lines:         orderLines,
	}

	for attempt := 0; ; attempt++ {
		err = s.orders.Save(ctx, order)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateTransactionCode) && attempt < saveRetries {
			order.TransactionID = uuid.NewString()
			continue
		}
		if relErr := s.releaseAll(ctx, reserved); relErr != nil {
			return nil, "", relErr
		}
		return nil, "", err
	}

	go s.publishEvent(context.Background(), "order.created", domain.OrderCreatedEvent{
		OrderID:       order.ID,
		TransactionID: order.TransactionID,
		BuyerID:       order.BuyerID,
		SellerID:      order.SellerID,
		AmountCents:   order.AmountCents,
		CreatedAt:     order.CreatedAt,
	})

	return order, plaintext, nil
}

// CheckoutCart creates an order from the buyer's live cart and clears the
// cart once the order is committed.
func (s *OrderService) CheckoutCart(ctx context.Context, buyerID uint64) (*domain.Order, string, error) {
	entries, err := s.carts.Get(ctx, buyerID)
	if err != nil {
		return nil, "", err
	}
	if len(entries) == 0 {
		return nil, "", fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}

	order, code, err := s.CreateOrder(ctx, buyerID, entries)
	if err != nil {
		return nil, "", err
	}

	if err := s.carts.Clear(ctx, buyerID); err != nil {
		// the order is committed; a stale cart is only a display problem
		log.Printf("failed to clear cart for user %d: %v", buyerID, err)
	}
	return order, code, nil
}

// VerifyOTP completes a pending order when the seller presents the buyer's
// code. The comparison and the transition are mutually exclusive with any
// other verify/regenerate/cancel on the same order, so two racing verifies
// cannot both succeed.
func (s *OrderService) VerifyOTP(ctx context.Context, orderID, callerID uint64, code string) (*domain.Order, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != callerID {
		return nil, domain.ErrUnauthorized
	}
	if order.Status != domain.StatusPending {
		return nil, domain.ErrInvalidOrderState
	}
	if err := s.otp.Compare(order.OTPHash, code); err != nil {
		return nil, err
	}

	ok, err := s.orders.TransitionStatus(ctx, orderID, domain.StatusPending, domain.StatusCompleted)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidOrderState
	}
	order.Status = domain.StatusCompleted

	go s.publishEvent(context.Background(), "order.completed", domain.OrderCompletedEvent{
		OrderID:     order.ID,
		SellerID:    order.SellerID,
		CompletedAt: time.Now(),
	})
	return order, nil
}

// RegenerateOTP issues a fresh code for a pending order, atomically
// invalidating the previous one. Buyer only.
func (s *OrderService) RegenerateOTP(ctx context.Context, orderID, callerID uint64) (string, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.BuyerID != callerID {
		return "", domain.ErrUnauthorized
	}
	if order.Status != domain.StatusPending {
		return "", domain.ErrInvalidOrderState
	}

	plaintext, hash, err := s.otp.Generate()
	if err != nil {
		return "", err
	}
	ok, err := s.orders.SwapOTPHashIfPending(ctx, orderID, hash)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidOrderState
	}
	return plaintext, nil
}

// CancelOrder is the buyer's way out of a pending order; the reserved
// stock goes back to the ledger.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, callerID uint64) (*domain.Order, error) {
	unlock := s.lockOrder(orderID)
	defer unlock()

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != callerID {
		return nil, domain.ErrUnauthorized
	}
	if err := s.cancelLocked(ctx, order, "buyer"); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) cancelLocked(ctx context.Context, order *domain.Order, reason string) error {
	if order.Status != domain.StatusPending {
		return domain.ErrInvalidOrderState
	}
	ok, err := s.orders.TransitionStatus(ctx, order.ID, domain.StatusPending, domain.StatusCanceled)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidOrderState
	}
	order.Status = domain.StatusCanceled

	// the transition won exactly once, so this release runs exactly once
	if err := s.releaseAll(ctx, order.Lines); err != nil {
		return err
	}

	go s.publishEvent(context.Background(), "order.canceled", domain.OrderCanceledEvent{
		OrderID:    order.ID,
		Reason:     reason,
		CanceledAt: time.Now(),
	})
	return nil
}

// releaseAll returns reserved units to the ledger. A failure here means
// stock counters have drifted and an operator has to reconcile; that is
// surfaced as ErrReconciliationRequired, never swallowed.
func (s *OrderService) releaseAll(ctx context.Context, lines []domain.LineItem) error {
	var failed bool
	for _, l := range lines {
		if err := s.items.Release(ctx, l.ItemID, l.Quantity); err != nil {
			failed = true
			log.Printf("ALERT: failed to release %d units of item %d: %v", l.Quantity, l.ItemID, err)
		}
	}
	if failed {
		return domain.ErrReconciliationRequired
	}
	return nil
}

// ExpirePending cancels every pending order created before the cutoff and
// releases its stock. Used by the sweeper; errors on individual orders are
// logged and do not stop the sweep.
func (s *OrderService) ExpirePending(ctx context.Context, cutoff time.Time) (int, error) {
	orders, err := s.orders.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range orders {
		order := orders[i]
		unlock := s.lockOrder(order.ID)
		err := s.cancelLocked(ctx, &order, "expired")
		unlock()
		if err != nil {
			if errors.Is(err, domain.ErrInvalidOrderState) {
				continue // raced with a verify or an explicit cancel
			}
			log.Printf("failed to expire order %d: %v", order.ID, err)
			continue
		}
		expired++
	}
	return expired, nil
}

// RunExpirySweeper periodically expires pending orders older than ttl
// until the context is done.
func (s *OrderService) RunExpirySweeper(ctx context.Context, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.ExpirePending(ctx, time.Now().Add(-ttl))
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expired %d pending orders", n)
			}
		}
	}
}

// ListOrders returns the caller's orders in the requested role, with
// display names resolved through the profile service on a best-effort
// basis.
func (s *OrderService) ListOrders(ctx context.Context, userID uint64, role string) ([]OrderView, error) {
	var (
		orders []domain.Order
		err    error
	)
	switch role {
	case RoleBuyer:
		orders, err = s.orders.ListByBuyer(ctx, userID)
	case RoleSeller:
		orders, err = s.orders.ListBySeller(ctx, userID)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	if err != nil {
		return nil, err
	}

	names := make(map[uint64]string)
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, OrderView{
			Order:      o,
			BuyerName:  s.displayName(ctx, names, o.BuyerID),
			SellerName: s.displayName(ctx, names, o.SellerID),
		})
	}
	return views, nil
}

func (s *OrderService) displayName(ctx context.Context, cache map[uint64]string, userID uint64) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	name := ""
	if s.users != nil {
		if u, err := s.users.GetUserById(ctx, userID); err == nil && u != nil {
			name = u.FirstName + " " + u.LastName
		}
	}
	cache[userID] = name
	return name
}

func (s *OrderService) publishEvent(ctx context.Context, routingKey string, evt any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, evt); err != nil {
		log.Printf("failed to publish %s event: %v", routingKey, err)
	}
}
