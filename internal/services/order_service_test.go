package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func TestOrderService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("successful creation decrements stock", func(t *testing.T) {
		f := newFixture()
		f.seedItem(10, 2, 1000, 5)

		order, code, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 3}})
		assert.NoError(t, err)
		assert.NotNil(t, order)
		assert.NotEmpty(t, code)
		assert.NotEmpty(t, order.TransactionID)
		assert.Equal(t, domain.StatusPending, order.Status)
		assert.Equal(t, int64(3000), order.AmountCents)
		assert.Equal(t, uint64(2), order.SellerID)
		assert.Len(t, order.Lines, 1)
		assert.Equal(t, int64(1000), order.Lines[0].PriceCents)
		assert.Equal(t, 2, f.items.Stock(10))

		// the code is returned once and only its hash is stored
		assert.NotEqual(t, code, order.OTPHash)

		saved, err := f.orders.FindByID(ctx, order.ID)
		assert.NoError(t, err)
		assert.Equal(t, order.AmountCents, saved.Amount())
	})

	t.Run("insufficient stock rejects and leaves stock alone", func(t *testing.T) {
		f := newFixture()
		f.seedItem(10, 2, 1000, 2)

		order, _, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 6}})
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Nil(t, order)
		assert.Equal(t, 2, f.items.Stock(10))

		listed, _ := f.orders.ListByBuyer(ctx, 1)
		assert.Empty(t, listed)
	})

	t.Run("validation failures", func(t *testing.T) {
		f := newFixture()
		f.seedItem(10, 2, 1000, 5)
		f.seedItem(20, 3, 500, 5)

		tests := []struct {
			name    string
			buyerID uint64
			lines   []domain.CartEntry
			wantErr error
		}{
			{"empty lines", 1, nil, domain.ErrValidation},
			{"zero quantity", 1, []domain.CartEntry{{ItemID: 10, Quantity: 0}}, domain.ErrValidation},
			{"unknown item", 1, []domain.CartEntry{{ItemID: 999, Quantity: 1}}, domain.ErrItemNotFound},
			{"own item", 2, []domain.CartEntry{{ItemID: 10, Quantity: 1}}, domain.ErrSelfPurchase},
			{"two sellers", 1, []domain.CartEntry{{ItemID: 10, Quantity: 1}, {ItemID: 20, Quantity: 1}}, domain.ErrMultipleSellers},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := f.orderSvc.CreateOrder(ctx, tt.buyerID, tt.lines)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}
		assert.Equal(t, 5, f.items.Stock(10))
		assert.Equal(t, 5, f.items.Stock(20))
	})

	t.Run("duplicate lines merge into one", func(t *testing.T) {
		f := newFixture()
		f.seedItem(10, 2, 1000, 5)

		order, _, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{
			{ItemID: 10, Quantity: 2},
			{ItemID: 10, Quantity: 1},
		})
		assert.NoError(t, err)
		assert.Len(t, order.Lines, 1)
		assert.Equal(t, 3, order.Lines[0].Quantity)
		assert.Equal(t, 2, f.items.Stock(10))
	})
}

func TestOrderService_CreateOrder_CompensatesPartialReserve(t *testing.T) {
	ctx := context.Background()

	mockItems := new(mocks.MockItemRepository)
	mockOrders := new(mocks.MockOrderRepository)
	pub := new(mocks.MockPublisher)

	resolved := map[uint64]*domain.Item{
		10: {ID: 10, SellerID: 2, PriceCents: 1000, Stock: 5},
		11: {ID: 11, SellerID: 2, PriceCents: 500, Stock: 5},
	}
	mockItems.On("FindByIDs", mock.Anything, mock.Anything).Return(resolved, nil)
	mockItems.On("Reserve", mock.Anything, uint64(10), 1).Return(nil)
	// a concurrent buyer drained item 11 between validation and commit
	mockItems.On("Reserve", mock.Anything, uint64(11), 1).Return(domain.ErrInsufficientStock)
	mockItems.On("Release", mock.Anything, uint64(10), 1).Return(nil)

	svc := NewOrderService(mockOrders, mockItems, nil, nil, pub, NewOTPCodecWithCost(bcrypt.MinCost))

	_, _, err := svc.CreateOrder(ctx, 1, []domain.CartEntry{
		{ItemID: 10, Quantity: 1},
		{ItemID: 11, Quantity: 1},
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	mockItems.AssertCalled(t, "Release", mock.Anything, uint64(10), 1)
	mockOrders.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrder_RetriesDuplicateCode(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.seedItem(10, 2, 1000, 5)

	mockOrders := new(mocks.MockOrderRepository)
	mockOrders.On("Save", mock.Anything, mock.Anything).Return(domain.ErrDuplicateTransactionCode).Once()
	mockOrders.On("Save", mock.Anything, mock.Anything).Return(nil).Once()

	svc := NewOrderService(mockOrders, f.items, f.carts, nil, f.pub, NewOTPCodecWithCost(bcrypt.MinCost))

	order, _, err := svc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 1}})
	assert.NoError(t, err)
	assert.NotNil(t, order)
	mockOrders.AssertNumberOfCalls(t, "Save", 2)
	assert.Equal(t, 4, f.items.Stock(10))
}

func TestOrderService_CheckoutCart(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes and clears the cart", func(t *testing.T) {
		f := newFixture()
		f.seedItem(10, 2, 1000, 5)
		assert.NoError(t, f.cartSvc.Add(ctx, 1, 10, 2))

		order, code, err := f.orderSvc.CheckoutCart(ctx, 1)
		assert.NoError(t, err)
		assert.NotEmpty(t, code)
		assert.Equal(t, int64(2000), order.AmountCents)
		assert.Equal(t, 3, f.items.Stock(10))

		entries, _ := f.carts.Get(ctx, 1)
		assert.Empty(t, entries)
	})

	t.Run("empty cart is rejected", func(t *testing.T) {
		f := newFixture()
		_, _, err := f.orderSvc.CheckoutCart(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("failed checkout keeps the cart", func(t *testing.T) {
		f := newFixture()
		f.seedItem(10, 2, 1000, 5)
		assert.NoError(t, f.cartSvc.Add(ctx, 1, 10, 5))

		// someone else bought most of the stock after the cart was filled
		assert.NoError(t, f.items.Reserve(ctx, 10, 4))

		_, _, err := f.orderSvc.CheckoutCart(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		entries, _ := f.carts.Get(ctx, 1)
		assert.Len(t, entries, 1)
	})
}

func TestOrderService_VerifyOTP(t *testing.T) {
	ctx := context.Background()

	newOrder := func(f *fixture) (*domain.Order, string) {
		f.seedItem(10, 2, 1000, 5)
		order, code, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 1}})
		assert.NoError(t, err)
		return order, code
	}

	t.Run("wrong caller", func(t *testing.T) {
		f := newFixture()
		order, code := newOrder(f)

		_, err := f.orderSvc.VerifyOTP(ctx, order.ID, 99, code)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		// the buyer cannot complete their own order either
		_, err = f.orderSvc.VerifyOTP(ctx, order.ID, 1, code)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("wrong code leaves the order pending", func(t *testing.T) {
		f := newFixture()
		order, _ := newOrder(f)

		_, err := f.orderSvc.VerifyOTP(ctx, order.ID, 2, "not-the-code")
		assert.ErrorIs(t, err, domain.ErrInvalidOTP)

		saved, _ := f.orders.FindByID(ctx, order.ID)
		assert.Equal(t, domain.StatusPending, saved.Status)
	})

	t.Run("correct code completes exactly once", func(t *testing.T) {
		f := newFixture()
		order, code := newOrder(f)

		done, err := f.orderSvc.VerifyOTP(ctx, order.ID, 2, code)
		assert.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, done.Status)

		// replaying the correct code must fail: completed is terminal
		_, err = f.orderSvc.VerifyOTP(ctx, order.ID, 2, code)
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
	})

	t.Run("unknown order", func(t *testing.T) {
		f := newFixture()
		_, err := f.orderSvc.VerifyOTP(ctx, 12345, 2, "whatever")
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	})
}

func TestOrderService_RegenerateOTP(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.seedItem(10, 2, 1000, 5)
	order, original, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 1}})
	assert.NoError(t, err)

	// seller may not regenerate the buyer's code
	_, err = f.orderSvc.RegenerateOTP(ctx, order.ID, 2)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	first, err := f.orderSvc.RegenerateOTP(ctx, order.ID, 1)
	assert.NoError(t, err)
	second, err := f.orderSvc.RegenerateOTP(ctx, order.ID, 1)
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)

	// only the newest code opens the order
	_, err = f.orderSvc.VerifyOTP(ctx, order.ID, 2, original)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	_, err = f.orderSvc.VerifyOTP(ctx, order.ID, 2, first)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	done, err := f.orderSvc.VerifyOTP(ctx, order.ID, 2, second)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)

	// nothing left to regenerate on a completed order
	_, err = f.orderSvc.RegenerateOTP(ctx, order.ID, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
}

func TestOrderService_CancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("buyer cancel releases stock", func(t *testing.T) {
		f := newFixture()
		f.seedItem(10, 2, 1000, 5)
		order, _, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 3}})
		assert.NoError(t, err)
		assert.Equal(t, 2, f.items.Stock(10))

		_, err = f.orderSvc.CancelOrder(ctx, order.ID, 2)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)

		canceled, err := f.orderSvc.CancelOrder(ctx, order.ID, 1)
		assert.NoError(t, err)
		assert.Equal(t, domain.StatusCanceled, canceled.Status)
		assert.Equal(t, 5, f.items.Stock(10))
	})

	t.Run("terminal orders cannot be canceled or verified", func(t *testing.T) {
		f := newFixture()
		f.seedItem(10, 2, 1000, 5)
		order, code, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 1}})
		assert.NoError(t, err)

		_, err = f.orderSvc.CancelOrder(ctx, order.ID, 1)
		assert.NoError(t, err)

		_, err = f.orderSvc.CancelOrder(ctx, order.ID, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
		_, err = f.orderSvc.VerifyOTP(ctx, order.ID, 2, code)
		assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
	})
}

func TestOrderService_ExpirePending(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.seedItem(10, 2, 1000, 5)
	order, _, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 2}})
	assert.NoError(t, err)
	assert.Equal(t, 3, f.items.Stock(10))

	// cutoff in the past: nothing is old enough yet
	n, err := f.orderSvc.ExpirePending(ctx, time.Now().Add(-time.Hour))
	assert.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.orderSvc.ExpirePending(ctx, time.Now().Add(time.Minute))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 5, f.items.Stock(10))

	saved, _ := f.orders.FindByID(ctx, order.ID)
	assert.Equal(t, domain.StatusCanceled, saved.Status)

	// a second sweep finds nothing pending
	n, err = f.orderSvc.ExpirePending(ctx, time.Now().Add(time.Minute))
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestOrderService_ListOrders(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.seedItem(10, 2, 1000, 5)
	_, _, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 1}})
	assert.NoError(t, err)

	f.users.On("GetUserById", mock.Anything, uint64(1)).Return(&infra.UserInfo{ID: 1, FirstName: "Asha", LastName: "Rao"}, nil)
	f.users.On("GetUserById", mock.Anything, uint64(2)).Return(&infra.UserInfo{ID: 2, FirstName: "Dev", LastName: "Iyer"}, nil)

	bought, err := f.orderSvc.ListOrders(ctx, 1, RoleBuyer)
	assert.NoError(t, err)
	assert.Len(t, bought, 1)
	assert.Equal(t, "Asha Rao", bought[0].BuyerName)
	assert.Equal(t, "Dev Iyer", bought[0].SellerName)

	sold, err := f.orderSvc.ListOrders(ctx, 2, RoleSeller)
	assert.NoError(t, err)
	assert.Len(t, sold, 1)

	none, err := f.orderSvc.ListOrders(ctx, 99, RoleBuyer)
	assert.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.orderSvc.ListOrders(ctx, 1, "admin")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestOrderService_AmountMatchesLines(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		f := newFixture()
		var want int64
		lines := make([]domain.CartEntry, 0, 4)
		for j := 0; j < 1+rng.Intn(4); j++ {
			id := uint64(100 + j)
			price := int64(1 + rng.Intn(10000))
			qty := 1 + rng.Intn(3)
			f.seedItem(id, 2, price, 10)
			lines = append(lines, domain.CartEntry{ItemID: id, Quantity: qty})
			want += price * int64(qty)
		}

		order, _, err := f.orderSvc.CreateOrder(ctx, 1, lines)
		assert.NoError(t, err)
		assert.Equal(t, want, order.AmountCents)
		assert.Equal(t, want, order.Amount())
	}
}

func TestOrderService_ConcurrentCreateNeverOversells(t *testing.T) {
	ctx := context.Background()

	const stock = 5
	const buyers = 20

	f := newFixture()
	f.seedItem(10, 2, 1000, stock)

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		buyerID := uint64(100 + i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.orderSvc.CreateOrder(ctx, buyerID, []domain.CartEntry{{ItemID: 10, Quantity: 1}})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, short := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, buyers-stock, short)
	assert.Equal(t, 0, f.items.Stock(10))
}

func TestOrderService_ConcurrentVerifyCompletesOnce(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.seedItem(10, 2, 1000, 5)
	order, code, err := f.orderSvc.CreateOrder(ctx, 1, []domain.CartEntry{{ItemID: 10, Quantity: 1}})
	assert.NoError(t, err)

	const callers = 10
	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orderSvc.VerifyOTP(ctx, order.ID, 2, code)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidOrderState)
		}
	}
	assert.Equal(t, 1, succeeded)

	saved, _ := f.orders.FindByID(ctx, order.ID)
	assert.Equal(t, domain.StatusCompleted, saved.Status)
}
