package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/mocks"
	"checkout-service/internal/repository/memory"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

// fixture wires the services against in-memory repositories; the real
// concurrency behavior of the ledger and order store is what several tests
// are about, so only the outward collaborators are mocked.
type fixture struct {
	items  *memory.ItemRepository
	orders *memory.OrderRepository
	carts  *memory.CartRepository
	users  *mocks.MockUserClient
	pub    *mocks.MockPublisher

	orderSvc *OrderService
	cartSvc  *CartService
}

func newFixture() *fixture {
	f := &fixture{
		items:  memory.NewItemRepository(),
		orders: memory.NewOrderRepository(),
		carts:  memory.NewCartRepository(),
		users:  new(mocks.MockUserClient),
		pub:    new(mocks.MockPublisher),
	}
	// events go out on background goroutines; tests don't assert on them
	f.pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	codec := NewOTPCodecWithCost(bcrypt.MinCost)
	f.orderSvc = NewOrderService(f.orders, f.items, f.carts, f.users, f.pub, codec)
	f.cartSvc = NewCartService(f.carts, f.items)
	return f
}

func (f *fixture) seedItem(id, sellerID uint64, priceCents int64, stock int) {
	f.items.Seed(domain.Item{
		ID:         id,
		SellerID:   sellerID,
		Name:       "item",
		PriceCents: priceCents,
		Stock:      stock,
	})
}
