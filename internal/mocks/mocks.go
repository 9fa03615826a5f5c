package mocks

import (
	"context"
	"time"

	"checkout-service/internal/domain"
	"checkout-service/internal/infra"

	"github.com/stretchr/testify/mock"
)

type MockItemRepository struct {
	mock.Mock
}

func (m *MockItemRepository) FindByID(ctx context.Context, id uint64) (*domain.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Item), args.Error(1)
}

func (m *MockItemRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]*domain.Item, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint64]*domain.Item), args.Error(1)
}

func (m *MockItemRepository) Reserve(ctx context.Context, itemID uint64, qty int) error {
	args := m.Called(ctx, itemID, qty)
	return args.Error(0)
}

func (m *MockItemRepository) Release(ctx context.Context, itemID uint64, qty int) error {
	args := m.Called(ctx, itemID, qty)
	return args.Error(0)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByBuyer(ctx context.Context, buyerID uint64) ([]domain.Order, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListBySeller(ctx context.Context, sellerID uint64) ([]domain.Order, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

func (m *MockOrderRepository) TransitionStatus(ctx context.Context, orderID uint64, from, to domain.OrderStatus) (bool, error) {
	args := m.Called(ctx, orderID, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) SwapOTPHashIfPending(ctx context.Context, orderID uint64, hash string) (bool, error) {
	args := m.Called(ctx, orderID, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]domain.Order, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) Get(ctx context.Context, userID uint64) ([]domain.CartEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CartEntry), args.Error(1)
}

func (m *MockCartRepository) Put(ctx context.Context, userID uint64, entry domain.CartEntry) error {
	args := m.Called(ctx, userID, entry)
	return args.Error(0)
}

func (m *MockCartRepository) Remove(ctx context.Context, userID uint64, itemID uint64) error {
	args := m.Called(ctx, userID, itemID)
	return args.Error(0)
}

func (m *MockCartRepository) Clear(ctx context.Context, userID uint64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockUserClient struct {
	mock.Mock
}

func (m *MockUserClient) GetUserById(ctx context.Context, id uint64) (*infra.UserInfo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.UserInfo), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, data interface{}) error {
	args := m.Called(ctx, routingKey, data)
	return args.Error(0)
}
