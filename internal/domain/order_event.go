package domain

import "time"

type OrderCreatedEvent struct {
	OrderID       uint64    `json:"orderId"`
	TransactionID string    `json:"transactionId"`
	BuyerID       uint64    `json:"buyerId"`
	SellerID      uint64    `json:"sellerId"`
	AmountCents   int64     `json:"amountCents"`
	CreatedAt     time.Time `json:"createdAt"`
}

type OrderCompletedEvent struct {
	OrderID     uint64    `json:"orderId"`
	SellerID    uint64    `json:"sellerId"`
	CompletedAt time.Time `json:"completedAt"`
}

type OrderCanceledEvent struct {
	OrderID    uint64    `json:"orderId"`
	Reason     string    `json:"reason"`
	CanceledAt time.Time `json:"canceledAt"`
}
