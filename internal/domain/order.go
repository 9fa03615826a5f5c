package domain

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusCompleted OrderStatus = "completed"
	StatusCanceled  OrderStatus = "canceled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:   {StatusCompleted: true, StatusCanceled: true},
	StatusCompleted: {},
	StatusCanceled:  {},
}

// CanTransition reports whether an order may move from one status to
// another. completed and canceled are terminal.
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

type Order struct {
	ID            uint64      `json:"id" gorm:"primaryKey;autoIncrement"`
	TransactionID string      `json:"transactionId" gorm:"size:64;uniqueIndex;not null"`
	BuyerID       uint64      `json:"buyerId" gorm:"not null;index"`
	SellerID      uint64      `json:"sellerId" gorm:"not null;index"`
	AmountCents   int64       `json:"amountCents" gorm:"not null"`
	OTPHash       string      `json:"-" gorm:"size:128;not null"`
	Status        OrderStatus `json:"status" gorm:"type:enum('pending','completed','canceled');default:'pending';index"`
	Lines         []LineItem  `json:"lines" gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time   `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt     time.Time   `json:"updatedAt" gorm:"autoUpdateTime"`
}

// LineItem is immutable once its order exists. PriceCents is the unit
// price captured at order-creation time, not the item's live price.
type LineItem struct {
	ID         uint64 `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID    uint64 `json:"orderId" gorm:"not null;index"`
	ItemID     uint64 `json:"itemId" gorm:"not null"`
	Quantity   int    `json:"quantity" gorm:"not null"`
	PriceCents int64  `json:"priceCents" gorm:"not null"`
}

// Amount recomputes the total from the order's lines.
func (o *Order) Amount() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.PriceCents * int64(l.Quantity)
	}
	return total
}
