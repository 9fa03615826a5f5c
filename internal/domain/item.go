package domain

import "time"

// Item is the seller's listing. Stock is mutated only through the
// inventory ledger (ItemRepository.Reserve/Release); the other fields
// belong to the listing service.
type Item struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	SellerID    uint64    `json:"sellerId" gorm:"not null;index"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	PriceCents  int64     `json:"priceCents" gorm:"not null"`
	Stock       int       `json:"stock" gorm:"not null"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
