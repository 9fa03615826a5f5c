package domain

// CartEntry is one reserved-for-later line in a user's cart. Entries are
// unique per item; adding an item that is already present merges into the
// existing entry instead of duplicating it.
type CartEntry struct {
	ItemID   uint64 `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// CartLine is a cart entry with the item details resolved for display.
type CartLine struct {
	ItemID     uint64 `json:"itemId"`
	Quantity   int    `json:"quantity"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Stock      int    `json:"stock"`
}
