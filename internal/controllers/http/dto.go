package http

type OrderLineRequest struct {
	ItemID   uint64 `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	Lines []OrderLineRequest `json:"lines" binding:"required,min=1,dive"`
}

type CreateOrderResponse struct {
	OrderID         uint64 `json:"orderId"`
	TransactionCode string `json:"transactionCode"`
}

type VerifyOTPRequest struct {
	Code string `json:"code" binding:"required"`
}

type VerifyOTPResponse struct {
	OrderID uint64 `json:"orderId"`
	Status  string `json:"status"`
}

type RegenerateOTPResponse struct {
	TransactionCode string `json:"transactionCode"`
}

type AddToCartRequest struct {
	ItemID   uint64 `json:"itemId" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

type UpdateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}
