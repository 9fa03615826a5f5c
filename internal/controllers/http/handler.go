package http

import (
	"errors"
	"net/http"
	"strconv"

	"checkout-service/internal/domain"
	"checkout-service/internal/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	orders *services.OrderService
	carts  *services.CartService
}

func NewHandler(orders *services.OrderService, carts *services.CartService) *Handler {
	return &Handler{orders: orders, carts: carts}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	authed := r.Group("/", IdentityMiddleware())

	authed.POST("/orders", h.CreateOrder)
	authed.POST("/orders/checkout", h.CheckoutCart)
	authed.GET("/orders", h.ListOrders)
	authed.POST("/orders/:id/verify-otp", h.VerifyOTP)
	authed.POST("/orders/:id/regenerate-otp", h.RegenerateOTP)
	authed.POST("/orders/:id/cancel", h.CancelOrder)

	authed.GET("/cart", h.GetCart)
	authed.POST("/cart", h.AddToCart)
	authed.PUT("/cart/:itemId", h.UpdateCart)
	authed.DELETE("/cart/:itemId", h.RemoveFromCart)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidOTP),
		errors.Is(err, domain.ErrSelfPurchase),
		errors.Is(err, domain.ErrMultipleSellers):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrCartEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidOrderState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lines := make([]domain.CartEntry, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.CartEntry{ItemID: l.ItemID, Quantity: l.Quantity})
	}

	order, code, err := h.orders.CreateOrder(c.Request.Context(), CallerID(c), lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateOrderResponse{OrderID: order.ID, TransactionCode: code})
}

func (h *Handler) CheckoutCart(c *gin.Context) {
	order, code, err := h.orders.CheckoutCart(c.Request.Context(), CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateOrderResponse{OrderID: order.ID, TransactionCode: code})
}

func (h *Handler) ListOrders(c *gin.Context) {
	role := c.DefaultQuery("role", services.RoleBuyer)
	views, err := h.orders.ListOrders(c.Request.Context(), CallerID(c), role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.orders.VerifyOTP(c.Request.Context(), orderID, CallerID(c), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VerifyOTPResponse{OrderID: order.ID, Status: string(order.Status)})
}

func (h *Handler) RegenerateOTP(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	code, err := h.orders.RegenerateOTP(c.Request.Context(), orderID, CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, RegenerateOTPResponse{TransactionCode: code})
}

func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, err := pathID(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), orderID, CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VerifyOTPResponse{OrderID: order.ID, Status: string(order.Status)})
}

func (h *Handler) GetCart(c *gin.Context) {
	lines, err := h.carts.List(c.Request.Context(), CallerID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.carts.Add(c.Request.Context(), CallerID(c), req.ItemID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "added to cart"})
}

func (h *Handler) UpdateCart(c *gin.Context) {
	itemID, err := pathID(c, "itemId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.carts.Update(c.Request.Context(), CallerID(c), itemID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart updated"})
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	itemID, err := pathID(c, "itemId")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	if err := h.carts.Remove(c.Request.Context(), CallerID(c), itemID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed from cart"})
}

func pathID(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}
