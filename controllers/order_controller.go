package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shop-service/config"
	"shop-service/middlewares"
	"shop-service/models"
	"shop-service/payments"
	"shop-service/pricing"
	"shop-service/rabbitmq"
	"shop-service/store"
)

type OrderController struct {
	orders   store.OrderStore
	products store.ProductStore
	verifier *payments.Verifier
	rmq      *rabbitmq.RabbitMQ
	cfg      *config.Config
	logger   *zap.Logger
}

func NewOrderController(orders store.OrderStore, products store.ProductStore, verifier *payments.Verifier, rmq *rabbitmq.RabbitMQ, cfg *config.Config, logger *zap.Logger) *OrderController {
	return &OrderController{
		orders:   orders,
		products: products,
		verifier: verifier,
		rmq:      rmq,
		cfg:      cfg,
		logger:   logger,
	}
}

type createOrderRequest struct {
	OrderItems      []pricing.CartItem     `json:"order_items" binding:"required"`
	ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
	PaymentMethod   string                 `json:"payment_method" binding:"required"`
}

func (ctl *OrderController) CreateOrder(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("order_create", ok)
	}()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Totals come from the catalog; any prices in the request body are ignored.
	quote, err := pricing.Compute(c.Request.Context(), req.OrderItems, ctl.products)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrEmptyOrder),
			errors.Is(err, pricing.ErrInvalidQuantity),
			errors.Is(err, pricing.ErrProductNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			ctl.logger.Error("price reconciliation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		}
		return
	}

	now := time.Now()
	order := &models.Order{
		UserID:          user.ID,
		OrderItems:      quote.Items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      quote.ItemsPrice,
		TaxPrice:        quote.TaxPrice,
		ShippingPrice:   quote.ShippingPrice,
		TotalPrice:      quote.TotalPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := ctl.orders.Create(c.Request.Context(), order); err != nil {
		ctl.logger.Error("failed to save order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create order"})
		return
	}

	c.JSON(http.StatusCreated, order)

	if ctl.rmq != nil {
		priority := 5
		if order.TotalPrice > 1000 { // large orders get priority handling
			priority = 9
		}

		event := models.OrderEvent{
			OrderID:  order.ID.Hex(),
			UserID:   user.ID.Hex(),
			Type:     "created",
			Total:    order.TotalPrice,
			Occurred: now,
		}
		if err := ctl.rmq.PublishOrderEvent(event, priority); err != nil {
			ctl.logger.Warn("failed to publish order created event", zap.Error(err))
		}

		check := models.OrderEvent{
			OrderID:  order.ID.Hex(),
			Type:     "payment_check",
			Occurred: now,
		}
		if err := ctl.rmq.PublishDelayedEvent(check, ctl.cfg.PaymentWindow); err != nil {
			ctl.logger.Warn("failed to publish delayed payment check", zap.Error(err))
		}
	}
}

func (ctl *OrderController) GetMyOrders(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("order_list_mine", ok)
	}()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := ctl.orders.FindByUser(c.Request.Context(), user.ID)
	if err != nil {
		ctl.logger.Error("failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (ctl *OrderController) GetOrderByID(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("order_details", ok)
	}()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	orderID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	order, err := ctl.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		ctl.logger.Error("failed to load order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if order.UserID != user.ID && !user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to view this order"})
		return
	}

	c.JSON(http.StatusOK, order)
}

type payOrderRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

func (ctl *OrderController) PayOrder(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("order_pay", ok)
	}()

	user, ok := currentUser(c)
	if !ok {
		return
	}

	orderID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	var req payOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := ctl.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		ctl.logger.Error("failed to load order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if order.UserID != user.ID && !user.IsAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized to pay this order"})
		return
	}

	updated, err := ctl.verifier.VerifyAndPay(c.Request.Context(), orderID, req.TransactionID)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		case errors.Is(err, payments.ErrAlreadyPaid):
			c.JSON(http.StatusConflict, gin.H{"error": "Order is already paid"})
		case errors.Is(err, payments.ErrGatewayVerification),
			errors.Is(err, payments.ErrDuplicateTransaction),
			errors.Is(err, payments.ErrAmountMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			ctl.logger.Error("payment verification failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment verification failed"})
		}
		return
	}

	c.JSON(http.StatusOK, updated)

	if ctl.rmq != nil {
		event := models.OrderEvent{
			OrderID:  updated.ID.Hex(),
			UserID:   user.ID.Hex(),
			Type:     "paid",
			Total:    updated.TotalPrice,
			Occurred: time.Now(),
		}
		if err := ctl.rmq.PublishOrderEvent(event, 7); err != nil {
			ctl.logger.Warn("failed to publish order paid event", zap.Error(err))
		}
	}
}

func (ctl *OrderController) DeliverOrder(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("order_deliver", ok)
	}()

	orderID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	updated, err := ctl.orders.MarkDelivered(c.Request.Context(), orderID, time.Now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		ctl.logger.Error("failed to mark order delivered", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, updated)

	if ctl.rmq != nil {
		event := models.OrderEvent{
			OrderID:  updated.ID.Hex(),
			Type:     "delivered",
			Occurred: time.Now(),
		}
		if err := ctl.rmq.PublishOrderEvent(event, 5); err != nil {
			ctl.logger.Warn("failed to publish order delivered event", zap.Error(err))
		}
	}
}

func (ctl *OrderController) GetOrders(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("order_list_all", ok)
	}()

	orders, err := ctl.orders.FindAll(c.Request.Context())
	if err != nil {
		ctl.logger.Error("failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, orders)
}

// HandleDeadLetter receives dead-lettered order events for manual follow-up.
func (ctl *OrderController) HandleDeadLetter(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOperation("dead_letter", ok)
	}()

	var deadLetter struct {
		OrderID string `json:"order_id"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&deadLetter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctl.logger.Warn("handling dead letter",
		zap.String("order_id", deadLetter.OrderID),
		zap.String("reason", deadLetter.Reason))

	c.JSON(http.StatusOK, gin.H{"message": "Dead letter processed"})
}
