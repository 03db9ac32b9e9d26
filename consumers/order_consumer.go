package consumers

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"shop-service/config"
	"shop-service/models"
	"shop-service/store"
)

// OrderConsumer reacts to order lifecycle events. Its main job is the delayed
// payment_check event: an order still unpaid when the check fires is an
// abandoned checkout and gets removed.
type OrderConsumer struct {
	channel *amqp.Channel
	cfg     *config.Config
	orders  store.OrderStore
	logger  *zap.Logger
}

func NewOrderConsumer(channel *amqp.Channel, cfg *config.Config, orders store.OrderStore, logger *zap.Logger) *OrderConsumer {
	return &OrderConsumer{
		channel: channel,
		cfg:     cfg,
		orders:  orders,
		logger:  logger,
	}
}

func (c *OrderConsumer) Start() error {
	msgs, err := c.channel.Consume(
		c.cfg.OrderQueue,
		"shop-service", // consumer tag
		false,          // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			c.processOrderMessage(msg)
		}
	}()

	dlqMsgs, err := c.channel.Consume(
		c.cfg.DeadLetterQueue,
		"shop-service-dlq", // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,
	)
	if err != nil {
		c.logger.Warn("failed to register DLQ consumer", zap.Error(err))
		return nil
	}

	go func() {
		for msg := range dlqMsgs {
			c.processDeadLetterMessage(msg)
		}
	}()

	return nil
}

func (c *OrderConsumer) processOrderMessage(msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic in message processing", zap.Any("panic", r))
			// Dead-letter the poisoned delivery instead of leaving it unacked.
			msg.Nack(false, false)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Warn("invalid event payload", zap.ByteString("body", msg.Body))
		msg.Nack(false, false) // reject, do not requeue
		return
	}

	c.logger.Info("processing order event",
		zap.String("order_id", event.OrderID),
		zap.String("type", event.Type))

	switch event.Type {
	case "created", "paid", "delivered":
		// Notification hooks; nothing to mutate here.
	case "payment_check":
		c.handlePaymentCheck(event.OrderID)
	default:
		c.logger.Warn("unknown event type", zap.String("type", event.Type))
	}

	msg.Ack(false)
}

func (c *OrderConsumer) processDeadLetterMessage(msg amqp.Delivery) {
	c.logger.Warn("received dead letter", zap.ByteString("body", msg.Body))
	msg.Ack(false)
}

func (c *OrderConsumer) handlePaymentCheck(orderID string) {
	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		c.logger.Warn("payment check for invalid order id", zap.String("order_id", orderID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	removed, err := c.orders.DeleteUnpaid(ctx, id)
	if err != nil {
		c.logger.Error("payment check failed", zap.String("order_id", orderID), zap.Error(err))
		return
	}
	if removed {
		c.logger.Info("cancelled unpaid order", zap.String("order_id", orderID))
	}
}
