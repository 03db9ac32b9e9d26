package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrderItems      []OrderItem        `bson:"order_items" json:"order_items"`
	ShippingAddress ShippingAddress    `bson:"shipping_address" json:"shipping_address"`
	PaymentMethod   string             `bson:"payment_method" json:"payment_method"`
	ItemsPrice      float64            `bson:"items_price" json:"items_price"`
	TaxPrice        float64            `bson:"tax_price" json:"tax_price"`
	ShippingPrice   float64            `bson:"shipping_price" json:"shipping_price"`
	TotalPrice      float64            `bson:"total_price" json:"total_price"`
	IsPaid          bool               `bson:"is_paid" json:"is_paid"`
	PaidAt          *time.Time         `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	PaymentResult   *PaymentResult     `bson:"payment_result,omitempty" json:"payment_result,omitempty"`
	IsDelivered     bool               `bson:"is_delivered" json:"is_delivered"`
	DeliveredAt     *time.Time         `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// OrderItem is a snapshot of the product at order-creation time. Prices on
// historical orders must not move when the catalog changes.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	Image     string             `bson:"image" json:"image"`
	Price     float64            `bson:"price" json:"price"`
}

type ShippingAddress struct {
	Address    string `bson:"address" json:"address"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
}

// PaymentResult holds the gateway's view of the capture. Written exactly once,
// on first successful verification.
type PaymentResult struct {
	ID         string `bson:"id" json:"id"`
	Status     string `bson:"status" json:"status"`
	UpdateTime string `bson:"update_time" json:"update_time"`
	PayerEmail string `bson:"payer_email" json:"payer_email"`
}

type OrderEvent struct {
	OrderID  string    `json:"order_id"`
	UserID   string    `json:"user_id,omitempty"`
	Type     string    `json:"type"` // created, paid, delivered, payment_check
	Total    float64   `json:"total,omitempty"`
	Occurred time.Time `json:"occurred"`
}
