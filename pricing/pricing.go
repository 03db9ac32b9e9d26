// Package pricing recomputes order totals from the authoritative catalog.
// Client-submitted prices are never trusted; the catalog price at lookup time
// is the only price that enters an order.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop-service/models"
)

var (
	ErrEmptyOrder      = errors.New("order must contain at least one item")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Pricing policy. Shipping is free above the threshold, otherwise a flat fee.
var (
	taxRate           = decimal.NewFromFloat(0.20)
	freeShippingAbove = decimal.NewFromInt(100)
	shippingFee       = decimal.NewFromInt(10)
)

type CartItem struct {
	ProductID primitive.ObjectID `json:"product_id" binding:"required"`
	Quantity  int                `json:"quantity" binding:"required"`
}

type Quote struct {
	Items         []models.OrderItem
	ItemsPrice    float64
	TaxPrice      float64
	ShippingPrice float64
	TotalPrice    float64
}

// Catalog resolves products by id. Satisfied by store.ProductStore.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
}

// Compute reconciles a client cart against the catalog and returns the
// authoritative line items and totals, all rounded to 2 decimal places.
func Compute(ctx context.Context, items []CartItem, catalog Catalog) (*Quote, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	ids := make([]primitive.ObjectID, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s has quantity %d", ErrInvalidQuantity, item.ProductID.Hex(), item.Quantity)
		}
		ids = append(ids, item.ProductID)
	}

	products, err := catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}

	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	quote := &Quote{Items: make([]models.OrderItem, 0, len(items))}
	itemsPrice := decimal.Zero

	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID.Hex())
		}

		unitPrice := decimal.NewFromFloat(product.Price)
		itemsPrice = itemsPrice.Add(unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))

		quote.Items = append(quote.Items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			Image:     product.Image,
			Price:     product.Price,
		})
	}

	itemsPrice = itemsPrice.Round(2)

	shippingPrice := shippingFee
	if itemsPrice.GreaterThan(freeShippingAbove) {
		shippingPrice = decimal.Zero
	}

	taxPrice := itemsPrice.Mul(taxRate).Round(2)
	totalPrice := itemsPrice.Add(taxPrice).Add(shippingPrice).Round(2)

	quote.ItemsPrice, _ = itemsPrice.Float64()
	quote.TaxPrice, _ = taxPrice.Float64()
	quote.ShippingPrice, _ = shippingPrice.Float64()
	quote.TotalPrice, _ = totalPrice.Float64()

	return quote, nil
}
