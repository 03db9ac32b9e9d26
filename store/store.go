// Package store abstracts the document-store query patterns behind
// per-aggregate interfaces so the core logic never sees a query language.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop-service/models"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrAlreadyPaid  = errors.New("order already paid")
)

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)

	// MarkPaid sets the payment fields on an unpaid order as a single
	// conditional write. Returns ErrAlreadyPaid if the order is already paid
	// and ErrDuplicateKey if the payment id is attached to another order.
	MarkPaid(ctx context.Context, id primitive.ObjectID, result models.PaymentResult, paidAt time.Time) (*models.Order, error)

	MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Order, error)

	// DeleteUnpaid removes the order only if it is still unpaid. Reports
	// whether a document was removed.
	DeleteUnpaid(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type ProductStore interface {
	FindPage(ctx context.Context, keyword string, page, pageSize int) (*models.ProductPage, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	FindTop(ctx context.Context, limit int) ([]models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindAll(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}
