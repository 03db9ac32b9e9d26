package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"shop-service/models"
)

type MongoOrderStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongoOrderStore(db *mongo.Database, logger *zap.Logger) *MongoOrderStore {
	return &MongoOrderStore{
		collection: db.Collection("orders"),
		logger:     logger,
	}
}

func (s *MongoOrderStore) Create(ctx context.Context, order *models.Order) error {
	order.ID = primitive.NewObjectID()
	if _, err := s.collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (s *MongoOrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return &order, nil
}

func (s *MongoOrderStore) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.find(ctx, bson.M{"user_id": userID})
}

func (s *MongoOrderStore) FindAll(ctx context.Context) ([]models.Order, error) {
	return s.find(ctx, bson.M{})
}

func (s *MongoOrderStore) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	cursor, err := s.collection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

func (s *MongoOrderStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	var order models.Order
	err := s.collection.FindOne(ctx, bson.M{"payment_result.id": paymentID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order by payment id: %w", err)
	}
	return &order, nil
}

// MarkPaid is the atomic half of the replay protection. The filter only
// matches unpaid orders, and the partial unique index on payment_result.id
// rejects a capture id already attached to another order, so two concurrent
// verifications can never both succeed.
func (s *MongoOrderStore) MarkPaid(ctx context.Context, id primitive.ObjectID, result models.PaymentResult, paidAt time.Time) (*models.Order, error) {
	var order models.Order
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "is_paid": false},
		bson.M{"$set": bson.M{
			"is_paid":        true,
			"paid_at":        paidAt,
			"payment_result": result,
			"updated_at":     paidAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)

	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Order missing entirely, or already paid by a concurrent request.
			if _, findErr := s.FindByID(ctx, id); findErr != nil {
				return nil, findErr
			}
			return nil, ErrAlreadyPaid
		}
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}

	s.logger.Info("order marked paid",
		zap.String("order_id", id.Hex()),
		zap.String("payment_id", result.ID))
	return &order, nil
}

func (s *MongoOrderStore) MarkDelivered(ctx context.Context, id primitive.ObjectID, at time.Time) (*models.Order, error) {
	var order models.Order
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"is_delivered": true,
			"delivered_at": at,
			"updated_at":   at,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&order)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark order delivered: %w", err)
	}
	return &order, nil
}

func (s *MongoOrderStore) DeleteUnpaid(ctx context.Context, id primitive.ObjectID) (bool, error) {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id, "is_paid": false})
	if err != nil {
		return false, fmt.Errorf("failed to delete unpaid order: %w", err)
	}
	return result.DeletedCount > 0, nil
}
