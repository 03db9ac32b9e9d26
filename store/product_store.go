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

type MongoProductStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongoProductStore(db *mongo.Database, logger *zap.Logger) *MongoProductStore {
	return &MongoProductStore{
		collection: db.Collection("products"),
		logger:     logger,
	}
}

func (s *MongoProductStore) FindPage(ctx context.Context, keyword string, page, pageSize int) (*models.ProductPage, error) {
	if page < 1 {
		page = 1
	}

	filter := bson.M{}
	if keyword != "" {
		filter["name"] = bson.M{"$regex": primitive.Regex{Pattern: keyword, Options: "i"}}
	}

	count, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	cursor, err := s.collection.Find(ctx, filter, options.Find().
		SetLimit(int64(pageSize)).
		SetSkip(int64(pageSize*(page-1))))
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	pages := int((count + int64(pageSize) - 1) / int64(pageSize))
	return &models.ProductPage{Products: products, Page: page, Pages: pages}, nil
}

func (s *MongoProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return &product, nil
}

func (s *MongoProductStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query products by ids: %w", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (s *MongoProductStore) FindTop(ctx context.Context, limit int) ([]models.Product, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "rating", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to query top products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (s *MongoProductStore) Create(ctx context.Context, product *models.Product) error {
	product.ID = primitive.NewObjectID()
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	if product.Reviews == nil {
		product.Reviews = []models.Review{}
	}

	if _, err := s.collection.InsertOne(ctx, product); err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}

	s.logger.Info("product created", zap.String("product_id", product.ID.Hex()), zap.String("name", product.Name))
	return nil
}

func (s *MongoProductStore) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoProductStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
