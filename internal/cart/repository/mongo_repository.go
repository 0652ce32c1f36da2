package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionName = "cart_lines"
	// Abandoned lines expire after 90 days without a mutation.
	lineTTL = 90 * 24 * time.Hour
)

// MongoRepository stores one document per cart line in the cart_lines collection.
type MongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(collectionName),
		now:        time.Now,
	}
}

func lineFilter(userID string, productID int64) bson.M {
	return bson.M{"user_id": userID, "product_id": productID}
}

func (m *MongoRepository) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "product_id", Value: 1},
	})

	cursor, err := m.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}

	lines := make([]domain.CartLine, 0)
	if err := cursor.All(ctx, &lines); err != nil {
		return nil, fmt.Errorf("failed to decode cart lines: %w", err)
	}
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return lines, nil
}

func (m *MongoRepository) AddItem(ctx context.Context, userID string, productID int64, quantity int) error {
	now := m.now()
	update := bson.M{
		"$inc":         bson.M{"quantity": quantity, "version": 1},
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, lineFilter(userID, productID), update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced to insert the same line; the loser now matches the
		// winner's document and increments it.
		_, err = m.collection.UpdateOne(ctx, lineFilter(userID, productID), update, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}
	return nil
}

func (m *MongoRepository) UpdateItemQuantity(ctx context.Context, userID string, productID int64, quantity int) error {
	update := bson.M{
		"$set": bson.M{"quantity": quantity, "updated_at": m.now()},
		"$inc": bson.M{"version": 1},
	}

	result, err := m.collection.UpdateOne(ctx, lineFilter(userID, productID), update)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m *MongoRepository) RemoveItem(ctx context.Context, userID string, productID int64) error {
	if _, err := m.collection.DeleteOne(ctx, lineFilter(userID, productID)); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

func (m *MongoRepository) DeleteConsumed(ctx context.Context, userID string, consumed []domain.ConsumedLine) (int64, error) {
	if len(consumed) == 0 {
		return 0, nil
	}

	or := make(bson.A, 0, len(consumed))
	for _, c := range consumed {
		or = append(or, bson.M{"product_id": c.ProductID, "version": c.Version})
	}
	filter := bson.M{"user_id": userID, "$or": or}

	result, err := m.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete consumed lines: %w", err)
	}
	return result.DeletedCount, nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, userID string) error {
	if _, err := m.collection.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// CreateIndexes enforces one line per (user, product) and expires idle lines.
func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(lineTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
