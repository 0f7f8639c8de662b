package authority

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRevocations keeps revocation entries in a shared collection so that
// logout is visible across all server instances.
//
// Document shape: { _id: tokenHash, expiresAt: Date, revokedAt: Date }.
type MongoRevocations struct {
	col *mongo.Collection
}

func NewMongoRevocations(col *mongo.Collection) *MongoRevocations {
	return &MongoRevocations{col: col}
}

// EnsureIndexes creates the TTL index that lets MongoDB expire entries on
// its own; Prune remains as a belt for deployments without TTL monitors.
func (s *MongoRevocations) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (s *MongoRevocations) Add(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	filter := bson.M{"_id": tokenHash}
	update := bson.M{"$set": bson.M{
		"expiresAt": expiresAt.UTC(),
		"revokedAt": time.Now().UTC(),
	}}
	_, err := s.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoRevocations) Contains(ctx context.Context, tokenHash string) (bool, error) {
	err := s.col.FindOne(ctx, bson.M{"_id": tokenHash}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoRevocations) Prune(ctx context.Context, now time.Time) error {
	_, err := s.col.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now.UTC()}})
	return err
}
