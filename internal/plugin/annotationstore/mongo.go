package annotationstore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openmark/openmark/internal/annotations"
	"github.com/openmark/openmark/internal/plugin"
)

// MongoDBAnnotationsPlugin stores annotation sets in a MongoDB collection
// with one document per (user, document) pair. Registers as "mongodb".
type MongoDBAnnotationsPlugin struct {
	client *mongo.Client
	col    *mongo.Collection
}

type mongoRecord struct {
	UserID      string           `bson:"user_id"`
	DocumentID  string           `bson:"document_id"`
	Annotations *annotations.Set `bson:"annotations"`
	CreatedAt   time.Time        `bson:"created_at"`
	UpdatedAt   time.Time        `bson:"updated_at"`
}

var MongoDescriptor = plugin.Descriptor{
	Family: plugin.FamilyAnnotations,
	Name:   plugin.NameFromType("MongoDBAnnotationsPlugin"),
	Factory: func(cfg plugin.Config) (any, error) {
		return NewMongoDBAnnotationsPlugin(
			cfg.String("uri", "mongodb://localhost:27017"),
			cfg.String("database", "openmark"),
			cfg.String("collection", "annotations"),
		)
	},
}

func NewMongoDBAnnotationsPlugin(uri, database, collection string) (*MongoDBAnnotationsPlugin, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	col := client.Database(database).Collection(collection)
	_, err = col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "document_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("creating annotations index: %w", err)
	}
	return &MongoDBAnnotationsPlugin{client: client, col: col}, nil
}

func (p *MongoDBAnnotationsPlugin) Save(ctx context.Context, user, documentID string, set *annotations.Set) error {
	if err := set.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	filter := bson.M{"user_id": user, "document_id": documentID}
	update := bson.M{
		"$set": bson.M{
			"annotations": set,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{
			"user_id":     user,
			"document_id": documentID,
			"created_at":  now,
		},
	}
	_, err := p.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving annotations: %w", err)
	}
	return nil
}

func (p *MongoDBAnnotationsPlugin) Load(ctx context.Context, user, documentID string) (*annotations.Set, error) {
	var rec mongoRecord
	err := p.col.FindOne(ctx, bson.M{"user_id": user, "document_id": documentID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return annotations.NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading annotations: %w", err)
	}
	if rec.Annotations == nil {
		return annotations.NewSet(), nil
	}
	return rec.Annotations, nil
}

func (p *MongoDBAnnotationsPlugin) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.client.Disconnect(ctx)
}
