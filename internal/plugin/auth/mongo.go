package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openmark/openmark/internal/plugin"
)

// MongoDBAuthPlugin authenticates against a MongoDB users collection.
// Registers as "mongodb". Inactive accounts are treated as unknown.
type MongoDBAuthPlugin struct {
	client *mongo.Client
	col    *mongo.Collection
}

type mongoUser struct {
	Username     string `bson:"username"`
	PasswordHash string `bson:"password_hash"`
	Role         string `bson:"role"`
	Active       *bool  `bson:"active"`
}

var MongoDescriptor = plugin.Descriptor{
	Family: plugin.FamilyAuth,
	Name:   plugin.NameFromType("MongoDBAuthPlugin"),
	Factory: func(cfg plugin.Config) (any, error) {
		return NewMongoDBAuthPlugin(
			cfg.String("uri", "mongodb://localhost:27017"),
			cfg.String("database", "openmark"),
			cfg.String("collection", "users"),
		)
	},
}

func NewMongoDBAuthPlugin(uri, database, collection string) (*MongoDBAuthPlugin, error) {
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
	p := &MongoDBAuthPlugin{client: client, col: col}
	if err := p.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return p, nil
}

func (p *MongoDBAuthPlugin) ensureIndexes(ctx context.Context) error {
	_, err := p.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (p *MongoDBAuthPlugin) Authenticate(ctx context.Context, username, password string) (*plugin.Principal, error) {
	u, err := p.find(ctx, username)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(u.PasswordHash), []byte(HashPassword(password))) != 1 {
		return nil, plugin.ErrAuthFailed
	}
	return &plugin.Principal{Username: u.Username, Role: roleOrUser(u.Role)}, nil
}

func (p *MongoDBAuthPlugin) Lookup(ctx context.Context, username string) (plugin.Role, error) {
	u, err := p.find(ctx, username)
	if err != nil {
		return "", err
	}
	return roleOrUser(u.Role), nil
}

func (p *MongoDBAuthPlugin) find(ctx context.Context, username string) (*mongoUser, error) {
	var u mongoUser
	err := p.col.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, plugin.ErrAuthFailed
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	if u.Active != nil && !*u.Active {
		return nil, plugin.ErrAuthFailed
	}
	return &u, nil
}

func (p *MongoDBAuthPlugin) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.client.Disconnect(ctx)
}
