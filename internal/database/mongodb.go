// Package database holds the MongoDB connection helper shared by the
// revocation store and the mongodb-backed plugins.
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/openmark/openmark/pkg/logger"
)

// connectAttempts bounds the startup retry loop; the gateway frequently
// boots before its database container is ready to answer.
const connectAttempts = 5

// ConnectMongo dials MongoDB and verifies the connection with a ping,
// retrying with doubling backoff. The caller owns the returned client and
// must Disconnect it.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		client, err := dial(ctx, uri, timeout)
		if err == nil {
			return client, nil
		}
		lastErr = err
		logger.Warnf("mongodb connect attempt %d/%d failed: %v", attempt, connectAttempts, err)
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("connecting to mongodb after %d attempts: %w", connectAttempts, lastErr)
}

func dial(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(dctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}
	return client, nil
}
