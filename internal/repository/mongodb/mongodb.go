// Package mongodb implements the persistence facade on MongoDB. Backend
// identifiers are ObjectID hex strings; an identifier that does not parse as
// an ObjectID behaves like a missing record. Author summaries and chat
// participant views are populated with batched $in lookups.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"bhabo/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps the MongoDB connection and hands out the backend's
// repositories.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes and verifies the MongoDB connection and ensures the
// collection indexes exist.
func Connect(ctx context.Context, uri, dbName string) (*Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	c := &Client{client: client, db: client.Database(dbName)}
	if err := c.createIndexes(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Store returns the three MongoDB-backed repositories.
func (c *Client) Store() *repository.Store {
	users := &userStore{coll: c.db.Collection("users")}
	return &repository.Store{
		Users: users,
		Posts: &postStore{coll: c.db.Collection("posts"), users: users},
		Chats: &chatStore{
			chats:    c.db.Collection("chats"),
			messages: c.db.Collection("messages"),
			users:    users,
		},
	}
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *Client) createIndexes(ctx context.Context) error {
	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := c.db.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}

	postIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := c.db.Collection("posts").Indexes().CreateMany(ctx, postIndexes); err != nil {
		return fmt.Errorf("creating post indexes: %w", err)
	}

	// The unique participants index is what makes get-or-create race-safe:
	// a losing concurrent insert fails with a duplicate key and re-reads.
	chatIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "participants", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.db.Collection("chats").Indexes().CreateOne(ctx, chatIndex); err != nil {
		return fmt.Errorf("creating chat index: %w", err)
	}

	msgIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: 1}},
	}
	if _, err := c.db.Collection("messages").Indexes().CreateOne(ctx, msgIndex); err != nil {
		return fmt.Errorf("creating message index: %w", err)
	}
	return nil
}
