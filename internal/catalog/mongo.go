package catalog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoCatalog looks sessions up in the videos collection, keyed by ObjectID.
type MongoCatalog struct {
	client *mongo.Client
	videos *mongo.Collection
	logger *zap.Logger
}

// NewMongoCatalog connects and pings before returning.
func NewMongoCatalog(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*MongoCatalog, error) {
	if collection == "" {
		collection = "videos"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Named("catalog.mongo").Info("mongo catalog ready",
		zap.String("database", database), zap.String("collection", collection))

	return &MongoCatalog{
		client: client,
		videos: client.Database(database).Collection(collection),
		logger: logger.Named("catalog.mongo"),
	}, nil
}

// ParseSessionID converts a session id to an ObjectID. Malformed ids cannot
// name any document, so callers treat them as not found.
func ParseSessionID(sessionID string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

// SessionExists implements interfaces.Catalog.
func (c *MongoCatalog) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	oid, ok := ParseSessionID(sessionID)
	if !ok {
		return false, nil
	}

	n, err := c.videos.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count videos: %w", err)
	}
	return n > 0, nil
}

// RegisterSession upserts a video document. The id must be an ObjectID in
// hex; a session without one is given a new ObjectID.
func (c *MongoCatalog) RegisterSession(ctx context.Context, session *VideoSession) error {
	if session == nil || session.CourseID == "" || session.URL == "" {
		return ErrInvalidSession
	}

	oid := primitive.NewObjectID()
	if session.ID != "" {
		parsed, ok := ParseSessionID(session.ID)
		if !ok {
			return fmt.Errorf("%w: id %q is not an object id", ErrInvalidSession, session.ID)
		}
		oid = parsed
	}
	if session.StartTime.IsZero() {
		session.StartTime = time.Now().UTC()
	}

	doc := bson.M{
		"url":       session.URL,
		"tutor":     session.TutorID,
		"courseID":  session.CourseID,
		"startTime": session.StartTime,
		"endTime":   session.EndTime,
	}
	_, err := c.videos.ReplaceOne(ctx, bson.M{"_id": oid}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert video: %w", err)
	}
	session.ID = oid.Hex()
	return nil
}

// HealthCheck pings the primary.
func (c *MongoCatalog) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping failed: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (c *MongoCatalog) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}
