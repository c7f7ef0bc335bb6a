// internal/app/store/messages/messagestore.go
package messagestore

import (
	"context"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("messages")}
}

// Append inserts one immutable message with a server-assigned timestamp.
// Messages are never updated after this write.
func (s *Store) Append(ctx context.Context, m models.Message) (models.Message, error) {
	m.ID = primitive.NewObjectID()
	m.Timestamp = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// ListByGroup returns the group's complete message list ordered by
// timestamp ascending (ties broken by _id, which is itself time-ordered).
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Message, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := []models.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteByGroup removes every message owned by the group. Called from the
// group-deletion cascade. Returns the number of documents deleted.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Watch opens a change stream limited to inserts for one group. Messages
// are immutable, so inserts are the only events a live chat view needs;
// deletes happen only through the group-deletion cascade, which tears down
// the subscription through the group feed instead.
func (s *Store) Watch(ctx context.Context, groupID primitive.ObjectID) (*mongo.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"operationType":        "insert",
			"fullDocument.group_id": groupID,
		}}},
	}
	return s.c.Watch(ctx, pipeline)
}
