// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/studyhub/internal/app/groupcode"
	"github.com/dalemusser/studyhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrDuplicateCode is returned when an insert collides with an existing
// join code (unique index on code).
var ErrDuplicateCode = errors.New("a group with this join code already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// GetByCode looks up the unique group for a join code. The code is
// normalized to uppercase so lookups are case-insensitive. Returns
// mongo.ErrNoDocuments when no group has the code.
func (s *Store) GetByCode(ctx context.Context, code string) (models.Group, error) {
	var g models.Group
	err := s.c.FindOne(ctx, bson.M{"code": groupcode.Normalize(code)}).Decode(&g)
	if err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// CodeExists reports whether any group currently holds the code.
func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"code": groupcode.Normalize(code)}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert creates the group document. The caller supplies Code, CreatedBy,
// Members, Admins, MemberCount and MaxMembers; Insert assigns the ID, folds
// the name and stamps the timestamps.
func (s *Store) Insert(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	g.Code = groupcode.Normalize(g.Code)
	g.LastActivity = now
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateCode
		}
		return models.Group{}, err
	}
	return g, nil
}

// AddMember appends userID to the member list and increments the
// denormalized count. The filter re-checks capacity and non-membership at
// write time, so a concurrent joiner who lost the race matches nothing.
// Returns true when the document was updated.
func (s *Store) AddMember(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":     groupID,
			"members": bson.M{"$ne": userID},
			"$expr":   bson.M{"$lt": bson.A{"$member_count", "$max_members"}},
		},
		bson.M{
			"$push": bson.M{"members": userID},
			"$inc":  bson.M{"member_count": 1},
			"$set":  bson.M{"last_activity": now, "updated_at": now},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// RemoveMember pulls userID from both the member and admin lists and
// decrements the count. The filter requires current membership so the
// decrement can never drive member_count below zero. Returns true when the
// document was updated.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID primitive.ObjectID) (bool, error) {
	now := time.Now().UTC()
	res, err := s.c.UpdateOne(ctx,
		bson.M{
			"_id":     groupID,
			"members": userID,
		},
		bson.M{
			"$pull": bson.M{"members": userID, "admins": userID},
			"$inc":  bson.M{"member_count": -1},
			"$set":  bson.M{"last_activity": now, "updated_at": now},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// TouchActivity bumps last_activity/updated_at. Callers treat failures as
// best-effort telemetry, not correctness.
func (s *Store) TouchActivity(ctx context.Context, groupID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateByID(ctx, groupID, bson.M{
		"$set": bson.M{"last_activity": now, "updated_at": now},
	})
	return err
}

// Delete removes a group by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByMember returns every group whose member list contains userID.
// Ordering is left to the caller; the realtime feed sorts by last_activity.
func (s *Store) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, bson.M{"members": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []models.Group
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Watch opens a change stream over the groups collection. The feed layer
// re-queries the full snapshot on every event rather than patching
// incrementally, so no server-side event filtering is attempted here:
// delete and pull events do not carry a post-image that could be matched
// against a member id.
func (s *Store) Watch(ctx context.Context) (*mongo.ChangeStream, error) {
	return s.c.Watch(ctx, mongo.Pipeline{},
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
}
