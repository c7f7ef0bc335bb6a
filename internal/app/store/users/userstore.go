// internal/app/store/users/userstore.go
package userstore

// Terminology: User Identifiers
//   - UserID / user_id: the MongoDB ObjectID (_id) of the user record.
//   - Subject: the stable identifier issued by the managed auth provider.

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertBySubject creates or refreshes the local profile mirror for an
// identity issued by the auth provider. joined_groups is untouched on
// update and initialized empty on insert.
func (s *Store) UpsertBySubject(ctx context.Context, subject, fullName, email, avatarURL string) (*models.User, error) {
	now := time.Now().UTC()
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))

	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"subject": subject},
		bson.M{
			"$set": bson.M{
				"full_name":    fullName,
				"full_name_ci": text.Fold(fullName),
				"email":        email,
				"avatar_url":   avatarURL,
				"updated_at":   now,
			},
			"$setOnInsert": bson.M{
				"_id":           primitive.NewObjectID(),
				"subject":       subject,
				"joined_groups": []primitive.ObjectID{},
				"created_at":    now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AddJoinedGroup records groupID on the user's denormalized group list.
// Written inside the same transaction that appends the user to the group's
// member list.
func (s *Store) AddJoinedGroup(ctx context.Context, userID, groupID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{"joined_groups": groupID},
		"$set":      bson.M{"updated_at": now},
	})
	return err
}

// RemoveJoinedGroup drops groupID from the user's denormalized group list.
func (s *Store) RemoveJoinedGroup(ctx context.Context, userID, groupID primitive.ObjectID) error {
	now := time.Now().UTC()
	_, err := s.c.UpdateByID(ctx, userID, bson.M{
		"$pull": bson.M{"joined_groups": groupID},
		"$set":  bson.M{"updated_at": now},
	})
	return err
}

// RemoveGroupFromUsers pulls groupID from the joined_groups of every listed
// user in one write. Used by group deletion cleanup.
func (s *Store) RemoveGroupFromUsers(ctx context.Context, groupID primitive.ObjectID, userIDs []primitive.ObjectID) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": userIDs}},
		bson.M{
			"$pull": bson.M{"joined_groups": groupID},
			"$set":  bson.M{"updated_at": now},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
