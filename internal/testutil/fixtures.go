// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a user document and returns it.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:           primitive.NewObjectID(),
		Subject:      "test|" + primitive.NewObjectID().Hex(),
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Email:        email,
		JoinedGroups: []primitive.ObjectID{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateGroup inserts a consistent group owned by the given creator: the
// creator is the sole member and admin, member_count is 1, and the
// creator's joined_groups references the group.
func (f *Fixtures) CreateGroup(ctx context.Context, name, code string, creator models.User) models.Group {
	f.t.Helper()
	return f.CreateGroupWithCapacity(ctx, name, code, creator, 50)
}

// CreateGroupWithCapacity is CreateGroup with an explicit max_members.
func (f *Fixtures) CreateGroupWithCapacity(ctx context.Context, name, code string, creator models.User, maxMembers int) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:           primitive.NewObjectID(),
		Name:         name,
		NameCI:       text.Fold(name),
		Subject:      "testing",
		Code:         code,
		CreatedBy:    creator.ID,
		MemberCount:  1,
		MaxMembers:   maxMembers,
		Members:      []primitive.ObjectID{creator.ID},
		Admins:       []primitive.ObjectID{creator.ID},
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}

	member := models.GroupMember{
		ID:       primitive.NewObjectID(),
		GroupID:  g.ID,
		UserID:   creator.ID,
		Name:     creator.FullName,
		Email:    creator.Email,
		Role:     models.RoleAdmin,
		JoinedAt: now,
	}
	if _, err := f.db.Collection("group_members").InsertOne(ctx, member); err != nil {
		f.t.Fatalf("failed to create test membership record: %v", err)
	}

	res, err := f.db.Collection("users").UpdateByID(ctx, creator.ID,
		bson.M{"$addToSet": bson.M{"joined_groups": g.ID}})
	if err != nil {
		f.t.Fatalf("failed to link test group into creator: %v", err)
	}
	if res.MatchedCount == 0 {
		f.t.Fatal("failed to link test group into creator: no such user")
	}

	return g
}

// AddMessage inserts a text message into the group's feed.
func (f *Fixtures) AddMessage(ctx context.Context, group models.Group, sender models.User, textBody string) models.Message {
	f.t.Helper()

	m := models.Message{
		ID:         primitive.NewObjectID(),
		GroupID:    group.ID,
		SenderID:   sender.ID,
		SenderName: sender.FullName,
		Text:       textBody,
		FileType:   models.FileTypeText,
		Timestamp:  time.Now().UTC(),
	}
	if _, err := f.db.Collection("messages").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test message: %v", err)
	}
	return m
}

// UniqueCode returns a 6-character code unlikely to collide within a test.
func UniqueCode(n int) string {
	return fmt.Sprintf("T%05d", n%100000)
}
