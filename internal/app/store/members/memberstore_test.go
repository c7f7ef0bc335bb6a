package memberstore_test

import (
	"errors"
	"testing"

	memberstore "github.com/dalemusser/studyhub/internal/app/store/members"
	"github.com/dalemusser/studyhub/internal/app/system/indexes"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/studyhub/internal/testutil"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestAdd(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	m, err := store.Add(ctx, models.GroupMember{
		GroupID: groupID,
		UserID:  userID,
		Name:    "Jo Adams",
		Email:   "jo@example.edu",
		Role:    models.RoleMember,
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if m.ID.IsZero() {
		t.Error("expected ID to be assigned")
	}
	if m.JoinedAt.IsZero() {
		t.Error("expected joined_at to be stamped")
	}

	ok, err := store.Exists(ctx, groupID, userID)
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v; want true, nil", ok, err)
	}
}

func TestAdd_RejectsBadRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Add(ctx, models.GroupMember{
		GroupID: primitive.NewObjectID(),
		UserID:  primitive.NewObjectID(),
		Role:    "owner",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown role")
	}
}

func TestAdd_DuplicateMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	rec := models.GroupMember{
		GroupID: primitive.NewObjectID(),
		UserID:  primitive.NewObjectID(),
		Role:    models.RoleMember,
	}
	if _, err := store.Add(ctx, rec); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	_, err := store.Add(ctx, rec)
	if !errors.Is(err, memberstore.ErrDuplicateMember) {
		t.Errorf("got %v, want ErrDuplicateMember", err)
	}
}

func TestListByGroup_SortedByJoin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	names := []string{"first", "second", "third"}
	for _, n := range names {
		if _, err := store.Add(ctx, models.GroupMember{
			GroupID: groupID,
			UserID:  primitive.NewObjectID(),
			Name:    n,
			Role:    models.RoleMember,
		}); err != nil {
			t.Fatalf("Add(%s) failed: %v", n, err)
		}
	}

	got, err := store.ListByGroup(ctx, groupID)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d members, want 3", len(got))
	}
	for i, n := range names {
		if got[i].Name != n {
			t.Errorf("position %d: got %q, want %q", i, got[i].Name, n)
		}
	}
}

func TestCountByGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	for i, role := range []string{models.RoleAdmin, models.RoleMember, models.RoleMember} {
		if _, err := store.Add(ctx, models.GroupMember{
			GroupID: groupID,
			UserID:  primitive.NewObjectID(),
			Role:    role,
		}); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}

	all, err := store.CountByGroup(ctx, groupID, "")
	if err != nil || all != 3 {
		t.Errorf("CountByGroup(all) = %d, %v; want 3, nil", all, err)
	}
	admins, err := store.CountByGroup(ctx, groupID, models.RoleAdmin)
	if err != nil || admins != 1 {
		t.Errorf("CountByGroup(admin) = %d, %v; want 1, nil", admins, err)
	}
}

func TestRemoveAndDeleteByGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := memberstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	groupID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	if _, err := store.Add(ctx, models.GroupMember{GroupID: groupID, UserID: userID, Role: models.RoleMember}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := store.Add(ctx, models.GroupMember{GroupID: groupID, UserID: primitive.NewObjectID(), Role: models.RoleMember}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := store.Remove(ctx, groupID, userID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	ok, err := store.Exists(ctx, groupID, userID)
	if err != nil || ok {
		t.Errorf("Exists after Remove = %v, %v; want false, nil", ok, err)
	}

	n, err := store.DeleteByGroup(ctx, groupID)
	if err != nil || n != 1 {
		t.Errorf("DeleteByGroup = %d, %v; want 1, nil", n, err)
	}
}
