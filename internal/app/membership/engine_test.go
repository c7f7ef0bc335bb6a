package membership_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/studyhub/internal/app/groupcode"
	"github.com/dalemusser/studyhub/internal/app/membership"
	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	memberstore "github.com/dalemusser/studyhub/internal/app/store/members"
	messagestore "github.com/dalemusser/studyhub/internal/app/store/messages"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"github.com/dalemusser/studyhub/internal/testutil"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	engine   *membership.Engine
	groups   *groupstore.Store
	users    *userstore.Store
	members  *memberstore.Store
	messages *messagestore.Store
	fix      *testutil.Fixtures
	db       *mongo.Database
}

func setup(t *testing.T) (*env, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)

	return &env{
		engine:   membership.New(db.Client(), db, zap.NewNop()),
		groups:   groupstore.New(db),
		users:    userstore.New(db),
		members:  memberstore.New(db),
		messages: messagestore.New(db),
		fix:      testutil.NewFixtures(t, db),
		db:       db,
	}, ctx
}

// assertConsistent checks the invariants every operation must preserve:
// the denormalized count matches the member list, at least one admin
// remains and every admin is a member, and each member's joined_groups
// points back at the group.
func (e *env) assertConsistent(t *testing.T, ctx context.Context, groupID primitive.ObjectID) models.Group {
	t.Helper()

	g, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		t.Fatalf("consistency: GetByID failed: %v", err)
	}
	if g.MemberCount != len(g.Members) {
		t.Errorf("consistency: member_count=%d but members has %d entries", g.MemberCount, len(g.Members))
	}
	if len(g.Admins) < 1 {
		t.Error("consistency: group has no admins")
	}
	for _, a := range g.Admins {
		if !g.HasMember(a) {
			t.Errorf("consistency: admin %s is not a member", a.Hex())
		}
	}
	for _, m := range g.Members {
		u, err := e.users.GetByID(ctx, m)
		if err != nil {
			t.Fatalf("consistency: member %s has no user doc: %v", m.Hex(), err)
		}
		linked := false
		for _, gid := range u.JoinedGroups {
			if gid == groupID {
				linked = true
				break
			}
		}
		if !linked {
			t.Errorf("consistency: member %s joined_groups misses the group", m.Hex())
		}
		ok, err := e.members.Exists(ctx, groupID, m)
		if err != nil || !ok {
			t.Errorf("consistency: member %s has no membership record (%v)", m.Hex(), err)
		}
	}
	return g
}

func (e *env) createGroup(t *testing.T, ctx context.Context, creator models.User, max int) membership.CreateGroupResult {
	t.Helper()
	res, err := e.engine.CreateGroup(ctx, membership.CreateGroupInput{
		Name:         "Linear Algebra",
		Subject:      "math",
		Description:  "weekly problem sets",
		MaxMembers:   max,
		CreatorID:    creator.ID,
		CreatorName:  creator.FullName,
		CreatorEmail: creator.Email,
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return res
}

func (e *env) join(ctx context.Context, code string, u models.User) (membership.JoinResult, error) {
	return e.engine.JoinGroupByCode(ctx, membership.JoinInput{
		Code:      code,
		UserID:    u.ID,
		UserName:  u.FullName,
		UserEmail: u.Email,
	})
}

func TestCreateGroup(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")

	res := e.createGroup(t, ctx, creator, 10)

	if !groupcode.IsWellFormed(res.Code) {
		t.Errorf("code %q is not a well-formed join code", res.Code)
	}

	g := e.assertConsistent(t, ctx, res.GroupID)
	if g.MemberCount != 1 {
		t.Errorf("member_count = %d, want 1", g.MemberCount)
	}
	if !g.HasAdmin(creator.ID) {
		t.Error("creator is not an admin")
	}

	recs, err := e.members.ListByGroup(ctx, res.GroupID)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Role != models.RoleAdmin {
		t.Errorf("membership records = %+v, want one admin record", recs)
	}
}

func TestCreateGroup_Validation(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")

	_, err := e.engine.CreateGroup(ctx, membership.CreateGroupInput{
		Subject:   "math",
		CreatorID: creator.ID,
	})
	if !errors.Is(err, membership.ErrNameRequired) {
		t.Errorf("missing name: got %v, want ErrNameRequired", err)
	}

	_, err = e.engine.CreateGroup(ctx, membership.CreateGroupInput{
		Name:      "No Subject",
		CreatorID: creator.ID,
	})
	if !errors.Is(err, membership.ErrSubjectRequired) {
		t.Errorf("missing subject: got %v, want ErrSubjectRequired", err)
	}

	// A name that is only markup sanitizes down to nothing.
	_, err = e.engine.CreateGroup(ctx, membership.CreateGroupInput{
		Name:      "<script>alert(1)</script>",
		Subject:   "math",
		CreatorID: creator.ID,
	})
	if !errors.Is(err, membership.ErrNameRequired) {
		t.Errorf("markup-only name: got %v, want ErrNameRequired", err)
	}
}

func TestCreateThenJoin(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")
	joiner := e.fix.CreateUser(ctx, "Grace Murray", "grace@example.edu")

	res := e.createGroup(t, ctx, creator, 10)

	// Codes are case-insensitive on join.
	jr, err := e.join(ctx, "  "+lower(res.Code)+" ", joiner)
	if err != nil {
		t.Fatalf("JoinGroupByCode failed: %v", err)
	}
	if jr.GroupID != res.GroupID {
		t.Errorf("joined group %s, want %s", jr.GroupID.Hex(), res.GroupID.Hex())
	}

	g := e.assertConsistent(t, ctx, res.GroupID)
	if g.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", g.MemberCount)
	}
	if !g.HasMember(joiner.ID) {
		t.Error("joiner missing from members")
	}
	if g.HasAdmin(joiner.ID) {
		t.Error("joiner must not be an admin")
	}
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestJoin_Failures(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")
	res := e.createGroup(t, ctx, creator, 10)

	if _, err := e.join(ctx, "", creator); !errors.Is(err, membership.ErrBadCode) {
		t.Errorf("empty code: got %v, want ErrBadCode", err)
	}
	if _, err := e.join(ctx, "NOPE42", creator); !errors.Is(err, membership.ErrGroupNotFound) {
		t.Errorf("unknown code: got %v, want ErrGroupNotFound", err)
	}
	if _, err := e.join(ctx, res.Code, creator); !errors.Is(err, membership.ErrAlreadyMember) {
		t.Errorf("rejoining member: got %v, want ErrAlreadyMember", err)
	}
}

func TestJoin_CapacityRoundTrip(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")
	second := e.fix.CreateUser(ctx, "Grace Murray", "grace@example.edu")
	third := e.fix.CreateUser(ctx, "Edsger Wybe", "edsger@example.edu")

	res := e.createGroup(t, ctx, creator, 2)

	if _, err := e.join(ctx, res.Code, second); err != nil {
		t.Fatalf("second join failed: %v", err)
	}
	if _, err := e.join(ctx, res.Code, third); !errors.Is(err, membership.ErrGroupFull) {
		t.Fatalf("third join: got %v, want ErrGroupFull", err)
	}

	// A slot frees up and the previously rejected user fits.
	if err := e.engine.LeaveGroup(ctx, res.GroupID, second.ID); err != nil {
		t.Fatalf("LeaveGroup failed: %v", err)
	}
	if _, err := e.join(ctx, res.Code, third); err != nil {
		t.Fatalf("join after leave failed: %v", err)
	}

	g := e.assertConsistent(t, ctx, res.GroupID)
	if g.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", g.MemberCount)
	}
}

func TestJoin_ConcurrentLastSlot(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")
	racerA := e.fix.CreateUser(ctx, "Racer A", "a@example.edu")
	racerB := e.fix.CreateUser(ctx, "Racer B", "b@example.edu")

	res := e.createGroup(t, ctx, creator, 2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []models.User{racerA, racerB} {
		wg.Add(1)
		go func(i int, u models.User) {
			defer wg.Done()
			_, errs[i] = e.join(ctx, res.Code, u)
		}(i, u)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, membership.ErrGroupFull) {
			t.Errorf("loser got %v, want ErrGroupFull", err)
		}
	}
	if winners != 1 {
		t.Errorf("%d joins won the last slot, want exactly 1", winners)
	}

	g := e.assertConsistent(t, ctx, res.GroupID)
	if g.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", g.MemberCount)
	}
}

func TestLeaveGroup(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")
	member := e.fix.CreateUser(ctx, "Grace Murray", "grace@example.edu")
	outsider := e.fix.CreateUser(ctx, "Snoop", "snoop@example.edu")

	res := e.createGroup(t, ctx, creator, 10)
	if _, err := e.join(ctx, res.Code, member); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// The only admin cannot leave while others remain.
	if err := e.engine.LeaveGroup(ctx, res.GroupID, creator.ID); !errors.Is(err, membership.ErrSoleAdmin) {
		t.Errorf("sole admin leave: got %v, want ErrSoleAdmin", err)
	}

	// A non-member leaving is a quiet no-op.
	if err := e.engine.LeaveGroup(ctx, res.GroupID, outsider.ID); err != nil {
		t.Errorf("non-member leave: got %v, want nil", err)
	}

	if err := e.engine.LeaveGroup(ctx, res.GroupID, member.ID); err != nil {
		t.Fatalf("member leave failed: %v", err)
	}

	g := e.assertConsistent(t, ctx, res.GroupID)
	if g.HasMember(member.ID) {
		t.Error("member still present after leaving")
	}
	u, err := e.users.GetByID(ctx, member.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	for _, gid := range u.JoinedGroups {
		if gid == res.GroupID {
			t.Error("joined_groups still references the group after leaving")
		}
	}
	ok, err := e.members.Exists(ctx, res.GroupID, member.ID)
	if err != nil || ok {
		t.Errorf("membership record survives leave: %v %v", ok, err)
	}
}

func TestDeleteGroup(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")
	member := e.fix.CreateUser(ctx, "Grace Murray", "grace@example.edu")

	res := e.createGroup(t, ctx, creator, 10)
	if _, err := e.join(ctx, res.Code, member); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	g, err := e.groups.GetByID(ctx, res.GroupID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	e.fix.AddMessage(ctx, g, creator, "see you all tomorrow")

	// Only admins may delete.
	if err := e.engine.DeleteGroup(ctx, res.GroupID, member.ID); !errors.Is(err, membership.ErrNotAdmin) {
		t.Errorf("member delete: got %v, want ErrNotAdmin", err)
	}

	if err := e.engine.DeleteGroup(ctx, res.GroupID, creator.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}

	if _, err := e.groups.GetByID(ctx, res.GroupID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("group survives delete: %v", err)
	}
	for _, u := range []models.User{creator, member} {
		got, err := e.users.GetByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		for _, gid := range got.JoinedGroups {
			if gid == res.GroupID {
				t.Errorf("user %s still references the deleted group", u.ID.Hex())
			}
		}
	}
	n, err := e.members.CountByGroup(ctx, res.GroupID, "")
	if err != nil || n != 0 {
		t.Errorf("membership records after delete = %d, %v; want 0", n, err)
	}
	msgs, err := e.messages.ListByGroup(ctx, res.GroupID)
	if err != nil || len(msgs) != 0 {
		t.Errorf("messages after delete = %d, %v; want 0", len(msgs), err)
	}

	// Deleting again reports not found.
	if err := e.engine.DeleteGroup(ctx, res.GroupID, creator.ID); !errors.Is(err, membership.ErrGroupNotFound) {
		t.Errorf("second delete: got %v, want ErrGroupNotFound", err)
	}
}

func TestMembers(t *testing.T) {
	e, ctx := setup(t)
	creator := e.fix.CreateUser(ctx, "Ada Byron", "ada@example.edu")
	outsider := e.fix.CreateUser(ctx, "Snoop", "snoop@example.edu")

	res := e.createGroup(t, ctx, creator, 10)

	if _, err := e.engine.Members(ctx, res.GroupID, outsider.ID); !errors.Is(err, membership.ErrNotMember) {
		t.Errorf("outsider: got %v, want ErrNotMember", err)
	}

	recs, err := e.engine.Members(ctx, res.GroupID, creator.ID)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(recs) != 1 || recs[0].UserID != creator.ID {
		t.Errorf("records = %+v, want the creator's record", recs)
	}
}
