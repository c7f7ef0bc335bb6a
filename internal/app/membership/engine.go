// Package membership implements the transactional create/join/leave/delete
// operations over the Group, User and GroupMember aggregates.
//
// Every operation runs its read-check-write sequence inside
// txn.WithTransaction, so the invariants
//
//	member_count == len(members)
//	len(admins) >= 1 while the group exists
//	group in user.joined_groups  <=>  user in group.members
//
// hold after each operation even under concurrent callers: the store
// detects conflicting writes at commit time and retries the callback.
package membership

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/studyhub/internal/app/groupcode"
	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	memberstore "github.com/dalemusser/studyhub/internal/app/store/members"
	messagestore "github.com/dalemusser/studyhub/internal/app/store/messages"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/limits"
	"github.com/dalemusser/studyhub/internal/app/system/txn"
	"github.com/dalemusser/studyhub/internal/domain/models"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var sanitize = bluemonday.StrictPolicy()

type Engine struct {
	client   *mongo.Client
	groups   *groupstore.Store
	users    *userstore.Store
	members  *memberstore.Store
	messages *messagestore.Store
	log      *zap.Logger
}

func New(client *mongo.Client, db *mongo.Database, log *zap.Logger) *Engine {
	return &Engine{
		client:   client,
		groups:   groupstore.New(db),
		users:    userstore.New(db),
		members:  memberstore.New(db),
		messages: messagestore.New(db),
		log:      log,
	}
}

type CreateGroupInput struct {
	Name        string
	Description string
	Subject     string
	IsPrivate   bool
	MaxMembers  int

	CreatorID    primitive.ObjectID
	CreatorName  string
	CreatorEmail string
}

type CreateGroupResult struct {
	GroupID primitive.ObjectID
	Code    string
}

// CreateGroup allocates a join code and transactionally creates the group
// document (creator as sole member and admin), links it into the creator's
// joined_groups, and writes the creator's admin membership record.
//
// The generator's existence check and the insert are separate steps, so the
// unique index on code is the authority: a duplicate insert regenerates the
// code once before giving up.
func (e *Engine) CreateGroup(ctx context.Context, in CreateGroupInput) (CreateGroupResult, error) {
	name := strings.TrimSpace(sanitize.Sanitize(in.Name))
	subject := strings.TrimSpace(sanitize.Sanitize(in.Subject))
	desc := strings.TrimSpace(sanitize.Sanitize(in.Description))
	if name == "" {
		return CreateGroupResult{}, ErrNameRequired
	}
	if subject == "" {
		return CreateGroupResult{}, ErrSubjectRequired
	}

	max := in.MaxMembers
	if max == 0 {
		max = limits.DefaultGroupMembers
	}
	if max < limits.MinGroupMembers {
		max = limits.MinGroupMembers
	}
	if max > limits.MaxGroupMembers {
		max = limits.MaxGroupMembers
	}

	code := groupcode.EnsureUnique(ctx, e.groups.CodeExists)

	var out CreateGroupResult
	err := txn.WithTransaction(ctx, e.client, func(ctx context.Context) error {
		g := models.Group{
			Name:        name,
			Description: desc,
			Subject:     subject,
			Code:        code,
			IsPrivate:   in.IsPrivate,
			CreatedBy:   in.CreatorID,
			MemberCount: 1,
			MaxMembers:  max,
			Members:     []primitive.ObjectID{in.CreatorID},
			Admins:      []primitive.ObjectID{in.CreatorID},
		}

		created, err := e.groups.Insert(ctx, g)
		if errors.Is(err, groupstore.ErrDuplicateCode) {
			// Lost the code race; one regeneration before giving up.
			code = groupcode.EnsureUnique(ctx, e.groups.CodeExists)
			g.Code = code
			created, err = e.groups.Insert(ctx, g)
		}
		if err != nil {
			return err
		}

		if err := e.users.AddJoinedGroup(ctx, in.CreatorID, created.ID); err != nil {
			return err
		}

		_, err = e.members.Add(ctx, models.GroupMember{
			GroupID: created.ID,
			UserID:  in.CreatorID,
			Name:    in.CreatorName,
			Email:   in.CreatorEmail,
			Role:    models.RoleAdmin,
		})
		if err != nil {
			return err
		}

		out = CreateGroupResult{GroupID: created.ID, Code: created.Code}
		return nil
	})
	if err != nil {
		return CreateGroupResult{}, err
	}

	e.log.Info("group created",
		zap.String("group_id", out.GroupID.Hex()),
		zap.String("code", out.Code),
		zap.String("creator_id", in.CreatorID.Hex()))
	return out, nil
}

type JoinInput struct {
	Code      string
	UserID    primitive.ObjectID
	UserName  string
	UserEmail string
}

type JoinResult struct {
	GroupID   primitive.ObjectID
	GroupName string
}

// JoinGroupByCode adds the user to the group holding the (case-insensitive)
// code. Capacity and membership are re-checked inside the transaction, and
// the member-list update itself re-asserts both in its filter, so two
// concurrent joiners racing for the last slot cannot both win: the loser's
// update matches nothing and the join fails with ErrGroupFull.
func (e *Engine) JoinGroupByCode(ctx context.Context, in JoinInput) (JoinResult, error) {
	code := groupcode.Normalize(in.Code)
	if code == "" {
		return JoinResult{}, ErrBadCode
	}

	var out JoinResult
	err := txn.WithTransaction(ctx, e.client, func(ctx context.Context) error {
		g, err := e.groups.GetByCode(ctx, code)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrGroupNotFound
		}
		if err != nil {
			return err
		}

		if g.HasMember(in.UserID) {
			return ErrAlreadyMember
		}
		if g.MemberCount >= g.MaxMembers {
			return ErrGroupFull
		}

		ok, err := e.groups.AddMember(ctx, g.ID, in.UserID)
		if err != nil {
			return err
		}
		if !ok {
			// The guarded filter lost a race the snapshot read missed
			// (possible only on the transactionless fallback path).
			return ErrGroupFull
		}

		if err := e.users.AddJoinedGroup(ctx, in.UserID, g.ID); err != nil {
			return err
		}

		_, err = e.members.Add(ctx, models.GroupMember{
			GroupID: g.ID,
			UserID:  in.UserID,
			Name:    in.UserName,
			Email:   in.UserEmail,
			Role:    models.RoleMember,
		})
		if err != nil {
			return err
		}

		out = JoinResult{GroupID: g.ID, GroupName: g.Name}
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	e.log.Info("member joined group",
		zap.String("group_id", out.GroupID.Hex()),
		zap.String("user_id", in.UserID.Hex()))
	return out, nil
}

// LeaveGroup removes the user from the group's member and admin lists,
// unlinks the group from the user's joined_groups, and deletes the
// membership record. A call that would leave the group without any admin
// fails with ErrSoleAdmin. Leaving a group one is not a member of is a
// no-op.
func (e *Engine) LeaveGroup(ctx context.Context, groupID, userID primitive.ObjectID) error {
	err := txn.WithTransaction(ctx, e.client, func(ctx context.Context) error {
		g, err := e.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrGroupNotFound
		}
		if err != nil {
			return err
		}

		if !g.HasMember(userID) {
			return nil
		}
		if g.HasAdmin(userID) && len(g.Admins) == 1 {
			return ErrSoleAdmin
		}

		if _, err := e.groups.RemoveMember(ctx, g.ID, userID); err != nil {
			return err
		}
		if err := e.users.RemoveJoinedGroup(ctx, userID, g.ID); err != nil {
			return err
		}
		return e.members.Remove(ctx, g.ID, userID)
	})
	if err != nil {
		return err
	}

	e.log.Info("member left group",
		zap.String("group_id", groupID.Hex()),
		zap.String("user_id", userID.Hex()))
	return nil
}

// DeleteGroup destroys the aggregate: the group document, every membership
// record, the group id in every member's joined_groups, and the group's
// messages. Group size is capped by limits.MaxGroupMembers, so the whole
// cascade fits one transaction; on stores without transaction support the
// same writes run unguarded and a failure can leave dangling joined_groups
// references, which the member-driven list query ignores on read.
func (e *Engine) DeleteGroup(ctx context.Context, groupID, requesterID primitive.ObjectID) error {
	err := txn.WithTransaction(ctx, e.client, func(ctx context.Context) error {
		g, err := e.groups.GetByID(ctx, groupID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrGroupNotFound
		}
		if err != nil {
			return err
		}

		if !g.HasAdmin(requesterID) {
			return ErrNotAdmin
		}

		if _, err := e.groups.Delete(ctx, g.ID); err != nil {
			return err
		}
		if _, err := e.users.RemoveGroupFromUsers(ctx, g.ID, g.Members); err != nil {
			return err
		}
		if _, err := e.members.DeleteByGroup(ctx, g.ID); err != nil {
			return err
		}
		_, err = e.messages.DeleteByGroup(ctx, g.ID)
		return err
	})
	if err != nil {
		return err
	}

	e.log.Info("group deleted",
		zap.String("group_id", groupID.Hex()),
		zap.String("requester_id", requesterID.Hex()))
	return nil
}

// Members lists a group's membership records, requiring the requester to
// be a member.
func (e *Engine) Members(ctx context.Context, groupID, requesterID primitive.ObjectID) ([]models.GroupMember, error) {
	g, err := e.groups.GetByID(ctx, groupID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, err
	}
	if !g.HasMember(requesterID) {
		return nil, ErrNotMember
	}
	return e.members.ListByGroup(ctx, groupID)
}
