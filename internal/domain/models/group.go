// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group is the aggregate root for a study group.
//
// NOTE:
//   - Members and Admins are embedded on the group document and mutated
//     only through the membership engine's transactional operations.
//   - MemberCount is denormalized and must equal len(Members) at all times.
//   - Admins is a subset of Members and is never empty while the group
//     exists; LeaveGroup refuses calls that would empty it.
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"name_ci"`
	Description string             `bson:"description" json:"description"`
	Subject     string             `bson:"subject" json:"subject"`

	// Code is the 6-character uppercase alphanumeric join code,
	// unique across groups (enforced by a unique index).
	Code      string `bson:"code" json:"code"`
	IsPrivate bool   `bson:"is_private" json:"is_private"`

	CreatedBy   primitive.ObjectID   `bson:"created_by" json:"created_by"`
	MemberCount int                  `bson:"member_count" json:"member_count"`
	MaxMembers  int                  `bson:"max_members" json:"max_members"`
	Members     []primitive.ObjectID `bson:"members" json:"members"`
	Admins      []primitive.ObjectID `bson:"admins" json:"admins"`

	LastActivity time.Time `bson:"last_activity" json:"last_activity"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// HasMember reports whether userID appears in the group's member list.
func (g Group) HasMember(userID primitive.ObjectID) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// HasAdmin reports whether userID appears in the group's admin list.
func (g Group) HasAdmin(userID primitive.ObjectID) bool {
	for _, id := range g.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
