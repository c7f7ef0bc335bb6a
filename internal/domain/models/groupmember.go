// internal/domain/models/groupmember.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroupMember is the denormalized per-group membership record.
// Exactly one document per (group_id, user_id); Role is a scalar and must
// always agree with membership of Group.Admins.
type GroupMember struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID  primitive.ObjectID `bson:"group_id" json:"group_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name     string             `bson:"name" json:"name"`
	Email    string             `bson:"email" json:"email"`
	Role     string             `bson:"role" json:"role"` // "admin" | "member"
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}

// Membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)
