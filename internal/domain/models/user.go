// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User mirrors the profile held by the managed auth provider, plus the
// denormalized list of groups the user belongs to.
//
// NOTE:
//   - JoinedGroups is kept bidirectionally consistent with Group.Members:
//     a group id appears here iff the user's id appears in that group's
//     member list. Both sides are written inside the same transaction.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Subject    string             `bson:"subject" json:"subject"` // stable id from the auth provider
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	AvatarURL  string             `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	JoinedGroups []primitive.ObjectID `bson:"joined_groups" json:"joined_groups"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
