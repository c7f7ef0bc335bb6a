// internal/domain/models/message.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileType tags the message variant. The set below is closed from the
// sender's side, but readers must tolerate unknown values: an unrecognized
// tag passes through for the rendering layer to ignore.
type FileType string

const (
	FileTypeText    FileType = "text"
	FileTypeImage   FileType = "image"
	FileTypePDF     FileType = "pdf"
	FileTypeMeeting FileType = "meeting"
)

// MeetingData carries the payload of a meeting announcement message.
type MeetingData struct {
	Description string    `bson:"description" json:"description"`
	Link        string    `bson:"link" json:"link"`
	StartsAt    time.Time `bson:"starts_at" json:"starts_at"`
}

// Message belongs to exactly one group. Messages are immutable after
// creation; there is no edit operation, only deletion via group cascade.
// Timestamp is server-assigned and ascending per group.
type Message struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID      primitive.ObjectID `bson:"group_id" json:"group_id"`
	SenderID     primitive.ObjectID `bson:"sender_id" json:"sender_id"`
	SenderName   string             `bson:"sender_name" json:"sender_name"`
	SenderAvatar string             `bson:"sender_avatar,omitempty" json:"sender_avatar,omitempty"`
	Text         string             `bson:"text" json:"text"`
	FileURL      string             `bson:"file_url,omitempty" json:"file_url,omitempty"`
	FileType     FileType           `bson:"file_type" json:"file_type"`
	Meeting      *MeetingData       `bson:"meeting,omitempty" json:"meeting,omitempty"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
}
