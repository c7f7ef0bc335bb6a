// internal/app/chat/chat.go
//
// Package chat posts messages into a group's feed. It resolves sender
// metadata at send time so the stored document is self-contained, and
// bumps the group's last_activity so the group list reorders.
package chat

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	messagestore "github.com/dalemusser/studyhub/internal/app/store/messages"
	userstore "github.com/dalemusser/studyhub/internal/app/store/users"
	"github.com/dalemusser/studyhub/internal/app/system/limits"
	"github.com/dalemusser/studyhub/internal/domain/models"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrEmptyMessage       = errors.New("message has no content")
	ErrMessageTooLong     = errors.New("message text is too long")
	ErrNotMember          = errors.New("only group members can post")
	ErrGroupNotFound      = errors.New("group not found")
	ErrInvalidMeetingLink = errors.New("meeting link must be an absolute http or https URL")
)

var sanitize = bluemonday.StrictPolicy()

// GroupReader is the slice of the group store the chat service needs.
type GroupReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error)
	TouchActivity(ctx context.Context, groupID primitive.ObjectID) error
}

// SenderReader resolves the posting user's display metadata.
type SenderReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// MessageWriter appends a message to the group feed.
type MessageWriter interface {
	Append(ctx context.Context, m models.Message) (models.Message, error)
}

type Service struct {
	groups   GroupReader
	users    SenderReader
	messages MessageWriter
	log      *zap.Logger
}

func New(groups *groupstore.Store, users *userstore.Store, messages *messagestore.Store, log *zap.Logger) *Service {
	return &Service{groups: groups, users: users, messages: messages, log: log}
}

// NewWithSources wires the service from interfaces instead of concrete
// stores. Tests use it to post against in-memory fakes.
func NewWithSources(groups GroupReader, users SenderReader, messages MessageWriter, log *zap.Logger) *Service {
	return &Service{groups: groups, users: users, messages: messages, log: log}
}

// SendText posts a plain text message.
func (s *Service) SendText(ctx context.Context, groupID, senderID primitive.ObjectID, text string) (models.Message, error) {
	text = strings.TrimSpace(sanitize.Sanitize(text))
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}
	return s.post(ctx, groupID, senderID, models.Message{
		Text:     text,
		FileType: models.FileTypeText,
	})
}

// SendFile posts a message carrying an uploaded attachment. Text is an
// optional caption. The fileType is stored as given so clients that
// understand more kinds than we do keep working.
func (s *Service) SendFile(ctx context.Context, groupID, senderID primitive.ObjectID, fileURL string, fileType models.FileType, caption string) (models.Message, error) {
	if strings.TrimSpace(fileURL) == "" {
		return models.Message{}, ErrEmptyMessage
	}
	return s.post(ctx, groupID, senderID, models.Message{
		Text:     strings.TrimSpace(sanitize.Sanitize(caption)),
		FileURL:  fileURL,
		FileType: fileType,
	})
}

// SendMeeting posts a meeting invitation with a join link and start time.
func (s *Service) SendMeeting(ctx context.Context, groupID, senderID primitive.ObjectID, description, link string, startsAt time.Time) (models.Message, error) {
	description = strings.TrimSpace(sanitize.Sanitize(description))
	if description == "" {
		return models.Message{}, ErrEmptyMessage
	}
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.Message{}, ErrInvalidMeetingLink
	}
	return s.post(ctx, groupID, senderID, models.Message{
		Text:     description,
		FileType: models.FileTypeMeeting,
		Meeting: &models.MeetingData{
			Description: description,
			Link:        u.String(),
			StartsAt:    startsAt.UTC(),
		},
	})
}

func (s *Service) post(ctx context.Context, groupID, senderID primitive.ObjectID, m models.Message) (models.Message, error) {
	if len(m.Text) > limits.MaxMessageLength {
		return models.Message{}, ErrMessageTooLong
	}

	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Message{}, ErrGroupNotFound
		}
		return models.Message{}, err
	}
	if !g.HasMember(senderID) {
		return models.Message{}, ErrNotMember
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return models.Message{}, err
	}

	m.GroupID = groupID
	m.SenderID = senderID
	m.SenderName = sender.FullName
	m.SenderAvatar = sender.AvatarURL

	saved, err := s.messages.Append(ctx, m)
	if err != nil {
		return models.Message{}, err
	}

	// Activity bumping is best effort. The message is already stored, so a
	// failed touch only delays the group-list reorder until the next post.
	if err := s.groups.TouchActivity(ctx, groupID); err != nil {
		s.log.Warn("touch group activity failed",
			zap.String("group_id", groupID.Hex()),
			zap.Error(err))
	}
	return saved, nil
}
