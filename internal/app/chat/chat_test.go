package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/studyhub/internal/app/chat"
	"github.com/dalemusser/studyhub/internal/app/system/limits"
	"github.com/dalemusser/studyhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fakeGroups struct {
	group    models.Group
	getErr   error
	touched  int
	touchErr error
}

func (f *fakeGroups) GetByID(_ context.Context, id primitive.ObjectID) (models.Group, error) {
	if f.getErr != nil {
		return models.Group{}, f.getErr
	}
	if id != f.group.ID {
		return models.Group{}, mongo.ErrNoDocuments
	}
	return f.group, nil
}

func (f *fakeGroups) TouchActivity(context.Context, primitive.ObjectID) error {
	f.touched++
	return f.touchErr
}

type fakeUsers struct {
	user *models.User
}

func (f *fakeUsers) GetByID(context.Context, primitive.ObjectID) (*models.User, error) {
	if f.user == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.user, nil
}

type fakeMessages struct {
	appended  []models.Message
	appendErr error
}

func (f *fakeMessages) Append(_ context.Context, m models.Message) (models.Message, error) {
	if f.appendErr != nil {
		return models.Message{}, f.appendErr
	}
	m.ID = primitive.NewObjectID()
	m.Timestamp = time.Now().UTC()
	f.appended = append(f.appended, m)
	return m, nil
}

func newFixture() (*chat.Service, *fakeGroups, *fakeMessages, primitive.ObjectID, primitive.ObjectID) {
	sender := primitive.NewObjectID()
	g := models.Group{
		ID:      primitive.NewObjectID(),
		Name:    "calc study",
		Members: []primitive.ObjectID{sender},
	}
	groups := &fakeGroups{group: g}
	msgs := &fakeMessages{}
	users := &fakeUsers{user: &models.User{
		ID:        sender,
		FullName:  "Dana Park",
		AvatarURL: "https://cdn.example.com/dana.png",
	}}
	svc := chat.NewWithSources(groups, users, msgs, zap.NewNop())
	return svc, groups, msgs, g.ID, sender
}

func TestSendText(t *testing.T) {
	svc, _, msgs, groupID, sender := newFixture()

	m, err := svc.SendText(context.Background(), groupID, sender, "  hello all  ")
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if m.Text != "hello all" {
		t.Errorf("text: got %q, want trimmed %q", m.Text, "hello all")
	}
	if m.SenderName != "Dana Park" || m.SenderAvatar == "" {
		t.Errorf("sender metadata not resolved: %+v", m)
	}
	if m.FileType != models.FileTypeText {
		t.Errorf("file type: got %q, want %q", m.FileType, models.FileTypeText)
	}
	if len(msgs.appended) != 1 {
		t.Fatalf("appended %d messages, want 1", len(msgs.appended))
	}
}

func TestSendText_StripsMarkup(t *testing.T) {
	svc, _, _, groupID, sender := newFixture()

	m, err := svc.SendText(context.Background(), groupID, sender, `<b>exam</b> on <script>alert(1)</script>friday`)
	if err != nil {
		t.Fatalf("SendText failed: %v", err)
	}
	if strings.Contains(m.Text, "<") || strings.Contains(m.Text, "script") {
		t.Errorf("markup survived sanitization: %q", m.Text)
	}
}

func TestSendText_Rejections(t *testing.T) {
	svc, _, _, groupID, sender := newFixture()
	ctx := context.Background()

	if _, err := svc.SendText(ctx, groupID, sender, "   "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Errorf("blank text: got %v, want ErrEmptyMessage", err)
	}
	if _, err := svc.SendText(ctx, groupID, sender, strings.Repeat("a", limits.MaxMessageLength+1)); !errors.Is(err, chat.ErrMessageTooLong) {
		t.Errorf("oversize text: got %v, want ErrMessageTooLong", err)
	}
	if _, err := svc.SendText(ctx, primitive.NewObjectID(), sender, "hi"); !errors.Is(err, chat.ErrGroupNotFound) {
		t.Errorf("unknown group: got %v, want ErrGroupNotFound", err)
	}
	if _, err := svc.SendText(ctx, groupID, primitive.NewObjectID(), "hi"); !errors.Is(err, chat.ErrNotMember) {
		t.Errorf("outsider: got %v, want ErrNotMember", err)
	}
}

func TestSendFile(t *testing.T) {
	svc, _, msgs, groupID, sender := newFixture()

	m, err := svc.SendFile(context.Background(), groupID, sender,
		"https://media.example.com/o/abc123.pdf", models.FileTypePDF, "lecture notes")
	if err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}
	if m.FileURL == "" || m.FileType != models.FileTypePDF {
		t.Errorf("attachment fields: %+v", m)
	}
	if m.Text != "lecture notes" {
		t.Errorf("caption: got %q", m.Text)
	}

	// File kinds we do not recognize pass through untouched.
	m, err = svc.SendFile(context.Background(), groupID, sender,
		"https://media.example.com/o/t.csv", models.FileType("spreadsheet"), "")
	if err != nil {
		t.Fatalf("SendFile with unknown type failed: %v", err)
	}
	if m.FileType != models.FileType("spreadsheet") {
		t.Errorf("unknown file type rewritten to %q", m.FileType)
	}

	if _, err := svc.SendFile(context.Background(), groupID, sender, "  ", models.FileTypeImage, ""); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Errorf("blank URL: got %v, want ErrEmptyMessage", err)
	}
	if len(msgs.appended) != 2 {
		t.Fatalf("appended %d messages, want 2", len(msgs.appended))
	}
}

func TestSendMeeting(t *testing.T) {
	svc, _, _, groupID, sender := newFixture()
	starts := time.Date(2026, 9, 14, 17, 0, 0, 0, time.UTC)

	m, err := svc.SendMeeting(context.Background(), groupID, sender,
		"midterm review", "https://meet.example.com/room/42", starts)
	if err != nil {
		t.Fatalf("SendMeeting failed: %v", err)
	}
	if m.FileType != models.FileTypeMeeting {
		t.Errorf("file type: got %q, want %q", m.FileType, models.FileTypeMeeting)
	}
	if m.Meeting == nil || m.Meeting.Link != "https://meet.example.com/room/42" || !m.Meeting.StartsAt.Equal(starts) {
		t.Errorf("meeting payload: %+v", m.Meeting)
	}
}

func TestSendMeeting_BadLinks(t *testing.T) {
	svc, _, _, groupID, sender := newFixture()
	starts := time.Now().UTC().Add(time.Hour)

	for _, link := range []string{
		"",
		"meet.example.com/room/42",
		"/room/42",
		"ftp://meet.example.com/room",
		"javascript:alert(1)",
	} {
		if _, err := svc.SendMeeting(context.Background(), groupID, sender, "review", link, starts); !errors.Is(err, chat.ErrInvalidMeetingLink) {
			t.Errorf("link %q: got %v, want ErrInvalidMeetingLink", link, err)
		}
	}
}

func TestSend_TouchFailureIsNotFatal(t *testing.T) {
	svc, groups, _, groupID, sender := newFixture()
	groups.touchErr = errors.New("write concern timeout")

	if _, err := svc.SendText(context.Background(), groupID, sender, "still goes through"); err != nil {
		t.Fatalf("SendText failed on touch error: %v", err)
	}
	if groups.touched != 1 {
		t.Errorf("touch attempts: got %d, want 1", groups.touched)
	}
}
