// internal/app/media/media.go
//
// Package media stores chat attachments in an S3-compatible object store
// and hands back the public URL clients embed in messages.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/studyhub/internal/app/system/limits"
	"github.com/dalemusser/studyhub/internal/domain/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrUnsupportedType = errors.New("unsupported attachment content type")
	ErrTooLarge        = errors.New("attachment exceeds the upload size limit")
)

// extByType doubles as the accept list for uploads.
var extByType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// FileTypeFor maps an accepted content type onto the message file kind.
func FileTypeFor(contentType string) models.FileType {
	if contentType == "application/pdf" {
		return models.FileTypePDF
	}
	return models.FileTypeImage
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PublicBaseURL is the externally reachable prefix for stored objects,
	// e.g. "https://media.example.com". Empty means serve straight off the
	// endpoint.
	PublicBaseURL string
}

type Store struct {
	cfg    Config
	client *minio.Client
}

func New(cfg Config) (*Store, error) {
	cl, err := minio.New(strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media store client: %w", err)
	}
	return &Store{cfg: cfg, client: cl}, nil
}

// EnsureBucket creates the attachment bucket if it does not exist yet.
// Called once at startup; safe to call again.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{})
	}
	return nil
}

// Upload stores one attachment and returns its public URL. The object name
// is random so uploads never collide and file names leak nothing.
func (s *Store) Upload(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	ext, ok := extByType[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	if size <= 0 || size > limits.MaxUploadSize {
		return "", ErrTooLarge
	}

	objectName := uuid.New().String() + ext
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}
	return s.publicURL(objectName), nil
}

func (s *Store) publicURL(objectName string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimSuffix(s.cfg.PublicBaseURL, "/") + "/" + s.cfg.Bucket + "/" + objectName
	}
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	host := strings.TrimPrefix(strings.TrimPrefix(s.cfg.Endpoint, "https://"), "http://")
	return scheme + "://" + host + "/" + s.cfg.Bucket + "/" + objectName
}

// Accepts reports whether the content type is allowed for upload.
func Accepts(contentType string) bool {
	_, ok := extByType[contentType]
	return ok
}
