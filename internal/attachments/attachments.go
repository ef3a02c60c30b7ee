// Package attachments keeps grievance photos, documents and voice notes in
// S3-compatible object storage and hands out short-lived download links.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	MaxSize    = 10 << 20
	presignTTL = 15 * time.Minute
)

var (
	ErrTooLarge        = errors.New("attachment too large")
	ErrUnsupportedType = errors.New("attachment type not allowed")
	ErrEmpty           = errors.New("attachment is empty")
)

// allowedContentTypes maps accepted upload types to the stored extension.
var allowedContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
	"audio/webm":      ".webm",
	"audio/mpeg":      ".mp3",
	"audio/wav":       ".wav",
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// Store puts and presigns objects in one bucket.
type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket on first start.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a GET link valid for fifteen minutes.
func (s *Store) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, presignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// Validate checks an upload before anything is stored.
func Validate(contentType string, size int64) error {
	if size <= 0 {
		return ErrEmpty
	}
	if size > MaxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, MaxSize)
	}
	if _, ok := allowedContentTypes[normalizeType(contentType)]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return nil
}

// ObjectKey places an attachment under its grievance. The client's file name
// only contributes a cleaned base name.
func ObjectKey(grievanceID, attachmentID, fileName, contentType string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(fileName, "\\", "/")), path.Ext(fileName))
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteByte('-')
		}
		if b.Len() >= 40 {
			break
		}
	}
	name := b.String()
	if name == "" || name == "-" {
		name = "file"
	}
	return fmt.Sprintf("grievances/%s/%s-%s%s", grievanceID, attachmentID, name, allowedContentTypes[normalizeType(contentType)])
}

func normalizeType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
