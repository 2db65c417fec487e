// Package storage uploads user avatars to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/uuid/v5"

	"github.com/ditrix/ditrix-server/internal/errs"
)

// MaxAvatarBytes bounds decoded avatar size.
const MaxAvatarBytes = 2 << 20

// AvatarStore persists an avatar image and returns its public URL.
type AvatarStore interface {
	PutAvatar(ctx context.Context, userID uuid.UUID, data []byte, contentType string) (string, error)
}

// S3Config describes the bucket avatars go to.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // non-AWS endpoints (MinIO, Spaces); enables path-style
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string // prefix for returned URLs; derived when empty
}

// S3 is an AvatarStore backed by aws-sdk-go-v2.
type S3 struct {
	client     *s3.Client
	bucket     string
	publicBase string
	now        func() time.Time
}

// NewS3 builds the client from cfg; static credentials win over the default chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: avatars bucket is empty", errs.ErrInvalidInput)
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	switch {
	case base != "":
	case cfg.Endpoint != "":
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3{client: client, bucket: cfg.Bucket, publicBase: base, now: time.Now}, nil
}

// PutAvatar uploads under avatars/<user>/<timestamp>.<ext>.
func (s *S3) PutAvatar(ctx context.Context, userID uuid.UUID, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("avatars/%s/%d%s", userID, s.now().UnixMilli(), extension(contentType))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	return s.publicBase + "/" + key, nil
}

func extension(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	return ""
}

// DecodeImage accepts a data URI ("data:image/png;base64,...") or bare base64
// and returns the bytes with their sniffed content type. Non-images are rejected.
func DecodeImage(value string) ([]byte, string, error) {
	payload := strings.TrimSpace(value)
	if strings.HasPrefix(payload, "data:") {
		i := strings.Index(payload, ",")
		if i < 0 || !strings.HasSuffix(payload[:i], ";base64") {
			return nil, "", fmt.Errorf("%w: malformed data uri", errs.ErrInvalidInput)
		}
		payload = payload[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: avatar is not base64", errs.ErrInvalidInput)
	}
	if len(data) == 0 || len(data) > MaxAvatarBytes {
		return nil, "", fmt.Errorf("%w: avatar must be 1 byte to %d bytes", errs.ErrInvalidInput, MaxAvatarBytes)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, "", fmt.Errorf("%w: avatar must be an image, got %s", errs.ErrInvalidInput, mt.String())
	}
	return data, mt.String(), nil
}
