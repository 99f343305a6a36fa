// Package storage implements the media buckets: type and size policy,
// image transcoding and the local or S3 object backends.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"plantspack/internal/config"
	"plantspack/internal/models"
	"plantspack/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Store persists opaque objects by key.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// UploadInput is one file destined for a bucket.
type UploadInput struct {
	UserID   uint
	Bucket   string
	Filename string
	Content  []byte
}

// UploadResult describes the stored object.
type UploadResult struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Service validates uploads against bucket policies and writes them to a Store.
type Service struct {
	store    Store
	policies map[string]Policy
}

// NewService wires a Store with the default bucket policies. A positive
// maxImageMB overrides the image limit of the media bucket.
func NewService(store Store, maxImageMB int) *Service {
	policies := DefaultPolicies()
	if maxImageMB > 0 {
		p := policies[BucketMedia]
		p.MaxImageBytes = int64(maxImageMB) * megabyte
		policies[BucketMedia] = p
	}
	return &Service{store: store, policies: policies}
}

// NewFromConfig selects the backend named by STORAGE_BACKEND.
func NewFromConfig(cfg *config.Config) (*Service, error) {
	switch cfg.StorageBackend {
	case "s3":
		store, err := NewS3Store(cfg.S3BucketPrefix, cfg.S3Region, cfg.StoragePublicURL)
		if err != nil {
			return nil, fmt.Errorf("open s3 store: %w", err)
		}
		return NewService(store, cfg.ImageMaxUploadSizeMB), nil
	default:
		return NewService(NewLocalStore(cfg.StorageDir, cfg.StoragePublicURL), cfg.ImageMaxUploadSizeMB), nil
	}
}

// Policy returns the policy for bucket.
func (s *Service) Policy(bucket string) (Policy, bool) {
	p, ok := s.policies[bucket]
	return p, ok
}

// Upload checks the file against the bucket policy, transcodes still images
// where the bucket asks for it and stores the result under
// <bucket>/<user>/<uuid>.<ext>.
func (s *Service) Upload(ctx context.Context, in UploadInput) (result *UploadResult, err error) {
	ctx, span := observability.StartSpan(ctx, "storage.Upload", attribute.String("bucket", in.Bucket))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "rejected"
			if models.ErrorCode(err) == models.CodeInternal {
				outcome = "error"
			}
		}
		observability.MediaUploads.WithLabelValues(in.Bucket, outcome).Inc()
		observability.EndSpan(span, err)
	}()

	policy, ok := s.policies[in.Bucket]
	if !ok {
		return nil, models.NewValidationError("Unknown bucket")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("File is empty")
	}

	contentType := DetectContentType(in.Filename, in.Content)
	allowed, limit := policy.Allows(contentType)
	if !allowed {
		return nil, models.NewValidationError(fmt.Sprintf("File type %s is not allowed in %s", contentType, in.Bucket))
	}
	if int64(len(in.Content)) > limit {
		return nil, models.NewValidationError(fmt.Sprintf("File exceeds the %d MB limit", limit/megabyte))
	}

	body := in.Content
	if policy.TranscodeWebP && contentType != "image/gif" {
		encoded, err := transcodeWebP(body)
		if err != nil {
			return nil, models.NewValidationError("Image could not be decoded")
		}
		body = encoded
		contentType = "image/webp"
	}

	key := path.Join(in.Bucket, strconv.FormatUint(uint64(in.UserID), 10), uuid.NewString()+ExtensionFor(contentType))
	url, err := s.store.Put(ctx, key, body, contentType)
	if err != nil {
		observability.GlobalLogger.ErrorContext(ctx, "media upload failed",
			slog.String("bucket", in.Bucket),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, models.NewInternalError(err)
	}

	return &UploadResult{
		URL:         url,
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(body)),
	}, nil
}

// Delete removes an object the user owns. objectPath is the key without the
// bucket prefix, i.e. <user>/<file>.
func (s *Service) Delete(ctx context.Context, userID uint, bucket, objectPath string) error {
	if _, ok := s.policies[bucket]; !ok {
		return models.NewValidationError("Unknown bucket")
	}
	objectPath = strings.TrimPrefix(objectPath, "/")
	if objectPath == "" || strings.Contains(objectPath, "..") {
		return models.NewValidationError("Invalid object key")
	}
	owner := strconv.FormatUint(uint64(userID), 10) + "/"
	if !strings.HasPrefix(objectPath, owner) {
		return models.NewForbiddenError("You can only delete your own files")
	}

	key := path.Join(bucket, objectPath)
	if err := s.store.Delete(ctx, key); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
