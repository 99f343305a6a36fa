package storage

import (
	"bytes"
	"context"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// S3Store writes objects to a single S3 bucket. Logical buckets become key prefixes.
type S3Store struct {
	bucket    string
	publicURL string
	uploader  s3manageriface.UploaderAPI
	svc       s3iface.S3API
}

// NewS3Store opens an AWS session for region. Credentials come from the
// default provider chain.
func NewS3Store(bucket, region, publicURL string) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}
	return newS3Store(bucket, publicURL, s3manager.NewUploader(sess), s3.New(sess)), nil
}

func newS3Store(bucket, publicURL string, uploader s3manageriface.UploaderAPI, svc s3iface.S3API) *S3Store {
	// A relative public URL only makes sense for the local backend.
	if !strings.HasPrefix(publicURL, "http") {
		publicURL = ""
	}
	return &S3Store{
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		uploader:  uploader,
		svc:       svc,
	}
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		ACL:         aws.String("public-read"),
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return out.Location, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
