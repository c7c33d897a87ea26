// Package storage archives license photos attached to bookings.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/testme/testme-backend/pkg/errors"
)

// Archive stores license images and hands back an object key
type Archive interface {
	Upload(ctx context.Context, bookingID string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// S3Archive keeps license images in an S3 bucket under a key prefix
type S3Archive struct {
	client objectAPI
	bucket string
	prefix string
}

// NewS3Archive creates an archive using the default AWS credential chain
func NewS3Archive(ctx context.Context, region, bucket, prefix string) (*S3Archive, error) {
	if bucket == "" {
		return nil, errors.Configuration("storage.image_bucket")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return newS3Archive(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func newS3Archive(client objectAPI, bucket, prefix string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Upload stores data as {prefix}/{bookingID}/{random}{ext}
func (a *S3Archive) Upload(ctx context.Context, bookingID string, data []byte, contentType string) (string, error) {
	key := path.Join(a.prefix, bookingID, uuid.New().String()+extensions[contentType])

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Upstream("s3", err)
	}
	return key, nil
}

// Delete removes an archived object
func (a *S3Archive) Delete(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Upstream("s3", err)
	}
	return nil
}
