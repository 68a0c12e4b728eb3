package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Options configures the S3 backend. Credentials come from the default
// AWS chain (environment, shared config, instance role).
type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string // for S3-compatible services
	Prefix   string
}

// S3 stores objects in a bucket under a key prefix.
type S3 struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// NewS3 creates a session from opts and returns an S3 store.
func NewS3(opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 storage requires a bucket")
	}
	cfg := aws.NewConfig()
	if opts.Region != "" {
		cfg = cfg.WithRegion(opts.Region)
	}
	if opts.Endpoint != "" {
		cfg = cfg.WithEndpoint(opts.Endpoint).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return NewS3WithClient(s3.New(sess), opts.Bucket, opts.Prefix), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client s3iface.S3API, bucket, prefix string) *S3 {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// Save uploads content. The returned path is the object key.
func (s *S3) Save(ctx context.Context, name string, content []byte) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	key := s.prefix + name
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileWriteFailed, err)
	}
	return key, nil
}

// Open downloads an object.
func (s *S3) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, s.prefix) {
		return nil, ErrInvalidName
	}
	resp, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return resp.Body, nil
}

// Remove deletes an object.
func (s *S3) Remove(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, s.prefix) {
		return ErrInvalidName
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", path, s.bucket, err)
	}
	return nil
}
