// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/glimpsehq/glimpse/config"
	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
	"github.com/glimpsehq/glimpse/pkg/utils"
)

// S3Store implements the object-store boundary on S3 (or any S3-compatible
// endpoint such as MinIO, set via Endpoint). Signing uses presigned
// GetObject requests; S3 deletes of absent keys already succeed, which
// matches the boundary's delete contract.
type S3Store struct {
	logger commons.Logger
	client *s3.S3
	bucket string
}

// NewS3Store validates the asset-store config and builds the client.
func NewS3Store(logger commons.Logger, cfg config.AssetStoreConfig) (*S3Store, error) {
	if utils.IsEmpty(cfg.Bucket) {
		return nil, fmt.Errorf("s3 store: bucket is required")
	}

	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if !utils.IsEmpty(cfg.AccessKey) {
		awsCfg = awsCfg.WithCredentials(
			credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	if !utils.IsEmpty(cfg.Endpoint) {
		// S3-compatible endpoints generally need path-style addressing
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3 store: %w", err)
	}
	return &S3Store{
		logger: logger,
		client: s3.New(sess),
		bucket: cfg.Bucket,
	}, nil
}

func (s *S3Store) Provider() string { return "s3" }

func (s *S3Store) Put(ctx context.Context, key string, payload []byte, contentType string) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("putting s3://%s/%s: %w", s.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3Store) Head(ctx context.Context, key string) (*internal_type.ObjectInfo, error) {
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, fmt.Errorf("%w: %s", internal_type.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("heading s3://%s/%s: %w", s.bucket, key, err)
	}
	info := &internal_type.ObjectInfo{SizeBytes: aws.Int64Value(out.ContentLength)}
	if out.LastModified != nil {
		info.LastModified = *out.LastModified
	}
	return info, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	// DeleteObject on an absent key returns success; cleanup racing is fine
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Store) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("presigning s3://%s/%s: %w", s.bucket, key, err)
	}
	return url, nil
}

func isS3NotFound(err error) bool {
	if aerr, ok := err.(awserr.RequestFailure); ok {
		return aerr.StatusCode() == 404
	}
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}
