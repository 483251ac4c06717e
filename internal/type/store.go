// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_type

import (
	"context"
	"time"
)

// ObjectInfo is the metadata Head reports for a stored object.
type ObjectInfo struct {
	SizeBytes    int64
	LastModified time.Time
}

// ObjectStore is the abstract object-storage boundary. Any provider
// implementing these four operations is compatible; the pipeline never
// depends on vendor-specific request signing beyond "produces a URL usable
// for the requested window".
type ObjectStore interface {
	// Put writes payload under key and returns the remote location.
	Put(ctx context.Context, key string, payload []byte, contentType string) (string, error)

	// Head returns object metadata, or ErrObjectNotFound.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete removes an object. Deleting an absent key succeeds: cleanup
	// jobs race with other deletions.
	Delete(ctx context.Context, key string) error

	// Sign returns a time-limited read URL for key, valid for ttl.
	Sign(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Provider names the backing implementation ("s3", "http", "memory").
	Provider() string
}
