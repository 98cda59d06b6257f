// Package objstore abstracts the external object storage service used for
// invoice attachments.
package objstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ObjectStore is the contract consumed by the attachment service. All bucket
// names are configuration; the caller decides which candidates to try.
type ObjectStore interface {
	// Upload writes an object. When overwrite is false an existing object
	// under the same key makes the call fail.
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string, overwrite bool) error
	// PublicURL returns the publicly resolvable URL for an object. No I/O.
	PublicURL(bucket, key string) string
	// SignedURL requests a time-limited download URL.
	SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// Remove deletes objects by key. Missing objects are not an error.
	Remove(ctx context.Context, bucket string, keys []string) error
}

// ErrBucketNotFound reports that the addressed bucket does not exist. The
// attachment service uses it to drive fallback-bucket retries.
var ErrBucketNotFound = errors.New("bucket not found")

// IsBucketNotFound reports whether err is a bucket-not-found condition,
// either the sentinel or a backend message carrying the same meaning.
func IsBucketNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBucketNotFound) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "bucket not found")
}
