package objstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore backs attachments with Google Cloud Storage. Used when the
// pharmacy hosts its own buckets instead of the managed storage service.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore builds a GCS-backed store. When credentialsJSON is empty the
// client falls back to application default credentials.
func NewGCSStore(ctx context.Context, credentialsJSON string) (*GCSStore, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objstore: gcs client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (g *GCSStore) Upload(ctx context.Context, bucket, key string, data []byte, contentType string, overwrite bool) error {
	obj := g.client.Bucket(bucket).Object(key)
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return g.wrapErr(bucket, key, err)
	}
	if err := wc.Close(); err != nil {
		return g.wrapErr(bucket, key, err)
	}
	return nil
}

func (g *GCSStore) PublicURL(bucket, key string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + escapeGCSKey(key)
}

func (g *GCSStore) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	signed, err := g.client.Bucket(bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", g.wrapErr(bucket, key, err)
	}
	return signed, nil
}

func (g *GCSStore) Remove(ctx context.Context, bucket string, keys []string) error {
	for _, key := range keys {
		err := g.client.Bucket(bucket).Object(key).Delete(ctx)
		if err == nil || errors.Is(err, storage.ErrObjectNotExist) {
			continue
		}
		return g.wrapErr(bucket, key, err)
	}
	return nil
}

// Close releases the underlying client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}

func (g *GCSStore) wrapErr(bucket, key string, err error) error {
	if errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("objstore: bucket %q: %w", bucket, ErrBucketNotFound)
	}
	return fmt.Errorf("objstore: %s/%s: %w", bucket, key, err)
}

func escapeGCSKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
