package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SupabaseStore talks to a Supabase-compatible storage HTTP API. Objects are
// addressed as /storage/v1/object/{bucket}/{key}; public URLs use the
// /storage/v1/object/public/ prefix the path resolver understands.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewSupabaseStore builds a store client. baseURL is the project root, e.g.
// https://abc.supabase.co, without a trailing slash.
func NewSupabaseStore(baseURL, serviceKey string, client *http.Client) *SupabaseStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &SupabaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     client,
	}
}

type storageError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (s *SupabaseStore) Upload(ctx context.Context, bucket, key string, data []byte, contentType string, overwrite bool) error {
	endpoint := s.objectURL(bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("objstore: build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", fmt.Sprintf("%t", overwrite))

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("objstore: upload %s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()
	return s.checkResponse(resp, bucket)
}

func (s *SupabaseStore) PublicURL(bucket, key string) string {
	return s.baseURL + "/storage/v1/object/public/" + bucket + "/" + escapeKey(key)
}

func (s *SupabaseStore) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	endpoint := s.baseURL + "/storage/v1/object/sign/" + bucket + "/" + escapeKey(key)
	body, _ := json.Marshal(map[string]int64{"expiresIn": int64(ttl.Seconds())})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("objstore: build sign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("objstore: sign %s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()
	if err := s.checkResponse(resp, bucket); err != nil {
		return "", err
	}

	var signed struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", fmt.Errorf("objstore: decode signed url: %w", err)
	}
	if signed.SignedURL == "" {
		return "", fmt.Errorf("objstore: empty signed url for %s/%s", bucket, key)
	}
	return s.baseURL + signed.SignedURL, nil
}

func (s *SupabaseStore) Remove(ctx context.Context, bucket string, keys []string) error {
	endpoint := s.baseURL + "/storage/v1/object/" + bucket
	body, _ := json.Marshal(map[string][]string{"prefixes": keys})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("objstore: build remove request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("objstore: remove from %s: %w", bucket, err)
	}
	defer resp.Body.Close()
	return s.checkResponse(resp, bucket)
}

func (s *SupabaseStore) objectURL(bucket, key string) string {
	return s.baseURL + "/storage/v1/object/" + bucket + "/" + escapeKey(key)
}

// checkResponse maps API failures. The storage API reports a missing bucket
// with a JSON message, not a dedicated status code.
func (s *SupabaseStore) checkResponse(resp *http.Response, bucket string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr storageError
	_ = json.Unmarshal(raw, &apiErr)
	message := apiErr.Message
	if message == "" {
		message = apiErr.Error
	}
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if strings.Contains(strings.ToLower(message), "bucket not found") {
		return fmt.Errorf("objstore: bucket %q: %w", bucket, ErrBucketNotFound)
	}
	return fmt.Errorf("objstore: %s (status %d)", message, resp.StatusCode)
}

// escapeKey escapes each path segment while keeping separators intact.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
