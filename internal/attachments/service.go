package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/farmatrack/farmatrack/internal/platform/objstore"
)

const (
	// DefaultBucket is the legacy bucket name every deployment has.
	DefaultBucket = "invoices"

	// MaxFileSize caps uploads at 20 MB.
	MaxFileSize = 20 * 1024 * 1024

	signedURLTTL = time.Hour
)

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

// Service uploads, resolves, and deletes attachment objects. It keeps no
// state between calls; every operation talks straight to the object store.
type Service struct {
	store  objstore.ObjectStore
	bucket string
	logger *slog.Logger
}

// NewService builds an attachment service. bucket is the configured primary
// bucket; DefaultBucket remains the fallback candidate for deployments that
// predate the rename.
func NewService(store objstore.ObjectStore, bucket string, logger *slog.Logger) *Service {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Service{store: store, bucket: bucket, logger: logger}
}

// bucketCandidates returns the configured bucket followed by the default,
// deduplicated, in fixed priority order.
func (s *Service) bucketCandidates() []string {
	if s.bucket == DefaultBucket {
		return []string{DefaultBucket}
	}
	return []string{s.bucket, DefaultBucket}
}

// ValidateFile checks size and declared media type. Pure, no I/O.
func (s *Service) ValidateFile(upload Upload) error {
	if upload.Size > MaxFileSize {
		return &FileValidationError{Reason: "ficheiro muito grande (máx. 20MB)"}
	}
	if !allowedContentTypes[upload.ContentType] {
		return &FileValidationError{Reason: "tipo de ficheiro não permitido (PDF, JPG, PNG, WebP)"}
	}
	return nil
}

// UploadInvoiceAttachment stores the invoice document under a key derived
// from the invoice id and the sanitized file name, and returns the stable
// record for it.
func (s *Service) UploadInvoiceAttachment(ctx context.Context, upload Upload, invoiceID string) (FileAttachment, error) {
	return s.upload(ctx, upload, invoiceID, "")
}

// UploadPaymentProof stores a payment receipt next to the invoice document,
// prefixed so both can coexist under the same invoice.
func (s *Service) UploadPaymentProof(ctx context.Context, upload Upload, invoiceID string) (FileAttachment, error) {
	return s.upload(ctx, upload, invoiceID, "pagamento-")
}

func (s *Service) upload(ctx context.Context, upload Upload, invoiceID, prefix string) (FileAttachment, error) {
	if err := s.ValidateFile(upload); err != nil {
		return FileAttachment{}, err
	}

	fileName := prefix + SanitizeFileName(upload.Name)
	storagePath := fmt.Sprintf("invoices/%s/%s", invoiceID, fileName)

	bucket, err := s.uploadWithFallback(ctx, storagePath, upload)
	if err != nil {
		return FileAttachment{}, err
	}

	return FileAttachment{
		StoragePath: storagePath,
		URL:         s.store.PublicURL(bucket, storagePath),
		FileName:    fileName,
	}, nil
}

// uploadWithFallback tries each bucket candidate in order without overwrite.
// Only a bucket-not-found condition moves on to the next candidate; any
// other failure propagates immediately.
func (s *Service) uploadWithFallback(ctx context.Context, storagePath string, upload Upload) (string, error) {
	bucketNotFoundCount := 0

	for _, bucket := range s.bucketCandidates() {
		err := s.store.Upload(ctx, bucket, storagePath, upload.Data, upload.ContentType, false)
		if err == nil {
			return bucket, nil
		}
		if objstore.IsBucketNotFound(err) {
			bucketNotFoundCount++
			continue
		}
		return "", &UploadError{Err: err}
	}

	if bucketNotFoundCount > 0 {
		return "", &StorageNotFoundError{Bucket: s.bucket}
	}
	return "", &UploadError{}
}

// GetDownloadURL returns the best URL to hand to the client. Local blob
// previews pass through untouched; otherwise a one-hour signed URL is
// requested from each bucket candidate in order, falling back to the stored
// URL when signing is impossible.
func (s *Service) GetDownloadURL(ctx context.Context, att FileAttachment) string {
	if len(att.URL) >= 5 && att.URL[:5] == "blob:" {
		return att.URL
	}

	storagePath, ok := ResolveStoragePath(&att)
	if !ok {
		return att.URL
	}

	for _, bucket := range s.bucketCandidates() {
		signed, err := s.store.SignedURL(ctx, bucket, storagePath, signedURLTTL)
		if err == nil && signed != "" {
			return signed
		}
		if !objstore.IsBucketNotFound(err) {
			break
		}
	}

	return att.URL
}

// DeleteFile removes an object best-effort. The loop stops at the first
// bucket that does not report bucket-not-found; other failures are logged
// and swallowed so cleanup never blocks the caller's primary operation.
func (s *Service) DeleteFile(ctx context.Context, storagePath string) {
	for _, bucket := range s.bucketCandidates() {
		err := s.store.Remove(ctx, bucket, []string{storagePath})
		if err == nil {
			return
		}
		if !objstore.IsBucketNotFound(err) {
			if s.logger != nil {
				s.logger.Error("delete attachment object", slog.String("path", storagePath), slog.Any("error", err))
			}
			return
		}
	}
}

// DeleteAttachment resolves the storage path and deletes the object. A
// non-storage-backed attachment is a no-op.
func (s *Service) DeleteAttachment(ctx context.Context, att *FileAttachment) {
	storagePath, ok := ResolveStoragePath(att)
	if !ok {
		return
	}
	s.DeleteFile(ctx, storagePath)
}
