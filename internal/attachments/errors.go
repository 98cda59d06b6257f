package attachments

import "fmt"

// FileValidationError rejects a file before any network call is made.
type FileValidationError struct {
	Reason string
}

func (e *FileValidationError) Error() string {
	return e.Reason
}

// StorageNotFoundError reports that no bucket candidate exists. This is a
// configuration problem, not a transient failure; the message names the
// misconfigured bucket.
type StorageNotFoundError struct {
	Bucket string
}

func (e *StorageNotFoundError) Error() string {
	return fmt.Sprintf("storage bucket not found (%s): check STORAGE_BUCKET or use the %q bucket", e.Bucket, DefaultBucket)
}

// UploadError wraps a transfer failure. Retryable by re-submitting the file.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	if e.Err == nil {
		return "file upload failed"
	}
	return "file upload failed: " + e.Err.Error()
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
