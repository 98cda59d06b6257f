// Package attachments owns the upload, download-URL, and delete lifecycle of
// invoice documents stored in the external object store.
package attachments

// FileAttachment references one stored invoice document. StoragePath is the
// stable object key and drives every delete/replace decision; URL may be an
// ephemeral signed link and is never compared for identity.
type FileAttachment struct {
	URL         string `json:"url"`
	FileName    string `json:"fileName"`
	StoragePath string `json:"storagePath"`
}

// Upload is a transient, in-memory file received from the client. It exists
// only until the object store accepts it.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}
