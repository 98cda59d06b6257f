package attachments

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// storageObjectPattern matches the path of a storage-object URL, public or
// signed, and captures the object key after the bucket segment.
var storageObjectPattern = regexp.MustCompile(`/storage/v1/object/(?:public|sign)/[^/]+/(.+)$`)

// ExtractStoragePathFromURL pulls the object key out of a storage-object URL.
// Blob previews and URLs from other hosts yield ok=false.
func ExtractStoragePathFromURL(rawURL string) (string, bool) {
	if rawURL == "" || strings.HasPrefix(rawURL, "blob:") {
		return "", false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	match := storageObjectPattern.FindStringSubmatch(parsed.Path)
	if match == nil {
		return "", false
	}
	decoded, err := url.PathUnescape(match[1])
	if err != nil || decoded == "" {
		return "", false
	}
	return decoded, true
}

// ResolveStoragePath derives the object-store key for an attachment. A stored
// path without a wildcard placeholder is trusted verbatim; otherwise the key
// is recovered from the URL. ok=false means the attachment is not backed by
// the object store (e.g. an unpersisted preview). Pure, no I/O; delete and
// download-URL flows share it so both behave the same whether the caller
// holds a path or only a URL.
func ResolveStoragePath(att *FileAttachment) (string, bool) {
	if att == nil {
		return "", false
	}
	if att.StoragePath != "" && !strings.Contains(att.StoragePath, "*") {
		return att.StoragePath, true
	}
	return ExtractStoragePathFromURL(att.URL)
}

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFileName reduces a client-supplied file name to the ASCII-safe
// subset [a-zA-Z0-9._-]. Accented characters lose their marks before the
// replacement pass; an empty result falls back to a timestamp-based name.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if stripped, _, err := transform.String(stripDiacritics, name); err == nil {
		name = stripped
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	if b.Len() == 0 {
		return fmt.Sprintf("documento-%d", time.Now().UnixMilli())
	}
	return b.String()
}
