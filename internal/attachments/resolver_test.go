package attachments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractStoragePathFromURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
		ok   bool
	}{
		{
			name: "public url",
			url:  "https://proj.supabase.co/storage/v1/object/public/invoices/invoices/42/fatura.pdf",
			want: "invoices/42/fatura.pdf",
			ok:   true,
		},
		{
			name: "signed url",
			url:  "https://proj.supabase.co/storage/v1/object/sign/invoices/invoices/42/fatura.pdf?token=abc",
			want: "invoices/42/fatura.pdf",
			ok:   true,
		},
		{
			name: "encoded segments",
			url:  "https://proj.supabase.co/storage/v1/object/public/invoices/invoices/42/fatura%20marco.pdf",
			want: "invoices/42/fatura marco.pdf",
			ok:   true,
		},
		{name: "blob url", url: "blob:https://app.local/8b54", ok: false},
		{name: "empty", url: "", ok: false},
		{name: "unrelated url", url: "https://example.com/files/fatura.pdf", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractStoragePathFromURL(tc.url)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				require.Equal(t, tc.want, got)
			}
		})
	}
}

func TestResolveStoragePathPrefersStoredPath(t *testing.T) {
	att := &FileAttachment{
		URL:         "https://proj.supabase.co/storage/v1/object/public/invoices/some/other/path.pdf",
		StoragePath: "invoices/42/x.pdf",
	}
	got, ok := ResolveStoragePath(att)
	require.True(t, ok)
	require.Equal(t, "invoices/42/x.pdf", got)
}

func TestResolveStoragePathRejectsWildcardPath(t *testing.T) {
	att := &FileAttachment{
		URL:         "https://proj.supabase.co/storage/v1/object/public/invoices/invoices/42/real.pdf",
		StoragePath: "invoices/42/*",
	}
	got, ok := ResolveStoragePath(att)
	require.True(t, ok)
	require.Equal(t, "invoices/42/real.pdf", got)
}

func TestResolveStoragePathNil(t *testing.T) {
	_, ok := ResolveStoragePath(nil)
	require.False(t, ok)
}

func TestSanitizeFileName(t *testing.T) {
	require.Equal(t, "Fatura_Marco.pdf", SanitizeFileName("Fatura Março.pdf"))
	require.Equal(t, "recibo-2024.pdf", SanitizeFileName("  recibo-2024.pdf  "))
	require.Equal(t, "a_b_c.png", SanitizeFileName("a/b\\c.png"))
}

func TestSanitizeFileNameFallback(t *testing.T) {
	got := SanitizeFileName("   ")
	require.True(t, strings.HasPrefix(got, "documento-"), got)

	got = SanitizeFileName("")
	require.True(t, strings.HasPrefix(got, "documento-"), got)
}
