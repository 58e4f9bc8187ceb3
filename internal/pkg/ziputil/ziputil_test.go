package ziputil

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
)

func buildZip(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := writer.Create(name)
		require.NoError(t, err)
		_, err = entry.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf.Bytes()
}

func TestExtractPDFs_FiltersNonPDFAndResourceForks(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"invoices/taxi.pdf":       []byte("%PDF-1.4 taxi"),
		"__MACOSX/._taxi.pdf":     []byte("resource fork"),
		"readme.txt":              []byte("not a pdf"),
		"invoices/Hotel Bill.pdf": []byte("%PDF-1.4 hotel"),
	})

	entries, err := ExtractPDFs(data)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	names := []string{entries[0].Name, entries[1].Name}
	require.Contains(t, names, "taxi.pdf")
	require.Contains(t, names, "Hotel Bill.pdf")
}

func TestExtractPDFs_MalformedArchive(t *testing.T) {
	_, err := ExtractPDFs([]byte("definitely not a zip"))
	require.ErrorIs(t, err, apperrors.ErrInvalidFile)
}

func TestExtractPDFs_NoPDFs(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"a.txt": []byte("text"),
		"b.csv": []byte("csv"),
	})
	_, err := ExtractPDFs(data)
	require.ErrorIs(t, err, apperrors.ErrInvalidFile)
}

func TestExtractPDFs_EmptyMembersSkipped(t *testing.T) {
	data := buildZip(t, map[string][]byte{
		"empty.pdf": {},
	})
	_, err := ExtractPDFs(data)
	require.ErrorIs(t, err, apperrors.ErrInvalidFile)
}

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "a_b_c.pdf", SanitizeFilename(`a/b\c.pdf`))
	require.Equal(t, "what_.pdf", SanitizeFilename("what?.pdf"))
	require.Equal(t, "trimmed", SanitizeFilename("  trimmed . "))
	require.Equal(t, "unnamed_file", SanitizeFilename("..."))
	require.Equal(t, "unnamed_file", SanitizeFilename(""))
}
