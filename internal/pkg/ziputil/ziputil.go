package ziputil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
)

type PDFEntry struct {
	Name string
	Data []byte
}

// ExtractPDFs lists the PDF members of a ZIP archive and returns their
// decompressed contents. macOS resource forks under __MACOSX/ are
// skipped; members that fail to decompress are skipped rather than
// failing the whole archive.
func ExtractPDFs(data []byte) ([]PDFEntry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid zip archive", apperrors.ErrInvalidFile)
	}

	var entries []PDFEntry
	found := false
	for _, file := range reader.File {
		name := file.Name
		if strings.HasPrefix(name, "__MACOSX/") {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			continue
		}
		found = true
		rc, err := file.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil || len(content) == 0 {
			continue
		}
		entries = append(entries, PDFEntry{
			Name: SanitizeFilename(path.Base(name)),
			Data: content,
		})
	}
	if !found {
		return nil, fmt.Errorf("%w: no pdf files found in the zip archive", apperrors.ErrInvalidFile)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: failed to extract any pdf files from the zip archive", apperrors.ErrInvalidFile)
	}
	return entries, nil
}

// SanitizeFilename replaces path separators and shell-hostile characters
// so extracted names are safe as storage keys.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
	)
	sanitized := strings.Trim(replacer.Replace(name), " .")
	if sanitized == "" {
		return "unnamed_file"
	}
	return sanitized
}
