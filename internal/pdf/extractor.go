// Package pdf extracts plain text from uploaded PDF documents.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"

	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
)

// ExtractText parses data as a PDF and returns its plain text. Returns
// ErrInvalidFile when the bytes are not a PDF and ErrEmptyDocument when
// the document carries no extractable text (e.g. scanned images).
func ExtractText(data []byte) (string, error) {
	if !IsPDF(data) {
		return "", fmt.Errorf("%w: missing pdf header", apperrors.ErrInvalidFile)
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidFile, err)
	}
	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidFile, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", apperrors.ErrEmptyDocument
	}
	return text, nil
}

func IsPDF(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("%PDF"))
}
