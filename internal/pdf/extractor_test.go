package pdf

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/claimsight/claimsight/internal/pkg/errors"
)

func TestExtractText_RejectsNonPDF(t *testing.T) {
	_, err := ExtractText([]byte("plain text, no pdf header"))
	require.ErrorIs(t, err, apperrors.ErrInvalidFile)
}

func TestExtractText_RejectsTruncatedPDF(t *testing.T) {
	// Correct magic but no document structure behind it.
	_, err := ExtractText([]byte("%PDF-1.4"))
	require.ErrorIs(t, err, apperrors.ErrInvalidFile)
}

func TestIsPDF(t *testing.T) {
	require.True(t, IsPDF([]byte("%PDF-1.7 ...")))
	require.False(t, IsPDF([]byte("PK\x03\x04")))
	require.False(t, IsPDF(nil))
	require.False(t, IsPDF([]byte("%PD")))
}
