package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n...")))
	assert.False(t, IsPDF([]byte("plain text file")))
	assert.False(t, IsPDF(nil))
	assert.False(t, IsPDF([]byte("%PD")))
}

func TestExtract_RejectsNonPDF(t *testing.T) {
	e := NewPDFExtractor(nil, 0, nil)

	pages, err := e.Extract(context.Background(), []byte("hello, not a pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "expected ErrUnsupportedFormat, got %v", err)
	assert.Empty(t, pages)
}

func TestExtract_CorruptPDF(t *testing.T) {
	e := NewPDFExtractor(nil, 0, nil)

	// Valid magic header, garbage body.
	pages, err := e.Extract(context.Background(), []byte("%PDF-1.4\nthis is not a real pdf body"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtraction), "expected ErrExtraction, got %v", err)
	assert.Empty(t, pages)
}
