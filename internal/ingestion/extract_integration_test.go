//go:build integration

package ingestion

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_PDFExtractor_Integration parses a real PDF.
//
// Run with:
//
//	RAGPDF_TEST_PDF=/path/to/any.pdf go test -tags=integration -run PDFExtractor_Integration ./internal/ingestion/
func Test_PDFExtractor_Integration(t *testing.T) {
	path := os.Getenv("RAGPDF_TEST_PDF")
	if path == "" {
		t.Skip("RAGPDF_TEST_PDF not set")
	}

	ext, err := NewPDFExtractor(0, "", 0).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Positive(t, ext.Pages)
	assert.Len(t, ext.SHA256, 64)
	assert.NotEmpty(t, NewChunker(0, 0).Split(ext.Text))
}
