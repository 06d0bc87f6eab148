package ingestion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "ragpdf-go/1.0 (pdf ingestion)"
	// defaultMaxBytes caps how much of a PDF is read into memory.
	defaultMaxBytes int64 = 64 << 20
)

// ErrOutsideRoot is returned for a local path that is not under the
// extractor's root directory.
var ErrOutsideRoot = errors.New("ingestion: pdf_path is outside the allowed directory")

// Extraction is the text pulled out of one PDF.
type Extraction struct {
	// Text is the plain text of every page, in page order.
	Text string
	// Pages is the page count reported by the PDF.
	Pages int
	// SHA256 is the hex digest of the raw PDF bytes.
	SHA256 string
}

// Extractor turns a document location into plain text.
type Extractor interface {
	Extract(ctx context.Context, location string) (*Extraction, error)
}

// PDFExtractor reads PDFs from the local filesystem or over HTTP(S).
type PDFExtractor struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	root      string
}

// NewPDFExtractor constructs a PDFExtractor. Zero values select defaults:
// 30s HTTP timeout, a ragpdf User-Agent and a 64 MiB size cap.
func NewPDFExtractor(httpTimeout time.Duration, userAgent string, maxBytes int64) *PDFExtractor {
	if httpTimeout <= 0 {
		httpTimeout = defaultHTTPTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &PDFExtractor{
		client:    &http.Client{Timeout: httpTimeout},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// RestrictTo confines local reads to files under dir. An empty dir lifts
// the restriction. It returns e.
func (e *PDFExtractor) RestrictTo(dir string) *PDFExtractor {
	e.root = dir
	return e
}

// Extract loads the PDF at location and returns its plain text.
func (e *PDFExtractor) Extract(ctx context.Context, location string) (*Extraction, error) {
	raw, err := e.load(ctx, location)
	if err != nil {
		return nil, err
	}

	text, pages, err := parsePDF(raw)
	if err != nil {
		return nil, fmt.Errorf("ingestion: parse %s: %w", location, err)
	}

	sum := sha256.Sum256(raw)
	return &Extraction{
		Text:   text,
		Pages:  pages,
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

// load reads the raw bytes from a path or an http(s) URL.
func (e *PDFExtractor) load(ctx context.Context, location string) ([]byte, error) {
	if isRemote(location) {
		return e.fetch(ctx, location)
	}

	f, err := e.open(location)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := readCapped(f, e.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read %s: %w", location, err)
	}
	return raw, nil
}

// open opens a local PDF. With a root set, the path must stay inside it;
// os.Root also refuses symlinks that lead out of the root.
func (e *PDFExtractor) open(location string) (*os.File, error) {
	if e.root == "" {
		f, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("ingestion: open %s: %w", location, err)
		}
		return f, nil
	}

	rel := location
	if filepath.IsAbs(location) {
		root, err := filepath.Abs(e.root)
		if err != nil {
			return nil, fmt.Errorf("ingestion: resolve root %s: %w", e.root, err)
		}
		if rel, err = filepath.Rel(root, location); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, location)
		}
	}
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideRoot, location)
	}

	root, err := os.OpenRoot(e.root)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open root %s: %w", e.root, err)
	}
	defer root.Close()

	f, err := root.Open(rel)
	if err != nil {
		return nil, fmt.Errorf("ingestion: open %s: %w", location, err)
	}
	return f, nil
}

// fetch retrieves the raw bytes of a URL.
func (e *PDFExtractor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingestion: creating request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "application/pdf")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingestion: http get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingestion: unexpected status %d for %s", resp.StatusCode, url)
	}

	raw, err := readCapped(resp.Body, e.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading %s: %w", url, err)
	}
	return raw, nil
}

// readCapped reads r fully, failing when it holds more than limit bytes.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("document exceeds %d bytes", limit)
	}
	return raw, nil
}

// parsePDF extracts plain text from raw PDF bytes. The pdf package panics on
// some malformed inputs, so panics are turned into errors.
func parsePDF(raw []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", 0, err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", 0, err
	}
	return buf.String(), r.NumPage(), nil
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
