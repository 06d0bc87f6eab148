package ingestion

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Source kinds reported by DescribeSource.
const (
	SourceKindFile = "file"
	SourceKindURL  = "url"
)

// SourceInfo holds what can be inferred about a PDF from its location alone.
type SourceInfo struct {
	// Kind is SourceKindFile or SourceKindURL.
	Kind string
	// Host is the URL host, empty for files.
	Host string
	// FileName is the last path element without query or fragment.
	FileName string
}

// DescribeSource inspects a path or URL and returns best-effort metadata.
// It never fails; unparseable URLs are described by their raw text.
//
// Supported forms:
//
//	/abs/path/report.pdf
//	relative/report.pdf
//	https://host/some/path/report.pdf?download=1
func DescribeSource(location string) SourceInfo {
	if !isRemote(location) {
		return SourceInfo{
			Kind:     SourceKindFile,
			FileName: filepath.Base(location),
		}
	}

	info := SourceInfo{Kind: SourceKindURL}
	parsed, err := url.Parse(location)
	if err != nil {
		info.FileName = lastSegment(location)
		return info
	}
	info.Host = strings.ToLower(parsed.Hostname())
	info.FileName = lastSegment(parsed.Path)
	return info
}

// lastSegment returns the final non-empty element of a slash path.
func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}
