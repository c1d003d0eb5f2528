// Package export renders a reading path (root to chosen node) as a
// standalone HTML or PDF document.
package export

import (
	"errors"
	"time"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ParseFormat defaults to HTML for an empty value.
func ParseFormat(value string) (Format, error) {
	switch Format(value) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

func (f Format) mimeType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/html; charset=utf-8"
}

// Chapter is one node of the exported path.
type Chapter struct {
	Title       string
	BranchName  string
	Author      string
	Depth       int
	Content     string
	PublishedAt *time.Time
}

type Result struct {
	Data     []byte
	Filename string
	MimeType string
	// ArchiveKey is set when a copy was stored in the object store.
	ArchiveKey string
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates no Chromium binary is available.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
