// Package export renders a project's chapters to PDF, RTF, and HTML.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatRTF  Format = "rtf"
	FormatHTML Format = "html"
)

// Request contains parameters for an export operation. A zero ChapterID
// exports the whole manuscript; otherwise only that chapter.
type Request struct {
	ProjectID string
	ChapterID int
	Format    Format
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrContentUnavailable indicates chapter content could not be loaded for export.
	ErrContentUnavailable = errors.New("export content unavailable")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
