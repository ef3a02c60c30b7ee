// Package export renders the RTI report for a grievance: its summary,
// timeline and assignment history, as HTML or PDF.
package export

import (
	"errors"
	"time"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/lifecycle"
)

type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ParseFormat defaults to HTML.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

type Request struct {
	GrievanceID string
	Format      Format
	// IncludeAssignments is false for citizens; the assignment ledger is
	// for administrators.
	IncludeAssignments bool
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ReportData is what the report template renders.
type ReportData struct {
	Grievance   lifecycle.Grievance
	Timeline    []lifecycle.TimelineEvent
	Assignments []audit.Record
	GeneratedAt time.Time
}

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
