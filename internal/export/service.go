package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/lifecycle"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetGrievance(ctx context.Context, id string) (lifecycle.Grievance, error)
	ListEvents(ctx context.Context, grievanceID string) ([]lifecycle.TimelineEvent, error)
}

type pdfRenderer func(ctx context.Context, html, title string) (*Result, error)

// Service provides grievance report export
type Service struct {
	store  DataStore
	ledger audit.Log
	pdf    pdfRenderer
	now    func() time.Time
}

func NewService(store DataStore, ledger audit.Log) *Service {
	return &Service{store: store, ledger: ledger, pdf: exportPDF, now: time.Now}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	g, err := s.store.GetGrievance(ctx, req.GrievanceID)
	if err != nil {
		return nil, fmt.Errorf("get grievance: %w", err)
	}
	events, err := s.store.ListEvents(ctx, req.GrievanceID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}

	now := s.now()
	data := ReportData{
		Grievance:   lifecycle.Derive(g, events, now),
		Timeline:    events,
		GeneratedAt: now,
	}
	if req.IncludeAssignments && s.ledger != nil {
		records, err := audit.Collect(s.ledger.Query(ctx, audit.Filter{GrievanceID: req.GrievanceID}))
		if err != nil {
			return nil, fmt.Errorf("load assignment history: %w", err)
		}
		data.Assignments = records
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	title := "rti-report-" + g.ID
	switch req.Format {
	case FormatHTML, "":
		return &Result{Data: []byte(html), Filename: sanitizeFilename(title) + ".html", MimeType: "text/html; charset=utf-8"}, nil
	case FormatPDF:
		return s.pdf(ctx, html, title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
