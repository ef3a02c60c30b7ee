// Package ai fronts the external classification and transcription
// services. Neither is required: every caller gets a usable answer when they
// are down.
package ai

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/rohzyy/govai/internal/lifecycle"
)

var ErrUnavailable = errors.New("ai service unavailable")

const (
	Unclassified       = "Unclassified"
	GeneralDepartment  = "General Grievance Cell"
	AdvisoryConfidence = 40
)

type Analysis struct {
	Category   string   `json:"category"`
	Department string   `json:"department"`
	Priority   string   `json:"priority"`
	Confidence int      `json:"confidence"`
	Reasoning  []string `json:"reasoning"`
	// Degraded is set when the analyzer could not be used.
	Degraded bool `json:"degraded"`
	// Advisory is set when confidence was too low to apply the category.
	Advisory bool `json:"advisory"`
}

type Analyzer interface {
	Analyze(ctx context.Context, description string) (Analysis, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, error)
}

// Classify asks a for an analysis and degrades to keyword routing when it
// fails. A nil analyzer always degrades.
func Classify(ctx context.Context, a Analyzer, description string) Analysis {
	if a == nil {
		return fallback(description, "analyzer not configured")
	}
	analysis, err := a.Analyze(ctx, description)
	if err != nil {
		log.Printf("ai: analyze failed, using keyword routing: %v", err)
		return fallback(description, "analyzer unavailable")
	}

	analysis.Priority = string(lifecycle.NormalizePriority(analysis.Priority))
	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	}
	if analysis.Confidence > 100 {
		analysis.Confidence = 100
	}
	if analysis.Confidence < AdvisoryConfidence {
		analysis.Advisory = true
		analysis.Reasoning = append(analysis.Reasoning,
			"Suggested category "+analysis.Category+" not applied: low confidence")
		analysis.Category = Unclassified
	}
	if strings.TrimSpace(analysis.Department) == "" || analysis.Advisory {
		analysis.Department = KeywordDepartment(description)
	}
	return analysis
}

func fallback(description, why string) Analysis {
	return Analysis{
		Category:   Unclassified,
		Department: KeywordDepartment(description),
		Priority:   string(lifecycle.PriorityMedium),
		Reasoning:  []string{why + "; routed by keywords"},
		Degraded:   true,
	}
}
