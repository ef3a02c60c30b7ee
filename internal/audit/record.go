// Package audit holds the append-only assignment ledger. Every assignment and
// reassignment decision is recorded here and never edited afterwards.
package audit

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"
)

type Kind string

const (
	KindAssign   Kind = "ASSIGN"
	KindReassign Kind = "REASSIGN"
)

// MinReasonLength is the minimum trimmed length, in runes, of a reassignment reason.
const MinReasonLength = 10

var ErrInvalidRecord = errors.New("invalid assignment record")

type Record struct {
	ID            string    `json:"id"`
	Seq           int64     `json:"seq"`
	GrievanceID   string    `json:"grievanceId"`
	Kind          Kind      `json:"kind"`
	FromOfficerID string    `json:"fromOfficerId,omitempty"`
	ToOfficerID   string    `json:"toOfficerId"`
	Priority      string    `json:"priority"`
	Reason        string    `json:"reason,omitempty"`
	ActorID       string    `json:"actorId"`
	Timestamp     time.Time `json:"timestamp"`
}

type Filter struct {
	GrievanceID string
	ActorID     string
	Kind        Kind
}

func (f Filter) Matches(r Record) bool {
	if f.GrievanceID != "" && r.GrievanceID != f.GrievanceID {
		return false
	}
	if f.ActorID != "" && r.ActorID != f.ActorID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	return true
}

// Log is the ledger contract. Query returns a lazy sequence ordered by
// timestamp ascending; ranging over it again restarts from the beginning.
type Log interface {
	Append(ctx context.Context, record Record) (Record, error)
	Query(ctx context.Context, filter Filter) iter.Seq2[Record, error]
}

func ValidReason(reason string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(reason)) >= MinReasonLength
}

func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToUpper(strings.TrimSpace(value))) {
	case KindAssign:
		return KindAssign, true
	case KindReassign:
		return KindReassign, true
	default:
		return "", false
	}
}

func Validate(r Record) error {
	if strings.TrimSpace(r.GrievanceID) == "" {
		return fmt.Errorf("%w: grievance id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.ToOfficerID) == "" {
		return fmt.Errorf("%w: target officer is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(r.ActorID) == "" {
		return fmt.Errorf("%w: actor is required", ErrInvalidRecord)
	}
	switch r.Kind {
	case KindAssign:
		if r.FromOfficerID != "" {
			return fmt.Errorf("%w: initial assignment cannot have a previous officer", ErrInvalidRecord)
		}
	case KindReassign:
		if r.FromOfficerID == "" {
			return fmt.Errorf("%w: reassignment requires the previous officer", ErrInvalidRecord)
		}
		if r.FromOfficerID == r.ToOfficerID {
			return fmt.Errorf("%w: reassignment must change the officer", ErrInvalidRecord)
		}
		if !ValidReason(r.Reason) {
			return fmt.Errorf("%w: reason must be at least %d characters", ErrInvalidRecord, MinReasonLength)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, r.Kind)
	}
	return nil
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Record, error]) ([]Record, error) {
	out := make([]Record, 0)
	for record, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, record)
	}
	return out, nil
}
