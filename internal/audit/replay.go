package audit

import (
	"fmt"
	"iter"
	"time"
)

// AssignmentState is the assignment picture of one grievance as rebuilt from
// its records.
type AssignmentState struct {
	GrievanceID   string    `json:"grievanceId"`
	OfficerID     string    `json:"officerId"`
	Priority      string    `json:"priority"`
	AssignedAt    time.Time `json:"assignedAt"`
	LastChangedAt time.Time `json:"lastChangedAt"`
	Reassignments int       `json:"reassignments"`
	Officers      []string  `json:"officers"`
}

// Replay folds records into per-grievance state. It fails on a reassignment
// whose previous officer does not match the replayed state.
func Replay(records iter.Seq2[Record, error]) (map[string]AssignmentState, error) {
	states := make(map[string]AssignmentState)
	for record, err := range records {
		if err != nil {
			return nil, err
		}
		state := states[record.GrievanceID]
		switch record.Kind {
		case KindAssign:
			if state.OfficerID != "" {
				return nil, fmt.Errorf("replay %s: assigned twice (seq %d)", record.GrievanceID, record.Seq)
			}
			state = AssignmentState{
				GrievanceID:   record.GrievanceID,
				OfficerID:     record.ToOfficerID,
				Priority:      record.Priority,
				AssignedAt:    record.Timestamp,
				LastChangedAt: record.Timestamp,
				Officers:      []string{record.ToOfficerID},
			}
		case KindReassign:
			if state.OfficerID != record.FromOfficerID {
				return nil, fmt.Errorf("replay %s: reassignment from %q but current officer is %q (seq %d)",
					record.GrievanceID, record.FromOfficerID, state.OfficerID, record.Seq)
			}
			state.OfficerID = record.ToOfficerID
			state.LastChangedAt = record.Timestamp
			state.Reassignments++
			state.Officers = append(state.Officers, record.ToOfficerID)
		default:
			return nil, fmt.Errorf("replay %s: unknown kind %q", record.GrievanceID, record.Kind)
		}
		states[record.GrievanceID] = state
	}
	return states, nil
}
