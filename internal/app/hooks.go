package app

import (
	"context"
	"log"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/email"
	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/obs"
	"github.com/rohzyy/govai/internal/search"
)

func (s *Service) onTransition(_ context.Context, g lifecycle.Grievance, event lifecycle.TimelineEvent) {
	obs.TimelineTransitions.WithLabelValues(string(event.Status)).Inc()
	s.index(g)
}

func (s *Service) onAssignment(ctx context.Context, g lifecycle.Grievance, record audit.Record) {
	obs.AssignmentsTotal.WithLabelValues(string(record.Kind)).Inc()
	if record.Kind == audit.KindAssign {
		obs.TimelineTransitions.WithLabelValues(string(lifecycle.StatusAssigned)).Inc()
	}
	s.index(g)
	s.notifyOfficer(ctx, g, record)
}

func (s *Service) index(g lifecycle.Grievance) {
	if s.search == nil {
		return
	}
	s.search.IndexGrievance(search.GrievanceRecord{
		ID:          g.ID,
		Title:       g.Title,
		Description: g.Description,
		Location:    g.Location,
		Category:    g.Category,
		Department:  g.Department,
		Priority:    string(g.Priority),
		Status:      string(g.Status),
		OfficerID:   g.AssignedOfficerID,
		CreatedAt:   g.CreatedAt.Unix(),
	})
}

// notifyOfficer emails the officer a grievance was just given to.
func (s *Service) notifyOfficer(ctx context.Context, g lifecycle.Grievance, record audit.Record) {
	if s.mailer == nil || !s.mailer.IsConfigured() {
		return
	}
	officer, err := s.store.GetOfficer(context.WithoutCancel(ctx), record.ToOfficerID)
	if err != nil {
		log.Printf("email: load officer %s: %v", record.ToOfficerID, err)
		return
	}
	if officer.Email == "" {
		return
	}
	notice := email.Notice{
		RecipientName: officer.Name,
		GrievanceID:   g.ID,
		Title:         g.Title,
		Location:      g.Location,
		Priority:      string(g.Priority),
		SLADeadline:   g.SLADeadline,
		Reason:        record.Reason,
	}
	s.background(func() {
		send := s.mailer.SendAssignmentNotice
		if record.Kind == audit.KindReassign {
			send = s.mailer.SendReassignmentNotice
		}
		if err := send(officer.Email, notice); err != nil {
			log.Printf("email: %s notice for %s: %v", record.Kind, g.ID, err)
		}
	})
}
