package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rohzyy/govai/internal/email"
	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/obs"
)

const defaultSweepInterval = 5 * time.Minute

// RunSLASweeper sweeps once immediately and then on every tick until ctx
// is cancelled.
func (s *Service) RunSLASweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepSLA(ctx); err != nil && ctx.Err() == nil {
			log.Printf("sla: sweep failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepSLA counts open grievances past their deadline, updates the gauge,
// and emails each breach's officer until one notice has gone out. A failed
// send gives the claim back so the next sweep retries it.
func (s *Service) SweepSLA(ctx context.Context) (int, error) {
	rows, err := s.store.AnalyticsRows(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	breached := 0
	for _, row := range rows {
		if row.SLADeadline == nil || !lifecycle.IsBreached(*row.SLADeadline, lifecycle.Status(row.Status), now) {
			continue
		}
		breached++
		if row.OfficerID == "" || s.mailer == nil || !s.mailer.IsConfigured() {
			continue
		}
		first, err := s.store.MarkSLANotified(ctx, row.GrievanceID)
		if err != nil {
			log.Printf("sla: mark %s notified: %v", row.GrievanceID, err)
			continue
		}
		if !first {
			continue
		}
		if err := s.sendBreachNotice(ctx, row.GrievanceID, row.OfficerID); err != nil {
			log.Printf("sla: breach notice for %s: %v", row.GrievanceID, err)
			if err := s.store.ReleaseSLANotice(ctx, row.GrievanceID); err != nil {
				log.Printf("sla: release %s: %v", row.GrievanceID, err)
			}
		}
	}
	obs.SLABreachesOpen.Set(float64(breached))
	return breached, nil
}

// sendBreachNotice returns nil when the officer has no address; there is
// nothing to retry.
func (s *Service) sendBreachNotice(ctx context.Context, grievanceID, officerID string) error {
	g, err := s.store.GetGrievance(ctx, grievanceID)
	if err != nil {
		return fmt.Errorf("load grievance: %w", err)
	}
	officer, err := s.store.GetOfficer(ctx, officerID)
	if err != nil {
		return fmt.Errorf("load officer %s: %w", officerID, err)
	}
	if officer.Email == "" {
		return nil
	}
	notice := email.Notice{
		RecipientName: officer.Name,
		GrievanceID:   g.ID,
		Title:         g.Title,
		Location:      g.Location,
		Priority:      string(g.Priority),
		SLADeadline:   g.SLADeadline,
	}
	return s.mailer.SendSLABreachNotice(officer.Email, notice)
}
