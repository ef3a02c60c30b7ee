package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rohzyy/govai/internal/ai"
	"github.com/rohzyy/govai/internal/attachments"
	"github.com/rohzyy/govai/internal/export"
	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/obs"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/store"
	"github.com/rohzyy/govai/internal/util"
)

const velocityWindow = 5 * time.Minute

type SubmitInput struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Location      string `json:"location"`
	Category      string `json:"category"`
	IsWomenSafety bool   `json:"isWomenSafety"`
}

type StatusView struct {
	ComplaintID       string             `json:"complaintId"`
	Status            lifecycle.Status   `json:"status"`
	StatusLabel       string             `json:"statusLabel"`
	AssignedOfficerID string             `json:"assignedOfficerId,omitempty"`
	SLADeadline       *time.Time         `json:"slaDeadline,omitempty"`
	SLABreached       bool               `json:"slaBreached"`
	NextActions       []lifecycle.Status `json:"nextActions"`
}

type TransitionResult struct {
	Complaint lifecycle.Grievance       `json:"complaint"`
	Timeline  []lifecycle.TimelineEvent `json:"timeline"`
}

type UploadInput struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

type AttachmentView struct {
	ID          string    `json:"id"`
	ComplaintID string    `json:"complaintId"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Submit files a grievance for a citizen. Classification and the trust
// score are advisory; neither can fail the submission. healthy is false
// when the analyzer was unavailable.
func (s *Service) Submit(ctx context.Context, caller Session, in SubmitInput) (lifecycle.Grievance, bool, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	if in.Title == "" || in.Description == "" {
		return lifecycle.Grievance{}, true, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title and description are required", nil)
	}

	analysis := ai.Classify(ctx, s.analyzer, in.Description)
	category := analysis.Category
	if category == ai.Unclassified && strings.TrimSpace(in.Category) != "" {
		category = strings.TrimSpace(in.Category)
	}
	womenSafety := in.IsWomenSafety || ai.IsWomenSafety(in.Title+" "+in.Description)
	priority := lifecycle.NormalizePriority(analysis.Priority)
	if womenSafety {
		priority = lifecycle.AtLeast(priority, lifecycle.PriorityHigh)
	}

	now := s.now()
	recent, err := s.store.CountRecentSubmissions(ctx, caller.UserID, now.Add(-velocityWindow))
	if err != nil {
		log.Printf("trust: count recent submissions: %v", err)
	}
	duplicate, err := s.store.HasDuplicateDescription(ctx, in.Description)
	if err != nil {
		log.Printf("trust: duplicate check: %v", err)
	}
	score, flags := ai.TrustScore(ai.TrustInput{Description: in.Description, RecentSubmissions: recent, Duplicate: duplicate})

	g := lifecycle.Grievance{
		ID:            util.NewSortableID(),
		CitizenID:     caller.UserID,
		Title:         in.Title,
		Description:   in.Description,
		Location:      in.Location,
		Category:      category,
		Department:    analysis.Department,
		Priority:      priority,
		CreatedAt:     now,
		TrustScore:    score,
		TrustFlags:    flags,
		IsWomenSafety: womenSafety,
		AIConfidence:  analysis.Confidence,
		AIDegraded:    analysis.Degraded,
	}
	submitted := lifecycle.TimelineEvent{
		ID:          util.NewSortableID(),
		GrievanceID: g.ID,
		Status:      lifecycle.StatusSubmitted,
		Timestamp:   now,
		UpdatedBy:   caller.UserID,
		ActorRole:   rbac.RoleUser,
		Remarks:     "Complaint submitted",
	}
	if err := s.store.CreateGrievance(ctx, g, submitted); err != nil {
		return lifecycle.Grievance{}, true, fmt.Errorf("create grievance: %w", err)
	}

	g = lifecycle.Derive(g, []lifecycle.TimelineEvent{submitted}, now)
	obs.TimelineTransitions.WithLabelValues(string(lifecycle.StatusSubmitted)).Inc()
	s.index(g)
	_ = obs.LogEvent(ctx, "grievance.submitted", map[string]any{
		"grievance_id": g.ID,
		"department":   g.Department,
		"priority":     string(g.Priority),
		"ai_degraded":  g.AIDegraded,
		"trust_score":  g.TrustScore,
	})
	return g, !analysis.Degraded, nil
}

// Analyze previews classification without filing anything.
func (s *Service) Analyze(ctx context.Context, description string) (ai.Analysis, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return ai.Analysis{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "description is required", nil)
	}
	return ai.Classify(ctx, s.analyzer, description), nil
}

func (s *Service) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	if len(audio) == 0 {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "audio is required", nil)
	}
	if s.transcriber == nil {
		return "", ai.ErrUnavailable
	}
	text, err := s.transcriber.Transcribe(ctx, audio, language)
	if err != nil {
		log.Printf("ai: transcribe failed: %v", err)
		return "", ai.ErrUnavailable
	}
	return text, nil
}

// ListOwn returns the caller's grievances. view is "", "active" or
// "archived".
func (s *Service) ListOwn(ctx context.Context, caller Session, view string) ([]lifecycle.Grievance, error) {
	items, err := s.store.ListGrievances(ctx, store.GrievanceQuery{CitizenID: caller.UserID})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]lifecycle.Grievance, 0, len(items))
	for _, g := range items {
		g = lifecycle.WithStatus(g, g.Status, now)
		switch {
		case view == "active" && g.Archived:
			continue
		case view == "archived" && !g.Archived:
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *Service) AssignedComplaints(ctx context.Context, caller Session) ([]lifecycle.Grievance, error) {
	if caller.OfficerID == "" {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "No officer profile for this account", nil)
	}
	items, err := s.store.ListGrievances(ctx, store.GrievanceQuery{OfficerID: caller.OfficerID})
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range items {
		items[i] = lifecycle.WithStatus(items[i], items[i].Status, now)
	}
	return items, nil
}

// Get loads a grievance with its timeline for a caller allowed to see it.
func (s *Service) Get(ctx context.Context, caller Session, id string) (lifecycle.Grievance, []lifecycle.TimelineEvent, error) {
	g, err := s.store.GetGrievance(ctx, id)
	if err != nil {
		return lifecycle.Grievance{}, nil, err
	}
	if !canView(caller, g) {
		return lifecycle.Grievance{}, nil, domainError(http.StatusForbidden, "FORBIDDEN", "You cannot view this grievance", nil)
	}
	events, err := s.store.ListEvents(ctx, id)
	if err != nil {
		return lifecycle.Grievance{}, nil, fmt.Errorf("list timeline events: %w", err)
	}
	return lifecycle.Derive(g, events, s.now()), events, nil
}

func (s *Service) Status(ctx context.Context, caller Session, id string) (StatusView, error) {
	g, _, err := s.Get(ctx, caller, id)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		ComplaintID:       g.ID,
		Status:            g.Status,
		StatusLabel:       g.StatusLabel,
		AssignedOfficerID: g.AssignedOfficerID,
		SLADeadline:       g.SLADeadline,
		SLABreached:       g.SLABreached,
		NextActions:       lifecycle.NextAllowedActions(g.Status, caller.Role),
	}, nil
}

// ConfirmResolved moves a resolved grievance to VERIFIED. A rating of zero
// leaves no feedback.
func (s *Service) ConfirmResolved(ctx context.Context, caller Session, id string, rating int, comment string) (TransitionResult, error) {
	if rating < 0 || rating > 5 {
		return TransitionResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating must be between 1 and 5", nil)
	}
	events, err := s.engine.RecordTransition(ctx, id, lifecycle.StatusVerified, caller.actor(), "Resolution confirmed by citizen")
	if err != nil {
		return TransitionResult{}, err
	}
	if rating > 0 {
		fb := store.Feedback{GrievanceID: id, Rating: rating, Comment: strings.TrimSpace(comment)}
		if err := s.store.SaveFeedback(ctx, fb); err != nil {
			log.Printf("feedback: save for %s: %v", id, err)
		}
	}
	return s.transitionResult(ctx, id, events)
}

func (s *Service) Withdraw(ctx context.Context, caller Session, id, reason string) (TransitionResult, error) {
	remarks := strings.TrimSpace(reason)
	if remarks == "" {
		remarks = "Withdrawn by citizen"
	}
	events, err := s.engine.RecordTransition(ctx, id, lifecycle.StatusWithdrawn, caller.actor(), remarks)
	if err != nil {
		return TransitionResult{}, err
	}
	return s.transitionResult(ctx, id, events)
}

// FieldEvent records an officer's site visit, work start or resolution.
// Legacy labels such as "Work in Progress" are accepted.
func (s *Service) FieldEvent(ctx context.Context, caller Session, id, rawStatus, remarks string) (TransitionResult, error) {
	status, ok := lifecycle.NormalizeStatus(rawStatus)
	if !ok {
		return TransitionResult{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("unknown status %q", rawStatus), nil)
	}
	events, err := s.engine.RecordTransition(ctx, id, status, caller.actor(), remarks)
	if err != nil {
		return TransitionResult{}, err
	}
	return s.transitionResult(ctx, id, events)
}

func (s *Service) transitionResult(ctx context.Context, id string, events []lifecycle.TimelineEvent) (TransitionResult, error) {
	g, err := s.store.GetGrievance(ctx, id)
	if err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Complaint: lifecycle.Derive(g, events, s.now()), Timeline: events}, nil
}

// Upload stores a file for a grievance. Only the owner and the assigned
// officer may attach.
func (s *Service) Upload(ctx context.Context, caller Session, id string, in UploadInput) (AttachmentView, error) {
	if s.blobs == nil {
		return AttachmentView{}, domainError(http.StatusServiceUnavailable, "SERVER_ERROR", "Attachment storage is not configured", nil)
	}
	g, err := s.store.GetGrievance(ctx, id)
	if err != nil {
		return AttachmentView{}, err
	}
	if !s.Can(caller.Role, rbac.ActionUploadAttachment) || !canView(caller, g) {
		return AttachmentView{}, domainError(http.StatusForbidden, "FORBIDDEN", "You cannot attach files to this grievance", nil)
	}
	size := int64(len(in.Content))
	if err := attachments.Validate(in.ContentType, size); err != nil {
		return AttachmentView{}, err
	}

	attachmentID := util.NewID("att")
	key := attachments.ObjectKey(g.ID, attachmentID, in.FileName, in.ContentType)
	if err := s.blobs.Put(ctx, key, bytes.NewReader(in.Content), size, in.ContentType); err != nil {
		return AttachmentView{}, err
	}
	stored, err := s.store.InsertAttachment(ctx, store.Attachment{
		ID:          attachmentID,
		GrievanceID: g.ID,
		ObjectKey:   key,
		ContentType: in.ContentType,
		Size:        size,
		UploadedBy:  caller.UserID,
	})
	if err != nil {
		return AttachmentView{}, err
	}
	return s.attachmentView(ctx, stored), nil
}

func (s *Service) ListAttachments(ctx context.Context, caller Session, id string) ([]AttachmentView, error) {
	if _, _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	items, err := s.store.ListAttachments(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]AttachmentView, 0, len(items))
	for _, a := range items {
		out = append(out, s.attachmentView(ctx, a))
	}
	return out, nil
}

// attachmentView leaves URL empty when storage is down or unconfigured.
func (s *Service) attachmentView(ctx context.Context, a store.Attachment) AttachmentView {
	view := AttachmentView{
		ID:          a.ID,
		ComplaintID: a.GrievanceID,
		ContentType: a.ContentType,
		Size:        a.Size,
		CreatedAt:   a.CreatedAt,
	}
	if s.blobs == nil {
		return view
	}
	url, err := s.blobs.PresignedURL(ctx, a.ObjectKey)
	if err != nil {
		log.Printf("attachments: presign %s: %v", a.ID, err)
		return view
	}
	view.URL = url
	return view
}

// Report renders the RTI report. The assignment ledger section is only
// included for administrators.
func (s *Service) Report(ctx context.Context, caller Session, id string, format string) (*export.Result, error) {
	g, err := s.store.GetGrievance(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role == rbac.RoleOfficer || !canView(caller, g) {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "You cannot export this grievance", nil)
	}
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be html or pdf", nil)
	}
	result, err := s.reports.Export(ctx, export.Request{
		GrievanceID:        id,
		Format:             parsed,
		IncludeAssignments: caller.Role == rbac.RoleAdmin,
	})
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return nil, domainError(http.StatusServiceUnavailable, "SERVER_ERROR", "PDF export is not available on this server", nil)
	}
	return result, err
}

func canView(caller Session, g lifecycle.Grievance) bool {
	switch caller.Role {
	case rbac.RoleAdmin:
		return true
	case rbac.RoleOfficer:
		return caller.OfficerID != "" && g.AssignedOfficerID == caller.OfficerID
	case rbac.RoleUser:
		return g.CitizenID == caller.UserID
	default:
		return false
	}
}
