// Package client is the typed API surface used by the CLI. Every method
// goes through the gateway, so each returns a gateway.Result and never an
// error.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/gateway"
	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/session"
)

type Client struct {
	gw *gateway.Gateway
}

func New(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

func (c *Client) Gateway() *gateway.Gateway {
	return c.gw
}

func (c *Client) Me(ctx context.Context) gateway.Result[session.User] {
	return gateway.Call[session.User](ctx, c.gw, "/auth/me", gateway.Options{})
}

// Citizen calls.

func (c *Client) Complaints(ctx context.Context) gateway.Result[[]lifecycle.Grievance] {
	return normalizeGrievances(gateway.Call[[]lifecycle.Grievance](ctx, c.gw, "/complaints", gateway.Options{RequiredRole: rbac.RoleUser}))
}

func (c *Client) ActiveComplaints(ctx context.Context) gateway.Result[[]lifecycle.Grievance] {
	return normalizeGrievances(gateway.Call[[]lifecycle.Grievance](ctx, c.gw, "/complaints/active", gateway.Options{RequiredRole: rbac.RoleUser}))
}

func (c *Client) ArchivedComplaints(ctx context.Context) gateway.Result[[]lifecycle.Grievance] {
	return normalizeGrievances(gateway.Call[[]lifecycle.Grievance](ctx, c.gw, "/complaints/archived", gateway.Options{RequiredRole: rbac.RoleUser}))
}

func (c *Client) Submit(ctx context.Context, in SubmitInput) gateway.Result[lifecycle.Grievance] {
	return gateway.Call[lifecycle.Grievance](ctx, c.gw, "/complaints", gateway.Options{
		Method:       http.MethodPost,
		Body:         in,
		RequiredRole: rbac.RoleUser,
	})
}

func (c *Client) Analyze(ctx context.Context, description string) gateway.Result[Analysis] {
	return gateway.Call[Analysis](ctx, c.gw, "/complaints/analyze", gateway.Options{
		Method:       http.MethodPost,
		Body:         map[string]string{"description": description},
		RequiredRole: rbac.RoleUser,
	})
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, language string) gateway.Result[map[string]string] {
	return gateway.Call[map[string]string](ctx, c.gw, "/complaints/transcribe", gateway.Options{
		Method:       http.MethodPost,
		Body:         map[string]any{"audio": audio, "language": language},
		RequiredRole: rbac.RoleUser,
	})
}

func (c *Client) Complaint(ctx context.Context, id string) gateway.Result[lifecycle.Grievance] {
	result := gateway.Call[lifecycle.Grievance](ctx, c.gw, "/complaints/"+url.PathEscape(id), gateway.Options{})
	if result.Success {
		result.Data.Status = normalize(result.Data.Status)
	}
	return result
}

func (c *Client) Status(ctx context.Context, id string) gateway.Result[StatusView] {
	result := gateway.Call[StatusView](ctx, c.gw, "/complaints/"+url.PathEscape(id)+"/status", gateway.Options{})
	if result.Success {
		result.Data.Status = normalize(result.Data.Status)
	}
	return result
}

func (c *Client) Timeline(ctx context.Context, id string) gateway.Result[[]lifecycle.TimelineEvent] {
	result := gateway.Call[[]lifecycle.TimelineEvent](ctx, c.gw, "/complaints/"+url.PathEscape(id)+"/timeline", gateway.Options{})
	if result.Success {
		result.Data = NormalizeTimeline(result.Data)
	}
	return result
}

// ConfirmResolved moves a resolved grievance to VERIFIED, with optional
// feedback. A zero rating sends no feedback.
func (c *Client) ConfirmResolved(ctx context.Context, id string, rating int, comment string) gateway.Result[TransitionResult] {
	body := map[string]any{}
	if rating > 0 {
		body["rating"] = rating
		body["comment"] = comment
	}
	return c.transition(ctx, "/complaints/"+url.PathEscape(id)+"/resolve", http.MethodPost, body, rbac.RoleUser)
}

func (c *Client) Withdraw(ctx context.Context, id, reason string) gateway.Result[TransitionResult] {
	return c.transition(ctx, "/complaints/"+url.PathEscape(id)+"/withdraw", http.MethodPost, map[string]string{"reason": reason}, rbac.RoleUser)
}

type UploadInput struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

func (c *Client) UploadAttachment(ctx context.Context, id string, in UploadInput) gateway.Result[Attachment] {
	return gateway.Call[Attachment](ctx, c.gw, "/complaints/"+url.PathEscape(id)+"/attachments", gateway.Options{
		Method: http.MethodPost,
		Body:   in,
	})
}

// Officer calls.

func (c *Client) AssignedComplaints(ctx context.Context) gateway.Result[[]lifecycle.Grievance] {
	return normalizeGrievances(gateway.Call[[]lifecycle.Grievance](ctx, c.gw, "/officer/complaints", gateway.Options{RequiredRole: rbac.RoleOfficer}))
}

func (c *Client) PostFieldEvent(ctx context.Context, id string, status lifecycle.Status, remarks string) gateway.Result[TransitionResult] {
	return c.transition(ctx, "/officer/complaints/"+url.PathEscape(id)+"/timeline-event", http.MethodPost,
		map[string]string{"status": string(status), "remarks": remarks}, rbac.RoleOfficer)
}

// Admin calls.

// AdminComplaints fetches one page of the admin list. Zero limit takes the
// server's page size; a page shorter than the limit is the last one.
func (c *Client) AdminComplaints(ctx context.Context, filter string, limit, offset int) gateway.Result[[]lifecycle.Grievance] {
	query := url.Values{}
	if filter != "" {
		query.Set("filter", filter)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		query.Set("offset", strconv.Itoa(offset))
	}
	return normalizeGrievances(gateway.Call[[]lifecycle.Grievance](ctx, c.gw, "/admin/complaints", gateway.Options{Query: query, RequiredRole: rbac.RoleAdmin}))
}

func (c *Client) Assign(ctx context.Context, id, officerID string, priority lifecycle.Priority) gateway.Result[AssignmentResult] {
	return gateway.Call[AssignmentResult](ctx, c.gw, "/admin/complaints/"+url.PathEscape(id)+"/assign", gateway.Options{
		Method:       http.MethodPost,
		Body:         map[string]string{"officerId": officerID, "priority": string(priority)},
		RequiredRole: rbac.RoleAdmin,
	})
}

func (c *Client) Reassign(ctx context.Context, id, fromOfficerID, toOfficerID, reason string) gateway.Result[AssignmentResult] {
	return gateway.Call[AssignmentResult](ctx, c.gw, "/admin/complaints/"+url.PathEscape(id)+"/reassign", gateway.Options{
		Method: http.MethodPut,
		Body: map[string]string{
			"fromOfficerId": fromOfficerID,
			"toOfficerId":   toOfficerID,
			"reason":        reason,
		},
		RequiredRole: rbac.RoleAdmin,
	})
}

func (c *Client) Reject(ctx context.Context, id, reason string) gateway.Result[TransitionResult] {
	return c.transition(ctx, "/admin/complaints/"+url.PathEscape(id)+"/reject", http.MethodPost, map[string]string{"reason": reason}, rbac.RoleAdmin)
}

func (c *Client) AssignmentHistory(ctx context.Context, id string) gateway.Result[[]audit.Record] {
	return gateway.Call[[]audit.Record](ctx, c.gw, "/admin/complaints/"+url.PathEscape(id)+"/assignments", gateway.Options{RequiredRole: rbac.RoleAdmin})
}

func (c *Client) AuditAssignments(ctx context.Context, filter audit.Filter) gateway.Result[[]audit.Record] {
	query := url.Values{}
	if filter.GrievanceID != "" {
		query.Set("grievanceId", filter.GrievanceID)
	}
	if filter.ActorID != "" {
		query.Set("actorId", filter.ActorID)
	}
	if filter.Kind != "" {
		query.Set("kind", string(filter.Kind))
	}
	return gateway.Call[[]audit.Record](ctx, c.gw, "/admin/audit/assignments", gateway.Options{Query: query, RequiredRole: rbac.RoleAdmin})
}

func (c *Client) Officers(ctx context.Context) gateway.Result[[]lifecycle.Officer] {
	return gateway.Call[[]lifecycle.Officer](ctx, c.gw, "/admin/officers", gateway.Options{RequiredRole: rbac.RoleAdmin})
}

func (c *Client) CreateOfficer(ctx context.Context, in OfficerInput) gateway.Result[lifecycle.Officer] {
	return gateway.Call[lifecycle.Officer](ctx, c.gw, "/admin/officers", gateway.Options{
		Method:       http.MethodPost,
		Body:         in,
		RequiredRole: rbac.RoleAdmin,
	})
}

func (c *Client) UpdateOfficer(ctx context.Context, id string, patch OfficerPatch) gateway.Result[lifecycle.Officer] {
	return gateway.Call[lifecycle.Officer](ctx, c.gw, "/admin/officers/"+url.PathEscape(id), gateway.Options{
		Method:       http.MethodPut,
		Body:         patch,
		RequiredRole: rbac.RoleAdmin,
	})
}

// AuditLogs reads the admin action trail. action is a prefix such as
// "officer." and limit zero takes the server default.
func (c *Client) AuditLogs(ctx context.Context, action, actorID string, limit int) gateway.Result[[]AuditLogEntry] {
	query := url.Values{}
	if action != "" {
		query.Set("action", action)
	}
	if actorID != "" {
		query.Set("actorId", actorID)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return gateway.Call[[]AuditLogEntry](ctx, c.gw, "/admin/audit-logs", gateway.Options{Query: query, RequiredRole: rbac.RoleAdmin})
}

func (c *Client) Search(ctx context.Context, q string, limit int) gateway.Result[SearchResult] {
	query := url.Values{"q": {q}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	return gateway.Call[SearchResult](ctx, c.gw, "/admin/search", gateway.Options{Query: query, RequiredRole: rbac.RoleAdmin})
}

func (c *Client) Stats(ctx context.Context) gateway.Result[Stats] {
	return gateway.Call[Stats](ctx, c.gw, "/admin/stats", gateway.Options{RequiredRole: rbac.RoleAdmin})
}

func (c *Client) DepartmentAnalytics(ctx context.Context) gateway.Result[[]DepartmentStat] {
	return gateway.Call[[]DepartmentStat](ctx, c.gw, "/admin/analytics/departments", gateway.Options{RequiredRole: rbac.RoleAdmin})
}

func (c *Client) Trends(ctx context.Context, months int) gateway.Result[[]TrendPoint] {
	query := url.Values{}
	if months > 0 {
		query.Set("months", strconv.Itoa(months))
	}
	return gateway.Call[[]TrendPoint](ctx, c.gw, "/admin/analytics/trends", gateway.Options{Query: query, RequiredRole: rbac.RoleAdmin})
}

func (c *Client) OfficerPerformance(ctx context.Context) gateway.Result[[]OfficerPerformance] {
	return gateway.Call[[]OfficerPerformance](ctx, c.gw, "/admin/analytics/officer-performance", gateway.Options{RequiredRole: rbac.RoleAdmin})
}

func (c *Client) transition(ctx context.Context, endpoint, method string, body any, role rbac.Role) gateway.Result[TransitionResult] {
	result := gateway.Call[TransitionResult](ctx, c.gw, endpoint, gateway.Options{Method: method, Body: body, RequiredRole: role})
	if result.Success {
		result.Data.Timeline = NormalizeTimeline(result.Data.Timeline)
		result.Data.Complaint.Status = normalize(result.Data.Complaint.Status)
	}
	return result
}

// NormalizeTimeline maps any legacy status labels onto canonical statuses.
// Events with unrecognised labels are kept as sent.
func NormalizeTimeline(events []lifecycle.TimelineEvent) []lifecycle.TimelineEvent {
	for i := range events {
		events[i].Status = normalize(events[i].Status)
	}
	return events
}

func normalize(status lifecycle.Status) lifecycle.Status {
	if canonical, ok := lifecycle.NormalizeStatus(string(status)); ok {
		return canonical
	}
	return status
}

func normalizeGrievances(result gateway.Result[[]lifecycle.Grievance]) gateway.Result[[]lifecycle.Grievance] {
	for i := range result.Data {
		result.Data[i].Status = normalize(result.Data[i].Status)
	}
	return result
}
