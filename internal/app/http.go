package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/rohzyy/govai/internal/ai"
	"github.com/rohzyy/govai/internal/attachments"
	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/auth"
	"github.com/rohzyy/govai/internal/authpw"
	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/obs"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/search"
	"github.com/rohzyy/govai/internal/store"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 15 << 20
)

type HTTPServer struct {
	service        *Service
	corsOrigin     string
	limiter        *ipLimiter
	trustedProxies []netip.Prefix
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:        service,
		corsOrigin:     corsOrigin,
		limiter:        newIPLimiter(service.cfg.RateLimitPerSecond, service.cfg.RateLimitBurst),
		trustedProxies: parseTrustedProxies(service.cfg.TrustedProxies),
	}
}

// Handler serves /metrics in Prometheus text format and everything else
// through the JSON envelope.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", obs.Handler())
	mux.Handle("/", s.withMiddleware(http.HandlerFunc(s.handle)))
	return obs.Instrument(mux)
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		statusCode := http.StatusOK
		checks := map[string]any{"database": map[string]any{"status": "ok"}}
		if err := s.service.Ping(ctx); err != nil {
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		ready := statusCode == http.StatusOK
		writeEnvelope(w, statusCode, envelope{
			Success: ready,
			Data:    map[string]any{"ok": ready, "checks": checks},
			Meta:    meta{Healthy: ready},
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	if parts[0] == "auth" {
		if !s.limiter.allow(s.clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts. Please wait and try again.", nil)
			return
		}
		s.handleAuth(w, r, parts[1:])
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	r = r.WithContext(obs.WithUserID(r.Context(), session.UserID))

	switch parts[0] {
	case "complaints":
		s.handleComplaints(w, r, session, parts[1:])
	case "officer":
		s.handleOfficer(w, r, session, parts[1:])
	case "admin":
		s.handleAdmin(w, r, session, parts[1:])
	case "departments":
		if len(parts) != 1 || r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		items, err := s.service.Departments(r.Context())
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleComplaints(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			if !s.authorize(w, session, rbac.ActionViewOwn) {
				return
			}
			items, err := s.service.ListOwn(ctx, session, "")
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, items)
		case http.MethodPost:
			if !s.authorize(w, session, rbac.ActionSubmitGrievance) {
				return
			}
			var body SubmitInput
			if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			g, healthy, err := s.service.Submit(ctx, session, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeData(w, http.StatusCreated, g, healthy)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	if len(parts) == 1 {
		switch {
		case r.Method == http.MethodGet && (parts[0] == "active" || parts[0] == "archived"):
			if !s.authorize(w, session, rbac.ActionViewOwn) {
				return
			}
			items, err := s.service.ListOwn(ctx, session, parts[0])
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, items)
		case r.Method == http.MethodPost && parts[0] == "analyze":
			if !s.authorize(w, session, rbac.ActionSubmitGrievance) {
				return
			}
			var body struct {
				Description string `json:"description"`
			}
			if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			analysis, err := s.service.Analyze(ctx, body.Description)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeData(w, http.StatusOK, analysis, !analysis.Degraded)
		case r.Method == http.MethodPost && parts[0] == "transcribe":
			if !s.authorize(w, session, rbac.ActionSubmitGrievance) {
				return
			}
			var body struct {
				Audio    []byte `json:"audio"`
				Language string `json:"language"`
			}
			if err := decodeBody(w, r, &body, maxUploadBody); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			text, err := s.service.Transcribe(ctx, body.Audio, body.Language)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"text": text})
		case r.Method == http.MethodGet:
			g, _, err := s.service.Get(ctx, session, parts[0])
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, g)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	id, action := parts[0], parts[1]

	switch {
	case r.Method == http.MethodGet && action == "status":
		view, err := s.service.Status(ctx, session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case r.Method == http.MethodGet && action == "timeline":
		_, events, err := s.service.Get(ctx, session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		if events == nil {
			events = []lifecycle.TimelineEvent{}
		}
		writeJSON(w, http.StatusOK, events)

	case r.Method == http.MethodPost && action == "resolve":
		if !s.authorize(w, session, rbac.ActionConfirmResolved) {
			return
		}
		var body struct {
			Rating  int    `json:"rating"`
			Comment string `json:"comment"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.ConfirmResolved(ctx, session, id, body.Rating, body.Comment)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodPost && action == "withdraw":
		if !s.authorize(w, session, rbac.ActionWithdraw) {
			return
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Withdraw(ctx, session, id, body.Reason)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodPost && action == "attachments":
		var body UploadInput
		if err := decodeBody(w, r, &body, maxUploadBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		view, err := s.service.Upload(ctx, session, id, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, view)

	case r.Method == http.MethodGet && action == "attachments":
		items, err := s.service.ListAttachments(ctx, session, id)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	case r.Method == http.MethodGet && action == "report":
		result, err := s.service.Report(ctx, session, id, r.URL.Query().Get("format"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleOfficer(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 || parts[0] != "complaints" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	ctx := r.Context()

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		if !s.authorize(w, session, rbac.ActionViewAssigned) {
			return
		}
		items, err := s.service.AssignedComplaints(ctx, session)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	case len(parts) == 3 && parts[2] == "timeline-event" && r.Method == http.MethodPost:
		if !s.authorize(w, session, rbac.ActionPostFieldEvent) {
			return
		}
		var body struct {
			Status  string `json:"status"`
			Remarks string `json:"remarks"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.FieldEvent(ctx, session, parts[1], body.Status, body.Remarks)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if session.Role != rbac.RoleAdmin {
		s.forbid(w, r, session, "admin")
		return
	}
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	ctx := r.Context()
	query := r.URL.Query()

	switch parts[0] {
	case "complaints":
		s.handleAdminComplaints(w, r, session, parts[1:])

	case "audit":
		if len(parts) != 2 || parts[1] != "assignments" || r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		records, err := s.service.AuditAssignments(ctx, audit.Filter{
			GrievanceID: strings.TrimSpace(query.Get("grievanceId")),
			ActorID:     strings.TrimSpace(query.Get("actorId")),
			Kind:        audit.Kind(strings.ToUpper(strings.TrimSpace(query.Get("kind")))),
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)

	case "officers":
		s.handleAdminOfficers(w, r, session, parts[1:])

	case "audit-logs":
		if len(parts) != 1 || r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		limit, err := atoiDefault(query.Get("limit"))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be a number", nil)
			return
		}
		entries, err := s.service.AdminAuditLogs(ctx, query.Get("action"), query.Get("actorId"), limit)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)

	case "search":
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		resp := s.service.Search(ctx, search.Query{
			Text:       query.Get("q"),
			Department: query.Get("department"),
			Status:     query.Get("status"),
			Limit:      limit,
			Offset:     offset,
		})
		writeData(w, http.StatusOK, resp, resp.Healthy)

	case "stats":
		stats, err := s.service.Stats(ctx)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)

	case "analytics":
		if len(parts) != 2 {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		var (
			data any
			err  error
		)
		switch parts[1] {
		case "departments":
			data, err = s.service.DepartmentStats(ctx)
		case "trends":
			months := 0
			if raw := query.Get("months"); raw != "" {
				if months, err = strconv.Atoi(raw); err != nil {
					writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "months must be a number", nil)
					return
				}
			}
			data, err = s.service.Trends(ctx, months)
		case "officer-performance":
			data, err = s.service.OfficerPerformance(ctx)
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, data)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAdminOfficers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		items, err := s.service.Officers(ctx)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)

	case len(parts) == 0 && r.Method == http.MethodPost:
		var body CreateOfficerRequest
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		officer, err := s.service.CreateOfficer(ctx, session, body, s.clientIP(r))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, officer)

	case len(parts) == 1 && r.Method == http.MethodPut:
		var body UpdateOfficerRequest
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		officer, err := s.service.UpdateOfficer(ctx, session, parts[0], body, s.clientIP(r))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, officer)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAdminComplaints(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	ctx := r.Context()

	if len(parts) == 0 {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
			return
		}
		query := r.URL.Query()
		limit, errLimit := atoiDefault(query.Get("limit"))
		offset, errOffset := atoiDefault(query.Get("offset"))
		if errLimit != nil || errOffset != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit and offset must be numbers", nil)
			return
		}
		items, err := s.service.AdminComplaints(ctx, strings.TrimSpace(query.Get("filter")), limit, offset)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
		return
	}
	if len(parts) != 2 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	id, action := parts[0], parts[1]
	ip := s.clientIP(r)

	switch {
	case r.Method == http.MethodPost && action == "assign":
		var body struct {
			OfficerID string `json:"officerId"`
			Priority  string `json:"priority"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Assign(ctx, session, id, body.OfficerID, body.Priority, ip)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodPut && action == "reassign":
		var body struct {
			FromOfficerID string `json:"fromOfficerId"`
			ToOfficerID   string `json:"toOfficerId"`
			Reason        string `json:"reason"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Reassign(ctx, session, id, body.FromOfficerID, body.ToOfficerID, body.Reason, ip)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodPost && action == "reject":
		var body struct {
			Reason string `json:"reason"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Reject(ctx, session, id, body.Reason, ip)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case r.Method == http.MethodGet && action == "assignments":
		records, err := s.service.AuditAssignments(ctx, audit.Filter{GrievanceID: id})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

// authorize writes a 403 and returns false when role may not perform
// action.
func (s *HTTPServer) authorize(w http.ResponseWriter, session Session, action rbac.Action) bool {
	if s.service.Can(session.Role, action) {
		return true
	}
	writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have permission to do that", nil)
	return false
}

// forbid writes a 403 Forbidden response and logs the denial
func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, session Session, area string) {
	_ = obs.LogEvent(r.Context(), "access.denied", map[string]any{
		"area": area,
		"role": string(session.Role),
		"path": r.URL.Path,
	})
	writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have permission to do that", nil)
}

// requireSession accepts the bearer header first and the access_token
// cookie second. Cookie-authenticated writes must echo the CSRF cookie.
func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	fromCookie := false
	if token == "" {
		if c, err := r.Cookie(accessCookie); err == nil {
			token = strings.TrimSpace(c.Value)
			fromCookie = token != ""
		}
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}

	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeMappedError(w, err)
		return Session{}, false
	}
	session.FromCookie = fromCookie

	if fromCookie && auth.IsStateChanging(r.Method) {
		cookieValue := ""
		if c, err := r.Cookie(auth.CSRFCookie); err == nil {
			cookieValue = c.Value
		}
		if err := auth.VerifyCSRF(cookieValue, r.Header.Get(auth.CSRFHeader)); err != nil {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "CSRF token missing or invalid", nil)
			return Session{}, false
		}
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = randomRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		setCORSHeaders(w.Header(), s.corsOrigin)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r.WithContext(obs.WithRequestID(r.Context(), requestID)))

		obs.LogRequest(map[string]any{
			"level":      "info",
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     recorder.status,
			"durationMs": time.Since(start).Milliseconds(),
			"remote_ip":  s.clientIP(r),
		})
	})
}

// atoiDefault reads an optional numeric query parameter; empty is zero.
func atoiDefault(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-CSRF-Token")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

type meta struct {
	Healthy bool `json:"healthy"`
}

type envelope struct {
	Success     bool   `json:"success"`
	Data        any    `json:"data"`
	Error       string `json:"error,omitempty"`
	SafeMessage string `json:"safeMessage,omitempty"`
	Details     any    `json:"details,omitempty"`
	Meta        meta   `json:"meta"`
}

func writeEnvelope(w http.ResponseWriter, status int, payload envelope) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	writeData(w, status, data, true)
}

// writeData is writeJSON with an explicit health flag for answers that a
// degraded dependency produced.
func writeData(w http.ResponseWriter, status int, data any, healthy bool) {
	writeEnvelope(w, status, envelope{Success: true, Data: data, Meta: meta{Healthy: healthy}})
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeEnvelope(w, status, envelope{
		Error:       code,
		SafeMessage: message,
		Details:     details,
		Meta:        meta{Healthy: code != "AI_UNAVAILABLE" && status != http.StatusServiceUnavailable},
	})
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any, limit int64) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body too large")
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var lifecycleErr *lifecycle.Error
	if errors.As(err, &lifecycleErr) {
		switch lifecycleErr.Kind {
		case lifecycle.KindValidation:
			return http.StatusUnprocessableEntity, "VALIDATION_ERROR", lifecycleErr.Message, nil
		case lifecycle.KindForbidden:
			return http.StatusForbidden, "FORBIDDEN", lifecycleErr.Message, nil
		case lifecycle.KindConflict:
			return http.StatusConflict, "CONFLICT", lifecycleErr.Message, nil
		}
	}
	var inputErr *authpw.InputError
	switch {
	case errors.Is(err, lifecycle.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, lifecycle.ErrConflict):
		return http.StatusConflict, "CONFLICT", "The grievance changed while you were working on it. Please retry.", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid credentials", nil
	case errors.Is(err, authpw.ErrEmailTaken):
		return http.StatusConflict, "CONFLICT", "Email already registered", nil
	case errors.Is(err, authpw.ErrOfficerInactive):
		return http.StatusForbidden, "FORBIDDEN", "Officer account is not active", nil
	case errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", inputErr.Message, nil
	case errors.Is(err, ai.ErrUnavailable):
		return http.StatusServiceUnavailable, "AI_UNAVAILABLE", "Automatic analysis is unavailable right now.", nil
	case errors.Is(err, attachments.ErrTooLarge), errors.Is(err, attachments.ErrUnsupportedType), errors.Is(err, attachments.ErrEmpty):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "CONFLICT", "Already exists", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
