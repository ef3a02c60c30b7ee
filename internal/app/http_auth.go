package app

import (
	"log"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rohzyy/govai/internal/auth"
	"github.com/rohzyy/govai/internal/authpw"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
)

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type authPayload struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	CSRFToken    string   `json:"csrfToken"`
	ExpiresIn    int      `json:"expiresIn"`
	User         authUser `json:"user"`
}

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	ctx := r.Context()
	route := strings.Join(parts, "/")

	if r.Method == http.MethodGet && route == "me" {
		session, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sessionUser(session))
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch route {
	case "register":
		var body authpw.SignUpRequest
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		issued, err := s.service.Register(ctx, body)
		s.writeIssued(w, http.StatusCreated, issued, err)

	case "login":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		issued, err := s.service.Login(ctx, body.Email, body.Password)
		s.writeIssued(w, http.StatusOK, issued, err)

	case "officer/login":
		var body struct {
			EmployeeID string `json:"employeeId"`
			Password   string `json:"password"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		issued, err := s.service.OfficerLogin(ctx, body.EmployeeID, body.Password)
		s.writeIssued(w, http.StatusOK, issued, err)

	case "google":
		var body struct {
			Credential string `json:"credential"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		issued, err := s.service.GoogleLogin(ctx, body.Credential)
		s.writeIssued(w, http.StatusOK, issued, err)

	case "refresh":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(w, r, &body, maxJSONBody); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		token := refreshTokenFrom(r, body.RefreshToken)
		issued, err := s.service.Refresh(ctx, token)
		if err != nil {
			s.clearAuthCookies(w)
		}
		s.writeIssued(w, http.StatusOK, issued, err)

	case "logout":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = decodeBody(w, r, &body, maxJSONBody)
		session := Session{}
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie(accessCookie); err == nil {
				token = c.Value
			}
		}
		if token != "" {
			if parsed, err := s.service.SessionFromToken(ctx, token); err == nil {
				session = parsed
			}
		}
		s.service.Logout(ctx, session, refreshTokenFrom(r, body.RefreshToken))
		s.clearAuthCookies(w)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) writeIssued(w http.ResponseWriter, status int, issued IssuedSession, err error) {
	if err != nil {
		writeMappedError(w, err)
		return
	}
	s.setAuthCookies(w, issued)
	writeJSON(w, status, authPayload{
		AccessToken:  issued.Token,
		RefreshToken: issued.RefreshToken,
		CSRFToken:    issued.CSRFToken,
		ExpiresIn:    int(s.service.cfg.AccessTTL.Seconds()),
		User:         sessionUser(issued.Session),
	})
}

func sessionUser(session Session) authUser {
	return authUser{ID: session.UserID, Email: session.Email, Name: session.Name, Role: string(session.Role)}
}

func refreshTokenFrom(r *http.Request, fromBody string) string {
	if token := strings.TrimSpace(fromBody); token != "" {
		return token
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func (s *HTTPServer) setAuthCookies(w http.ResponseWriter, issued IssuedSession) {
	cfg := s.service.cfg
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookie,
		Value:    issued.Token,
		Path:     "/",
		MaxAge:   int(cfg.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    issued.RefreshToken,
		Path:     "/auth",
		MaxAge:   int(cfg.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CSRFCookie,
		Value:    issued.CSRFToken,
		Path:     "/",
		MaxAge:   int(cfg.RefreshTTL.Seconds()),
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) clearAuthCookies(w http.ResponseWriter) {
	secure := s.service.cfg.CookieSecure
	for _, c := range []struct{ name, path string }{
		{accessCookie, "/"},
		{refreshCookie, "/auth"},
		{auth.CSRFCookie, "/"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			HttpOnly: c.name != auth.CSRFCookie,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// ipLimiter is a token bucket per client IP for the auth endpoints. Idle
// buckets are pruned on access.
type ipLimiter struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	buckets   map[string]*ipBucket
	lastPrune time.Time
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const limiterIdleTTL = 5 * time.Minute

func newIPLimiter(perSecond, burst int) *ipLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = perSecond
	}
	return &ipLimiter{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		buckets:   make(map[string]*ipBucket),
	}
}

// allow always admits when the limiter is disabled.
func (l *ipLimiter) allow(ip string) bool {
	if l == nil {
		return true
	}
	if ip == "" {
		ip = "unknown"
	}
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastPrune) > time.Minute {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > limiterIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastPrune = now
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// parseTrustedProxies accepts bare IPs and CIDR prefixes. Unparseable
// entries are logged and skipped.
func parseTrustedProxies(entries []string) []netip.Prefix {
	var out []netip.Prefix
	for _, entry := range entries {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			log.Printf("config: ignoring trusted proxy %q: %v", entry, err)
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

func (s *HTTPServer) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range s.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientIP is the connection peer unless that peer is a trusted proxy, in
// which case X-Forwarded-For is walked right to left and the first hop not
// belonging to a trusted proxy wins.
func (s *HTTPServer) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil || !s.trusted(peer) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		addr, err := netip.ParseAddr(hop)
		if err != nil {
			// A garbled hop cannot be attributed; stop at the last good one.
			return host
		}
		if !s.trusted(addr) {
			return addr.Unmap().String()
		}
		host = addr.Unmap().String()
	}
	return host
}
