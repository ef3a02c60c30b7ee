// Package gateway wraps every client call to the API. It never returns an
// error or panics: each outcome is a Result.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rohzyy/govai/internal/obs"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/session"
)

const (
	DefaultTimeout = 8 * time.Second
	maxBodyBytes   = 4 << 20
)

type Result[T any] struct {
	Success     bool      `json:"success"`
	Data        T         `json:"data"`
	Error       ErrorKind `json:"error,omitempty"`
	SafeMessage string    `json:"safeMessage,omitempty"`
	Status      int       `json:"status,omitempty"`
	Healthy     bool      `json:"healthy"`
}

type Options struct {
	Method       string
	Body         any
	Query        url.Values
	RequiredRole rbac.Role
	// Public calls are allowed without a signed-in user.
	Public bool
}

type Gateway struct {
	baseURL string
	client  *http.Client
	session *session.Store
	limiter *rate.Limiter
	timeout time.Duration
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit throttles outbound calls. A non-positive rate disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(g *Gateway) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func New(baseURL string, store *session.Store, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		session: store,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Session() *session.Store {
	return g.session
}

func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// envelope.Success is a pointer so a body without the key is told apart
// from an explicit failure.
type envelope struct {
	Success     *bool           `json:"success"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error"`
	SafeMessage string          `json:"safeMessage"`
	Meta        *struct {
		Healthy bool `json:"healthy"`
	} `json:"meta"`
}

type rawResponse struct {
	status int
	body   []byte
	kind   ErrorKind
}

// Call performs one API call. Role and session checks run before any
// network I/O. A 401 on a non-auth endpoint triggers at most one refresh and
// one retry.
func Call[T any](ctx context.Context, g *Gateway, endpoint string, opts Options) (result Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("gateway: recovered panic on %s: %v", endpoint, r)
			result = failure[T](ErrBackend, "", 0)
		}
		obs.GatewayResults.WithLabelValues(string(result.Error)).Inc()
	}()

	snap := g.session.Snapshot()
	if !snap.Ready {
		return failure[T](ErrAuthNotReady, "", 0)
	}
	if !opts.Public && snap.User == nil {
		return failure[T](ErrUnauthorized, "", 0)
	}
	if opts.RequiredRole != "" && (snap.User == nil || snap.User.Role != opts.RequiredRole) {
		return failure[T](ErrForbidden, "", 0)
	}

	var payload []byte
	if opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return failure[T](ErrInvalidJSON, "", 0)
		}
		payload = encoded
	}

	resp := g.do(ctx, endpoint, opts, payload, snap)
	if resp.kind == "" && resp.status == http.StatusUnauthorized && !isAuthEndpoint(endpoint) {
		if err := g.refreshAfter(ctx, snap.AccessToken); err != nil {
			return failure[T](ErrUnauthorized, "", http.StatusUnauthorized)
		}
		snap = g.session.Snapshot()
		resp = g.do(ctx, endpoint, opts, payload, snap)
		if resp.kind == "" && resp.status == http.StatusUnauthorized {
			g.session.ClearSession(ctx)
			return failure[T](ErrUnauthorized, "", http.StatusUnauthorized)
		}
	}
	if resp.kind != "" {
		return failure[T](resp.kind, "", resp.status)
	}
	return decode[T](resp)
}

// refreshAfter refreshes unless another caller already replaced the token
// that was rejected.
func (g *Gateway) refreshAfter(ctx context.Context, rejected string) error {
	current := g.session.Snapshot().AccessToken
	if current != "" && current != rejected {
		obs.SessionRefreshes.WithLabelValues("reused").Inc()
		return nil
	}
	if err := g.session.Refresh(ctx); err != nil {
		obs.SessionRefreshes.WithLabelValues("failed").Inc()
		log.Printf("gateway: refresh failed: %v", err)
		return err
	}
	obs.SessionRefreshes.WithLabelValues("refreshed").Inc()
	return nil
}

func (g *Gateway) do(ctx context.Context, endpoint string, opts Options, payload []byte, snap session.Session) rawResponse {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return rawResponse{kind: ErrTimeout}
		}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	target := g.baseURL + endpoint
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return rawResponse{kind: ErrNetwork}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	attachCredentials(req, snap)

	resp, err := g.client.Do(req)
	if err != nil {
		return rawResponse{kind: classify(err)}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return rawResponse{status: resp.StatusCode, kind: classify(err)}
	}
	return rawResponse{status: resp.StatusCode, body: raw}
}

func attachCredentials(req *http.Request, snap session.Session) {
	if snap.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+snap.AccessToken)
		req.AddCookie(&http.Cookie{Name: "access_token", Value: snap.AccessToken})
	}
	if snap.RefreshToken != "" {
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: snap.RefreshToken})
	}
	if snap.CSRFToken != "" {
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: snap.CSRFToken})
		switch req.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			req.Header.Set("X-CSRF-Token", snap.CSRFToken)
		}
	}
}

func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrNetwork
}

func decode[T any](resp rawResponse) Result[T] {
	var env envelope
	if err := json.Unmarshal(resp.body, &env); err != nil || env.Success == nil {
		switch {
		case resp.status == http.StatusUnauthorized:
			return failure[T](ErrUnauthorized, "", resp.status)
		case resp.status == http.StatusForbidden:
			return failure[T](ErrForbidden, "", resp.status)
		case resp.status >= 200 && resp.status < 300:
			return failure[T](ErrInvalidJSON, "", resp.status)
		default:
			return failure[T](ErrBackend, "", resp.status)
		}
	}
	healthy := env.Meta == nil || env.Meta.Healthy

	var kind ErrorKind
	switch {
	case resp.status == http.StatusUnauthorized:
		kind = ErrUnauthorized
	case resp.status == http.StatusForbidden:
		kind = ErrForbidden
	case resp.status < 200 || resp.status >= 300 || !*env.Success:
		kind = knownKind(env.Error)
	}
	if kind != "" {
		out := failure[T](kind, env.SafeMessage, resp.status)
		out.Healthy = healthy
		return out
	}

	var data T
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return failure[T](ErrInvalidJSON, "", resp.status)
		}
	}
	return Result[T]{Success: true, Data: data, Status: resp.status, Healthy: healthy}
}

func failure[T any](kind ErrorKind, safeMessage string, status int) Result[T] {
	if strings.TrimSpace(safeMessage) == "" {
		safeMessage = SafeMessage(kind)
	}
	return Result[T]{Error: kind, SafeMessage: safeMessage, Status: status, Healthy: kind != ErrNetwork && kind != ErrTimeout}
}

// credentialEndpoints exchange or drop credentials themselves, so a 401 from
// them is final. Other /auth calls such as /auth/me refresh like any route.
var credentialEndpoints = map[string]bool{
	"/auth/login":         true,
	"/auth/register":      true,
	"/auth/google":        true,
	"/auth/refresh":       true,
	"/auth/logout":        true,
	"/auth/officer/login": true,
}

func isAuthEndpoint(endpoint string) bool {
	if i := strings.IndexAny(endpoint, "?#"); i >= 0 {
		endpoint = endpoint[:i]
	}
	if len(endpoint) > 1 {
		endpoint = strings.TrimRight(endpoint, "/")
	}
	return credentialEndpoints[endpoint]
}

// String is handy for CLI output.
func (r Result[T]) String() string {
	if r.Success {
		return "ok"
	}
	return fmt.Sprintf("%s: %s", r.Error, r.SafeMessage)
}
