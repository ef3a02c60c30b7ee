package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rohzyy/govai/internal/session"
)

// AuthPayload is the data every login, register and refresh returns.
type AuthPayload struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	CSRFToken    string       `json:"csrfToken"`
	ExpiresIn    int          `json:"expiresIn"`
	User         session.User `json:"user"`
}

func (p AuthPayload) pair() session.TokenPair {
	return session.TokenPair{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, CSRFToken: p.CSRFToken}
}

// TokenRefresher posts straight to /auth/refresh. It deliberately skips Call
// so a refresh can never trigger another refresh.
type TokenRefresher struct {
	baseURL string
	client  *http.Client
}

func NewTokenRefresher(baseURL string, client *http.Client) *TokenRefresher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &TokenRefresher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (r *TokenRefresher) Refresh(ctx context.Context, refreshToken string) (session.TokenPair, *session.User, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return session.TokenPair{}, nil, fmt.Errorf("encode refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return session.TokenPair{}, nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refreshToken})

	resp, err := r.client.Do(req)
	if err != nil {
		return session.TokenPair{}, nil, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return session.TokenPair{}, nil, fmt.Errorf("read refresh response: %w", err)
	}

	result := decode[AuthPayload](rawResponse{status: resp.StatusCode, body: raw})
	if !result.Success {
		return session.TokenPair{}, nil, fmt.Errorf("refresh rejected: %s (status %d)", result.Error, resp.StatusCode)
	}
	var user *session.User
	if result.Data.User.ID != "" {
		u := result.Data.User
		user = &u
	}
	return result.Data.pair(), user, nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OfficerLoginRequest struct {
	EmployeeID string `json:"employeeId"`
	Password   string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

func Login(ctx context.Context, g *Gateway, req LoginRequest) Result[AuthPayload] {
	return authenticate(ctx, g, "/auth/login", req)
}

func OfficerLogin(ctx context.Context, g *Gateway, req OfficerLoginRequest) Result[AuthPayload] {
	return authenticate(ctx, g, "/auth/officer/login", req)
}

func GoogleLogin(ctx context.Context, g *Gateway, credential string) Result[AuthPayload] {
	return authenticate(ctx, g, "/auth/google", map[string]string{"credential": credential})
}

func Register(ctx context.Context, g *Gateway, req RegisterRequest) Result[AuthPayload] {
	return authenticate(ctx, g, "/auth/register", req)
}

func authenticate(ctx context.Context, g *Gateway, endpoint string, body any) Result[AuthPayload] {
	result := Call[AuthPayload](ctx, g, endpoint, Options{Method: http.MethodPost, Body: body, Public: true})
	if result.Success {
		user := result.Data.User
		g.session.SetSession(ctx, result.Data.pair(), &user)
	}
	return result
}

// Logout tells the server best-effort, then always drops the local session.
func Logout(ctx context.Context, g *Gateway) Result[struct{}] {
	snap := g.session.Snapshot()
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result := Call[struct{}](ctx, g, "/auth/logout", Options{
		Method: http.MethodPost,
		Body:   map[string]string{"refreshToken": snap.RefreshToken},
		Public: true,
	})
	g.session.ClearSession(ctx)
	return result
}
