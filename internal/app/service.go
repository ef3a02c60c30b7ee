package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rohzyy/govai/internal/ai"
	"github.com/rohzyy/govai/internal/attachments"
	"github.com/rohzyy/govai/internal/audit"
	"github.com/rohzyy/govai/internal/auth"
	"github.com/rohzyy/govai/internal/authpw"
	"github.com/rohzyy/govai/internal/config"
	"github.com/rohzyy/govai/internal/email"
	"github.com/rohzyy/govai/internal/export"
	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/search"
	"github.com/rohzyy/govai/internal/session"
	"github.com/rohzyy/govai/internal/store"
	"github.com/rohzyy/govai/internal/util"
)

// Session is the authenticated caller of one request.
type Session struct {
	Token     string
	UserID    string
	Name      string
	Email     string
	Role      rbac.Role
	OfficerID string
	JTI       string
	ExpiresAt time.Time
	// FromCookie is set when the access token came from the cookie rather
	// than the Authorization header.
	FromCookie bool
}

func (s Session) actor() lifecycle.Actor {
	return lifecycle.Actor{ID: s.UserID, Role: s.Role, OfficerID: s.OfficerID}
}

// IssuedSession is a freshly minted credential set.
type IssuedSession struct {
	Session
	RefreshToken string
	CSRFToken    string
}

// TokenStore keeps refresh sessions and the access token denylist. Both
// session.RedisStore and store.PostgresStore implement it.
type TokenStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type dataStore interface {
	lifecycle.Store
	Ping(context.Context) error
	CreateUser(context.Context, store.User) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	GetUserByEmail(context.Context, string) (store.User, error)
	EnsureGoogleUser(context.Context, string, string, string) (store.User, error)
	GetOfficerByUserID(context.Context, string) (lifecycle.Officer, error)
	GetOfficerLogin(context.Context, string) (lifecycle.Officer, store.User, error)
	ListOfficers(context.Context) ([]lifecycle.Officer, error)
	CreateOfficer(context.Context, store.NewOfficer) (lifecycle.Officer, error)
	UpdateOfficer(context.Context, string, store.OfficerChanges) (lifecycle.Officer, error)
	ListDepartments(context.Context) ([]store.Department, error)
	CreateGrievance(context.Context, lifecycle.Grievance, lifecycle.TimelineEvent) error
	ListGrievances(context.Context, store.GrievanceQuery) ([]lifecycle.Grievance, error)
	CountRecentSubmissions(context.Context, string, time.Time) (int, error)
	HasDuplicateDescription(context.Context, string) (bool, error)
	SaveFeedback(context.Context, store.Feedback) error
	InsertAttachment(context.Context, store.Attachment) (store.Attachment, error)
	ListAttachments(context.Context, string) ([]store.Attachment, error)
	InsertAdminAudit(context.Context, store.AdminAuditEntry) error
	ListAdminAudit(context.Context, store.AdminAuditQuery) ([]store.AdminAuditEntry, error)
	MarkSLANotified(context.Context, string) (bool, error)
	ReleaseSLANotice(context.Context, string) error
	AnalyticsRows(context.Context) ([]store.AnalyticsRow, error)
}

type searchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexGrievance(rec search.GrievanceRecord)
}

type blobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

type notifier interface {
	IsConfigured() bool
	SendAssignmentNotice(to string, n email.Notice) error
	SendReassignmentNotice(to string, n email.Notice) error
	SendSLABreachNotice(to string, n email.Notice) error
}

type reportExporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Deps are the optional collaborators. Nil fields disable the feature that
// needs them.
type Deps struct {
	Tokens      TokenStore
	Ledger      audit.Log
	Search      *search.Service
	Attachments *attachments.Store
	Mailer      *email.Service
	Analyzer    ai.Analyzer
	Transcriber ai.Transcriber
	Google      auth.GoogleVerifier
}

type Service struct {
	cfg         config.Config
	store       dataStore
	tokens      TokenStore
	ledger      audit.Log
	engine      *lifecycle.Engine
	passwords   *authpw.Service
	google      auth.GoogleVerifier
	analyzer    ai.Analyzer
	transcriber ai.Transcriber
	search      searchIndex
	blobs       blobStore
	mailer      notifier
	reports     reportExporter
	now         func() time.Time
	// background runs notification work off the request path.
	background func(func())
}

// New wires the service over Postgres. Refresh sessions go to deps.Tokens
// when set and to Postgres otherwise.
func New(cfg config.Config, data *store.PostgresStore, deps Deps) *Service {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = data
	}
	ledger := deps.Ledger
	if ledger == nil {
		ledger = audit.NewPostgresLog(data.DB())
	}
	s := newService(cfg, data, tokens, ledger)
	if deps.Search != nil {
		s.search = deps.Search
	}
	if deps.Attachments != nil {
		s.blobs = deps.Attachments
	}
	if deps.Mailer != nil {
		s.mailer = deps.Mailer
	}
	if deps.Google != nil {
		s.google = deps.Google
	}
	s.analyzer = deps.Analyzer
	s.transcriber = deps.Transcriber
	return s
}

func newService(cfg config.Config, data dataStore, tokens TokenStore, ledger audit.Log) *Service {
	s := &Service{
		cfg:        cfg,
		store:      data,
		tokens:     tokens,
		ledger:     ledger,
		passwords:  authpw.NewService(data),
		google:     auth.DisabledGoogleVerifier{},
		reports:    export.NewService(data, ledger),
		now:        func() time.Time { return time.Now().UTC() },
		background: func(f func()) { go f() },
	}
	s.engine = lifecycle.NewEngine(data,
		lifecycle.WithClock(func() time.Time { return s.now() }),
		lifecycle.WithHooks(lifecycle.Hooks{
			OnTransition: s.onTransition,
			OnAssignment: s.onAssignment,
		}),
	)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Register(ctx context.Context, req authpw.SignUpRequest) (IssuedSession, error) {
	user, err := s.passwords.SignUp(ctx, req)
	if err != nil {
		return IssuedSession{}, err
	}
	return s.issueSession(ctx, user, "")
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (IssuedSession, error) {
	user, err := s.passwords.SignIn(ctx, emailAddr, password)
	if err != nil {
		return IssuedSession{}, err
	}
	return s.issueSession(ctx, user, "")
}

func (s *Service) OfficerLogin(ctx context.Context, employeeID, password string) (IssuedSession, error) {
	officer, user, err := s.passwords.OfficerSignIn(ctx, employeeID, password)
	if err != nil {
		return IssuedSession{}, err
	}
	return s.issueSession(ctx, user, officer.ID)
}

func (s *Service) GoogleLogin(ctx context.Context, credential string) (IssuedSession, error) {
	if strings.TrimSpace(credential) == "" {
		return IssuedSession{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "credential is required", nil)
	}
	identity, err := s.google.Verify(ctx, credential)
	if errors.Is(err, auth.ErrGoogleUnavailable) {
		return IssuedSession{}, domainError(http.StatusServiceUnavailable, "SERVER_ERROR", "Google sign-in is not configured", nil)
	}
	if err != nil {
		return IssuedSession{}, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Google credential rejected", nil)
	}
	user, err := s.store.EnsureGoogleUser(ctx, identity.Subject, identity.Email, identity.Name)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("ensure google user: %w", err)
	}
	if user.Role == rbac.RoleOfficer {
		return IssuedSession{}, domainError(http.StatusForbidden, "FORBIDDEN", "Officers sign in with their employee id", nil)
	}
	return s.issueSession(ctx, user, "")
}

// Refresh rotates a refresh token. The presented token is revoked whether
// or not issuing the new pair succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (IssuedSession, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return IssuedSession{}, auth.ErrInvalidToken
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.tokens.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, session.ErrRefreshNotFound) || errors.Is(err, sql.ErrNoRows) {
		return IssuedSession{}, auth.ErrInvalidToken
	}
	if err != nil {
		return IssuedSession{}, fmt.Errorf("lookup refresh session: %w", err)
	}
	if err := s.tokens.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return IssuedSession{}, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return IssuedSession{}, auth.ErrInvalidToken
	}
	if err != nil {
		return IssuedSession{}, fmt.Errorf("get user: %w", err)
	}
	officerID := ""
	if user.Role == rbac.RoleOfficer {
		officer, err := s.store.GetOfficerByUserID(ctx, user.ID)
		if err != nil {
			return IssuedSession{}, fmt.Errorf("get officer: %w", err)
		}
		if officer.Status != lifecycle.OfficerActive {
			return IssuedSession{}, authpw.ErrOfficerInactive
		}
		officerID = officer.ID
	}
	return s.issueSession(ctx, user, officerID)
}

func (s *Service) issueSession(ctx context.Context, user store.User, officerID string) (IssuedSession, error) {
	now := s.now()
	claims := auth.NewClaims(user.ID, user.Name, user.Email, string(user.Role), now, s.cfg.AccessTTL)
	claims.OfficerID = officerID
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), claims)
	if err != nil {
		return IssuedSession{}, err
	}

	refresh := util.NewID("rft")
	if err := s.tokens.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, now.Add(s.cfg.RefreshTTL)); err != nil {
		return IssuedSession{}, err
	}

	return IssuedSession{
		Session: Session{
			Token:     token,
			UserID:    user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      user.Role,
			OfficerID: officerID,
			JTI:       claims.ID,
			ExpiresAt: claims.ExpiresAt.Time,
		},
		RefreshToken: refresh,
		CSRFToken:    auth.NewCSRFToken(),
	}, nil
}

// SessionFromToken trusts the signed claims for identity and role; the only
// lookup is the revocation check.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.tokens.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    claims.Subject,
		Name:      claims.Name,
		Email:     claims.Email,
		Role:      rbac.Normalize(claims.Role),
		OfficerID: claims.OfficerID,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout is best effort: revocation failures are logged, never returned.
func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) {
	if session.JTI != "" {
		if err := s.tokens.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt); err != nil {
			log.Printf("auth: revoke access token: %v", err)
		}
	}
	if refreshToken != "" {
		if err := s.tokens.RevokeRefreshSession(ctx, auth.HashToken(refreshToken)); err != nil {
			log.Printf("auth: revoke refresh token: %v", err)
		}
	}
}

func (s *Service) Can(role rbac.Role, action rbac.Action) bool {
	return rbac.Can(role, action)
}
