// Package authpw provides password authentication for citizens, admins and
// field officers.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/rohzyy/govai/internal/lifecycle"
	"github.com/rohzyy/govai/internal/rbac"
	"github.com/rohzyy/govai/internal/store"
)

const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrOfficerInactive    = errors.New("officer account is not active")
)

// InputError is a sign-up or sign-in request that failed validation.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) (store.User, error)
	GetOfficerLogin(ctx context.Context, employeeID string) (lifecycle.Officer, store.User, error)
}

type Service struct {
	store UserStore
	cost  int
}

func NewService(store UserStore) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost}
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// SignUp registers a citizen account.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return store.User{}, &InputError{Message: "name, email and password are required"}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return store.User{}, &InputError{Message: "email address is not valid"}
	}
	if len(req.Password) < MinPasswordLength {
		return store.User{}, &InputError{Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, store.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: string(hash),
		Role:         rbac.RoleUser,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return store.User{}, ErrEmailTaken
	}
	if err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SignIn authenticates a citizen or admin by email.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return store.User{}, &InputError{Message: "email and password are required"}
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	// Officers sign in with their employee id.
	if user.Role == rbac.RoleOfficer {
		return store.User{}, ErrInvalidCredentials
	}
	if err := checkPassword(user.PasswordHash, password); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// OfficerSignIn authenticates a field officer by employee id. Officers on
// leave or suspended cannot sign in.
func (s *Service) OfficerSignIn(ctx context.Context, employeeID, password string) (lifecycle.Officer, store.User, error) {
	if strings.TrimSpace(employeeID) == "" || password == "" {
		return lifecycle.Officer{}, store.User{}, &InputError{Message: "employee id and password are required"}
	}
	officer, user, err := s.store.GetOfficerLogin(ctx, employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return lifecycle.Officer{}, store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return lifecycle.Officer{}, store.User{}, fmt.Errorf("get officer: %w", err)
	}
	if err := checkPassword(user.PasswordHash, password); err != nil {
		return lifecycle.Officer{}, store.User{}, err
	}
	if officer.Status != lifecycle.OfficerActive {
		return lifecycle.Officer{}, store.User{}, ErrOfficerInactive
	}
	return officer, user, nil
}

// HashPassword hashes a password for officer accounts created by an admin
// or by seeding tools.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) error {
	// Accounts created through Google have no password.
	if hash == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
