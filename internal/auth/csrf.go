package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/rohzyy/govai/internal/util"
)

const (
	CSRFCookie = "csrf_token"
	CSRFHeader = "X-CSRF-Token"
)

var (
	ErrCSRFMissing  = errors.New("csrf token missing")
	ErrCSRFMismatch = errors.New("csrf token mismatch")
)

func NewCSRFToken() string {
	return util.NewID("")
}

// IsStateChanging reports whether a request method needs CSRF protection.
func IsStateChanging(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// VerifyCSRF implements the double-submit check: the header must echo the cookie.
func VerifyCSRF(cookieValue, headerValue string) error {
	cookieValue = strings.TrimSpace(cookieValue)
	headerValue = strings.TrimSpace(headerValue)
	if cookieValue == "" || headerValue == "" {
		return ErrCSRFMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(headerValue)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}
