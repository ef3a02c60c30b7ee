package auth

import (
	"context"
	"errors"
)

// GoogleIdentity is the verified subset of a Google sign-in credential.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier checks a Google ID token credential. Token verification
// against Google's keys happens outside this module.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (GoogleIdentity, error)
}

var ErrGoogleUnavailable = errors.New("google sign-in not configured")

// DisabledGoogleVerifier rejects every credential.
type DisabledGoogleVerifier struct{}

func (DisabledGoogleVerifier) Verify(context.Context, string) (GoogleIdentity, error) {
	return GoogleIdentity{}, ErrGoogleUnavailable
}
