package auth

import (
	"context"
	"errors"
)

// Authentication methods recorded on a Caller
const (
	MethodSharedSecret = "shared-secret"
	MethodGoogleOIDC   = "google-oidc"
)

var ErrNoVerifier = errors.New("no token verifier configured")

// Caller identifies who invoked a trigger endpoint
type Caller struct {
	Subject string
	Email   string
	Method  string
}

// Verifier checks a bearer token
type Verifier interface {
	Verify(ctx context.Context, token string) (*Caller, error)
}

// Authenticator tries each configured verifier in order and accepts the
// first success.
type Authenticator struct {
	verifiers []Verifier
}

func NewAuthenticator(verifiers ...Verifier) *Authenticator {
	return &Authenticator{verifiers: verifiers}
}

// Enabled reports whether any verifier is configured
func (a *Authenticator) Enabled() bool {
	return len(a.verifiers) > 0
}

// Authenticate returns the caller for token. An expired token is reported
// as ErrExpiredToken when no verifier accepts it.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Caller, error) {
	if len(a.verifiers) == 0 {
		return nil, ErrNoVerifier
	}
	err := ErrInvalidToken
	for _, v := range a.verifiers {
		caller, verr := v.Verify(ctx, token)
		if verr == nil {
			return caller, nil
		}
		if errors.Is(verr, ErrExpiredToken) {
			err = verr
		}
	}
	return nil, err
}
