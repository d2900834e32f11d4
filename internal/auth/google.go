package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

var (
	ErrInvalidGoogleToken   = errors.New("invalid Google ID token")
	ErrServiceAccountDenied = errors.New("service account not allowed")
)

// GoogleOIDCVerifier validates the Google-signed ID tokens that Pub/Sub
// push subscriptions and Eventarc attach to their requests.
type GoogleOIDCVerifier struct {
	audiences       []string
	serviceAccounts map[string]struct{}
	validate        func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// NewGoogleOIDCVerifier creates a verifier. When serviceAccounts is empty
// any verified email is accepted.
func NewGoogleOIDCVerifier(audiences, serviceAccounts []string) *GoogleOIDCVerifier {
	allowed := make(map[string]struct{}, len(serviceAccounts))
	for _, sa := range serviceAccounts {
		allowed[sa] = struct{}{}
	}
	return &GoogleOIDCVerifier{
		audiences:       audiences,
		serviceAccounts: allowed,
		validate:        idtoken.Validate,
	}
}

// Verify implements Verifier
func (v *GoogleOIDCVerifier) Verify(ctx context.Context, idToken string) (*Caller, error) {
	// Try to validate with each audience
	var payload *idtoken.Payload
	var err error

	for _, audience := range v.audiences {
		payload, err = v.validate(ctx, idToken, audience)
		if err == nil {
			break
		}
	}

	if payload == nil {
		return nil, ErrInvalidGoogleToken
	}

	caller := &Caller{Subject: payload.Subject, Method: MethodGoogleOIDC}

	if email, ok := payload.Claims["email"].(string); ok {
		caller.Email = email
	}
	verified, _ := payload.Claims["email_verified"].(bool)

	if len(v.serviceAccounts) > 0 {
		if _, ok := v.serviceAccounts[caller.Email]; !ok || !verified {
			return nil, ErrServiceAccountDenied
		}
	}

	return caller, nil
}

// IsConfigured returns true if at least one audience is set
func (v *GoogleOIDCVerifier) IsConfigured() bool {
	return len(v.audiences) > 0 && v.audiences[0] != ""
}
