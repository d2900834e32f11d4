package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

type stubVerifier struct {
	caller *Caller
	err    error
}

func (s stubVerifier) Verify(ctx context.Context, token string) (*Caller, error) {
	return s.caller, s.err
}

func TestAuthenticator_FirstSuccessWins(t *testing.T) {
	a := NewAuthenticator(
		stubVerifier{err: ErrInvalidToken},
		stubVerifier{caller: &Caller{Subject: "svc", Method: MethodGoogleOIDC}},
	)
	require.True(t, a.Enabled())

	caller, err := a.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "svc", caller.Subject)
}

func TestAuthenticator_PrefersExpiredError(t *testing.T) {
	a := NewAuthenticator(
		stubVerifier{err: ErrExpiredToken},
		stubVerifier{err: ErrInvalidGoogleToken},
	)

	_, err := a.Authenticate(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestAuthenticator_Disabled(t *testing.T) {
	a := NewAuthenticator()
	assert.False(t, a.Enabled())

	_, err := a.Authenticate(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrNoVerifier)
}

func TestAuthenticator_SharedSecret(t *testing.T) {
	m := NewTriggerTokenManager("secret")
	a := NewAuthenticator(m)

	token, err := m.GenerateToken("relay", time.Minute)
	require.NoError(t, err)

	caller, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, MethodSharedSecret, caller.Method)
}

func fakeValidate(payload *idtoken.Payload, audience string) func(context.Context, string, string) (*idtoken.Payload, error) {
	return func(ctx context.Context, token, aud string) (*idtoken.Payload, error) {
		if aud != audience {
			return nil, errors.New("audience mismatch")
		}
		return payload, nil
	}
}

func TestGoogleOIDCVerifier(t *testing.T) {
	payload := &idtoken.Payload{
		Subject: "1234",
		Claims: map[string]interface{}{
			"email":          "pubsub@classnotes.iam.gserviceaccount.com",
			"email_verified": true,
		},
	}

	v := NewGoogleOIDCVerifier([]string{"https://other", "https://notifier"}, nil)
	v.validate = fakeValidate(payload, "https://notifier")
	assert.True(t, v.IsConfigured())

	caller, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "1234", caller.Subject)
	assert.Equal(t, "pubsub@classnotes.iam.gserviceaccount.com", caller.Email)
	assert.Equal(t, MethodGoogleOIDC, caller.Method)
}

func TestGoogleOIDCVerifier_ServiceAccountAllowList(t *testing.T) {
	payload := &idtoken.Payload{
		Subject: "1234",
		Claims: map[string]interface{}{
			"email":          "intruder@example.com",
			"email_verified": true,
		},
	}

	v := NewGoogleOIDCVerifier([]string{"https://notifier"}, []string{"pubsub@classnotes.iam.gserviceaccount.com"})
	v.validate = fakeValidate(payload, "https://notifier")

	_, err := v.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrServiceAccountDenied)
}

func TestGoogleOIDCVerifier_NoAudienceMatches(t *testing.T) {
	v := NewGoogleOIDCVerifier([]string{"https://other"}, nil)
	v.validate = fakeValidate(&idtoken.Payload{}, "https://notifier")

	_, err := v.Verify(context.Background(), "tok")
	assert.ErrorIs(t, err, ErrInvalidGoogleToken)

	assert.False(t, NewGoogleOIDCVerifier(nil, nil).IsConfigured())
}
