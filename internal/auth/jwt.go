package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// triggerIssuer is the iss claim of tokens issued for trigger callers
const triggerIssuer = "classnotes-notifier"

// Claims represents the JWT claims of a trigger token
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TriggerScope is the only scope trigger endpoints accept
const TriggerScope = "triggers:invoke"

// TriggerTokenManager issues and validates HS256 tokens for internal
// callers of the trigger endpoints (relays, manual replays).
type TriggerTokenManager struct {
	secret []byte
	issuer string
}

// NewTriggerTokenManager creates a new token manager
func NewTriggerTokenManager(secret string) *TriggerTokenManager {
	return &TriggerTokenManager{
		secret: []byte(secret),
		issuer: triggerIssuer,
	}
}

// GenerateToken creates a trigger token for subject valid for ttl
func (m *TriggerTokenManager) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Scope: TriggerScope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken validates a trigger token and returns its claims
func (m *TriggerTokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Scope != TriggerScope {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Verify implements Verifier
func (m *TriggerTokenManager) Verify(_ context.Context, tokenString string) (*Caller, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &Caller{Subject: claims.Subject, Method: MethodSharedSecret}, nil
}
