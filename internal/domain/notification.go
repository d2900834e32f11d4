package domain

import "context"

// Data payload types understood by the mobile clients for deep linking
const (
	NotificationTypeNoteRequest = "note_request"
	NotificationTypeNotesShared = "notes_shared"
)

// Per-token error codes reported by the push transport
const (
	ErrorCodeInvalidToken        = "invalid-registration-token"
	ErrorCodeTokenNotRegistered  = "registration-token-not-registered"
	ErrorCodeInvalidArgument     = "invalid-argument"
	ErrorCodeQuotaExceeded       = "quota-exceeded"
	ErrorCodeUnavailable         = "unavailable"
	ErrorCodeSenderIDMismatch    = "sender-id-mismatch"
	ErrorCodeThirdPartyAuthError = "third-party-auth-error"
	ErrorCodeInternal            = "internal"
	ErrorCodeUnknown             = "unknown"
)

// IsInvalidTokenCode reports whether code marks a token as permanently
// undeliverable. Transient codes (quota, unavailable, ...) return false.
func IsInvalidTokenCode(code string) bool {
	return code == ErrorCodeInvalidToken || code == ErrorCodeTokenNotRegistered
}

// PlatformHint carries APNs delivery options
type PlatformHint struct {
	Sound string
	Badge int
}

// DefaultPlatformHint plays the default sound and bumps the badge by one
var DefaultPlatformHint = PlatformHint{Sound: "default", Badge: 1}

// NotificationTask is one multicast push, built per event and discarded
// after sending.
type NotificationTask struct {
	Tokens   []string
	Title    string
	Body     string
	Data     map[string]string
	Platform PlatformHint
}

// SendError is the failure reported for a single token
type SendError struct {
	Code    string
	Message string
}

// SendResponse is the outcome for one token; Error is nil on success
type SendResponse struct {
	Error *SendError
}

// MulticastResult holds per-token outcomes aligned by index with the
// task's Tokens.
type MulticastResult struct {
	SuccessCount int
	FailureCount int
	Responses    []SendResponse
}

// InvalidTokens returns the tokens whose response carries an invalid-token
// code. tokens must be the list the result was produced for.
func (r *MulticastResult) InvalidTokens(tokens []string) []string {
	if r == nil {
		return nil
	}
	var invalid []string
	for i, resp := range r.Responses {
		if i >= len(tokens) {
			break
		}
		if resp.Error != nil && IsInvalidTokenCode(resp.Error.Code) {
			invalid = append(invalid, tokens[i])
		}
	}
	return invalid
}

// Multicaster is the push transport: one call, many tokens
type Multicaster interface {
	SendMulticast(ctx context.Context, task *NotificationTask) (*MulticastResult, error)
}
