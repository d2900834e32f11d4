package domain

import "context"

// User is the slice of a user record the notifier reads: its id and the
// single registered FCM token (empty when none).
type User struct {
	ID       string `json:"id" firestore:"-" bson:"_id"`
	FCMToken string `json:"fcmToken,omitempty" firestore:"fcmToken,omitempty" bson:"fcmToken,omitempty"`
}

// HasToken reports whether the user has a push token registered
func (u *User) HasToken() bool {
	return u.FCMToken != ""
}

type UserRepository interface {
	// GetUsersByIDs fetches users whose id is in ids. Unknown ids are
	// skipped. len(ids) must not exceed the store's membership limit.
	GetUsersByIDs(ctx context.Context, ids []string) ([]*User, error)
	// FindUsersByTokens fetches users whose fcmToken is in tokens
	FindUsersByTokens(ctx context.Context, tokens []string) ([]*User, error)
	// ClearFCMTokens deletes the fcmToken field of every listed user in one
	// atomic batch. Clearing an already cleared token is a no-op.
	ClearFCMTokens(ctx context.Context, userIDs []string) error
}

// RecordStore is everything the fan-out needs from the record store
type RecordStore interface {
	GroupRepository
	RequestRepository
	UserRepository
	Ping(ctx context.Context) error
}
