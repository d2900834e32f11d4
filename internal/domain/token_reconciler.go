package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/classnotes/backend/pkg/redact"
	"go.uber.org/zap"
)

// TokenReconciler clears tokens the push transport reported as permanently
// invalid from the users that own them.
type TokenReconciler struct {
	users     UserRepository
	batchSize int
	timeout   time.Duration
	logger    *zap.Logger
}

func NewTokenReconciler(users UserRepository, batchSize int, timeout time.Duration, logger *zap.Logger) *TokenReconciler {
	if batchSize <= 0 {
		batchSize = DefaultMaxQueryBatch
	}
	return &TokenReconciler{
		users:     users,
		batchSize: batchSize,
		timeout:   timeout,
		logger:    logger,
	}
}

// WithLogger returns a copy of r that logs to logger
func (r *TokenReconciler) WithLogger(logger *zap.Logger) *TokenReconciler {
	c := *r
	c.logger = logger
	return &c
}

// Reconcile returns the number of user records cleared. Only the first
// batchSize invalid tokens are handled per pass; the rest are left for a
// later event.
func (r *TokenReconciler) Reconcile(ctx context.Context, tokens []string, result *MulticastResult) (int, error) {
	if result == nil || result.FailureCount == 0 {
		return 0, nil
	}

	invalid := result.InvalidTokens(tokens)
	if len(invalid) == 0 {
		return 0, nil
	}
	if len(invalid) > r.batchSize {
		r.logger.Info("Invalid tokens exceed batch limit, deferring the rest",
			zap.Int("invalid", len(invalid)),
			zap.Int("limit", r.batchSize),
		)
		invalid = invalid[:r.batchSize]
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	owners, err := r.users.FindUsersByTokens(ctx, invalid)
	if err != nil {
		return 0, fmt.Errorf("failed to find token owners: %w", err)
	}
	if len(owners) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(owners))
	for _, u := range owners {
		ids = append(ids, u.ID)
		r.logger.Debug("Clearing invalid token",
			zap.String("user_id", u.ID),
			zap.String("token", redact.Token(u.FCMToken)),
		)
	}
	if err := r.users.ClearFCMTokens(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to clear tokens: %w", err)
	}

	r.logger.Info("Cleaned up invalid tokens",
		zap.Int("invalid", len(invalid)),
		zap.Int("cleared", len(ids)),
	)
	return len(ids), nil
}
