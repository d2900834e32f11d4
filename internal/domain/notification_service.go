package domain

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultAppName is used as the notification title
const DefaultAppName = "ClassNotes"

// Outcome summarises one handled event
type Outcome struct {
	Mode          RecipientMode `json:"mode,omitempty"`
	Recipients    int           `json:"recipients"`
	Tokens        int           `json:"tokens"`
	Dispatched    bool          `json:"dispatched"`
	SuccessCount  int           `json:"success_count"`
	FailureCount  int           `json:"failure_count"`
	TokensCleared int           `json:"tokens_cleared"`
}

// NotificationService runs the fan-out for newly created requests and posts:
// resolve recipients, fetch tokens, dispatch, reconcile. Steps run strictly
// in sequence. Resolve and fetch errors are returned so the trigger source
// can retry the event; dispatch and reconcile failures are only logged.
type NotificationService struct {
	resolver     *RecipientResolver
	fetcher      *TokenFetcher
	dispatcher   *Dispatcher
	reconciler   *TokenReconciler
	appName      string
	eventTimeout time.Duration
	logger       *zap.Logger
}

func NewNotificationService(
	resolver *RecipientResolver,
	fetcher *TokenFetcher,
	dispatcher *Dispatcher,
	reconciler *TokenReconciler,
	appName string,
	eventTimeout time.Duration,
	logger *zap.Logger,
) *NotificationService {
	if appName == "" {
		appName = DefaultAppName
	}
	return &NotificationService{
		resolver:     resolver,
		fetcher:      fetcher,
		dispatcher:   dispatcher,
		reconciler:   reconciler,
		appName:      appName,
		eventTimeout: eventTimeout,
		logger:       logger,
	}
}

// OnRequestCreated notifies the target of a targeted request, or the rest
// of the group for a broadcast one.
func (s *NotificationService) OnRequestCreated(ctx context.Context, req *NoteRequest) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("event", fmt.Sprintf("onRequestCreated(%s)", req.ID)))

	ctx, cancel := s.withEventTimeout(ctx)
	defer cancel()

	res, err := s.resolver.ResolveRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	var body string
	if req.IsTargeted() {
		body = fmt.Sprintf("%s has requested %s notes from you", req.AuthorName, req.Subject)
	} else {
		body = fmt.Sprintf("%s is looking for %s notes", req.AuthorName, req.Subject)
	}
	data := map[string]string{
		"type":      NotificationTypeNoteRequest,
		"requestId": req.ID,
		"groupId":   req.GroupID,
	}
	return s.fanOut(ctx, logger, res, body, data)
}

// OnPostCreated notifies users with open requests for the post's subject in
// its group, falling back to the whole group when there are none.
func (s *NotificationService) OnPostCreated(ctx context.Context, post *Post) (*Outcome, error) {
	if err := post.Validate(); err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("event", fmt.Sprintf("onPostCreated(%s)", post.ID)))

	ctx, cancel := s.withEventTimeout(ctx)
	defer cancel()

	res, err := s.resolver.ResolvePost(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}

	var body string
	if res.Mode == RecipientModeMatched {
		body = fmt.Sprintf("%s shared %s notes you requested!", post.AuthorName, post.Subject)
	} else {
		body = fmt.Sprintf("%s shared %s notes", post.AuthorName, post.Subject)
	}
	data := map[string]string{
		"type":    NotificationTypeNotesShared,
		"postId":  post.ID,
		"groupId": post.GroupID,
	}
	return s.fanOut(ctx, logger, res, body, data)
}

func (s *NotificationService) fanOut(ctx context.Context, logger *zap.Logger, res *Resolution, body string, data map[string]string) (*Outcome, error) {
	outcome := &Outcome{Mode: res.Mode, Recipients: len(res.Recipients)}
	if res.IsEmpty() {
		logger.Info("No recipients", zap.String("mode", string(res.Mode)))
		return outcome, nil
	}

	tokens, err := s.fetcher.Fetch(ctx, res.Recipients)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tokens: %w", err)
	}
	outcome.Tokens = len(tokens)
	if len(tokens) == 0 {
		logger.Info("No FCM tokens to send to", zap.Int("recipients", len(res.Recipients)))
		return outcome, nil
	}

	task := &NotificationTask{
		Tokens:   tokens,
		Title:    s.appName,
		Body:     body,
		Data:     data,
		Platform: DefaultPlatformHint,
	}
	result := s.dispatcher.WithLogger(logger).Dispatch(ctx, task)
	if result == nil {
		return outcome, nil
	}
	outcome.Dispatched = true
	outcome.SuccessCount = result.SuccessCount
	outcome.FailureCount = result.FailureCount

	cleared, err := s.reconciler.WithLogger(logger).Reconcile(ctx, tokens, result)
	if err != nil {
		logger.Error("Failed to reconcile invalid tokens", zap.Error(err))
	}
	outcome.TokensCleared = cleared

	logger.Info("Event handled",
		zap.String("mode", string(res.Mode)),
		zap.Int("recipients", outcome.Recipients),
		zap.Int("tokens", outcome.Tokens),
		zap.Int("success", outcome.SuccessCount),
		zap.Int("failure", outcome.FailureCount),
		zap.Int("cleared", outcome.TokensCleared),
	)
	return outcome, nil
}

func (s *NotificationService) withEventTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.eventTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.eventTimeout)
}
