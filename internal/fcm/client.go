package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/classnotes/backend/internal/domain"
)

// maxMulticastTokens is the FCM limit for one SendEachForMulticast call
const maxMulticastTokens = 500

type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Client implements domain.Multicaster on Firebase Cloud Messaging
type Client struct {
	msgClient multicastSender
	logger    *zap.Logger
}

// NewApp initializes the Firebase app shared by messaging and Firestore
func NewApp(ctx context.Context, logger *zap.Logger, projectID, credentialsFile string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else {
		logger.Warn("No Firebase credentials file provided. Falling back to application default credentials.")
	}

	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}

func NewClient(ctx context.Context, app *firebase.App, logger *zap.Logger) (*Client, error) {
	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &Client{
		msgClient: msgClient,
		logger:    logger,
	}, nil
}

// SendMulticast sends the task to all of its tokens. Tasks above the FCM
// limit are split into several calls; the merged responses stay aligned
// with task.Tokens. An error from any call fails the whole send.
func (c *Client) SendMulticast(ctx context.Context, task *domain.NotificationTask) (*domain.MulticastResult, error) {
	result := &domain.MulticastResult{
		Responses: make([]domain.SendResponse, 0, len(task.Tokens)),
	}

	for start := 0; start < len(task.Tokens); start += maxMulticastTokens {
		end := start + maxMulticastTokens
		if end > len(task.Tokens) {
			end = len(task.Tokens)
		}
		tokens := task.Tokens[start:end]

		resp, err := c.msgClient.SendEachForMulticast(ctx, buildMessage(task, tokens))
		if err != nil {
			return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
		}

		missing := 0
		for i := range tokens {
			var sendErr *domain.SendError
			switch {
			case i >= len(resp.Responses) || resp.Responses[i] == nil:
				missing++
				sendErr = &domain.SendError{Code: domain.ErrorCodeUnknown, Message: "no response from FCM"}
			case resp.Responses[i].Success:
				result.SuccessCount++
			default:
				sendErr = &domain.SendError{
					Code:    ErrorCode(resp.Responses[i].Error),
					Message: errorMessage(resp.Responses[i].Error),
				}
			}
			if sendErr != nil {
				result.FailureCount++
			}
			result.Responses = append(result.Responses, domain.SendResponse{Error: sendErr})
		}
		if missing > 0 {
			c.logger.Warn("FCM returned fewer responses than tokens",
				zap.Int("tokens", len(tokens)),
				zap.Int("responses", len(resp.Responses)),
				zap.Int("missing", missing),
			)
		}
	}
	return result, nil
}

func buildMessage(task *domain.NotificationTask, tokens []string) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: task.Title,
			Body:  task.Body,
		},
		Data: task.Data,
	}
	if task.Platform != (domain.PlatformHint{}) {
		badge := task.Platform.Badge
		msg.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: task.Platform.Sound,
					Badge: &badge,
				},
			},
		}
	}
	return msg
}

// ErrorCode maps an FCM send error to a domain error code.
//
// Nothing maps to domain.ErrorCodeInvalidToken: the HTTP v1 API reports
// dead tokens as UNREGISTERED and folds malformed ones into
// INVALID_ARGUMENT, which also covers bad payloads and so must not clear
// tokens.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return domain.ErrorCodeUnknown
	case messaging.IsUnregistered(err):
		return domain.ErrorCodeTokenNotRegistered
	case messaging.IsInvalidArgument(err):
		return domain.ErrorCodeInvalidArgument
	case messaging.IsQuotaExceeded(err):
		return domain.ErrorCodeQuotaExceeded
	case messaging.IsUnavailable(err):
		return domain.ErrorCodeUnavailable
	case messaging.IsSenderIDMismatch(err):
		return domain.ErrorCodeSenderIDMismatch
	case messaging.IsThirdPartyAuthError(err):
		return domain.ErrorCodeThirdPartyAuthError
	case messaging.IsInternal(err):
		return domain.ErrorCodeInternal
	default:
		return domain.ErrorCodeUnknown
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
