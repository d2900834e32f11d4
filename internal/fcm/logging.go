package fcm

import (
	"context"

	"go.uber.org/zap"

	"github.com/classnotes/backend/internal/domain"
)

// LoggingMulticaster stands in for FCM when Firebase is not configured. It
// logs each task and reports every token as delivered.
type LoggingMulticaster struct {
	logger *zap.Logger
}

func NewLoggingMulticaster(logger *zap.Logger) *LoggingMulticaster {
	return &LoggingMulticaster{logger: logger.With(zap.String("component", "LoggingMulticaster"))}
}

func (m *LoggingMulticaster) SendMulticast(ctx context.Context, task *domain.NotificationTask) (*domain.MulticastResult, error) {
	m.logger.Info("Dispatching notification (push disabled)",
		zap.Int("token_count", len(task.Tokens)),
		zap.String("title", task.Title),
		zap.String("body", task.Body),
		zap.Any("data", task.Data),
	)
	return &domain.MulticastResult{
		SuccessCount: len(task.Tokens),
		Responses:    make([]domain.SendResponse, len(task.Tokens)),
	}, nil
}
