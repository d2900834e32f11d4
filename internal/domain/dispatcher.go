package domain

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Dispatcher sends one multicast push per event. Transport failures are
// logged and swallowed so a failed push never fails the event.
type Dispatcher struct {
	transport Multicaster
	timeout   time.Duration
	logger    *zap.Logger
}

func NewDispatcher(transport Multicaster, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		timeout:   timeout,
		logger:    logger,
	}
}

// WithLogger returns a copy of d that logs to logger
func (d *Dispatcher) WithLogger(logger *zap.Logger) *Dispatcher {
	c := *d
	c.logger = logger
	return &c
}

// Dispatch returns nil when the transport call itself failed. Callers must
// not pass a task without tokens.
func (d *Dispatcher) Dispatch(ctx context.Context, task *NotificationTask) *MulticastResult {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	result, err := d.transport.SendMulticast(ctx, task)
	if err != nil {
		d.logger.Error("Error sending notifications",
			zap.Int("tokens", len(task.Tokens)),
			zap.Error(err),
		)
		return nil
	}
	if result == nil {
		d.logger.Error("Error sending notifications: transport returned no result",
			zap.Int("tokens", len(task.Tokens)),
		)
		return nil
	}

	d.logger.Info("Multicast sent",
		zap.Int("success", result.SuccessCount),
		zap.Int("failure", result.FailureCount),
	)
	return result
}
