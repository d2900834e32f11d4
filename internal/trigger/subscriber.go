package trigger

import (
	"context"
	"errors"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/classnotes/backend/internal/domain"
)

// Message attributes that override the collection and id in the document
// name
const (
	AttrCollection = "collection"
	AttrDocumentID = "documentId"
)

// Subscriber receives document events from a Pub/Sub subscription. Handler
// errors nack the message so Pub/Sub redelivers the whole event; malformed
// events are acked since redelivery cannot fix them.
type Subscriber struct {
	sub       *pubsub.Subscription
	processor *Processor
	logger    *zap.Logger
}

func NewSubscriber(client *pubsub.Client, subscriptionID string, processor *Processor, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		sub:       client.Subscription(subscriptionID),
		processor: processor,
		logger:    logger.With(zap.String("subscription", subscriptionID)),
	}
}

// Run blocks receiving messages until ctx is cancelled
func (s *Subscriber) Run(ctx context.Context) error {
	exists, err := s.sub.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("subscription does not exist: " + s.sub.ID())
	}

	s.logger.Info("Listening for trigger events")
	return s.sub.Receive(ctx, s.handleMessage)
}

func (s *Subscriber) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := s.logger.With(zap.String("message_id", msg.ID))

	event, err := ParseDocumentEvent(msg.Data)
	if err != nil {
		logger.Warn("Dropping malformed trigger event", zap.Error(err))
		msg.Ack()
		return
	}

	_, err = s.processor.Process(ctx, msg.Attributes[AttrCollection], msg.Attributes[AttrDocumentID], event)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRecord) {
			logger.Warn("Dropping invalid trigger event", zap.Error(err))
			msg.Ack()
			return
		}
		logger.Error("Trigger event failed, requesting redelivery", zap.Error(err))
		msg.Nack()
		return
	}
	msg.Ack()
}
