package trigger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/classnotes/backend/internal/domain"
)

// EventHandler is implemented by domain.NotificationService
type EventHandler interface {
	OnRequestCreated(ctx context.Context, req *domain.NoteRequest) (*domain.Outcome, error)
	OnPostCreated(ctx context.Context, post *domain.Post) (*domain.Outcome, error)
}

// Processor decodes a document event and routes it by collection
type Processor struct {
	handler EventHandler
	logger  *zap.Logger
}

func NewProcessor(handler EventHandler, logger *zap.Logger) *Processor {
	return &Processor{
		handler: handler,
		logger:  logger,
	}
}

// Process handles one creation event. collection and id may be empty, in
// which case both are taken from the document name. Errors wrapping
// domain.ErrInvalidRecord will not succeed on retry.
func (p *Processor) Process(ctx context.Context, collection, id string, event *DocumentEvent) (*domain.Outcome, error) {
	if collection == "" {
		c, _, err := event.Value.Ref()
		if err != nil {
			return nil, err
		}
		collection = c
	}

	switch collection {
	case CollectionRequests:
		req, err := DecodeRequest(event.Value, id)
		if err != nil {
			return nil, err
		}
		return p.handler.OnRequestCreated(ctx, req)
	case CollectionPosts:
		post, err := DecodePost(event.Value, id)
		if err != nil {
			return nil, err
		}
		return p.handler.OnPostCreated(ctx, post)
	default:
		return nil, fmt.Errorf("%w: unsupported collection %q", domain.ErrInvalidRecord, collection)
	}
}
