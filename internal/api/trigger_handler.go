package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/classnotes/backend/internal/domain"
	"github.com/classnotes/backend/internal/trigger"
	"github.com/classnotes/backend/pkg/response"
)

// maxEventBytes bounds a trigger body. Firestore documents are at most 1 MiB.
const maxEventBytes = 2 << 20

// Processor handles one decoded document event
type Processor interface {
	Process(ctx context.Context, collection, id string, event *trigger.DocumentEvent) (*domain.Outcome, error)
}

// TriggerHandler accepts document-created events over HTTP. Malformed or
// invalid events are acknowledged with 200 so the caller does not retry
// them; handler failures return 500 so the event is redelivered.
type TriggerHandler struct {
	processor Processor
	logger    *zap.Logger
}

func NewTriggerHandler(processor Processor, logger *zap.Logger) *TriggerHandler {
	return &TriggerHandler{
		processor: processor,
		logger:    logger,
	}
}

// TriggerResult is the body returned for a processed event
type TriggerResult struct {
	Processed bool            `json:"processed"`
	Reason    string          `json:"reason,omitempty"`
	Outcome   *domain.Outcome `json:"outcome,omitempty"`
}

// RequestCreated handles POST /triggers/requests/{requestId}
func (h *TriggerHandler) RequestCreated(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, trigger.CollectionRequests, chi.URLParam(r, "requestId"))
}

// PostCreated handles POST /triggers/posts/{postId}
func (h *TriggerHandler) PostCreated(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, trigger.CollectionPosts, chi.URLParam(r, "postId"))
}

func (h *TriggerHandler) handle(w http.ResponseWriter, r *http.Request, collection, id string) {
	logger := h.logger.With(zap.String("collection", collection), zap.String("id", id))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("Dropping oversized trigger event", zap.Int64("limit", tooLarge.Limit))
			response.OK(w, TriggerResult{Reason: "event too large"})
			return
		}
		response.BadRequest(w, "failed to read request body")
		return
	}

	// Pub/Sub push wraps the event; attributes override the route like they
	// do for pulled messages
	if msg, ok := trigger.UnwrapPush(body); ok {
		body = msg.Data
		if c := msg.Attributes[trigger.AttrCollection]; c != "" {
			collection = c
		}
		if d := msg.Attributes[trigger.AttrDocumentID]; d != "" {
			id = d
		}
		logger = h.logger.With(
			zap.String("collection", collection),
			zap.String("id", id),
			zap.String("message_id", msg.MessageID),
		)
	}

	event, err := trigger.ParseDocumentEvent(body)
	if err != nil {
		logger.Warn("Dropping malformed trigger event", zap.Error(err))
		response.OK(w, TriggerResult{Reason: err.Error()})
		return
	}

	outcome, err := h.processor.Process(r.Context(), collection, id, event)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRecord) {
			logger.Warn("Dropping invalid trigger event", zap.Error(err))
			response.OK(w, TriggerResult{Reason: err.Error()})
			return
		}
		logger.Error("Trigger event failed", zap.Error(err))
		response.InternalError(w, "failed to process event")
		return
	}

	response.OK(w, TriggerResult{Processed: true, Outcome: outcome})
}
