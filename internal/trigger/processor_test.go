package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/classnotes/backend/internal/domain"
)

type recordingHandler struct {
	mu       sync.Mutex
	requests []*domain.NoteRequest
	posts    []*domain.Post
	err      error
	done     chan struct{}
}

func (h *recordingHandler) OnRequestCreated(ctx context.Context, req *domain.NoteRequest) (*domain.Outcome, error) {
	h.mu.Lock()
	h.requests = append(h.requests, req)
	h.mu.Unlock()
	h.signal()
	if h.err != nil {
		return nil, h.err
	}
	return &domain.Outcome{Mode: domain.RecipientModeBroadcast}, nil
}

func (h *recordingHandler) OnPostCreated(ctx context.Context, post *domain.Post) (*domain.Outcome, error) {
	h.mu.Lock()
	h.posts = append(h.posts, post)
	h.mu.Unlock()
	h.signal()
	if h.err != nil {
		return nil, h.err
	}
	return &domain.Outcome{Mode: domain.RecipientModeMatched}, nil
}

func (h *recordingHandler) signal() {
	if h.done == nil {
		return
	}
	select {
	case h.done <- struct{}{}:
	default:
	}
}

func TestProcessor_RoutesByDocumentName(t *testing.T) {
	h := &recordingHandler{}
	p := NewProcessor(h, zaptest.NewLogger(t))

	event, err := ParseDocumentEvent([]byte(requestEvent))
	require.NoError(t, err)
	outcome, err := p.Process(context.Background(), "", "", event)
	require.NoError(t, err)
	assert.Equal(t, domain.RecipientModeBroadcast, outcome.Mode)
	require.Len(t, h.requests, 1)
	assert.Equal(t, "r1", h.requests[0].ID)

	event, err = ParseDocumentEvent([]byte(postEvent))
	require.NoError(t, err)
	_, err = p.Process(context.Background(), "", "", event)
	require.NoError(t, err)
	require.Len(t, h.posts, 1)
	assert.Equal(t, "p1", h.posts[0].ID)
}

func TestProcessor_ExplicitCollectionAndID(t *testing.T) {
	h := &recordingHandler{}
	p := NewProcessor(h, zaptest.NewLogger(t))

	event, err := ParseDocumentEvent([]byte(postEvent))
	require.NoError(t, err)
	_, err = p.Process(context.Background(), CollectionPosts, "p42", event)
	require.NoError(t, err)
	require.Len(t, h.posts, 1)
	assert.Equal(t, "p42", h.posts[0].ID)
}

func TestProcessor_UnknownCollection(t *testing.T) {
	p := NewProcessor(&recordingHandler{}, zaptest.NewLogger(t))

	event, err := ParseDocumentEvent([]byte(postEvent))
	require.NoError(t, err)
	_, err = p.Process(context.Background(), "comments", "c1", event)
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
}

func TestProcessor_HandlerErrorPropagates(t *testing.T) {
	boom := errors.New("store down")
	p := NewProcessor(&recordingHandler{err: boom}, zaptest.NewLogger(t))

	event, err := ParseDocumentEvent([]byte(requestEvent))
	require.NoError(t, err)
	_, err = p.Process(context.Background(), "", "", event)
	assert.ErrorIs(t, err, boom)
}
