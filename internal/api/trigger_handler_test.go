package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/classnotes/backend/internal/auth"
	"github.com/classnotes/backend/internal/domain"
	"github.com/classnotes/backend/internal/repository"
	"github.com/classnotes/backend/internal/trigger"
)

const postBody = `{"value": {
  "name": "projects/classnotes/databases/(default)/documents/posts/p1",
  "fields": {
    "groupId": {"stringValue": "g1"},
    "authorId": {"stringValue": "A"},
    "authorName": {"stringValue": "Ann"},
    "subject": {"stringValue": "Math"}
  }
}}`

type fakeProcessor struct {
	collection string
	id         string
	outcome    *domain.Outcome
	err        error
}

func (p *fakeProcessor) Process(ctx context.Context, collection, id string, event *trigger.DocumentEvent) (*domain.Outcome, error) {
	p.collection = collection
	p.id = id
	return p.outcome, p.err
}

type triggerResponse struct {
	Success bool          `json:"success"`
	Data    TriggerResult `json:"data"`
}

func newTestRouter(t *testing.T, processor Processor, authenticator *auth.Authenticator) http.Handler {
	logger := zaptest.NewLogger(t)
	store := repository.NewMemoryRepository(domain.DefaultMaxQueryBatch)
	return NewRouter(
		NewTriggerHandler(processor, logger),
		NewHealthHandler(store, logger),
		authenticator,
		logger,
	).Setup()
}

func post(h http.Handler, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTriggerHandler_PostCreated(t *testing.T) {
	p := &fakeProcessor{outcome: &domain.Outcome{Mode: domain.RecipientModeBroadcast, Recipients: 2, Dispatched: true}}
	h := newTestRouter(t, p, auth.NewAuthenticator())

	rec := post(h, "/api/v1/triggers/posts/p1", postBody, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, trigger.CollectionPosts, p.collection)
	assert.Equal(t, "p1", p.id)

	var resp triggerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Processed)
	require.NotNil(t, resp.Data.Outcome)
	assert.Equal(t, 2, resp.Data.Outcome.Recipients)
}

func TestTriggerHandler_RequestCreatedRoutesCollection(t *testing.T) {
	p := &fakeProcessor{outcome: &domain.Outcome{}}
	h := newTestRouter(t, p, auth.NewAuthenticator())

	rec := post(h, "/api/v1/triggers/requests/r9", postBody, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, trigger.CollectionRequests, p.collection)
	assert.Equal(t, "r9", p.id)
}

func pushBody(t *testing.T, event string, attrs map[string]string) string {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"message": map[string]interface{}{
			"data":       base64.StdEncoding.EncodeToString([]byte(event)),
			"attributes": attrs,
			"messageId":  "m-1",
		},
		"subscription": "projects/classnotes/subscriptions/notifier-push",
	})
	require.NoError(t, err)
	return string(body)
}

func TestTriggerHandler_UnwrapsPubSubPush(t *testing.T) {
	p := &fakeProcessor{outcome: &domain.Outcome{Dispatched: true}}
	h := newTestRouter(t, p, auth.NewAuthenticator())

	rec := post(h, "/api/v1/triggers/posts/p1", pushBody(t, postBody, nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, trigger.CollectionPosts, p.collection)
	assert.Equal(t, "p1", p.id)

	var resp triggerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Data.Processed)
}

func TestTriggerHandler_PushAttributesOverrideRoute(t *testing.T) {
	p := &fakeProcessor{outcome: &domain.Outcome{}}
	h := newTestRouter(t, p, auth.NewAuthenticator())

	attrs := map[string]string{
		trigger.AttrCollection: trigger.CollectionRequests,
		trigger.AttrDocumentID: "r5",
	}
	rec := post(h, "/api/v1/triggers/posts/p1", pushBody(t, postBody, attrs), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, trigger.CollectionRequests, p.collection)
	assert.Equal(t, "r5", p.id)
}

func TestTriggerHandler_PushFailureIsRetried(t *testing.T) {
	p := &fakeProcessor{err: errors.New("store down")}
	h := newTestRouter(t, p, auth.NewAuthenticator())

	rec := post(h, "/api/v1/triggers/posts/p1", pushBody(t, postBody, nil), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerHandler_MalformedEventIsNotRetried(t *testing.T) {
	p := &fakeProcessor{}
	h := newTestRouter(t, p, auth.NewAuthenticator())

	rec := post(h, "/api/v1/triggers/posts/p1", "{", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, p.collection)

	var resp triggerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Data.Processed)
	assert.NotEmpty(t, resp.Data.Reason)
}

func TestTriggerHandler_InvalidRecordIsNotRetried(t *testing.T) {
	p := &fakeProcessor{err: domain.ErrInvalidRecord}
	h := newTestRouter(t, p, auth.NewAuthenticator())

	rec := post(h, "/api/v1/triggers/posts/p1", postBody, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTriggerHandler_HandlerFailureIsRetried(t *testing.T) {
	p := &fakeProcessor{err: errors.New("store down")}
	h := newTestRouter(t, p, auth.NewAuthenticator())

	rec := post(h, "/api/v1/triggers/posts/p1", postBody, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTriggerRoutes_RequireToken(t *testing.T) {
	tokens := auth.NewTriggerTokenManager("test-secret")
	p := &fakeProcessor{outcome: &domain.Outcome{}}
	h := newTestRouter(t, p, auth.NewAuthenticator(tokens))

	rec := post(h, "/api/v1/triggers/posts/p1", postBody, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(h, "/api/v1/triggers/posts/p1", postBody, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := tokens.GenerateToken("relay", time.Minute)
	require.NoError(t, err)
	rec = post(h, "/api/v1/triggers/posts/p1", postBody, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthRoutes(t *testing.T) {
	h := newTestRouter(t, &fakeProcessor{}, auth.NewAuthenticator(auth.NewTriggerTokenManager("s")))

	for _, path := range []string{"/health", "/health/ready", "/health/live"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

type downStore struct{}

func (downStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthHandler_ReadyFailsWhenStoreDown(t *testing.T) {
	h := NewHealthHandler(downStore{}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "unavailable", resp.Status)
}
