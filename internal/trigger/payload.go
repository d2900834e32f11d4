// Package trigger turns document-created events into calls on the
// notification service. Events arrive either over HTTP or from a Pub/Sub
// subscription and carry a Firestore document in its JSON wire form.
package trigger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/classnotes/backend/internal/domain"
	"github.com/classnotes/backend/pkg/validator"
)

// Collections whose creation events are handled
const (
	CollectionRequests = "requests"
	CollectionPosts    = "posts"
)

// DocumentEvent is a Firestore document change event
type DocumentEvent struct {
	OldValue *Document `json:"oldValue,omitempty"`
	Value    *Document `json:"value,omitempty"`
}

// Document is a Firestore document in JSON wire form. Field values are
// typed wrappers such as {"stringValue": "Math"}.
type Document struct {
	Name       string                `json:"name"`
	Fields     map[string]FieldValue `json:"fields"`
	CreateTime time.Time             `json:"createTime"`
	UpdateTime time.Time             `json:"updateTime"`
}

// FieldValue holds the typed variants the notifier reads. Any other
// variant decodes as absent.
type FieldValue struct {
	StringValue *string         `json:"stringValue,omitempty"`
	NullValue   json.RawMessage `json:"nullValue,omitempty"`
}

// PushMessage is the message a Pub/Sub push subscription POSTs. Data is
// base64 in the wire form and decoded by encoding/json.
type PushMessage struct {
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes,omitempty"`
	MessageID  string            `json:"messageId,omitempty"`
}

type pushEnvelope struct {
	Message      *PushMessage `json:"message"`
	Subscription string       `json:"subscription"`
}

// UnwrapPush returns the message inside a Pub/Sub push body. ok is false
// when body is not a push envelope, e.g. a bare document event.
func UnwrapPush(body []byte) (msg *PushMessage, ok bool) {
	var env pushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.Message == nil || len(env.Message.Data) == 0 {
		return nil, false
	}
	return env.Message, true
}

// ParseDocumentEvent decodes an event body. An event without a new
// document value (a delete) is reported as an invalid record.
func ParseDocumentEvent(data []byte) (*DocumentEvent, error) {
	var event DocumentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: malformed event: %v", domain.ErrInvalidRecord, err)
	}
	if event.Value == nil || (event.Value.Name == "" && len(event.Value.Fields) == 0) {
		return nil, fmt.Errorf("%w: event carries no document", domain.ErrInvalidRecord)
	}
	return &event, nil
}

// Ref splits the document name ".../documents/{collection}/{id}"
func (d *Document) Ref() (collection, id string, err error) {
	_, path, found := strings.Cut(d.Name, "/documents/")
	if !found {
		return "", "", fmt.Errorf("%w: document name %q has no path", domain.ErrInvalidRecord, d.Name)
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: document name %q is not a document path", domain.ErrInvalidRecord, d.Name)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// String returns the string value of a field, "" when absent, null or of
// another type
func (d *Document) String(field string) string {
	v, ok := d.Fields[field]
	if !ok || v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

// DecodeRequest extracts and validates a note request. id overrides the id
// in the document name when non-empty.
func DecodeRequest(doc *Document, id string) (*domain.NoteRequest, error) {
	id, err := documentID(doc, id)
	if err != nil {
		return nil, err
	}
	req := &domain.NoteRequest{
		ID:           id,
		GroupID:      doc.String("groupId"),
		AuthorID:     doc.String("authorId"),
		AuthorName:   doc.String("authorName"),
		Subject:      doc.String("subject"),
		Status:       domain.RequestStatus(doc.String("status")),
		TargetUserID: doc.String("targetUserId"),
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// DecodePost extracts and validates a post
func DecodePost(doc *Document, id string) (*domain.Post, error) {
	id, err := documentID(doc, id)
	if err != nil {
		return nil, err
	}
	post := &domain.Post{
		ID:         id,
		GroupID:    doc.String("groupId"),
		AuthorID:   doc.String("authorId"),
		AuthorName: doc.String("authorName"),
		Subject:    doc.String("subject"),
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	return post, nil
}

func documentID(doc *Document, override string) (string, error) {
	if override != "" {
		if !validator.ValidateRecordID(override) {
			return "", fmt.Errorf("%w: invalid document id %q", domain.ErrInvalidRecord, override)
		}
		return override, nil
	}
	_, id, err := doc.Ref()
	return id, err
}
