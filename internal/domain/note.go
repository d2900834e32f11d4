package domain

import (
	"context"
	"fmt"

	"github.com/classnotes/backend/pkg/validator"
)

// RequestStatus is the lifecycle state of a note request
type RequestStatus string

const (
	RequestStatusOpen      RequestStatus = "open"
	RequestStatusFulfilled RequestStatus = "fulfilled"
)

// IsValid reports whether s is a known status
func (s RequestStatus) IsValid() bool {
	return s == RequestStatusOpen || s == RequestStatusFulfilled
}

// NoteRequest is a request for notes on a subject, either addressed to one
// classmate (TargetUserID set) or broadcast to the whole group.
type NoteRequest struct {
	ID           string        `json:"id" firestore:"-" bson:"_id"`
	GroupID      string        `json:"groupId" firestore:"groupId" bson:"groupId"`
	AuthorID     string        `json:"authorId" firestore:"authorId" bson:"authorId"`
	AuthorName   string        `json:"authorName" firestore:"authorName" bson:"authorName"`
	Subject      string        `json:"subject" firestore:"subject" bson:"subject"`
	Status       RequestStatus `json:"status" firestore:"status" bson:"status"`
	TargetUserID string        `json:"targetUserId,omitempty" firestore:"targetUserId,omitempty" bson:"targetUserId,omitempty"`
}

// IsTargeted reports whether the request is addressed to a single user
func (r *NoteRequest) IsTargeted() bool {
	return r.TargetUserID != ""
}

// Validate checks the fields the fan-out depends on. A broadcast request
// needs a group to expand; a targeted one does not.
func (r *NoteRequest) Validate() error {
	var errs validator.ValidationErrors
	if !validator.ValidateRecordID(r.ID) {
		errs.Add("id", "must be a non-empty record id")
	}
	if !validator.ValidateRecordID(r.AuthorID) {
		errs.Add("authorId", "must be a non-empty record id")
	}
	if r.Subject == "" {
		errs.Add("subject", "is required")
	}
	if !r.IsTargeted() && !validator.ValidateRecordID(r.GroupID) {
		errs.Add("groupId", "is required for broadcast requests")
	}
	if r.Status != "" && !r.Status.IsValid() {
		errs.Add("status", fmt.Sprintf("unknown status %q", r.Status))
	}
	if errs.HasErrors() {
		return fmt.Errorf("%w: request: %s", ErrInvalidRecord, errs.Error())
	}
	return nil
}

// Post is a set of shared notes for a subject
type Post struct {
	ID         string `json:"id" firestore:"-" bson:"_id"`
	GroupID    string `json:"groupId" firestore:"groupId" bson:"groupId"`
	AuthorID   string `json:"authorId" firestore:"authorId" bson:"authorId"`
	AuthorName string `json:"authorName" firestore:"authorName" bson:"authorName"`
	Subject    string `json:"subject" firestore:"subject" bson:"subject"`
}

// Validate checks the fields the fan-out depends on
func (p *Post) Validate() error {
	var errs validator.ValidationErrors
	if !validator.ValidateRecordID(p.ID) {
		errs.Add("id", "must be a non-empty record id")
	}
	if !validator.ValidateRecordID(p.AuthorID) {
		errs.Add("authorId", "must be a non-empty record id")
	}
	if !validator.ValidateRecordID(p.GroupID) {
		errs.Add("groupId", "must be a non-empty record id")
	}
	if p.Subject == "" {
		errs.Add("subject", "is required")
	}
	if errs.HasErrors() {
		return fmt.Errorf("%w: post: %s", ErrInvalidRecord, errs.Error())
	}
	return nil
}

// Group is a class group; Members holds user IDs
type Group struct {
	ID      string   `json:"id" firestore:"-" bson:"_id"`
	Members []string `json:"members" firestore:"members" bson:"members"`
}

type GroupRepository interface {
	// GetGroup returns ErrGroupNotFound when no such group exists
	GetGroup(ctx context.Context, groupID string) (*Group, error)
}

type RequestRepository interface {
	// FindOpenRequests returns requests matching groupId, subject and
	// status == open. Subject equality is exact.
	FindOpenRequests(ctx context.Context, groupID, subject string) ([]*NoteRequest, error)
}
