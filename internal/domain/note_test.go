package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoteRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     NoteRequest
		wantErr bool
	}{
		{
			name: "broadcast",
			req:  NoteRequest{ID: "r1", GroupID: "g1", AuthorID: "A", Subject: "Math", Status: RequestStatusOpen},
		},
		{
			name: "targeted without group",
			req:  NoteRequest{ID: "r1", AuthorID: "A", Subject: "Math", TargetUserID: "B"},
		},
		{
			name:    "broadcast without group",
			req:     NoteRequest{ID: "r1", AuthorID: "A", Subject: "Math"},
			wantErr: true,
		},
		{
			name:    "missing subject",
			req:     NoteRequest{ID: "r1", GroupID: "g1", AuthorID: "A"},
			wantErr: true,
		},
		{
			name:    "unknown status",
			req:     NoteRequest{ID: "r1", GroupID: "g1", AuthorID: "A", Subject: "Math", Status: "closed"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostValidate(t *testing.T) {
	assert.NoError(t, (&Post{ID: "p1", GroupID: "g1", AuthorID: "A", Subject: "Math"}).Validate())
	assert.ErrorIs(t, (&Post{ID: "p1", AuthorID: "A", Subject: "Math"}).Validate(), ErrInvalidRecord)
	assert.ErrorIs(t, (&Post{ID: "p/1", GroupID: "g1", AuthorID: "A", Subject: "Math"}).Validate(), ErrInvalidRecord)
}

func TestMulticastResultInvalidTokens(t *testing.T) {
	result := &MulticastResult{
		FailureCount: 3,
		Responses: []SendResponse{
			{Error: &SendError{Code: ErrorCodeInvalidToken}},
			{},
			{Error: &SendError{Code: ErrorCodeTokenNotRegistered}},
			{Error: &SendError{Code: ErrorCodeInvalidArgument}},
		},
	}

	assert.Equal(t, []string{"t0", "t2"}, result.InvalidTokens([]string{"t0", "t1", "t2", "t3"}))
	assert.Nil(t, (*MulticastResult)(nil).InvalidTokens([]string{"t0"}))
}
