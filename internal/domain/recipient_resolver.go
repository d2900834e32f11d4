package domain

import (
	"context"
	"errors"
	"fmt"
)

// RecipientMode tells how a recipient set was chosen; it also selects the
// wording of the notification body.
type RecipientMode string

const (
	RecipientModeTargeted  RecipientMode = "targeted"
	RecipientModeBroadcast RecipientMode = "broadcast"
	RecipientModeMatched   RecipientMode = "matched"
)

// Resolution is the deduplicated, author-free recipient list for one event
type Resolution struct {
	Mode       RecipientMode
	Recipients []string
}

// IsEmpty reports whether nobody should be notified
func (r *Resolution) IsEmpty() bool {
	return r == nil || len(r.Recipients) == 0
}

// RecipientResolver maps a triggering event to the users to notify. It keeps
// no state between calls.
type RecipientResolver struct {
	groups   GroupRepository
	requests RequestRepository
}

func NewRecipientResolver(groups GroupRepository, requests RequestRepository) *RecipientResolver {
	return &RecipientResolver{
		groups:   groups,
		requests: requests,
	}
}

// ResolveRequest returns the target of a targeted request (nobody when the
// author targeted themselves) or every other group member for a broadcast.
func (r *RecipientResolver) ResolveRequest(ctx context.Context, req *NoteRequest) (*Resolution, error) {
	if req.IsTargeted() {
		res := &Resolution{Mode: RecipientModeTargeted}
		if req.TargetUserID != req.AuthorID {
			res.Recipients = []string{req.TargetUserID}
		}
		return res, nil
	}

	members, err := r.groupMembersExcept(ctx, req.GroupID, req.AuthorID)
	if err != nil {
		return nil, err
	}
	return &Resolution{Mode: RecipientModeBroadcast, Recipients: members}, nil
}

// ResolvePost notifies the authors and targets of open requests for the same
// group and subject. When there are none it falls back to the whole group.
func (r *RecipientResolver) ResolvePost(ctx context.Context, post *Post) (*Resolution, error) {
	open, err := r.requests.FindOpenRequests(ctx, post.GroupID, post.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find open requests: %w", err)
	}

	requesters := newOrderedSet()
	for _, req := range open {
		if req.AuthorID != post.AuthorID {
			requesters.add(req.AuthorID)
		}
		if req.TargetUserID != post.AuthorID {
			requesters.add(req.TargetUserID)
		}
	}
	if requesters.len() > 0 {
		return &Resolution{Mode: RecipientModeMatched, Recipients: requesters.items}, nil
	}

	members, err := r.groupMembersExcept(ctx, post.GroupID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	return &Resolution{Mode: RecipientModeBroadcast, Recipients: members}, nil
}

// groupMembersExcept returns the group's members minus exclude. A missing
// group resolves to no members.
func (r *RecipientResolver) groupMembersExcept(ctx context.Context, groupID, exclude string) ([]string, error) {
	if groupID == "" {
		return nil, nil
	}
	group, err := r.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group %s: %w", groupID, err)
	}

	members := newOrderedSet()
	for _, id := range group.Members {
		if id != exclude {
			members.add(id)
		}
	}
	return members.items, nil
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

// add ignores empty strings and duplicates
func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) len() int {
	return len(s.items)
}
