package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/classnotes/backend/internal/domain"
)

// MemoryRepository is an in-process domain.RecordStore for local runs and
// tests. It enforces the same membership limit as Firestore and records
// every user lookup.
type MemoryRepository struct {
	mu         sync.RWMutex
	maxBatch   int
	groups     map[string]*domain.Group
	requests   map[string]*domain.NoteRequest
	users      map[string]*domain.User
	lookups    [][]string
	clears     [][]string
	failUsers  error
	failClears error
}

// NewMemoryRepository creates an empty store
func NewMemoryRepository(maxBatch int) *MemoryRepository {
	if maxBatch <= 0 {
		maxBatch = domain.DefaultMaxQueryBatch
	}
	return &MemoryRepository{
		maxBatch: maxBatch,
		groups:   make(map[string]*domain.Group),
		requests: make(map[string]*domain.NoteRequest),
		users:    make(map[string]*domain.User),
	}
}

// PutGroup stores a group, replacing any previous one with the same ID
func (r *MemoryRepository) PutGroup(g domain.Group) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.Members = append([]string(nil), g.Members...)
	r.groups[g.ID] = &g
}

// PutRequest stores a note request
func (r *MemoryRepository) PutRequest(req domain.NoteRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[req.ID] = &req
}

// PutUser stores a user
func (r *MemoryRepository) PutUser(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = &u
}

// User returns a copy of a stored user
func (r *MemoryRepository) User(id string) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return domain.User{}, false
	}
	return *u, true
}

// FailUserLookups makes every subsequent user lookup return err
func (r *MemoryRepository) FailUserLookups(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failUsers = err
}

// FailTokenClears makes every subsequent ClearFCMTokens call return err
// without touching any user
func (r *MemoryRepository) FailTokenClears(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failClears = err
}

// UserLookups returns the ID lists passed to GetUsersByIDs, sorted by size
// descending since concurrent lookups arrive in any order.
func (r *MemoryRepository) UserLookups() [][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([][]string, len(r.lookups))
	copy(out, r.lookups)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// TokenClears returns the ID lists passed to ClearFCMTokens
func (r *MemoryRepository) TokenClears() [][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([][]string, len(r.clears))
	copy(out, r.clears)
	return out
}

// GetGroup retrieves a group by ID
func (r *MemoryRepository) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return &domain.Group{ID: g.ID, Members: append([]string(nil), g.Members...)}, nil
}

// FindOpenRequests returns matching open requests ordered by ID
func (r *MemoryRepository) FindOpenRequests(ctx context.Context, groupID, subject string) ([]*domain.NoteRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.NoteRequest
	for _, req := range r.requests {
		if req.GroupID == groupID && req.Subject == subject && req.Status == domain.RequestStatusOpen {
			c := *req
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetUsersByIDs retrieves users by ID, in the order requested
func (r *MemoryRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, append([]string(nil), ids...))
	if r.failUsers != nil {
		return nil, r.failUsers
	}
	if len(ids) > r.maxBatch {
		return nil, fmt.Errorf("%w: %d ids, limit %d", domain.ErrBatchTooLarge, len(ids), r.maxBatch)
	}
	var out []*domain.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			c := *u
			out = append(out, &c)
		}
	}
	return out, nil
}

// FindUsersByTokens retrieves the owners of the given tokens, ordered by ID
func (r *MemoryRepository) FindUsersByTokens(ctx context.Context, tokens []string) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(tokens) > r.maxBatch {
		return nil, fmt.Errorf("%w: %d tokens, limit %d", domain.ErrBatchTooLarge, len(tokens), r.maxBatch)
	}
	want := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		want[t] = struct{}{}
	}
	var out []*domain.User
	for _, u := range r.users {
		if _, ok := want[u.FCMToken]; ok && u.FCMToken != "" {
			c := *u
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ClearFCMTokens removes the token of every listed user under one lock
func (r *MemoryRepository) ClearFCMTokens(ctx context.Context, userIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears = append(r.clears, append([]string(nil), userIDs...))
	if r.failClears != nil {
		return r.failClears
	}
	for _, id := range userIDs {
		if u, ok := r.users[id]; ok {
			u.FCMToken = ""
		}
	}
	return nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}
