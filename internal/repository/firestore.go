package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/classnotes/backend/internal/domain"
	"github.com/classnotes/backend/pkg/validator"
)

const (
	groupsCollection   = "groups"
	requestsCollection = "requests"
	usersCollection    = "users"
)

// FirestoreRepository implements domain.RecordStore on Cloud Firestore.
// Documents are read field by field so a malformed document is skipped
// instead of failing the whole query.
type FirestoreRepository struct {
	client *firestore.Client
	logger *zap.Logger
}

// NewFirestoreRepository creates a new Firestore repository
func NewFirestoreRepository(client *firestore.Client, logger *zap.Logger) *FirestoreRepository {
	return &FirestoreRepository{
		client: client,
		logger: logger,
	}
}

// GetGroup retrieves a group by ID
func (r *FirestoreRepository) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	snap, err := r.client.Collection(groupsCollection).Doc(groupID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	if !snap.Exists() {
		return nil, domain.ErrGroupNotFound
	}

	group := &domain.Group{ID: snap.Ref.ID}
	raw, _ := snap.Data()["members"].([]interface{})
	members := make([]string, 0, len(raw))
	for _, m := range raw {
		if id, ok := m.(string); ok {
			members = append(members, id)
		}
	}
	group.Members = validator.SanitizeRecordIDs(members)
	if len(group.Members) != len(raw) {
		r.logger.Warn("Group has malformed members",
			zap.String("group_id", groupID),
			zap.Int("members", len(raw)),
			zap.Int("valid", len(group.Members)),
		)
	}
	return group, nil
}

// FindOpenRequests retrieves open requests for a group and subject
func (r *FirestoreRepository) FindOpenRequests(ctx context.Context, groupID, subject string) ([]*domain.NoteRequest, error) {
	snaps, err := r.client.Collection(requestsCollection).
		Where("groupId", "==", groupID).
		Where("subject", "==", subject).
		Where("status", "==", string(domain.RequestStatusOpen)).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, err
	}

	requests := make([]*domain.NoteRequest, 0, len(snaps))
	for _, snap := range snaps {
		data := snap.Data()
		req := &domain.NoteRequest{
			ID:           snap.Ref.ID,
			GroupID:      stringField(data, "groupId"),
			AuthorID:     stringField(data, "authorId"),
			AuthorName:   stringField(data, "authorName"),
			Subject:      stringField(data, "subject"),
			Status:       domain.RequestStatus(stringField(data, "status")),
			TargetUserID: stringField(data, "targetUserId"),
		}
		if req.AuthorID == "" {
			r.logger.Warn("Skipping request without author", zap.String("request_id", snap.Ref.ID))
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// GetUsersByIDs retrieves users by document ID
func (r *FirestoreRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	users := r.client.Collection(usersCollection)
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, users.Doc(id))
	}
	snaps, err := users.Where(firestore.DocumentID, "in", refs).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	return snapsToUsers(snaps), nil
}

// FindUsersByTokens retrieves the owners of the given tokens
func (r *FirestoreRepository) FindUsersByTokens(ctx context.Context, tokens []string) ([]*domain.User, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	values := make([]interface{}, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t)
	}
	snaps, err := r.client.Collection(usersCollection).
		Where("fcmToken", "in", values).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, err
	}
	return snapsToUsers(snaps), nil
}

// ClearFCMTokens deletes the fcmToken field of every listed user in one
// write batch
func (r *FirestoreRepository) ClearFCMTokens(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	users := r.client.Collection(usersCollection)
	batch := r.client.Batch()
	for _, id := range userIDs {
		batch.Update(users.Doc(id), []firestore.Update{
			{Path: "fcmToken", Value: firestore.Delete},
		})
	}
	if _, err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit token cleanup batch: %w", err)
	}
	return nil
}

// Ping reads a nonexistent document; NotFound means the backend answered
func (r *FirestoreRepository) Ping(ctx context.Context) error {
	_, err := r.client.Collection(groupsCollection).Doc("_ping").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func snapsToUsers(snaps []*firestore.DocumentSnapshot) []*domain.User {
	users := make([]*domain.User, 0, len(snaps))
	for _, snap := range snaps {
		users = append(users, &domain.User{
			ID:       snap.Ref.ID,
			FCMToken: stringField(snap.Data(), "fcmToken"),
		})
	}
	return users
}

// stringField returns data[key] when it is a string, "" otherwise
func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}
