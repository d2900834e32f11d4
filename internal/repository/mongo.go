package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/classnotes/backend/internal/domain"
	"github.com/classnotes/backend/pkg/validator"
)

// MongoRepository implements domain.RecordStore on MongoDB using the same
// collection and field names as the Firestore layout.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoRepository creates a new MongoDB repository
func NewMongoRepository(client *mongo.Client, database string) *MongoRepository {
	return &MongoRepository{
		client: client,
		db:     client.Database(database),
	}
}

// GetGroup retrieves a group by ID
func (r *MongoRepository) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	var group domain.Group
	err := r.db.Collection(groupsCollection).FindOne(ctx, bson.M{"_id": groupID}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	group.Members = validator.SanitizeRecordIDs(group.Members)
	return &group, nil
}

// FindOpenRequests retrieves open requests for a group and subject
func (r *MongoRepository) FindOpenRequests(ctx context.Context, groupID, subject string) ([]*domain.NoteRequest, error) {
	filter := bson.M{
		"groupId": groupID,
		"subject": subject,
		"status":  string(domain.RequestStatusOpen),
	}
	cur, err := r.db.Collection(requestsCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var requests []*domain.NoteRequest
	for cur.Next(ctx) {
		var req domain.NoteRequest
		if err := cur.Decode(&req); err != nil {
			// malformed documents are skipped, not propagated
			continue
		}
		requests = append(requests, &req)
	}
	return requests, cur.Err()
}

// GetUsersByIDs retrieves users by ID
func (r *MongoRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.findUsers(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// FindUsersByTokens retrieves the owners of the given tokens
func (r *MongoRepository) FindUsersByTokens(ctx context.Context, tokens []string) ([]*domain.User, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	return r.findUsers(ctx, bson.M{"fcmToken": bson.M{"$in": tokens}})
}

// ClearFCMTokens unsets fcmToken on every listed user inside one
// transaction. Requires a replica set or sharded cluster.
func (r *MongoRepository) ClearFCMTokens(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return r.db.Collection(usersCollection).UpdateMany(sc,
			bson.M{"_id": bson.M{"$in": userIDs}},
			bson.M{"$unset": bson.M{"fcmToken": ""}},
		)
	})
	if err != nil {
		return fmt.Errorf("failed to clear fcm tokens: %w", err)
	}
	return nil
}

// Ping checks the primary
func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *MongoRepository) findUsers(ctx context.Context, filter bson.M) ([]*domain.User, error) {
	cur, err := r.db.Collection(usersCollection).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []*domain.User
	for cur.Next(ctx) {
		var user domain.User
		if err := cur.Decode(&user); err != nil {
			continue
		}
		users = append(users, &user)
	}
	return users, cur.Err()
}
