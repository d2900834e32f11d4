package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classnotes/backend/internal/domain"
	"github.com/classnotes/backend/pkg/validator"
)

// PostgresRepository implements domain.RecordStore on PostgreSQL.
//
// Expected tables:
//
//	groups(id TEXT PRIMARY KEY, members TEXT[] NOT NULL DEFAULT '{}')
//	note_requests(id TEXT PRIMARY KEY, group_id TEXT, author_id TEXT, author_name TEXT,
//	              subject TEXT, status TEXT, target_user_id TEXT NULL)
//	users(id TEXT PRIMARY KEY, fcm_token TEXT NULL)
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetGroup retrieves a group by ID
func (r *PostgresRepository) GetGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	query := `SELECT id, members FROM groups WHERE id = $1`

	var group domain.Group
	var members []string
	err := r.db.QueryRow(ctx, query, groupID).Scan(&group.ID, &members)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, err
	}
	group.Members = validator.SanitizeRecordIDs(members)
	return &group, nil
}

// FindOpenRequests retrieves open requests for a group and subject
func (r *PostgresRepository) FindOpenRequests(ctx context.Context, groupID, subject string) ([]*domain.NoteRequest, error) {
	query := `
		SELECT id, group_id, author_id, author_name, subject, status, target_user_id
		FROM note_requests
		WHERE group_id = $1 AND subject = $2 AND status = $3
		ORDER BY id
	`
	rows, err := r.db.Query(ctx, query, groupID, subject, string(domain.RequestStatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*domain.NoteRequest
	for rows.Next() {
		req, err := scanNoteRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// GetUsersByIDs retrieves users by ID
func (r *PostgresRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]*domain.User, error) {
	query := `SELECT id, fcm_token FROM users WHERE id = ANY($1)`
	return r.queryUsers(ctx, query, ids)
}

// FindUsersByTokens retrieves the owners of the given tokens
func (r *PostgresRepository) FindUsersByTokens(ctx context.Context, tokens []string) ([]*domain.User, error) {
	query := `SELECT id, fcm_token FROM users WHERE fcm_token = ANY($1)`
	return r.queryUsers(ctx, query, tokens)
}

// ClearFCMTokens nulls fcm_token for all listed users in one statement
func (r *PostgresRepository) ClearFCMTokens(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	query := `UPDATE users SET fcm_token = NULL WHERE id = ANY($1)`
	if _, err := r.db.Exec(ctx, query, userIDs); err != nil {
		return fmt.Errorf("failed to clear fcm tokens: %w", err)
	}
	return nil
}

// Ping checks the connection pool
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresRepository) queryUsers(ctx context.Context, query string, values []string) ([]*domain.User, error) {
	if len(values) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, query, values)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		var user domain.User
		var token *string
		if err := rows.Scan(&user.ID, &token); err != nil {
			return nil, err
		}
		if token != nil {
			user.FCMToken = *token
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

func scanNoteRequest(row pgx.Row) (*domain.NoteRequest, error) {
	var req domain.NoteRequest
	var status string
	var target *string
	err := row.Scan(
		&req.ID,
		&req.GroupID,
		&req.AuthorID,
		&req.AuthorName,
		&req.Subject,
		&status,
		&target,
	)
	if err != nil {
		return nil, err
	}
	req.Status = domain.RequestStatus(status)
	if target != nil {
		req.TargetUserID = *target
	}
	return &req, nil
}
