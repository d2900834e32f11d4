package domain

import "errors"

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrInvalidRecord = errors.New("invalid record")
	ErrBatchTooLarge = errors.New("batch exceeds query limit")
)

// DefaultMaxQueryBatch is the membership limit of an "in" query on the
// record store (Firestore allows 30 values).
const DefaultMaxQueryBatch = 30
