package domain

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// TokenFetcher resolves user ids to push tokens in lookups no larger than
// the store's membership limit.
type TokenFetcher struct {
	users       UserRepository
	batchSize   int
	concurrency int
	timeout     time.Duration
}

func NewTokenFetcher(users UserRepository, batchSize, concurrency int, timeout time.Duration) *TokenFetcher {
	if batchSize <= 0 {
		batchSize = DefaultMaxQueryBatch
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TokenFetcher{
		users:       users,
		batchSize:   batchSize,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// Fetch returns one token per user that has one registered, deduplicated.
// Chunks are read concurrently but assembled in chunk order. If any chunk
// fails the whole fetch fails.
func (f *TokenFetcher) Fetch(ctx context.Context, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	chunks := Chunk(userIDs, f.batchSize)
	results := make([][]*User, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			users, err := f.lookup(gctx, chunk)
			if err != nil {
				return fmt.Errorf("failed to fetch users (chunk %d of %d): %w", i+1, len(chunks), err)
			}
			results[i] = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tokens := newOrderedSet()
	for _, users := range results {
		for _, u := range users {
			if u.HasToken() {
				tokens.add(u.FCMToken)
			}
		}
	}
	return tokens.items, nil
}

func (f *TokenFetcher) lookup(ctx context.Context, ids []string) ([]*User, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return f.users.GetUsersByIDs(ctx, ids)
}

// Chunk splits items into consecutive slices of at most size elements
func Chunk(items []string, size int) [][]string {
	if size <= 0 {
		size = DefaultMaxQueryBatch
	}
	var chunks [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
