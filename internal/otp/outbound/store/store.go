// Package store holds the pending-challenge backends.
//
// A store is a keyed slot map: Put replaces whatever challenge occupies the
// slot, so re-requesting a code supersedes the previous one. Expiry judgment
// belongs to the caller; the store only keeps and returns state.
package store

import (
	"context"

	"github.com/oncosight/scangate/internal/otp/entity"
)

// Store persists pending challenges.
//
// Implementations must make Consume and RecordMismatch atomic per key so
// concurrent verifications cannot both win or lose an attempt count.
type Store interface {
	// Put stores the challenge, replacing any pending one in the same slot.
	Put(ctx context.Context, ch entity.Challenge) error

	// Get returns the pending challenge, or goerror.ErrNotFound.
	Get(ctx context.Context, key entity.Key) (*entity.Challenge, error)

	// Consume atomically removes and returns the pending challenge, or
	// goerror.ErrNotFound when the slot is empty. Of two concurrent calls,
	// exactly one receives the challenge.
	Consume(ctx context.Context, key entity.Key) (*entity.Challenge, error)

	// Delete removes the pending challenge. Deleting an empty slot is not
	// an error.
	Delete(ctx context.Context, key entity.Key) error

	// RecordMismatch increments the failed-attempt counter and returns the
	// new count, or goerror.ErrNotFound when the slot is empty.
	RecordMismatch(ctx context.Context, key entity.Key) (int64, error)
}
