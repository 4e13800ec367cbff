package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/goerror"
	"github.com/redis/go-redis/v9"
)

// expiredRetention keeps an expired challenge around long enough for a late
// verification to be told EXPIRED instead of NOT_FOUND. The usecase never
// accepts an expired challenge regardless of what the store returns.
const expiredRetention = time.Hour

var consumeScript = redis.NewScript(`
local v = redis.call("HGETALL", KEYS[1])
if #v == 0 then
	return v
end
redis.call("DEL", KEYS[1])
return v
`)

var mismatchScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// Redis is a Store backed by a shared Redis instance, so a challenge issued
// by one gateway replica can be verified on another.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedis constructs a Redis-backed challenge store.
func NewRedis(client redis.UniversalClient, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "otp:challenge:"
	}

	return &Redis{client: client, keyPrefix: keyPrefix}
}

func (r *Redis) key(key entity.Key) string {
	return r.keyPrefix + key.Purpose.String() + ":" + key.Identity
}

// Put stores the challenge, replacing any pending one in the same slot.
func (r *Redis) Put(ctx context.Context, ch entity.Challenge) error {
	key := r.key(ch.Key())

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		"id":         ch.ID,
		"identity":   ch.Identity,
		"purpose":    ch.Purpose.String(),
		"code_hash":  ch.CodeHash,
		"issued_at":  ch.IssuedAt.UnixMilli(),
		"expires_at": ch.ExpiresAt.UnixMilli(),
		"attempts":   ch.Attempts,
	})
	pipe.PExpireAt(ctx, key, ch.ExpiresAt.Add(expiredRetention))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("otp store: redis put: %w", err)
	}

	return nil
}

// Get returns the pending challenge, or goerror.ErrNotFound.
func (r *Redis) Get(ctx context.Context, key entity.Key) (*entity.Challenge, error) {
	fields, err := r.client.HGetAll(ctx, r.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("otp store: redis get: %w", err)
	}
	if len(fields) == 0 {
		return nil, goerror.ErrNotFound
	}

	return parseChallenge(fields)
}

// Consume atomically removes and returns the pending challenge.
func (r *Redis) Consume(ctx context.Context, key entity.Key) (*entity.Challenge, error) {
	vals, err := consumeScript.Run(ctx, r.client, []string{r.key(key)}).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("otp store: redis consume: %w", err)
	}
	if len(vals) == 0 {
		return nil, goerror.ErrNotFound
	}

	fields := make(map[string]string, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		fields[vals[i]] = vals[i+1]
	}

	return parseChallenge(fields)
}

// Delete removes the pending challenge, if any.
func (r *Redis) Delete(ctx context.Context, key entity.Key) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("otp store: redis delete: %w", err)
	}
	return nil
}

// RecordMismatch increments the failed-attempt counter and returns the new count.
func (r *Redis) RecordMismatch(ctx context.Context, key entity.Key) (int64, error) {
	count, err := mismatchScript.Run(ctx, r.client, []string{r.key(key)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("otp store: redis mismatch: %w", err)
	}
	if count < 0 {
		return 0, goerror.ErrNotFound
	}

	return count, nil
}

func parseChallenge(fields map[string]string) (*entity.Challenge, error) {
	id, err := strconv.ParseInt(fields["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp store: parse id: %w", err)
	}

	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp store: parse issued_at: %w", err)
	}

	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp store: parse expires_at: %w", err)
	}

	attempts, err := strconv.ParseInt(fields["attempts"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("otp store: parse attempts: %w", err)
	}

	return &entity.Challenge{
		ID:        id,
		Identity:  fields["identity"],
		Purpose:   entity.Purpose(fields["purpose"]),
		CodeHash:  fields["code_hash"],
		IssuedAt:  time.UnixMilli(issuedAt).UTC(),
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
		Attempts:  attempts,
	}, nil
}
