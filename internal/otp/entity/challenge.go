package entity

import "time"

// Key identifies a challenge slot. Each identity holds at most one live
// challenge per purpose, so login and signup flows never collide.
type Key struct {
	// Identity is the normalized email address.
	Identity string
	// Purpose is the flow the challenge belongs to.
	Purpose Purpose
}

// Challenge is a pending one-time passcode.
//
// The plaintext code is never stored; CodeHash holds a keyed hash and
// verification compares hashes in constant time.
type Challenge struct {
	ID        int64
	Identity  string
	Purpose   Purpose
	CodeHash  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Attempts  int64
}

// Key returns the slot this challenge occupies.
func (c Challenge) Key() Key {
	return Key{Identity: c.Identity, Purpose: c.Purpose}
}

// ExpiredAt reports whether the challenge is expired at the given instant.
// A challenge expires exactly at ExpiresAt, not one tick later.
func (c Challenge) ExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
