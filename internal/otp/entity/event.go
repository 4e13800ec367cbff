package entity

import "time"

// EventName labels an audit trail entry.
type EventName string

const (
	// EventChallengeIssued records a successfully delivered challenge.
	EventChallengeIssued EventName = "challenge_issued"
	// EventChallengeVerified records a successful verification.
	EventChallengeVerified EventName = "challenge_verified"
	// EventChallengeRejected records a refused verification attempt.
	EventChallengeRejected EventName = "challenge_rejected"
	// EventRateLimited records a throttled challenge request.
	EventRateLimited EventName = "rate_limited"
	// EventDeliveryFailed records a challenge whose email could not be sent.
	EventDeliveryFailed EventName = "delivery_failed"
)

// String returns the event name as its wire value.
func (n EventName) String() string {
	return string(n)
}

// Event is an audit trail entry. Events never contain the passcode or its
// hash, only the outcome.
type Event struct {
	ID       int64
	Name     EventName
	Identity string
	Purpose  Purpose
	Reason   RejectReason
	At       time.Time
}
