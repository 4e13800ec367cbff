package entity

// Purpose is the flow an OTP challenge belongs to.
type Purpose string

const (
	// PurposeLogin is a sign-in verification flow.
	PurposeLogin Purpose = "login"
	// PurposeSignup is a registration verification flow.
	PurposeSignup Purpose = "signup"
)

// String returns the purpose as its wire value.
func (p Purpose) String() string {
	return string(p)
}

// Valid reports whether the purpose is a known flow.
func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposeSignup
}

// RejectReason explains why a verification attempt was refused.
type RejectReason string

const (
	// RejectNotFound means no challenge is pending for the identity and purpose.
	RejectNotFound RejectReason = "NOT_FOUND"
	// RejectExpired means the pending challenge outlived its TTL.
	RejectExpired RejectReason = "EXPIRED"
	// RejectMismatch means the submitted code did not match.
	RejectMismatch RejectReason = "MISMATCH"
	// RejectTooManyAttempts means the mismatch cap was reached and the
	// challenge was invalidated.
	RejectTooManyAttempts RejectReason = "TOO_MANY_ATTEMPTS"
)

// String returns the reason as its wire value.
func (r RejectReason) String() string {
	return string(r)
}
