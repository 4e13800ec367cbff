package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/goerror"
)

// VerifyChallengeInput carries a verification attempt.
type VerifyChallengeInput struct {
	Email   string `validate:"required,email"`
	Purpose string `validate:"required,oneof=login signup"`
	Code    string `validate:"required,otpcode"`
}

// VerifyChallengeOutput reports a successful verification.
type VerifyChallengeOutput struct {
	Identity string
	Purpose  entity.Purpose
	Token    string
}

// VerifyChallenge checks a submitted passcode against the pending challenge.
//
// A matching code consumes the challenge; of two concurrent matches exactly
// one wins. A mismatch leaves the challenge pending until the attempt cap
// invalidates it. An expired challenge is removed on first touch.
func (s *Usecase) VerifyChallenge(ctx context.Context, in VerifyChallengeInput) (*VerifyChallengeOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyChallenge")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	purpose := entity.Purpose(in.Purpose)
	key := entity.Key{Identity: in.Email, Purpose: purpose}

	ch, err := s.store.Get(ctx, key)
	if errors.Is(err, goerror.ErrNotFound) {
		return nil, s.reject(ctx, key, entity.RejectNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to read pending challenge", "error", err)
		return nil, goerror.NewServer(err)
	}

	if ch.ExpiredAt(s.clock.Now()) {
		if err := s.store.Delete(ctx, key); err != nil {
			slog.ErrorContext(ctx, "failed to drop expired challenge", "error", err)
		}
		return nil, s.reject(ctx, key, entity.RejectExpired)
	}

	if !s.hasher.Verify(ch.CodeHash, in.Code) {
		return nil, s.mismatch(ctx, key)
	}

	consumed, err := s.store.Consume(ctx, key)
	if errors.Is(err, goerror.ErrNotFound) {
		// A concurrent verification won the race.
		return nil, s.reject(ctx, key, entity.RejectNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to consume challenge", "error", err)
		return nil, goerror.NewServer(err)
	}

	// The slot may have been superseded between Get and Consume. The consumed
	// challenge is the authoritative one; re-check it.
	if consumed.ID != ch.ID {
		if consumed.ExpiredAt(s.clock.Now()) {
			return nil, s.reject(ctx, key, entity.RejectExpired)
		}
		if !s.hasher.Verify(consumed.CodeHash, in.Code) {
			if err := s.store.Put(ctx, *consumed); err != nil {
				slog.ErrorContext(ctx, "failed to restore superseding challenge", "error", err)
			}
			return nil, s.mismatch(ctx, key)
		}
	}

	token, err := s.jwt.Generate(in.Email, purpose.String())
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate session token", "error", err)
		return nil, goerror.NewServer(err)
	}

	s.record(ctx, entity.EventChallengeVerified, in.Email, purpose, "")

	return &VerifyChallengeOutput{
		Identity: in.Email,
		Purpose:  purpose,
		Token:    token,
	}, nil
}

// mismatch counts the failed attempt and invalidates the challenge once the
// cap is reached. A zero cap disables invalidation.
func (s *Usecase) mismatch(ctx context.Context, key entity.Key) error {
	attempts, err := s.store.RecordMismatch(ctx, key)
	if errors.Is(err, goerror.ErrNotFound) {
		return s.reject(ctx, key, entity.RejectNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to record mismatch", "error", err)
		return goerror.NewServer(err)
	}

	if maxAttempts := s.maxAttempts(); maxAttempts > 0 && attempts >= maxAttempts {
		if err := s.store.Delete(ctx, key); err != nil {
			slog.ErrorContext(ctx, "failed to invalidate exhausted challenge", "error", err)
		}
		return s.reject(ctx, key, entity.RejectTooManyAttempts)
	}

	return s.reject(ctx, key, entity.RejectMismatch)
}

func (s *Usecase) reject(ctx context.Context, key entity.Key, reason entity.RejectReason) error {
	slog.WarnContext(ctx, "verification rejected", "purpose", key.Purpose.String(), "reason", reason.String())
	s.record(ctx, entity.EventChallengeRejected, key.Identity, key.Purpose, reason)

	return goerror.NewBusinessField(
		"Verification failed",
		goerror.CodeInvalidInput,
		"reason", reason.String(),
	)
}
