package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/goerror"
)

// RequestChallengeInput carries a challenge request.
type RequestChallengeInput struct {
	Email   string `validate:"required,email"`
	Purpose string `validate:"required,oneof=login signup"`
}

// RequestChallengeOutput reports an accepted challenge.
type RequestChallengeOutput struct {
	Identity  string
	Purpose   entity.Purpose
	ExpiresAt time.Time
	TTL       time.Duration
}

// RequestChallenge issues a fresh passcode for the identity and emails it.
//
// A pending challenge in the same slot is superseded. If the email cannot be
// delivered the slot is restored to its previous state, so a failed request
// never invalidates a code the user already holds.
func (s *Usecase) RequestChallenge(ctx context.Context, in RequestChallengeInput) (*RequestChallengeOutput, error) {
	ctx, span := s.startSpan(ctx, "RequestChallenge")
	defer span.End()

	in.Email = strings.TrimSpace(strings.ToLower(in.Email))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	purpose := entity.Purpose(in.Purpose)
	key := entity.Key{Identity: in.Email, Purpose: purpose}

	res, err := s.limiter.Allow(ctx, in.Email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check rate limit", "error", err)
		return nil, goerror.NewServer(err)
	}
	if !res.Allowed {
		slog.WarnContext(ctx, "challenge request throttled", "purpose", purpose.String())
		s.record(ctx, entity.EventRateLimited, in.Email, purpose, "")

		retryAfter := int64(math.Ceil(res.RetryAfter.Seconds()))
		return nil, goerror.NewBusinessField(
			"Too many requests, try again later",
			goerror.CodeTooManyRequest,
			"retry_after", strconv.FormatInt(retryAfter, 10),
		)
	}

	code, err := s.codegen.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate passcode", "error", err)
		return nil, goerror.NewServer(err)
	}

	codeHash, err := s.hasher.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash passcode", "error", err)
		return nil, goerror.NewServer(err)
	}

	prev, err := s.store.Get(ctx, key)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to read pending challenge", "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	ttl := s.ttl()
	ch := entity.Challenge{
		ID:        s.uid.Generate(),
		Identity:  in.Email,
		Purpose:   purpose,
		CodeHash:  string(codeHash),
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	if err := s.store.Put(ctx, ch); err != nil {
		slog.ErrorContext(ctx, "failed to store challenge", "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.mailer.SendChallenge(ctx, in.Email, purpose, code, ttl); err != nil {
		s.rollback(ctx, key, prev)
		s.record(ctx, entity.EventDeliveryFailed, in.Email, purpose, "")
		return nil, goerror.NewBusiness("Could not deliver the verification code", goerror.CodeBadGateway)
	}

	s.record(ctx, entity.EventChallengeIssued, in.Email, purpose, "")

	return &RequestChallengeOutput{
		Identity:  in.Email,
		Purpose:   purpose,
		ExpiresAt: ch.ExpiresAt,
		TTL:       ttl,
	}, nil
}

// rollback restores the slot after a failed delivery: the superseded
// challenge comes back, or the slot empties if there was none.
func (s *Usecase) rollback(ctx context.Context, key entity.Key, prev *entity.Challenge) {
	var err error
	if prev != nil {
		err = s.store.Put(ctx, *prev)
	} else {
		err = s.store.Delete(ctx, key)
	}

	if err != nil {
		slog.ErrorContext(ctx, "failed to roll back challenge slot", "error", err)
	}
}
