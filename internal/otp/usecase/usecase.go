package usecase

import (
	"context"
	"time"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/pkg/clock"
	"github.com/oncosight/scangate/internal/pkg/config"
	"github.com/oncosight/scangate/internal/pkg/instrument"
	"github.com/oncosight/scangate/internal/pkg/jwt"
	"github.com/oncosight/scangate/internal/pkg/ratelimit"
	"github.com/oncosight/scangate/internal/pkg/uid"
	"github.com/oncosight/scangate/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTTL = 10 * time.Minute
)

type challengeStore interface {
	Put(ctx context.Context, ch entity.Challenge) error
	Get(ctx context.Context, key entity.Key) (*entity.Challenge, error)
	Consume(ctx context.Context, key entity.Key) (*entity.Challenge, error)
	Delete(ctx context.Context, key entity.Key) error
	RecordMismatch(ctx context.Context, key entity.Key) (int64, error)
}

type codeGenerator interface {
	Generate() (string, error)
}

type codeHasher interface {
	Hash(str string) ([]byte, error)
	Verify(hashed, str string) bool
}

type challengeMailer interface {
	SendChallenge(ctx context.Context, identity string, purpose entity.Purpose, code string, ttl time.Duration) error
}

type auditRecorder interface {
	Record(ctx context.Context, ev entity.Event) error
}

// Usecase implements the OTP gateway flows: issue a challenge, verify it.
type Usecase struct {
	store     challengeStore
	limiter   ratelimit.Limiter
	mailer    challengeMailer
	audit     auditRecorder
	cfg       config.Config
	uid       uid.NumberID
	clock     clock.Clocker
	validator validator.Validator
	codegen   codeGenerator
	hasher    codeHasher
	jwt       jwt.JWT
	ins       instrument.Instrumentation
}

// Dependency lists everything the usecase needs.
type Dependency struct {
	Store      challengeStore
	Limiter    ratelimit.Limiter
	Mailer     challengeMailer
	Audit      auditRecorder
	Config     config.Config
	UID        uid.NumberID
	Clock      clock.Clocker
	Validator  validator.Validator
	CodeGen    codeGenerator
	Hasher     codeHasher
	JWT        jwt.JWT
	Instrument instrument.Instrumentation
}

// NewOTP constructs the OTP usecase.
func NewOTP(dep Dependency) *Usecase {
	return &Usecase{
		store:     dep.Store,
		limiter:   dep.Limiter,
		mailer:    dep.Mailer,
		audit:     dep.Audit,
		cfg:       dep.Config,
		uid:       dep.UID,
		clock:     dep.Clock,
		validator: dep.Validator,
		codegen:   dep.CodeGen,
		hasher:    dep.Hasher,
		jwt:       dep.JWT,
		ins:       dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otp.usecase").Start(ctx, name)
}

func (s *Usecase) ttl() time.Duration {
	if ttl := s.cfg.GetMinute("modules.otp.ttl_minutes"); ttl > 0 {
		return ttl
	}
	return defaultTTL
}

// maxAttempts returns the mismatch cap; zero disables the cap.
func (s *Usecase) maxAttempts() int64 {
	return s.cfg.GetInt64("modules.otp.max_attempts")
}

func (s *Usecase) record(ctx context.Context, name entity.EventName, identity string, purpose entity.Purpose, reason entity.RejectReason) {
	ev := entity.Event{
		ID:       s.uid.Generate(),
		Name:     name,
		Identity: identity,
		Purpose:  purpose,
		Reason:   reason,
		At:       s.clock.Now(),
	}

	//nolint:errcheck // audit is best effort and logs its own failures
	_ = s.audit.Record(ctx, ev)
}
