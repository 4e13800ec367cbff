package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oncosight/scangate/internal/otp/entity"
	"github.com/oncosight/scangate/internal/otp/outbound/store"
	"github.com/oncosight/scangate/internal/pkg/codegen"
	"github.com/oncosight/scangate/internal/pkg/config"
	"github.com/oncosight/scangate/internal/pkg/goerror"
	"github.com/oncosight/scangate/internal/pkg/hash"
	"github.com/oncosight/scangate/internal/pkg/instrument"
	"github.com/oncosight/scangate/internal/pkg/jwt"
	"github.com/oncosight/scangate/internal/pkg/ratelimit"
	"github.com/oncosight/scangate/internal/pkg/validator"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type fakeUID struct {
	mu   sync.Mutex
	next int64
}

func (f *fakeUID) Generate() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return f.next
}

type fakeLimiter struct {
	result ratelimit.Result
	err    error
	keys   []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (ratelimit.Result, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return ratelimit.Result{}, f.err
	}
	return f.result, nil
}

type fakeMailer struct {
	err   error
	sent  []string
	codes []string
}

func (f *fakeMailer) SendChallenge(_ context.Context, identity string, _ entity.Purpose, code string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, identity)
	f.codes = append(f.codes, code)
	return nil
}

func (f *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	if len(f.codes) == 0 {
		t.Fatal("no challenge was mailed")
	}
	return f.codes[len(f.codes)-1]
}

type fakeAudit struct {
	mu     sync.Mutex
	events []entity.Event
}

func (f *fakeAudit) Record(_ context.Context, ev entity.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeAudit) last(t *testing.T) entity.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		t.Fatal("no audit event was recorded")
	}
	return f.events[len(f.events)-1]
}

type fakeJWT struct {
	err error
}

func (f *fakeJWT) Generate(identity, purpose string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token:" + identity + ":" + purpose, nil
}

func (f *fakeJWT) Verify(string) (jwt.Claims, error) {
	return jwt.Claims{}, nil
}

type fixture struct {
	uc      *Usecase
	store   *store.Memory
	limiter *fakeLimiter
	mailer  *fakeMailer
	audit   *fakeAudit
	clock   *fakeClock
}

func newFixture(t *testing.T, configYAML string) *fixture {
	t.Helper()

	if configYAML == "" {
		configYAML = "modules:\n  otp:\n    ttl_minutes: 10\n    max_attempts: 5\n"
	}

	cfg, err := config.NewViperFromBytes("yaml", []byte(configYAML))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	v10, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := store.NewMemory(clk)
	limiter := &fakeLimiter{result: ratelimit.Result{Allowed: true, Remaining: 9}}
	mailer := &fakeMailer{}
	audit := &fakeAudit{}

	uc := NewOTP(Dependency{
		Store:      st,
		Limiter:    limiter,
		Mailer:     mailer,
		Audit:      audit,
		Config:     cfg,
		UID:        &fakeUID{},
		Clock:      clk,
		Validator:  v10,
		CodeGen:    codegen.NewCryptoRand(),
		Hasher:     hash.NewHMACSHA256("test-secret"),
		JWT:        &fakeJWT{},
		Instrument: instrument.NewNoop(),
	})

	return &fixture{uc: uc, store: st, limiter: limiter, mailer: mailer, audit: audit, clock: clk}
}

func asGoError(t *testing.T, err error) *goerror.Error {
	t.Helper()
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *goerror.Error, got %T (%v)", err, err)
	}
	return gerr
}

func TestRequestChallenge_Success(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	out, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "  Doctor@Example.COM ",
		Purpose: "login",
	})
	if err != nil {
		t.Fatalf("request challenge: %v", err)
	}

	if out.Identity != "doctor@example.com" {
		t.Errorf("expected normalized identity, got %q", out.Identity)
	}
	if out.TTL != 10*time.Minute {
		t.Errorf("expected 10m ttl, got %v", out.TTL)
	}
	if !out.ExpiresAt.Equal(f.clock.now.Add(10 * time.Minute)) {
		t.Errorf("unexpected expiry %v", out.ExpiresAt)
	}

	code := f.mailer.lastCode(t)
	if len(code) != 6 {
		t.Errorf("expected 6-digit code, got %q", code)
	}

	ch, err := f.store.Get(ctx, entity.Key{Identity: "doctor@example.com", Purpose: entity.PurposeLogin})
	if err != nil {
		t.Fatalf("expected stored challenge: %v", err)
	}
	if ch.CodeHash == code {
		t.Error("expected the code to be stored hashed, not in plaintext")
	}

	if ev := f.audit.last(t); ev.Name != entity.EventChallengeIssued {
		t.Errorf("expected issued audit event, got %q", ev.Name)
	}

	if len(f.limiter.keys) != 1 || f.limiter.keys[0] != "doctor@example.com" {
		t.Errorf("expected limiter keyed by normalized identity, got %v", f.limiter.keys)
	}
}

func TestRequestChallenge_InvalidInput(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.uc.RequestChallenge(context.Background(), RequestChallengeInput{
		Email:   "not-an-email",
		Purpose: "login",
	})
	gerr := asGoError(t, err)
	if gerr.Code() != goerror.CodeInvalidInput {
		t.Errorf("expected invalid input code, got %v", gerr.Code())
	}
	if len(f.mailer.codes) != 0 {
		t.Error("expected no mail for invalid input")
	}

	_, err = f.uc.RequestChallenge(context.Background(), RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "reset",
	})
	gerr = asGoError(t, err)
	if gerr.Code() != goerror.CodeInvalidInput {
		t.Errorf("expected invalid input code for unknown purpose, got %v", gerr.Code())
	}
}

func TestRequestChallenge_RateLimited(t *testing.T) {
	f := newFixture(t, "")
	f.limiter.result = ratelimit.Result{Allowed: false, RetryAfter: 90 * time.Second}

	_, err := f.uc.RequestChallenge(context.Background(), RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	})
	gerr := asGoError(t, err)
	if gerr.Code() != goerror.CodeTooManyRequest {
		t.Errorf("expected too many requests code, got %v", gerr.Code())
	}
	if got := gerr.Fields()["retry_after"]; got != "90" {
		t.Errorf("expected retry_after 90, got %q", got)
	}
	if len(f.mailer.codes) != 0 {
		t.Error("expected no mail when throttled")
	}
	if ev := f.audit.last(t); ev.Name != entity.EventRateLimited {
		t.Errorf("expected rate_limited audit event, got %q", ev.Name)
	}
}

func TestRequestChallenge_DeliveryFailureEmptySlot(t *testing.T) {
	f := newFixture(t, "")
	f.mailer.err = errors.New("smtp down")
	ctx := context.Background()

	_, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	})
	gerr := asGoError(t, err)
	if gerr.Code() != goerror.CodeBadGateway {
		t.Errorf("expected bad gateway code, got %v", gerr.Code())
	}

	key := entity.Key{Identity: "doctor@example.com", Purpose: entity.PurposeLogin}
	if _, err := f.store.Get(ctx, key); !errors.Is(err, goerror.ErrNotFound) {
		t.Errorf("expected slot to be empty after failed delivery, got %v", err)
	}
	if ev := f.audit.last(t); ev.Name != entity.EventDeliveryFailed {
		t.Errorf("expected delivery_failed audit event, got %q", ev.Name)
	}
}

func TestRequestChallenge_DeliveryFailureRestoresPrevious(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err != nil {
		t.Fatalf("first challenge: %v", err)
	}
	firstCode := f.mailer.lastCode(t)

	f.mailer.err = errors.New("smtp down")
	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err == nil {
		t.Fatal("expected delivery failure")
	}
	f.mailer.err = nil

	// The first code still verifies; the failed request changed nothing.
	out, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
		Code:    firstCode,
	})
	if err != nil {
		t.Fatalf("verify after rollback: %v", err)
	}
	if out.Token == "" {
		t.Error("expected a session token")
	}
}

func TestRequestChallenge_SupersedesPending(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err != nil {
		t.Fatalf("first challenge: %v", err)
	}
	firstCode := f.mailer.lastCode(t)

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err != nil {
		t.Fatalf("second challenge: %v", err)
	}
	secondCode := f.mailer.lastCode(t)

	if firstCode == secondCode {
		t.Skip("generated codes collided; cannot distinguish slots")
	}

	_, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
		Code:    firstCode,
	})
	gerr := asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectMismatch.String() {
		t.Errorf("expected superseded code to mismatch, got %q", got)
	}

	out, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
		Code:    secondCode,
	})
	if err != nil {
		t.Fatalf("verify superseding code: %v", err)
	}
	if out.Token == "" {
		t.Error("expected a session token")
	}
}

func TestVerifyChallenge_Success(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "signup",
	}); err != nil {
		t.Fatalf("request challenge: %v", err)
	}

	out, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email:   "Doctor@example.com",
		Purpose: "signup",
		Code:    f.mailer.lastCode(t),
	})
	if err != nil {
		t.Fatalf("verify challenge: %v", err)
	}

	if out.Token != "token:doctor@example.com:signup" {
		t.Errorf("unexpected token %q", out.Token)
	}
	if ev := f.audit.last(t); ev.Name != entity.EventChallengeVerified {
		t.Errorf("expected verified audit event, got %q", ev.Name)
	}

	// The challenge is single use.
	_, err = f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "signup",
		Code:    f.mailer.lastCode(t),
	})
	gerr := asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectNotFound.String() {
		t.Errorf("expected NOT_FOUND on reuse, got %q", got)
	}
}

func TestVerifyChallenge_NotFound(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.uc.VerifyChallenge(context.Background(), VerifyChallengeInput{
		Email:   "nobody@example.com",
		Purpose: "login",
		Code:    "123456",
	})
	gerr := asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectNotFound.String() {
		t.Errorf("expected NOT_FOUND, got %q", got)
	}
	if ev := f.audit.last(t); ev.Name != entity.EventChallengeRejected {
		t.Errorf("expected rejected audit event, got %q", ev.Name)
	}
}

func TestVerifyChallenge_MalformedCode(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.uc.VerifyChallenge(context.Background(), VerifyChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
		Code:    "12345",
	})
	gerr := asGoError(t, err)
	if gerr.Code() != goerror.CodeInvalidInput {
		t.Errorf("expected invalid input code, got %v", gerr.Code())
	}
}

func TestVerifyChallenge_MismatchKeepsChallenge(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err != nil {
		t.Fatalf("request challenge: %v", err)
	}
	code := f.mailer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
		Code:    wrong,
	})
	gerr := asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectMismatch.String() {
		t.Errorf("expected MISMATCH, got %q", got)
	}

	// The real code still works afterwards.
	if _, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
		Code:    code,
	}); err != nil {
		t.Fatalf("verify after mismatch: %v", err)
	}
}

func TestVerifyChallenge_AttemptCapInvalidates(t *testing.T) {
	f := newFixture(t, "modules:\n  otp:\n    ttl_minutes: 10\n    max_attempts: 2\n")
	ctx := context.Background()

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err != nil {
		t.Fatalf("request challenge: %v", err)
	}
	code := f.mailer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	_, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email: "doctor@example.com", Purpose: "login", Code: wrong,
	})
	gerr := asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectMismatch.String() {
		t.Fatalf("expected MISMATCH on first attempt, got %q", got)
	}

	_, err = f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email: "doctor@example.com", Purpose: "login", Code: wrong,
	})
	gerr = asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectTooManyAttempts.String() {
		t.Fatalf("expected TOO_MANY_ATTEMPTS at the cap, got %q", got)
	}

	// The challenge is gone; even the right code no longer verifies.
	_, err = f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email: "doctor@example.com", Purpose: "login", Code: code,
	})
	gerr = asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectNotFound.String() {
		t.Errorf("expected NOT_FOUND after invalidation, got %q", got)
	}
}

func TestVerifyChallenge_ZeroCapNeverInvalidates(t *testing.T) {
	f := newFixture(t, "modules:\n  otp:\n    ttl_minutes: 10\n    max_attempts: 0\n")
	ctx := context.Background()

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err != nil {
		t.Fatalf("request challenge: %v", err)
	}
	code := f.mailer.lastCode(t)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i := 0; i < 10; i++ {
		_, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
			Email: "doctor@example.com", Purpose: "login", Code: wrong,
		})
		gerr := asGoError(t, err)
		if got := gerr.Fields()["reason"]; got != entity.RejectMismatch.String() {
			t.Fatalf("attempt %d: expected MISMATCH, got %q", i, got)
		}
	}

	if _, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email: "doctor@example.com", Purpose: "login", Code: code,
	}); err != nil {
		t.Fatalf("verify after many mismatches: %v", err)
	}
}

func TestVerifyChallenge_Expired(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err != nil {
		t.Fatalf("request challenge: %v", err)
	}
	code := f.mailer.lastCode(t)

	f.clock.now = f.clock.now.Add(10 * time.Minute)

	_, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email: "doctor@example.com", Purpose: "login", Code: code,
	})
	gerr := asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectExpired.String() {
		t.Errorf("expected EXPIRED exactly at the deadline, got %q", got)
	}

	// The expired challenge was dropped on first touch.
	_, err = f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email: "doctor@example.com", Purpose: "login", Code: code,
	})
	gerr = asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectNotFound.String() {
		t.Errorf("expected NOT_FOUND after expiry cleanup, got %q", got)
	}
}

func TestVerifyChallenge_PurposeIsolation(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	if _, err := f.uc.RequestChallenge(ctx, RequestChallengeInput{
		Email:   "doctor@example.com",
		Purpose: "login",
	}); err != nil {
		t.Fatalf("request challenge: %v", err)
	}
	code := f.mailer.lastCode(t)

	_, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email: "doctor@example.com", Purpose: "signup", Code: code,
	})
	gerr := asGoError(t, err)
	if got := gerr.Fields()["reason"]; got != entity.RejectNotFound.String() {
		t.Errorf("expected NOT_FOUND for wrong purpose, got %q", got)
	}

	// The login challenge is untouched.
	if _, err := f.uc.VerifyChallenge(ctx, VerifyChallengeInput{
		Email: "doctor@example.com", Purpose: "login", Code: code,
	}); err != nil {
		t.Fatalf("verify in the right purpose: %v", err)
	}
}
