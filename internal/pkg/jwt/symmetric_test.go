package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type fakeUUID struct{}

func (fakeUUID) Generate() string {
	return "0195a3c2-0000-7000-8000-000000000001"
}

func testSecret() []byte {
	return []byte(strings.Repeat("0123456789abcdef", 4))
}

func TestNewHS512_RejectsShortSecret(t *testing.T) {
	_, err := NewHS512(Config{Secret: []byte("too-short")})
	if !errors.Is(err, ErrSigningKeyTooShort) {
		t.Errorf("expected ErrSigningKeyTooShort, got %v", err)
	}
}

func TestSymmetric_GenerateVerify(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	s, err := NewHS512(Config{
		Secret:    testSecret(),
		Issuer:    "scangate",
		Audiences: []string{"oncosight-dashboard"},
		TTL:       time.Hour,
		Clock:     clk,
		UUID:      fakeUUID{},
	})
	if err != nil {
		t.Fatalf("new hs512: %v", err)
	}

	token, err := s.Generate("doctor@example.com", "login")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := s.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Identity != "doctor@example.com" {
		t.Errorf("expected identity claim, got %q", claims.Identity)
	}
	if claims.Purpose != "login" {
		t.Errorf("expected purpose claim, got %q", claims.Purpose)
	}
	if claims.Subject != "doctor@example.com" {
		t.Errorf("expected subject to mirror identity, got %q", claims.Subject)
	}
	if claims.Issuer != "scangate" {
		t.Errorf("expected issuer claim, got %q", claims.Issuer)
	}
}

func TestSymmetric_VerifyRejectsTampering(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	s, err := NewHS512(Config{
		Secret:    testSecret(),
		Issuer:    "scangate",
		Audiences: []string{"oncosight-dashboard"},
		TTL:       time.Hour,
		Clock:     clk,
		UUID:      fakeUUID{},
	})
	if err != nil {
		t.Fatalf("new hs512: %v", err)
	}

	token, err := s.Generate("doctor@example.com", "login")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := s.Verify(token + "x"); err == nil {
		t.Error("expected tampered token to fail verification")
	}
	if _, err := s.Verify("not-a-token"); err == nil {
		t.Error("expected malformed token to fail verification")
	}

	other, err := NewHS512(Config{
		Secret:    []byte(strings.Repeat("fedcba9876543210", 4)),
		Issuer:    "scangate",
		Audiences: []string{"oncosight-dashboard"},
		TTL:       time.Hour,
		Clock:     clk,
		UUID:      fakeUUID{},
	})
	if err != nil {
		t.Fatalf("new hs512: %v", err)
	}
	if _, err := other.Verify(token); err == nil {
		t.Error("expected token signed with another key to fail verification")
	}
}

func TestSymmetric_VerifyRejectsExpired(t *testing.T) {
	clk := &fakeClock{now: time.Now().Add(-2 * time.Hour)}
	s, err := NewHS512(Config{
		Secret:    testSecret(),
		Issuer:    "scangate",
		Audiences: []string{"oncosight-dashboard"},
		TTL:       time.Hour,
		Clock:     clk,
		UUID:      fakeUUID{},
	})
	if err != nil {
		t.Fatalf("new hs512: %v", err)
	}

	token, err := s.Generate("doctor@example.com", "login")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := s.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}
