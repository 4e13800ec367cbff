package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s+%d@oncosight.example", prefix, time.Now().UnixNano())
}

func TestOTPChallenge_Success(t *testing.T) {
	payload := map[string]any{
		"email":   uniqueEmail("challenge-ok"),
		"purpose": "login",
	}

	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/challenge", payload, "")
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", status, body)
	}

	env := decodeSuccess(t, body)
	if env.Message != "verification code sent" {
		t.Errorf("unexpected message: %q", env.Message)
	}

	var data struct {
		Accepted         bool   `json:"accepted"`
		Email            string `json:"email"`
		Purpose          string `json:"purpose"`
		ExpiresInSeconds int64  `json:"expires_in_seconds"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if !data.Accepted {
		t.Error("expected accepted to be true")
	}
	if data.ExpiresInSeconds <= 0 {
		t.Errorf("expected positive expiry, got %d", data.ExpiresInSeconds)
	}
}

func TestOTPChallenge_NormalizesEmail(t *testing.T) {
	raw := uniqueEmail("Challenge-Case")
	payload := map[string]any{
		"email":   "  " + raw + "  ",
		"purpose": "signup",
	}

	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/challenge", payload, "")
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", status, body)
	}
}

func TestOTPChallenge_InvalidEmail(t *testing.T) {
	payload := map[string]any{
		"email":   "not-an-email",
		"purpose": "login",
	}

	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/challenge", payload, "")
	if status != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d (%s)", status, body)
	}

	env := decodeError(t, body)
	if env.Error["email"] == "" {
		t.Errorf("expected email field error, got %v", env.Error)
	}
}

func TestOTPChallenge_InvalidPurpose(t *testing.T) {
	payload := map[string]any{
		"email":   uniqueEmail("challenge-purpose"),
		"purpose": "reset",
	}

	status, body := doJSON(t, http.MethodPost, "/api/v1/otp/challenge", payload, "")
	if status != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d (%s)", status, body)
	}
}

func TestOTPChallenge_RateLimited(t *testing.T) {
	payload := map[string]any{
		"email":   uniqueEmail("challenge-burst"),
		"purpose": "login",
	}

	var status int
	var body []byte
	for i := 0; i < 15; i++ {
		status, body = doJSON(t, http.MethodPost, "/api/v1/otp/challenge", payload, "")
		if status == http.StatusTooManyRequests {
			break
		}
	}

	if status != http.StatusTooManyRequests {
		t.Skipf("rate limit not reached, last status %d (%s)", status, body)
	}

	env := decodeError(t, body)
	if env.Error["retry_after"] == "" {
		t.Errorf("expected retry_after hint, got %v", env.Error)
	}
}
