package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const sendgridMailSendURL = "https://api.sendgrid.com/v3/mail/send"

var (
	// ErrSendGridKeyRequired is returned when the API key is missing.
	ErrSendGridKeyRequired = errors.New("sendgrid api key is required")
	// ErrSendGridNoRecipients is returned when To is empty.
	ErrSendGridNoRecipients = errors.New("no recipients provided")
	// ErrSendGridNoSender is returned when both Message.From and the configured default From are empty.
	ErrSendGridNoSender = errors.New("no sender provided")
)

// SendGrid is a Mail implementation backed by the SendGrid v3 HTTP API.
type SendGrid struct {
	apiKey      string
	defaultFrom string
	baseURL     string
	client      *http.Client
}

// SendGridConfig configures the SendGrid implementation.
type SendGridConfig struct {
	// APIKey is the SendGrid API key.
	APIKey string
	// From is the default sender when Message.From is empty.
	From string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// NewSendGrid constructs a SendGrid mail sender.
func NewSendGrid(cfg SendGridConfig) (*SendGrid, error) {
	if cfg.APIKey == "" {
		return nil, ErrSendGridKeyRequired
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sendgridMailSendURL
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &SendGrid{
		apiKey:      cfg.APIKey,
		defaultFrom: cfg.From,
		baseURL:     baseURL,
		client:      client,
	}, nil
}

type sgAddress struct {
	Email string `json:"email"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To  []sgAddress `json:"to"`
	Cc  []sgAddress `json:"cc,omitempty"`
	Bcc []sgAddress `json:"bcc,omitempty"`
}

type sgPayload struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgAddress           `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// Send delivers a message through the SendGrid API.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrSendGridNoRecipients
	}

	from := msg.From
	if from == "" {
		from = s.defaultFrom
	}
	if from == "" {
		return ErrSendGridNoSender
	}

	// SendGrid requires plain text content before HTML content.
	var content []sgContent
	if msg.TextBody != "" {
		content = append(content, sgContent{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		content = append(content, sgContent{Type: "text/html", Value: msg.HTMLBody})
	}
	if len(content) == 0 {
		content = append(content, sgContent{Type: "text/plain", Value: ""})
	}

	payload := sgPayload{
		Personalizations: []sgPersonalization{{
			To:  toAddresses(msg.To),
			Cc:  toAddresses(msg.Cc),
			Bcc: toAddresses(msg.Bcc),
		}},
		From:    sgAddress{Email: from},
		Subject: msg.Subject,
		Content: content,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &ProviderError{Provider: "sendgrid", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	transient := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError

	return &ProviderError{
		Provider:  "sendgrid",
		Transient: transient,
		Err:       fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(detail)),
	}
}

// Close implements io.Closer for interface compatibility.
func (s *SendGrid) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func toAddresses(emails []string) []sgAddress {
	if len(emails) == 0 {
		return nil
	}

	addrs := make([]sgAddress, 0, len(emails))
	for _, e := range emails {
		addrs = append(addrs, sgAddress{Email: e})
	}
	return addrs
}
