package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oncosight/scangate/internal/pkg/config"
	"github.com/oncosight/scangate/internal/pkg/goerror"
	"github.com/oncosight/scangate/internal/pkg/instrument"
	"github.com/oncosight/scangate/internal/pkg/mail"
	"github.com/oncosight/scangate/internal/pkg/messaging"
	"github.com/oncosight/scangate/internal/pkg/validator"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type fakeUID struct {
	next int64
}

func (f *fakeUID) Generate() int64 {
	f.next++
	return f.next
}

type fakeMail struct {
	err  error
	sent []mail.Message
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakePublisher struct {
	topics   []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(_ context.Context, topic string, msg messaging.OutgoingMessage) (messaging.PublishResult, error) {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, msg.Body)
	return messaging.PublishResult{}, nil
}

func newFixture(t *testing.T) (*Usecase, *fakeMail, *fakePublisher, *fakeClock) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("modules:\n  reports:\n    topic: unit.reports\nmail:\n  send_timeout_seconds: 5\n"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	v10, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m := &fakeMail{}
	pub := &fakePublisher{}

	uc := NewReports(Dependency{
		RepoMail:   m,
		Publisher:  pub,
		Config:     cfg,
		UID:        &fakeUID{},
		Clock:      clk,
		Validator:  v10,
		Instrument: instrument.NewNoop(),
	})

	return uc, m, pub, clk
}

func validInput() SendReportInput {
	return SendReportInput{
		DoctorEmail:  "Doctor@Example.com",
		PatientEmail: "patient@example.com",
		PatientName:  "Jane Roe",
		Phone:        "+1 555 0100",
		HasTumor:     true,
		Confidence:   0.973,
		Message:      "Lesion in upper left quadrant.",
		ImageURL:     "https://scans.oncosight.example/1.png",
	}
}

func TestSendReport_Success(t *testing.T) {
	uc, m, pub, clk := newFixture(t)

	out, err := uc.SendReport(context.Background(), validInput())
	if err != nil {
		t.Fatalf("send report: %v", err)
	}

	if out.ReportID == 0 {
		t.Error("expected a report id")
	}
	if !out.SentAt.Equal(clk.now) {
		t.Errorf("expected sent_at %v, got %v", clk.now, out.SentAt)
	}

	if len(m.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(m.sent))
	}
	msg := m.sent[0]
	if len(msg.To) != 1 || msg.To[0] != "doctor@example.com" {
		t.Errorf("expected normalized recipient, got %v", msg.To)
	}
	if !strings.Contains(msg.Subject, "tumor detected") {
		t.Errorf("expected finding in subject, got %q", msg.Subject)
	}
	if !strings.Contains(msg.HTMLBody, "Jane Roe") || !strings.Contains(msg.HTMLBody, "97.30") {
		t.Errorf("expected patient details in body, got %q", msg.HTMLBody)
	}

	if len(pub.topics) != 1 || pub.topics[0] != "unit.reports" {
		t.Errorf("expected announce on configured topic, got %v", pub.topics)
	}
}

func TestSendReport_NoTumorFinding(t *testing.T) {
	uc, m, _, _ := newFixture(t)

	in := validInput()
	in.HasTumor = false

	if _, err := uc.SendReport(context.Background(), in); err != nil {
		t.Fatalf("send report: %v", err)
	}

	if !strings.Contains(m.sent[0].Subject, "no tumor detected") {
		t.Errorf("expected negative finding in subject, got %q", m.sent[0].Subject)
	}
}

func TestSendReport_InvalidInput(t *testing.T) {
	uc, m, _, _ := newFixture(t)

	cases := []struct {
		name   string
		mutate func(*SendReportInput)
	}{
		{"missing doctor email", func(in *SendReportInput) { in.DoctorEmail = "" }},
		{"bad patient email", func(in *SendReportInput) { in.PatientEmail = "nope" }},
		{"missing patient name", func(in *SendReportInput) { in.PatientName = "" }},
		{"confidence above range", func(in *SendReportInput) { in.Confidence = 1.5 }},
		{"confidence on percent scale", func(in *SendReportInput) { in.Confidence = 87 }},
		{"missing message", func(in *SendReportInput) { in.Message = "" }},
		{"bad image url", func(in *SendReportInput) { in.ImageURL = "not a url" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)

			_, err := uc.SendReport(context.Background(), in)
			if err == nil {
				t.Fatal("expected validation error")
			}

			var gerr *goerror.Error
			if !errors.As(err, &gerr) {
				t.Fatalf("expected *goerror.Error, got %T", err)
			}
			if gerr.Code() != goerror.CodeInvalidInput {
				t.Errorf("expected invalid input code, got %v", gerr.Code())
			}
		})
	}

	if len(m.sent) != 0 {
		t.Errorf("expected no email for invalid input, got %d", len(m.sent))
	}
}

func TestSendReport_ConfidenceRendersAsPercentage(t *testing.T) {
	uc, m, _, _ := newFixture(t)

	in := validInput()
	in.Confidence = 0.87

	if _, err := uc.SendReport(context.Background(), in); err != nil {
		t.Fatalf("send report: %v", err)
	}

	if !strings.Contains(m.sent[0].HTMLBody, "confidence 87.00%") {
		t.Errorf("expected fraction rendered as percentage, got %q", m.sent[0].HTMLBody)
	}
}

func TestSendReport_DeliveryFailure(t *testing.T) {
	uc, m, pub, _ := newFixture(t)
	m.err = errors.New("smtp down")

	_, err := uc.SendReport(context.Background(), validInput())
	if err == nil {
		t.Fatal("expected delivery failure")
	}

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *goerror.Error, got %T", err)
	}
	if gerr.Code() != goerror.CodeBadGateway {
		t.Errorf("expected bad gateway code, got %v", gerr.Code())
	}
	if len(pub.topics) != 0 {
		t.Errorf("expected no announcement after failed delivery, got %v", pub.topics)
	}
}

func TestSendReport_NoPublisher(t *testing.T) {
	uc, _, _, _ := newFixture(t)
	uc.publisher = nil

	if _, err := uc.SendReport(context.Background(), validInput()); err != nil {
		t.Fatalf("send report without publisher: %v", err)
	}
}
