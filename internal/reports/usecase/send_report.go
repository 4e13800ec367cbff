package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oncosight/scangate/internal/pkg/goerror"
	"github.com/oncosight/scangate/internal/pkg/mail"
	"github.com/oncosight/scangate/internal/pkg/messaging"
	"github.com/oncosight/scangate/internal/reports/entity"
)

const reportBodyTemplate = `
<h2>Scan analysis report</h2>
<p>Patient: <strong>{{.patient_name}}</strong> ({{.patient_email}})</p>
{{if .phone}}<p>Phone: {{.phone}}</p>{{end}}
<p>Finding: <strong>{{.finding}}</strong> (confidence {{.confidence}}%)</p>
{{if .message}}<p>Notes: {{.message}}</p>{{end}}
{{if .image_url}}<p><a href="{{.image_url}}">View annotated scan</a></p>{{end}}
<p>Generated at {{.sent_at}}</p>
`

// SendReportInput carries a report delivery request.
type SendReportInput struct {
	DoctorEmail  string  `validate:"required,email"`
	PatientEmail string  `validate:"required,email"`
	PatientName  string  `validate:"required,max=200"`
	Phone        string  `validate:"omitempty,max=32"`
	HasTumor     bool    `validate:"-"`
	Confidence   float64 `validate:"gte=0,lte=1"`
	Message      string  `validate:"required,max=2000"`
	ImageURL     string  `validate:"omitempty,url"`
}

// SendReportOutput reports a delivered report.
type SendReportOutput struct {
	ReportID int64
	SentAt   time.Time
}

// SendReport emails a scan summary to the referring doctor and, when a broker
// is wired, announces the delivery on the report stream.
func (s *Usecase) SendReport(ctx context.Context, in SendReportInput) (*SendReportOutput, error) {
	ctx, span := s.startSpan(ctx, "SendReport")
	defer span.End()

	in.DoctorEmail = strings.TrimSpace(strings.ToLower(in.DoctorEmail))
	in.PatientEmail = strings.TrimSpace(strings.ToLower(in.PatientEmail))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	now := s.clock.Now()
	report := entity.Report{
		ID:           s.uid.Generate(),
		DoctorEmail:  in.DoctorEmail,
		PatientEmail: in.PatientEmail,
		PatientName:  in.PatientName,
		Phone:        in.Phone,
		HasTumor:     in.HasTumor,
		Confidence:   in.Confidence,
		Message:      in.Message,
		ImageURL:     in.ImageURL,
		SentAt:       now,
	}

	finding := "no tumor detected"
	if report.HasTumor {
		finding = "tumor detected"
	}

	body, err := s.renderTemplate("report", reportBodyTemplate, map[string]any{
		"patient_name":  report.PatientName,
		"patient_email": report.PatientEmail,
		"phone":         report.Phone,
		"finding":       finding,
		"confidence":    fmt.Sprintf("%.2f", report.Confidence*100),
		"message":       report.Message,
		"image_url":     report.ImageURL,
		"sent_at":       now.UTC().Format(time.RFC1123),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to render report email", "error", err)
		return nil, goerror.NewServer(err)
	}

	timeout := s.cfg.GetSecond("mail.send_timeout_seconds")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := s.repoMail.Send(sendCtx, mail.Message{
		To:       []string{report.DoctorEmail},
		Subject:  fmt.Sprintf("Scan report for %s: %s", report.PatientName, finding),
		HTMLBody: body,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to send report email", "report_id", report.ID, "error", err)
		return nil, goerror.NewBusiness("Could not deliver the report", goerror.CodeBadGateway)
	}

	s.announce(ctx, report)

	return &SendReportOutput{ReportID: report.ID, SentAt: now}, nil
}

func (s *Usecase) announce(ctx context.Context, report entity.Report) {
	if s.publisher == nil {
		return
	}

	topic := s.cfg.GetString("modules.reports.topic")
	if topic == "" {
		topic = "scangate.reports.sent"
	}

	payload, err := json.Marshal(map[string]any{
		"report_id":    report.ID,
		"doctor_email": report.DoctorEmail,
		"has_tumor":    report.HasTumor,
		"confidence":   report.Confidence,
		"sent_at":      report.SentAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal report event", "report_id", report.ID, "error", err)
		return
	}

	if _, err := s.publisher.Publish(ctx, topic, messaging.OutgoingMessage{
		Key:  []byte(report.DoctorEmail),
		Body: payload,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to publish report event", "report_id", report.ID, "error", err)
	}
}
