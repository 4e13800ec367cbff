package inbound

import (
	"github.com/oncosight/scangate/internal/pkg/router"
	"github.com/oncosight/scangate/internal/reports/usecase"
)

type HTTPEndpoint struct {
	uc uc
}

// SendReport emails a scan analysis report to the referring doctor.
func (h *HTTPEndpoint) SendReport(r *router.Request) (any, error) {
	var req SendReportRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.SendReport(r.Context(), usecase.SendReportInput{
		DoctorEmail:  req.DoctorEmail,
		PatientEmail: req.PatientEmail,
		PatientName:  req.PatientName,
		Phone:        req.Phone,
		HasTumor:     req.HasTumor,
		Confidence:   req.Confidence,
		Message:      req.Message,
		ImageURL:     req.ImageURL,
	})
	if err != nil {
		return nil, err
	}

	return SendReportResponse{
		ReportID: out.ReportID,
		SentAt:   out.SentAt,
	}, nil
}
