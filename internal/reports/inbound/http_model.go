package inbound

import "time"

type SendReportRequest struct {
	DoctorEmail  string  `json:"doctor_email"`
	PatientEmail string  `json:"patient_email"`
	PatientName  string  `json:"patient_name"`
	Phone        string  `json:"phone,omitempty"`
	HasTumor     bool    `json:"has_tumor"`
	Confidence   float64 `json:"confidence"`
	Message      string  `json:"message,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
}

type SendReportResponse struct {
	ReportID int64     `json:"report_id,string"`
	SentAt   time.Time `json:"sent_at"`
}

// Message customizes the response envelope message.
func (SendReportResponse) Message() string {
	return "report sent"
}
