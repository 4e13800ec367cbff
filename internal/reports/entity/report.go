package entity

import "time"

// Report is a scan result summary delivered to the referring doctor.
type Report struct {
	ID           int64
	DoctorEmail  string
	PatientEmail string
	PatientName  string
	Phone        string
	HasTumor     bool
	Confidence   float64
	Message      string
	ImageURL     string
	SentAt       time.Time
}
