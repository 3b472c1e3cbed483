package ehr

import (
	"time"

	"github.com/google/uuid"
)

// Record is one consultation's clinical documentation. Records are written
// by the treating doctor and belong to the patient's history.
type Record struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        uuid.UUID  `json:"patient_id"`
	DoctorID         uuid.UUID  `json:"doctor_id"`
	AppointmentID    *uuid.UUID `json:"appointment_id,omitempty"`
	ConsultationDate time.Time  `json:"consultation_date"`
	Symptoms         string     `json:"symptoms"`
	Diagnosis        string     `json:"diagnosis"`
	TreatmentPlan    string     `json:"treatment_plan"`
	PrescriptionID   *uuid.UUID `json:"prescription_id,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	FollowUpDate     *time.Time `json:"follow_up_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// PatientStats summarizes a patient's record history.
type PatientStats struct {
	TotalRecords      int        `json:"total_records"`
	DistinctDoctors   int        `json:"distinct_doctors"`
	FirstConsultation *time.Time `json:"first_consultation,omitempty"`
	LastConsultation  *time.Time `json:"last_consultation,omitempty"`
}
