package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateAppointmentRequest struct {
	PatientID       string  `json:"patient_id"`
	ProfessionalID  string  `json:"professional_id"`
	SiteID          string  `json:"site_id"`
	Start           string  `json:"start"` // RFC 3339
	DurationMinutes int     `json:"duration_minutes"`
	TreatmentID     *string `json:"treatment_id,omitempty"`
	Resource        *string `json:"resource,omitempty"`
	Notes           string  `json:"notes,omitempty"`
}

type MoveAppointmentRequest struct {
	NewStart          string  `json:"new_start"` // RFC 3339
	NewProfessionalID *string `json:"new_professional_id,omitempty"`
	NewResource       *string `json:"new_resource,omitempty"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
}

type TransformRequest struct {
	Mode string `json:"mode"` // shift_days | move_to_fixed_date
	Days int    `json:"days,omitempty"`
	Date string `json:"date,omitempty"` // 2006-01-02
}

type BulkReprogramRequest struct {
	AppointmentIDs []string         `json:"appointment_ids"`
	Transform      TransformRequest `json:"transform"`
	NotifyPatients bool             `json:"notify_patients"`
	Reason         string           `json:"reason"`
}

type HistoryEntryResponse struct {
	At          time.Time `json:"at"`
	Actor       string    `json:"actor"`
	Description string    `json:"description"`
}

type AppointmentResponse struct {
	ID             uuid.UUID              `json:"id"`
	PatientID      uuid.UUID              `json:"patient_id"`
	ProfessionalID uuid.UUID              `json:"professional_id"`
	SiteID         uuid.UUID              `json:"site_id"`
	Start          time.Time              `json:"start"`
	End            time.Time              `json:"end"`
	Status         string                 `json:"status"`
	TreatmentID    *uuid.UUID             `json:"treatment_id,omitempty"`
	Resource       *string                `json:"resource,omitempty"`
	Notes          string                 `json:"notes,omitempty"`
	Version        int64                  `json:"version"`
	History        []HistoryEntryResponse `json:"history,omitempty"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityResponse struct {
	ProfessionalID  uuid.UUID      `json:"professional_id"`
	DurationMinutes int            `json:"duration_minutes"`
	Slots           []SlotResponse `json:"slots"`
}

type BulkFailureResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	Reason        string    `json:"reason"`
}

type BulkReprogramResponse struct {
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Failures  []BulkFailureResponse `json:"failures,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
