package api

import (
	"time"

	"github.com/google/uuid"
)

type GenerateSlotsRequest struct {
	ProviderID      string `json:"provider_id"`
	FacilityID      string `json:"facility_id"`
	Date            string `json:"date"`    // 2006-01-02, in the facility's timezone
	Opening         string `json:"opening"` // 15:04
	Closing         string `json:"closing"` // 15:04
	DurationMinutes int    `json:"duration_minutes"`
}

type GenerateSlotsResponse struct {
	Candidates int        `json:"candidates"`
	Inserted   int64      `json:"inserted"`
	Slots      []SlotView `json:"slots"`
}

type SlotView struct {
	ID            uuid.UUID  `json:"id"`
	ProviderID    uuid.UUID  `json:"provider_id"`
	FacilityID    uuid.UUID  `json:"facility_id"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Status        string     `json:"status"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID  string    `json:"patient_id"`
	ProviderID string    `json:"provider_id"`
	FacilityID string    `json:"facility_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Reason     string    `json:"reason"`
}

type RescheduleRequest struct {
	NewStart time.Time `json:"new_start"`
	NewEnd   time.Time `json:"new_end"`
}

type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patient_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	FacilityID uuid.UUID `json:"facility_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
