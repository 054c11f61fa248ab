package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotFree        SlotStatus = "FREE"
	SlotBooked      SlotStatus = "BOOKED"
	SlotBlocked     SlotStatus = "BLOCKED"
	SlotUnavailable SlotStatus = "UNAVAILABLE"
)

type AppointmentStatus string

const (
	StatusRequested   AppointmentStatus = "REQUESTED"
	StatusConfirmed   AppointmentStatus = "CONFIRMED"
	StatusCancelled   AppointmentStatus = "CANCELLED"
	StatusRescheduled AppointmentStatus = "RESCHEDULED"
	StatusCompleted   AppointmentStatus = "COMPLETED"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Facility is the location at which a provider offers slots. Its timezone
// anchors local opening hours to absolute instants.
type Facility struct {
	ID        uuid.UUID
	Name      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is one bookable interval of a provider's calendar at a facility.
// Start and End are stored in UTC. AppointmentID carries the appointment
// currently occupying the slot; it is set and cleared only together with
// the BOOKED status, inside the same transaction.
type Slot struct {
	ID            uuid.UUID
	ProviderID    uuid.UUID
	FacilityID    uuid.UUID
	Start         time.Time
	End           time.Time
	Status        SlotStatus
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s Slot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	FacilityID uuid.UUID
	Start      time.Time
	End        time.Time
	Reason     string
	Status     AppointmentStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
