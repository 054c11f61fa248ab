package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service and the
// maintenance worker.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetFacilityByID(ctx context.Context, id uuid.UUID) (*Facility, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// BulkInsertSlots inserts candidates, silently skipping any that collide
	// with an existing (provider, start) pair. Returns the number inserted.
	BulkInsertSlots(ctx context.Context, slots []Slot) (int64, error)

	ListFreeSlots(ctx context.Context, providerID, facilityID uuid.UUID, from, to time.Time) ([]Slot, error)

	// Maintenance worker queries.
	FindStaleRequested(ctx context.Context, olderThan time.Time) ([]Appointment, error)
	DeleteSlotsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// InTx runs fn inside a single transaction. Any error rolls the whole
	// transaction back; no partial slot/appointment mutation persists.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transaction-scoped slice of the store. LockSlots is the single
// chokepoint for all slot reads that precede mutation.
type Tx interface {
	// LockSlots acquires exclusive row locks on the provider's slots at the
	// facility whose interval intersects [start, end) and currently hold
	// status, ordered by start time. Blocks until prior holders finish,
	// bounded by the transaction's lock timeout.
	LockSlots(ctx context.Context, providerID, facilityID uuid.UUID, start, end time.Time, status SlotStatus) ([]Slot, error)

	// SetSlotStatus mutates status and appointment back-reference on slots
	// already held under the caller's lock.
	SetSlotStatus(ctx context.Context, ids []uuid.UUID, status SlotStatus, appointmentID *uuid.UUID) error

	InsertAppointment(ctx context.Context, a *Appointment) error

	// UpdateAppointmentStatus transitions status with a compare-and-set on
	// the current value, returning ErrAppointmentNotFound when the row no
	// longer holds from.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, start, end time.Time) error

	// HasActiveAppointment reports whether a non-cancelled appointment
	// already uses the (patient, provider, start) triple.
	HasActiveAppointment(ctx context.Context, patientID, providerID uuid.UUID, start time.Time) (bool, error)
}
