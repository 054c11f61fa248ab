package scheduling

import "errors"

var (
	// ErrInvalidInterval covers start >= end and intervals in the past,
	// at generation, booking and reschedule time. Never retryable.
	ErrInvalidInterval = errors.New("invalid time interval")

	// ErrBookingConflict means the requested interval was not fully and
	// contiguously covered by free slots. Retryable by picking another time.
	ErrBookingConflict = errors.New("interval not covered by free slots")

	// ErrIllegalTransition is returned for a status change outside the
	// allowed transition set. No state is mutated.
	ErrIllegalTransition = errors.New("illegal appointment status transition")

	// ErrLockTimeout means lock acquisition exceeded its bounded wait.
	// Retryable with backoff, distinct from ErrBookingConflict.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrDuplicateAppointment means the (patient, provider, start) triple is
	// already used by a non-cancelled appointment.
	ErrDuplicateAppointment = errors.New("appointment already exists for patient, provider and start")

	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrFacilityNotFound    = errors.New("facility not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)
