package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caregrid/scheduling/internal/config"
	redisclient "github.com/caregrid/scheduling/internal/redis"
)

// Notifier receives fire-and-forget events after a scheduling transaction
// has committed. Delivery failure never rolls the transaction back.
type Notifier interface {
	AppointmentConfirmed(ctx context.Context, evt redisclient.ConfirmedEvent) error
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	cfg      config.Config
	log      zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
	}
}

type GenerateSlotsInput struct {
	ProviderID uuid.UUID
	FacilityID uuid.UUID
	Date       time.Time
	Opening    LocalTime
	Closing    LocalTime
	Duration   time.Duration
}

type GenerateSlotsResult struct {
	Candidates []Slot
	Inserted   int64
}

// GenerateSlots tiles the provider's working window at the facility into
// candidate FREE slots and persists them. Re-running generation for an
// already populated day is a no-op for existing slots, not an error.
func (s *Service) GenerateSlots(ctx context.Context, in GenerateSlotsInput) (*GenerateSlotsResult, error) {
	if in.Duration <= 0 || !in.Opening.Before(in.Closing) {
		return nil, ErrInvalidInterval
	}

	if _, err := s.repo.GetProviderByID(ctx, in.ProviderID); err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}

	facility, err := s.repo.GetFacilityByID(ctx, in.FacilityID)
	if err != nil {
		return nil, fmt.Errorf("load facility: %w", err)
	}

	loc := LocationOf(facility)
	_, dayEnd := DayWindow(in.Date, in.Opening, in.Closing, loc)

	now := time.Now().UTC()
	if !dayEnd.After(now) {
		return nil, ErrInvalidInterval
	}

	candidates := TileDay(in.ProviderID, in.FacilityID, in.Date, in.Opening, in.Closing, in.Duration, loc)

	// Slots must not start in the past, so a partially elapsed day keeps
	// only its remaining cells.
	upcoming := candidates[:0]
	for _, c := range candidates {
		if !c.Start.Before(now) {
			upcoming = append(upcoming, c)
		}
	}

	inserted, err := s.repo.BulkInsertSlots(ctx, upcoming)
	if err != nil {
		return nil, fmt.Errorf("persist slots: %w", err)
	}

	s.log.Info().
		Str("provider_id", in.ProviderID.String()).
		Str("facility_id", in.FacilityID.String()).
		Int("candidates", len(upcoming)).
		Int64("inserted", inserted).
		Msg("generated daily slots")

	return &GenerateSlotsResult{Candidates: upcoming, Inserted: inserted}, nil
}

type RequestAppointmentInput struct {
	PatientID  uuid.UUID
	ProviderID uuid.UUID
	FacilityID uuid.UUID
	Start      time.Time
	End        time.Time
	Reason     string
}

// RequestAppointment creates an appointment in REQUESTED status once the
// requested interval is fully, contiguously covered by FREE slots.
//
// The coverage check runs under the interval lock, but the slots stay FREE:
// a REQUESTED appointment reserves nothing against other bookers.
// Overlapping REQUESTED appointments may coexist; only one of them can
// later reach CONFIRMED because confirmation re-checks FREE status under
// lock.
func (s *Service) RequestAppointment(ctx context.Context, in RequestAppointmentInput) (*Appointment, error) {
	if !in.Start.Before(in.End) {
		return nil, ErrInvalidInterval
	}
	if in.Start.Before(time.Now()) {
		return nil, ErrInvalidInterval
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetProviderByID(ctx, in.ProviderID); err != nil {
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if _, err := s.repo.GetFacilityByID(ctx, in.FacilityID); err != nil {
		return nil, fmt.Errorf("load facility: %w", err)
	}

	appt := &Appointment{
		ID:         uuid.New(),
		PatientID:  in.PatientID,
		ProviderID: in.ProviderID,
		FacilityID: in.FacilityID,
		Start:      in.Start.UTC(),
		End:        in.End.UTC(),
		Reason:     in.Reason,
		Status:     StatusRequested,
	}

	err := s.withCalendarLock(ctx, in.ProviderID, in.FacilityID, func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
			taken, err := tx.HasActiveAppointment(ctx, in.PatientID, in.ProviderID, appt.Start)
			if err != nil {
				return fmt.Errorf("check duplicate appointment: %w", err)
			}
			if taken {
				return ErrDuplicateAppointment
			}

			free, err := tx.LockSlots(ctx, in.ProviderID, in.FacilityID, appt.Start, appt.End, SlotFree)
			if err != nil {
				return fmt.Errorf("lock free slots: %w", err)
			}
			if !coversInterval(free, appt.Start, appt.End) {
				return ErrBookingConflict
			}

			if err := tx.InsertAppointment(ctx, appt); err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("patient_id", in.PatientID.String()).
		Str("provider_id", in.ProviderID.String()).
		Time("start", appt.Start).
		Msg("appointment requested")

	return appt, nil
}

type TransitionInput struct {
	Target AppointmentStatus

	// NewStart and NewEnd are required for StatusRescheduled and ignored
	// otherwise.
	NewStart *time.Time
	NewEnd   *time.Time
}

// TransitionAppointment drives the appointment lifecycle. The status write
// and its slot side effects commit in one transaction; a rejected
// transition mutates nothing.
func (s *Service) TransitionAppointment(ctx context.Context, id uuid.UUID, in TransitionInput) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := CanTransition(appt.Status, in.Target); err != nil {
		return nil, err
	}

	var updated *Appointment

	err = s.withCalendarLock(ctx, appt.ProviderID, appt.FacilityID, func(ctx context.Context) error {
		return s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
			var txErr error
			switch in.Target {
			case StatusConfirmed:
				updated, txErr = s.confirm(ctx, tx, appt)
			case StatusCancelled:
				updated, txErr = s.cancel(ctx, tx, appt)
			case StatusRescheduled:
				updated, txErr = s.reschedule(ctx, tx, appt, in.NewStart, in.NewEnd)
			case StatusCompleted:
				updated, txErr = s.complete(ctx, tx, appt)
			default:
				txErr = ErrIllegalTransition
			}
			return txErr
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("appointment_id", id.String()).
		Str("from", string(appt.Status)).
		Str("to", string(updated.Status)).
		Msg("appointment transitioned")

	if updated.Status == StatusConfirmed {
		s.notifyConfirmed(ctx, updated)
	}

	return updated, nil
}

// confirm claims the appointment's own interval: every covering slot must
// still be FREE, otherwise another booker won the race.
func (s *Service) confirm(ctx context.Context, tx Tx, appt *Appointment) (*Appointment, error) {
	free, err := tx.LockSlots(ctx, appt.ProviderID, appt.FacilityID, appt.Start, appt.End, SlotFree)
	if err != nil {
		return nil, fmt.Errorf("lock free slots: %w", err)
	}
	if !coversInterval(free, appt.Start, appt.End) {
		return nil, ErrBookingConflict
	}

	if err := tx.SetSlotStatus(ctx, slotIDs(free), SlotBooked, &appt.ID); err != nil {
		return nil, err
	}

	return s.casStatus(ctx, tx, appt.ID, appt.Status, StatusConfirmed)
}

// cancel releases exactly the slots bound to this appointment. Cancelling
// a still-REQUESTED appointment holds no slots and releases nothing.
func (s *Service) cancel(ctx context.Context, tx Tx, appt *Appointment) (*Appointment, error) {
	booked, err := tx.LockSlots(ctx, appt.ProviderID, appt.FacilityID, appt.Start, appt.End, SlotBooked)
	if err != nil {
		return nil, fmt.Errorf("lock booked slots: %w", err)
	}

	owned := slotsOwnedBy(booked, appt.ID)
	if err := tx.SetSlotStatus(ctx, slotIDs(owned), SlotFree, nil); err != nil {
		return nil, err
	}

	return s.casStatus(ctx, tx, appt.ID, appt.Status, StatusCancelled)
}

// reschedule claims the new interval first, then releases the old one, so
// a failed claim leaves the original binding untouched.
func (s *Service) reschedule(ctx context.Context, tx Tx, appt *Appointment, newStart, newEnd *time.Time) (*Appointment, error) {
	if newStart == nil || newEnd == nil {
		return nil, ErrInvalidInterval
	}
	start, end := newStart.UTC(), newEnd.UTC()
	if !start.Before(end) || start.Before(time.Now()) {
		return nil, ErrInvalidInterval
	}

	free, err := tx.LockSlots(ctx, appt.ProviderID, appt.FacilityID, start, end, SlotFree)
	if err != nil {
		return nil, fmt.Errorf("lock free slots: %w", err)
	}
	if !coversInterval(free, start, end) {
		return nil, ErrBookingConflict
	}

	if err := tx.SetSlotStatus(ctx, slotIDs(free), SlotBooked, &appt.ID); err != nil {
		return nil, err
	}
	claimed := make(map[uuid.UUID]bool, len(free))
	for _, sl := range free {
		claimed[sl.ID] = true
	}

	booked, err := tx.LockSlots(ctx, appt.ProviderID, appt.FacilityID, appt.Start, appt.End, SlotBooked)
	if err != nil {
		return nil, fmt.Errorf("lock booked slots: %w", err)
	}

	var release []uuid.UUID
	for _, sl := range slotsOwnedBy(booked, appt.ID) {
		if !claimed[sl.ID] {
			release = append(release, sl.ID)
		}
	}
	if err := tx.SetSlotStatus(ctx, release, SlotFree, nil); err != nil {
		return nil, err
	}

	if err := tx.UpdateAppointmentInterval(ctx, appt.ID, start, end); err != nil {
		return nil, err
	}

	updated, err := s.casStatus(ctx, tx, appt.ID, appt.Status, StatusRescheduled)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) complete(ctx context.Context, tx Tx, appt *Appointment) (*Appointment, error) {
	// Completion has no slot effect.
	return s.casStatus(ctx, tx, appt.ID, appt.Status, StatusCompleted)
}

// casStatus performs the compare-and-set status write. A miss means the
// appointment moved concurrently since it was loaded, which makes the
// requested transition illegal from the now-current state.
func (s *Service) casStatus(ctx context.Context, tx Tx, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	updated, err := tx.UpdateAppointmentStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrIllegalTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}

// CancelStaleRequested cancels REQUESTED appointments older than the
// configured request TTL. Run periodically by the slot maintenance worker.
func (s *Service) CancelStaleRequested(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.cfg.RequestTTL)
	stale, err := s.repo.FindStaleRequested(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale requested appointments: %w", err)
	}

	cancelled := 0
	for _, appt := range stale {
		if _, err := s.TransitionAppointment(ctx, appt.ID, TransitionInput{Target: StatusCancelled}); err != nil {
			s.log.Warn().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("failed to cancel stale requested appointment")
			continue
		}
		cancelled++
	}

	return cancelled, nil
}

// PurgeOldSlots deletes unreferenced FREE slots whose interval ended before
// the retention window. Slots referenced by an appointment are kept.
func (s *Service) PurgeOldSlots(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.SlotRetention)
	purged, err := s.repo.DeleteSlotsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old slots: %w", err)
	}
	return purged, nil
}

// ListFreeSlots returns the provider's FREE slots at a facility for one
// local day at the facility's timezone.
func (s *Service) ListFreeSlots(ctx context.Context, providerID, facilityID uuid.UUID, date time.Time) ([]Slot, error) {
	facility, err := s.repo.GetFacilityByID(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("load facility: %w", err)
	}

	loc := LocationOf(facility)
	dayStart, dayEnd := DayWindow(date, LocalTime{}, LocalTime{Hour: 24}, loc)

	return s.repo.ListFreeSlots(ctx, providerID, facilityID, dayStart, dayEnd)
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) withCalendarLock(ctx context.Context, providerID, facilityID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.locker.WithIntervalLock(ctx, providerID, facilityID, fn)
	if errors.Is(err, redisclient.ErrLockWaitExceeded) {
		return ErrLockTimeout
	}
	return err
}

func (s *Service) notifyConfirmed(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}

	evt := redisclient.ConfirmedEvent{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		ProviderID:    appt.ProviderID,
		Start:         appt.Start,
		End:           appt.End,
	}
	if err := s.notifier.AppointmentConfirmed(ctx, evt); err != nil {
		s.log.Warn().Err(err).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to publish confirmation event")
	}
}

func slotIDs(slots []Slot) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(slots))
	for _, s := range slots {
		ids = append(ids, s.ID)
	}
	return ids
}
