package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgCodeLockNotAvailable = "55P03"
	pgCodeUniqueViolation  = "23505"
)

type PgRepository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

func NewPgRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *PgRepository {
	return &PgRepository{pool: pool, lockTimeout: lockTimeout}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider
	err := row.Scan(&p.ID, &p.Name, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	err := row.Scan(&f.ID, &f.Name, &f.Timezone, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, err
	}
	return &f, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.FacilityID,
		&s.Start,
		&s.End,
		&s.Status,
		&s.AppointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.FacilityID,
		&a.Start,
		&a.End,
		&a.Reason,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// mapPgError translates storage-level lock and uniqueness failures into the
// scheduling error taxonomy.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgCodeLockNotAvailable:
			return ErrLockTimeout
		case pgCodeUniqueViolation:
			return ErrDuplicateAppointment
		}
	}
	return err
}

// Pool-scoped reads

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetFacilityByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, timezone, created_at, updated_at
		FROM facilities
		WHERE id = $1
	`, id)
	return scanFacility(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, provider_id, facility_id, start_time, end_time, reason, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) BulkInsertSlots(ctx context.Context, slots []Slot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	var inserted int64
	for _, s := range slots {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO slots (id, provider_id, facility_id, start_time, end_time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now(), now())
			ON CONFLICT (provider_id, start_time) DO NOTHING
		`, s.ID, s.ProviderID, s.FacilityID, s.Start, s.End, s.Status)
		if err != nil {
			return inserted, fmt.Errorf("insert slot: %w", err)
		}
		inserted += tag.RowsAffected()
	}

	return inserted, nil
}

func (r *PgRepository) ListFreeSlots(ctx context.Context, providerID, facilityID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, facility_id, start_time, end_time, status, appointment_id, created_at, updated_at
		FROM slots
		WHERE provider_id = $1
		  AND facility_id = $2
		  AND start_time >= $3
		  AND start_time < $4
		  AND status = 'FREE'
		ORDER BY start_time
	`, providerID, facilityID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlots(rows)
}

func (r *PgRepository) FindStaleRequested(ctx context.Context, olderThan time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, provider_id, facility_id, start_time, end_time, reason, status, created_at, updated_at
		FROM appointments
		WHERE status = 'REQUESTED'
		  AND created_at < $1
	`, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) DeleteSlotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	// Slots referenced by an appointment are never hard-deleted.
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slots
		WHERE end_time < $1
		  AND status = 'FREE'
		  AND appointment_id IS NULL
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgxTx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// Bound row lock waits for the whole transaction; exceeding the budget
	// surfaces as ErrLockTimeout via mapPgError.
	if _, err := pgxTx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		_ = pgxTx.Rollback(ctx)
		return fmt.Errorf("set lock_timeout: %w", err)
	}

	if err := fn(ctx, &pgTx{tx: pgxTx}); err != nil {
		_ = pgxTx.Rollback(ctx)
		return err
	}

	if err := pgxTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockSlots(ctx context.Context, providerID, facilityID uuid.UUID, start, end time.Time, status SlotStatus) ([]Slot, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, provider_id, facility_id, start_time, end_time, status, appointment_id, created_at, updated_at
		FROM slots
		WHERE provider_id = $1
		  AND facility_id = $2
		  AND start_time < $4
		  AND end_time > $3
		  AND status = $5
		ORDER BY start_time
		FOR UPDATE
	`, providerID, facilityID, start, end, status)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	slots, err := collectSlots(rows)
	if err != nil {
		return nil, mapPgError(err)
	}
	return slots, nil
}

func (t *pgTx) SetSlotStatus(ctx context.Context, ids []uuid.UUID, status SlotStatus, appointmentID *uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := t.tx.Exec(ctx, `
		UPDATE slots
		SET status = $2,
		    appointment_id = $3,
		    updated_at = now()
		WHERE id = ANY($1)
	`, ids, status, appointmentID)
	if err != nil {
		return fmt.Errorf("set slot status: %w", mapPgError(err))
	}
	return nil
}

func (t *pgTx) InsertAppointment(ctx context.Context, a *Appointment) error {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, facility_id, start_time, end_time, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`, a.ID, a.PatientID, a.ProviderID, a.FacilityID, a.Start, a.End, a.Reason, a.Status)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("insert appointment: %w", mapPgError(err))
	}
	return nil
}

func (t *pgTx) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, patient_id, provider_id, facility_id, start_time, end_time, reason, status, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (t *pgTx) UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, start, end)
	if err != nil {
		return fmt.Errorf("update appointment interval: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (t *pgTx) HasActiveAppointment(ctx context.Context, patientID, providerID uuid.UUID, start time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE patient_id = $1
			  AND provider_id = $2
			  AND start_time = $3
			  AND status <> 'CANCELLED'
		)
	`, patientID, providerID, start).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func collectSlots(rows pgx.Rows) ([]Slot, error) {
	var slots []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return slots, nil
}
