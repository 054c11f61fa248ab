package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Repository used by the service tests. InTx holds
// one mutex for the whole transaction, which mirrors the serialization the
// row locks provide, and restores a snapshot on error so rollback semantics
// hold too.
type memStore struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	providers    map[uuid.UUID]Provider
	facilities   map[uuid.UUID]Facility
	slots        map[uuid.UUID]Slot
	appointments map[uuid.UUID]Appointment
}

func newMemStore() *memStore {
	return &memStore{
		patients:     make(map[uuid.UUID]Patient),
		providers:    make(map[uuid.UUID]Provider),
		facilities:   make(map[uuid.UUID]Facility),
		slots:        make(map[uuid.UUID]Slot),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

func (m *memStore) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memStore) GetProviderByID(_ context.Context, id uuid.UUID) (*Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return &p, nil
}

func (m *memStore) GetFacilityByID(_ context.Context, id uuid.UUID) (*Facility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.facilities[id]
	if !ok {
		return nil, ErrFacilityNotFound
	}
	return &f, nil
}

func (m *memStore) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memStore) BulkInsertSlots(_ context.Context, slots []Slot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted int64
	for _, s := range slots {
		if m.slotExistsLocked(s.ProviderID, s.Start) {
			continue
		}
		m.slots[s.ID] = s
		inserted++
	}
	return inserted, nil
}

func (m *memStore) slotExistsLocked(providerID uuid.UUID, start time.Time) bool {
	for _, existing := range m.slots {
		if existing.ProviderID == providerID && existing.Start.Equal(start) {
			return true
		}
	}
	return false
}

func (m *memStore) ListFreeSlots(_ context.Context, providerID, facilityID uuid.UUID, from, to time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Slot
	for _, s := range m.slots {
		if s.ProviderID == providerID && s.FacilityID == facilityID &&
			s.Status == SlotFree && !s.Start.Before(from) && s.Start.Before(to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memStore) FindStaleRequested(_ context.Context, olderThan time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusRequested && a.CreatedAt.Before(olderThan) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) DeleteSlotsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, s := range m.slots {
		if s.End.Before(cutoff) && s.Status == SlotFree && s.AppointmentID == nil {
			delete(m.slots, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slotSnap := make(map[uuid.UUID]Slot, len(m.slots))
	for k, v := range m.slots {
		slotSnap[k] = v
	}
	apptSnap := make(map[uuid.UUID]Appointment, len(m.appointments))
	for k, v := range m.appointments {
		apptSnap[k] = v
	}

	if err := fn(ctx, &memTx{store: m}); err != nil {
		m.slots = slotSnap
		m.appointments = apptSnap
		return err
	}
	return nil
}

// memTx runs with the store mutex already held by InTx.
type memTx struct {
	store *memStore
}

func (t *memTx) LockSlots(_ context.Context, providerID, facilityID uuid.UUID, start, end time.Time, status SlotStatus) ([]Slot, error) {
	var out []Slot
	for _, s := range t.store.slots {
		if s.ProviderID == providerID && s.FacilityID == facilityID &&
			s.Status == status && s.Start.Before(end) && s.End.After(start) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (t *memTx) SetSlotStatus(_ context.Context, ids []uuid.UUID, status SlotStatus, appointmentID *uuid.UUID) error {
	for _, id := range ids {
		s, ok := t.store.slots[id]
		if !ok {
			return ErrSlotNotFound
		}
		s.Status = status
		s.AppointmentID = appointmentID
		s.UpdatedAt = time.Now()
		t.store.slots[id] = s
	}
	return nil
}

func (t *memTx) InsertAppointment(_ context.Context, a *Appointment) error {
	for _, existing := range t.store.appointments {
		if existing.PatientID == a.PatientID && existing.ProviderID == a.ProviderID && existing.Start.Equal(a.Start) {
			return ErrDuplicateAppointment
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	t.store.appointments[a.ID] = *a
	return nil
}

func (t *memTx) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	a, ok := t.store.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	t.store.appointments[id] = a
	return &a, nil
}

func (t *memTx) UpdateAppointmentInterval(_ context.Context, id uuid.UUID, start, end time.Time) error {
	a, ok := t.store.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Start = start
	a.End = end
	a.UpdatedAt = time.Now()
	t.store.appointments[id] = a
	return nil
}

func (t *memTx) HasActiveAppointment(_ context.Context, patientID, providerID uuid.UUID, start time.Time) (bool, error) {
	for _, a := range t.store.appointments {
		if a.PatientID == patientID && a.ProviderID == providerID &&
			a.Start.Equal(start) && a.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

// fakeLocker runs the critical section inline, optionally failing
// acquisition to exercise the lock timeout path.
type fakeLocker struct {
	err error
}

func (l *fakeLocker) WithIntervalLock(ctx context.Context, _, _ uuid.UUID, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(ctx)
}
