package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// coversInterval reports whether slots, ordered by start, span
// [start, end) with no gap between consecutive slots. A requested interval
// may cross several slot cells (a 60 minute booking over a 30 minute grid),
// so existence of intersecting slots alone is not enough.
func coversInterval(slots []Slot, start, end time.Time) bool {
	if len(slots) == 0 {
		return false
	}

	if slots[0].Start.After(start) {
		return false
	}
	if slots[len(slots)-1].End.Before(end) {
		return false
	}

	for i := 1; i < len(slots); i++ {
		if !slots[i].Start.Equal(slots[i-1].End) {
			return false
		}
	}

	return true
}

// slotsOwnedBy filters slots down to those bound to the given appointment.
func slotsOwnedBy(slots []Slot, appointmentID uuid.UUID) []Slot {
	var owned []Slot
	for _, s := range slots {
		if s.AppointmentID != nil && *s.AppointmentID == appointmentID {
			owned = append(owned, s)
		}
	}
	return owned
}
