package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// TileDay tiles a provider's working window on the given date into
// consecutive FREE slots of fixed duration. The final partial interval, if
// any, is dropped rather than shortened. The function performs no I/O;
// persisting the candidates through BulkInsertSlots is what makes repeated
// generation idempotent.
func TileDay(providerID, facilityID uuid.UUID, date time.Time, opening, closing LocalTime, duration time.Duration, loc *time.Location) []Slot {
	if duration <= 0 || !opening.Before(closing) {
		return nil
	}

	dayStart, dayEnd := DayWindow(date, opening, closing, loc)

	var slots []Slot
	for cur := dayStart; !cur.Add(duration).After(dayEnd); cur = cur.Add(duration) {
		slots = append(slots, Slot{
			ID:         uuid.New(),
			ProviderID: providerID,
			FacilityID: facilityID,
			Start:      cur,
			End:        cur.Add(duration),
			Status:     SlotFree,
		})
	}

	return slots
}
