package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileDay_FullWorkingDay(t *testing.T) {
	providerID := uuid.New()
	facilityID := uuid.New()
	date := time.Date(2027, 3, 10, 0, 0, 0, 0, time.UTC)

	slots := TileDay(providerID, facilityID, date, LocalTime{Hour: 9}, LocalTime{Hour: 17}, 30*time.Minute, time.UTC)

	require.Len(t, slots, 16)

	first := slots[0]
	assert.Equal(t, time.Date(2027, 3, 10, 9, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, time.Date(2027, 3, 10, 9, 30, 0, 0, time.UTC), first.End)

	last := slots[len(slots)-1]
	assert.Equal(t, time.Date(2027, 3, 10, 16, 30, 0, 0, time.UTC), last.Start)
	assert.Equal(t, time.Date(2027, 3, 10, 17, 0, 0, 0, time.UTC), last.End)

	for i, s := range slots {
		assert.Equal(t, 30*time.Minute, s.Duration())
		assert.Equal(t, SlotFree, s.Status)
		assert.Equal(t, providerID, s.ProviderID)
		assert.Equal(t, facilityID, s.FacilityID)
		if i > 0 {
			assert.True(t, s.Start.Equal(slots[i-1].End), "slots must be contiguous")
		}
	}
}

func TestTileDay_DropsPartialTrailingSlot(t *testing.T) {
	date := time.Date(2027, 3, 10, 0, 0, 0, 0, time.UTC)

	// 9:00-10:15 at 30 minutes fits two whole slots, the 15 minute tail is
	// dropped rather than shortened.
	slots := TileDay(uuid.New(), uuid.New(), date, LocalTime{Hour: 9}, LocalTime{Hour: 10, Minute: 15}, 30*time.Minute, time.UTC)

	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2027, 3, 10, 10, 0, 0, 0, time.UTC), slots[1].End)
}

func TestTileDay_FacilityTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	date := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	slots := TileDay(uuid.New(), uuid.New(), date, LocalTime{Hour: 9}, LocalTime{Hour: 10}, 30*time.Minute, loc)

	require.Len(t, slots, 2)
	// 09:00 EST is 14:00 UTC in January.
	assert.Equal(t, time.Date(2027, 1, 15, 14, 0, 0, 0, time.UTC), slots[0].Start)
}

func TestTileDay_InvalidInputs(t *testing.T) {
	date := time.Date(2027, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, TileDay(uuid.New(), uuid.New(), date, LocalTime{Hour: 17}, LocalTime{Hour: 9}, 30*time.Minute, time.UTC))
	assert.Nil(t, TileDay(uuid.New(), uuid.New(), date, LocalTime{Hour: 9}, LocalTime{Hour: 17}, 0, time.UTC))
	assert.Nil(t, TileDay(uuid.New(), uuid.New(), date, LocalTime{Hour: 9}, LocalTime{Hour: 9}, 30*time.Minute, time.UTC))
}

func TestTileDay_WindowShorterThanDuration(t *testing.T) {
	date := time.Date(2027, 3, 10, 0, 0, 0, 0, time.UTC)
	slots := TileDay(uuid.New(), uuid.New(), date, LocalTime{Hour: 9}, LocalTime{Hour: 9, Minute: 20}, 30*time.Minute, time.UTC)
	assert.Empty(t, slots)
}

func TestParseLocalTime(t *testing.T) {
	lt, err := ParseLocalTime("09:30")
	require.NoError(t, err)
	assert.Equal(t, LocalTime{Hour: 9, Minute: 30}, lt)

	_, err = ParseLocalTime("25:00")
	assert.Error(t, err)

	_, err = ParseLocalTime("9am")
	assert.Error(t, err)
}

func TestLocationOf_FallsBackToUTC(t *testing.T) {
	assert.Equal(t, time.UTC, LocationOf(nil))
	assert.Equal(t, time.UTC, LocationOf(&Facility{Timezone: ""}))
	assert.Equal(t, time.UTC, LocationOf(&Facility{Timezone: "Not/AZone"}))

	loc := LocationOf(&Facility{Timezone: "Europe/London"})
	assert.Equal(t, "Europe/London", loc.String())
}
