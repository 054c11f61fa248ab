package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    AppointmentStatus
		to      AppointmentStatus
		allowed bool
	}{
		{StatusRequested, StatusConfirmed, true},
		{StatusRequested, StatusCancelled, true},
		{StatusRequested, StatusRescheduled, false},
		{StatusRequested, StatusCompleted, false},

		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusRescheduled, true},
		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusRequested, false},
		{StatusConfirmed, StatusConfirmed, false},

		{StatusCancelled, StatusConfirmed, false},
		{StatusCancelled, StatusRequested, false},
		{StatusRescheduled, StatusConfirmed, false},
		{StatusRescheduled, StatusCancelled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusConfirmed, false},
	}

	for _, tc := range cases {
		err := CanTransition(tc.from, tc.to)
		if tc.allowed {
			assert.NoError(t, err, "%s -> %s should be allowed", tc.from, tc.to)
		} else {
			assert.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s should be rejected", tc.from, tc.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(StatusRequested))
	assert.False(t, IsTerminal(StatusConfirmed))
	assert.True(t, IsTerminal(StatusCancelled))
	assert.True(t, IsTerminal(StatusRescheduled))
	assert.True(t, IsTerminal(StatusCompleted))
}
