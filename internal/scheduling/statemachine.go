package scheduling

// allowedTransitions is the full appointment lifecycle. CANCELLED,
// RESCHEDULED and COMPLETED are terminal: a RESCHEDULED appointment keeps
// its row with the new interval, it does not re-enter REQUESTED.
var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusRequested:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed:   {StatusCancelled, StatusRescheduled, StatusCompleted},
	StatusCancelled:   {},
	StatusRescheduled: {},
	StatusCompleted:   {},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to AppointmentStatus) error {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return nil
		}
	}
	return ErrIllegalTransition
}

// IsTerminal reports whether status admits no further transitions.
func IsTerminal(status AppointmentStatus) bool {
	return len(allowedTransitions[status]) == 0
}
