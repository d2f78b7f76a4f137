package appointments

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusRequested   Status = "requested"
	StatusConfirmed   Status = "confirmed"
	StatusCheckedIn   Status = "checked_in"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
	StatusNoShow      Status = "no_show"
)

// legalTransitions is the full lifecycle:
// requested -> confirmed -> checked_in -> completed, with cancelled reachable
// from every non-terminal state, rescheduled marking an original that was
// replaced by a new appointment, and no_show recording a confirmed patient
// who never arrived.
var legalTransitions = map[Status][]Status{
	StatusRequested: {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusConfirmed: {StatusCheckedIn, StatusCancelled, StatusRescheduled, StatusNoShow},
	StatusCheckedIn: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusCheckedIn, StatusCompleted, StatusCancelled, StatusRescheduled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether an appointment in this state still occupies its
// slot for availability and overlap checks.
func (s Status) Active() bool {
	return s != StatusCancelled && s != StatusRescheduled
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return len(legalTransitions[s]) == 0
}

// CanTransition reports whether moving from s to target is legal.
func (s Status) CanTransition(target Status) bool {
	for _, t := range legalTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}
