package staff

import (
	"errors"
	"time"
)

// ErrStaffNotFound is returned when a staff member does not exist
var ErrStaffNotFound = errors.New("staff not found")

// Member is one clinician or scheduler-visible staff member.
type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// QualifiedFor reports whether the member can serve an appointment type that
// requires the given role. An empty requirement means any active staff.
func (m *Member) QualifiedFor(requiredRole string) bool {
	if !m.Active {
		return false
	}
	return requiredRole == "" || m.Role == requiredRole
}
