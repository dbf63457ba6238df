package models

// Role identifies what a connected participant is allowed to do.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Participant is a live connection in the session. StudentID is the stable
// identity a student keeps across reconnects; it is empty for teachers.
type Participant struct {
	ConnID    string `json:"-"`
	Role      Role   `json:"role"`
	Name      string `json:"name"`
	StudentID string `json:"studentId,omitempty"`
}

// DisplayName returns the participant's name, falling back to a role label.
func (p *Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.Role == RoleTeacher {
		return "Teacher"
	}
	return "Student"
}

// RosterEntry is one student row in the roster pushed to all clients.
type RosterEntry struct {
	StudentID string `json:"studentId"`
	Name      string `json:"name"`
}
