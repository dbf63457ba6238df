// Package session holds the participant registry and the broadcast
// coordinator for the single live poll session.
package session

import (
	"strings"
	"sync"

	"github.com/classpulse/backend/internal/apperr"
	"github.com/classpulse/backend/internal/models"
)

// Registry tracks live connections and their identities. A student keeps one
// stable studentId across reconnects; at most one live connection exists per
// studentId. Nothing here is persisted.
type Registry struct {
	mu           sync.Mutex
	participants map[string]*models.Participant // conn id -> participant
	order        []string                       // conn ids in insertion order, for deterministic rosters
	studentConns map[string]string              // student id -> live conn id
	kicked       map[string]struct{}            // kicked student ids, for the process lifetime
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]*models.Participant),
		studentConns: make(map[string]string),
		kicked:       make(map[string]struct{}),
	}
}

// Add registers a connection. A student joining with a studentId that already
// has a live connection silently supersedes it: the old entry is dropped
// without a kick notification.
func (r *Registry) Add(connID string, role models.Role, name, studentID string) error {
	if !role.Valid() {
		return apperr.Validation("role is required")
	}
	studentID = strings.TrimSpace(studentID)
	if role == models.RoleStudent && studentID == "" {
		return apperr.Validation("student id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if role == models.RoleStudent {
		if old, ok := r.studentConns[studentID]; ok && old != connID {
			r.dropLocked(old)
		}
		r.studentConns[studentID] = connID
	}
	if _, ok := r.participants[connID]; !ok {
		r.order = append(r.order, connID)
	}
	r.participants[connID] = &models.Participant{
		ConnID:    connID,
		Role:      role,
		Name:      strings.TrimSpace(name),
		StudentID: studentID,
	}
	return nil
}

// Remove drops a connection. Unknown connections are a no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(connID)
}

// Kick evicts a student for the remainder of the process lifetime and returns
// the evicted connection id so the caller can notify and sever it.
func (r *Registry) Kick(studentID string) (string, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return "", apperr.Validation("student id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	connID, ok := r.studentConns[studentID]
	if !ok {
		return "", apperr.NotFound("student not found")
	}
	r.kicked[studentID] = struct{}{}
	r.dropLocked(connID)
	return connID, nil
}

// IsKicked reports whether a student id was kicked earlier in this process.
func (r *Registry) IsKicked(studentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.kicked[studentID]
	return ok
}

// Get returns the participant for a connection.
func (r *Registry) Get(connID string) (*models.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// Students returns the roster of live students in insertion order.
func (r *Registry) Students() []models.RosterEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RosterEntry, 0, len(r.order))
	for _, connID := range r.order {
		p := r.participants[connID]
		if p != nil && p.Role == models.RoleStudent {
			out = append(out, models.RosterEntry{StudentID: p.StudentID, Name: p.DisplayName()})
		}
	}
	return out
}

// StudentCount returns the number of live students. Satisfies
// polls.StudentCounter for the all-votes-received close.
func (r *Registry) StudentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.participants {
		if p.Role == models.RoleStudent {
			n++
		}
	}
	return n
}

func (r *Registry) dropLocked(connID string) {
	p, ok := r.participants[connID]
	if !ok {
		return
	}
	if p.StudentID != "" && r.studentConns[p.StudentID] == connID {
		delete(r.studentConns, p.StudentID)
	}
	delete(r.participants, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
