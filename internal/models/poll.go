package models

import (
	"time"

	"github.com/google/uuid"
)

// PollStatus is the lifecycle state of a poll.
type PollStatus string

const (
	PollStatusActive PollStatus = "active"
	PollStatusClosed PollStatus = "closed"
)

// Option is one answer choice of a poll.
type Option struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	IsCorrect bool      `json:"isCorrect"`
}

// Poll is a multiple-choice question with a fixed duration. At most one poll
// is active at any time; closed polls are kept as history.
type Poll struct {
	ID              uuid.UUID  `json:"id"`
	Question        string     `json:"question"`
	Options         []Option   `json:"options"`
	DurationSeconds int        `json:"durationSeconds"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         time.Time  `json:"endTime"`
	Status          PollStatus `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// HasOption reports whether the given option id belongs to this poll.
func (p *Poll) HasOption(optionID uuid.UUID) bool {
	for _, o := range p.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// ExpiredAt reports whether the poll is active but past its deadline.
func (p *Poll) ExpiredAt(now time.Time) bool {
	return p.Status == PollStatusActive && !p.EndTime.After(now)
}

// View converts the poll to its client-facing shape with epoch-ms timestamps,
// so browser clients can compare against serverTime directly.
func (p *Poll) View() *PollView {
	return &PollView{
		ID:              p.ID.String(),
		Question:        p.Question,
		Options:         p.Options,
		DurationSeconds: p.DurationSeconds,
		StartTime:       p.StartTime.UnixMilli(),
		EndTime:         p.EndTime.UnixMilli(),
		Status:          p.Status,
	}
}

// PollView is the serialized poll pushed to clients.
type PollView struct {
	ID              string     `json:"id"`
	Question        string     `json:"question"`
	Options         []Option   `json:"options"`
	DurationSeconds int        `json:"durationSeconds"`
	StartTime       int64      `json:"startTime"`
	EndTime         int64      `json:"endTime"`
	Status          PollStatus `json:"status"`
}

// Vote records one student's answer to a poll. A student gets at most one
// vote per poll, enforced by the store.
type Vote struct {
	PollID      uuid.UUID `json:"pollId"`
	OptionID    uuid.UUID `json:"optionId"`
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Results is the tally for a poll, derived from the vote ledger on demand.
// Counts has an entry for every option of the poll, zero-filled.
type Results struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// PollState is the canonical snapshot pushed to every client on each mutation.
type PollState struct {
	Poll              *PollView `json:"poll"`
	Results           *Results  `json:"results"`
	ServerTime        int64     `json:"serverTime"`
	CanAskNewQuestion bool      `json:"canAskNewQuestion"`
}

// HistoryEntry is one closed poll with its final results.
type HistoryEntry struct {
	Poll    *PollView `json:"poll"`
	Results *Results  `json:"results"`
}
