package realtime

import (
	"context"
	"encoding/json"
	"errors"
)

// Inbound event names (client -> server).
const (
	EventJoin         = "session:join"
	EventCreatePoll   = "poll:create"
	EventVote         = "poll:vote"
	EventKick         = "student:kick"
	EventChatSend     = "chat:send"
	EventRequestState = "poll:requestState"
)

// Outbound event names (server -> client).
const (
	EventAck          = "ack"
	EventPollState    = "poll:state"
	EventParticipants = "participants:update"
	EventChatHistory  = "chat:history"
	EventChatNew      = "chat:new"
	EventKicked       = "student:kicked"
	EventError        = "app:error"
)

// ErrKicked is returned by Session.Join when the joining student was kicked
// earlier; the kicked notice has already been queued and the transport must
// sever the connection instead of admitting it.
var ErrKicked = errors.New("student was kicked")

// WSMessage is the wire envelope. Requests may carry a Ref the server echoes
// back in the ack, standing in for socket-style ack callbacks.
type WSMessage struct {
	Event string          `json:"event"`
	Ref   string          `json:"ref,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AckPayload acknowledges one client request.
type AckPayload struct {
	Ref     string `json:"ref,omitempty"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ErrorPayload is pushed alongside a failed ack.
type ErrorPayload struct {
	Message string `json:"message"`
}

// JoinPayload is the body of session:join.
type JoinPayload struct {
	Role      string `json:"role"`
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
}

// OptionPayload is one option in a poll:create request.
type OptionPayload struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// CreatePollPayload is the body of poll:create.
type CreatePollPayload struct {
	Question        string          `json:"question"`
	Options         []OptionPayload `json:"options"`
	DurationSeconds int             `json:"durationSeconds"`
}

// VotePayload is the body of poll:vote.
type VotePayload struct {
	PollID   string `json:"pollId"`
	OptionID string `json:"optionId"`
}

// KickPayload is the body of student:kick.
type KickPayload struct {
	StudentID string `json:"studentId"`
}

// ChatPayload is the body of chat:send.
type ChatPayload struct {
	Message string `json:"message"`
}

// Session is the server-side handler for inbound events; implemented by the
// session coordinator.
type Session interface {
	Join(ctx context.Context, connID string, payload JoinPayload) error
	Leave(connID string)
	CreatePoll(ctx context.Context, connID string, payload CreatePollPayload) error
	SubmitVote(ctx context.Context, connID string, payload VotePayload) error
	Kick(connID string, payload KickPayload) error
	SendChat(connID string, payload ChatPayload) error
	PushState(ctx context.Context, connID string)
}
