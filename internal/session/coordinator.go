package session

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/apperr"
	"github.com/classpulse/backend/internal/chat"
	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/internal/polls"
	"github.com/classpulse/backend/internal/realtime"
)

// Broadcaster pushes outbound events; satisfied by realtime.Hub.
type Broadcaster interface {
	Broadcast(event string, payload interface{})
	SendTo(connID string, event string, payload interface{})
	Disconnect(connID string)
}

// RosterPayload is the body of participants:update.
type RosterPayload struct {
	Participants []models.RosterEntry `json:"participants"`
}

// Coordinator is the single dispatch point for the live session. Every
// mutation — inbound events and the poll-expiry timer alike — runs under one
// mutex and ends with the freshly recomputed snapshot pushed to every
// connection, so mutation and broadcast pairs never interleave out of order.
type Coordinator struct {
	registry *Registry
	engine   *polls.Engine
	chat     *chat.Buffer
	hub      Broadcaster
	logger   *zap.Logger

	mu sync.Mutex
}

// NewCoordinator wires the registry, engine, chat buffer and hub together.
// Timer-driven poll closes are routed back through the coordinator so their
// broadcast follows the same discipline as inbound events.
func NewCoordinator(registry *Registry, engine *polls.Engine, chatBuf *chat.Buffer, hub Broadcaster, logger *zap.Logger) *Coordinator {
	c := &Coordinator{
		registry: registry,
		engine:   engine,
		chat:     chatBuf,
		hub:      hub,
		logger:   logger,
	}
	engine.SetOnClose(func(uuid.UUID) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.broadcastStateLocked(context.Background())
	})
	return c
}

// Join admits a connection. Kicked students are notified and refused with
// realtime.ErrKicked so the transport severs them. Admitted participants get
// the current snapshot and chat history; everyone gets the updated roster.
func (c *Coordinator) Join(ctx context.Context, connID string, payload realtime.JoinPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	role := models.Role(payload.Role)
	if role == models.RoleStudent && c.registry.IsKicked(strings.TrimSpace(payload.StudentID)) {
		c.hub.SendTo(connID, realtime.EventKicked, struct{}{})
		return realtime.ErrKicked
	}
	if err := c.registry.Add(connID, role, payload.Name, payload.StudentID); err != nil {
		return err
	}

	c.broadcastRosterLocked()
	c.pushStateLocked(ctx, connID)
	c.hub.SendTo(connID, realtime.EventChatHistory, c.chat.History())
	c.logger.Info("participant joined",
		zap.String("conn_id", connID),
		zap.String("role", payload.Role),
		zap.String("student_id", payload.StudentID))
	return nil
}

// Leave drops a connection; idempotent for connections that never joined.
func (c *Coordinator) Leave(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registry.Remove(connID)
	c.broadcastRosterLocked()
}

// CreatePoll asks a new question. Teacher only.
func (c *Coordinator) CreatePoll(ctx context.Context, connID string, payload realtime.CreatePollPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	caller, ok := c.registry.Get(connID)
	if !ok || caller.Role != models.RoleTeacher {
		return apperr.Forbidden("only teachers can ask questions")
	}

	options := make([]polls.OptionInput, len(payload.Options))
	for i, o := range payload.Options {
		options[i] = polls.OptionInput{Text: o.Text, IsCorrect: o.IsCorrect}
	}
	if _, err := c.engine.Create(ctx, payload.Question, options, payload.DurationSeconds); err != nil {
		return err
	}
	c.broadcastStateLocked(ctx)
	return nil
}

// SubmitVote records a student's vote and re-broadcasts state (including a
// possible all-votes-received close).
func (c *Coordinator) SubmitVote(ctx context.Context, connID string, payload realtime.VotePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	caller, ok := c.registry.Get(connID)
	if !ok || caller.Role != models.RoleStudent || caller.StudentID == "" {
		return apperr.Forbidden("student session not found")
	}
	pollID, err := uuid.Parse(payload.PollID)
	if err != nil {
		return apperr.NotFound("poll not found")
	}
	optionID, err := uuid.Parse(payload.OptionID)
	if err != nil {
		return apperr.Validation("invalid option selected")
	}

	if err := c.engine.RecordVote(ctx, pollID, optionID, caller.StudentID, caller.DisplayName()); err != nil {
		return err
	}
	c.broadcastStateLocked(ctx)
	return nil
}

// Kick evicts a student for the rest of the process lifetime. Teacher only.
// The target gets the kicked notice before its connection is severed.
func (c *Coordinator) Kick(connID string, payload realtime.KickPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	caller, ok := c.registry.Get(connID)
	if !ok || caller.Role != models.RoleTeacher {
		return apperr.Forbidden("only teachers can remove students")
	}
	target, err := c.registry.Kick(payload.StudentID)
	if err != nil {
		return err
	}

	c.hub.SendTo(target, realtime.EventKicked, struct{}{})
	c.hub.Disconnect(target)
	c.broadcastRosterLocked()
	c.logger.Info("student kicked",
		zap.String("student_id", payload.StudentID),
		zap.String("conn_id", target))
	return nil
}

// SendChat appends a chat message and fans it out to everyone.
func (c *Coordinator) SendChat(connID string, payload realtime.ChatPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	caller, ok := c.registry.Get(connID)
	if !ok {
		return apperr.Forbidden("session not found")
	}
	msg, err := c.chat.Add(caller.Role, caller.DisplayName(), payload.Message)
	if err != nil {
		return err
	}
	c.hub.Broadcast(realtime.EventChatNew, msg)
	return nil
}

// PushState sends the current snapshot to one connection on demand.
func (c *Coordinator) PushState(ctx context.Context, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushStateLocked(ctx, connID)
}

func (c *Coordinator) pushStateLocked(ctx context.Context, connID string) {
	state, err := c.engine.State(ctx)
	if err != nil {
		c.logger.Error("compute poll state", zap.Error(err))
		return
	}
	c.hub.SendTo(connID, realtime.EventPollState, state)
}

func (c *Coordinator) broadcastStateLocked(ctx context.Context) {
	state, err := c.engine.State(ctx)
	if err != nil {
		c.logger.Error("compute poll state", zap.Error(err))
		return
	}
	c.hub.Broadcast(realtime.EventPollState, state)
}

func (c *Coordinator) broadcastRosterLocked() {
	c.hub.Broadcast(realtime.EventParticipants, RosterPayload{Participants: c.registry.Students()})
}
