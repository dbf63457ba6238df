package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/apperr"
	"github.com/classpulse/backend/internal/chat"
	"github.com/classpulse/backend/internal/models"
	"github.com/classpulse/backend/internal/polls"
	"github.com/classpulse/backend/internal/realtime"
)

type sentEvent struct {
	connID  string
	event   string
	payload interface{}
}

// stubHub records outbound events instead of writing to sockets.
type stubHub struct {
	mu           sync.Mutex
	broadcasts   []sentEvent
	sends        []sentEvent
	disconnected []string
}

func (h *stubHub) Broadcast(event string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, sentEvent{event: event, payload: payload})
}

func (h *stubHub) SendTo(connID, event string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sends = append(h.sends, sentEvent{connID: connID, event: event, payload: payload})
}

func (h *stubHub) Disconnect(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, connID)
}

func (h *stubHub) sentTo(connID, event string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, e := range h.sends {
		if e.connID == connID && e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (h *stubHub) broadcastsOf(event string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, e := range h.broadcasts {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func newTestCoordinator(t *testing.T) (*Coordinator, *polls.Engine, *stubHub) {
	t.Helper()
	hub := &stubHub{}
	registry := NewRegistry()
	engine := polls.NewEngine(polls.NewMemoryStore(), registry, zap.NewNop())
	coord := NewCoordinator(registry, engine, chat.NewBuffer(50), hub, zap.NewNop())
	return coord, engine, hub
}

func join(t *testing.T, c *Coordinator, connID, role, name, studentID string) {
	t.Helper()
	require.NoError(t, c.Join(context.Background(), connID, realtime.JoinPayload{
		Role: role, Name: name, StudentID: studentID,
	}))
}

func createPoll(t *testing.T, c *Coordinator, engine *polls.Engine, connID string) *models.PollView {
	t.Helper()
	err := c.CreatePoll(context.Background(), connID, realtime.CreatePollPayload{
		Question:        "What is 2+2?",
		Options:         []realtime.OptionPayload{{Text: "4", IsCorrect: true}, {Text: "5"}, {Text: "22"}},
		DurationSeconds: 30,
	})
	require.NoError(t, err)
	state, err := engine.State(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state.Poll)
	return state.Poll
}

func TestJoinPushesSnapshotAndHistory(t *testing.T) {
	coord, _, hub := newTestCoordinator(t)

	join(t, coord, "t1", "teacher", "Miss T", "")
	join(t, coord, "c1", "student", "Ana", "s1")

	require.Len(t, hub.sentTo("c1", realtime.EventPollState), 1)
	require.Len(t, hub.sentTo("c1", realtime.EventChatHistory), 1)

	state := hub.sentTo("c1", realtime.EventPollState)[0].payload.(*models.PollState)
	assert.Nil(t, state.Poll)
	assert.True(t, state.CanAskNewQuestion)

	rosters := hub.broadcastsOf(realtime.EventParticipants)
	require.NotEmpty(t, rosters)
	last := rosters[len(rosters)-1].payload.(RosterPayload)
	require.Len(t, last.Participants, 1)
	assert.Equal(t, "s1", last.Participants[0].StudentID)
}

func TestJoinValidation(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	err := coord.Join(context.Background(), "c1", realtime.JoinPayload{Role: "student", Name: "Ana"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = coord.Join(context.Background(), "c1", realtime.JoinPayload{Name: "Ana"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestKickFlow(t *testing.T) {
	coord, _, hub := newTestCoordinator(t)
	join(t, coord, "t1", "teacher", "Miss T", "")
	join(t, coord, "c1", "student", "Ana", "s1")

	// Students cannot kick.
	err := coord.Kick("c1", realtime.KickPayload{StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, coord.Kick("t1", realtime.KickPayload{StudentID: "s1"}))
	require.Len(t, hub.sentTo("c1", realtime.EventKicked), 1)
	assert.Equal(t, []string{"c1"}, hub.disconnected)

	rosters := hub.broadcastsOf(realtime.EventParticipants)
	last := rosters[len(rosters)-1].payload.(RosterPayload)
	assert.Empty(t, last.Participants)

	// Rejoining with a kicked id is routed to the kicked path, not admitted.
	err = coord.Join(context.Background(), "c2", realtime.JoinPayload{Role: "student", Name: "Ana", StudentID: "s1"})
	assert.ErrorIs(t, err, realtime.ErrKicked)
	require.Len(t, hub.sentTo("c2", realtime.EventKicked), 1)
	assert.Empty(t, hub.sentTo("c2", realtime.EventPollState))
}

func TestCreatePollTeacherOnly(t *testing.T) {
	coord, engine, hub := newTestCoordinator(t)
	join(t, coord, "t1", "teacher", "Miss T", "")
	join(t, coord, "c1", "student", "Ana", "s1")

	err := coord.CreatePoll(context.Background(), "c1", realtime.CreatePollPayload{
		Question:        "Q?",
		Options:         []realtime.OptionPayload{{Text: "A"}, {Text: "B"}},
		DurationSeconds: 30,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	createPoll(t, coord, engine, "t1")
	states := hub.broadcastsOf(realtime.EventPollState)
	require.NotEmpty(t, states)
	state := states[len(states)-1].payload.(*models.PollState)
	require.NotNil(t, state.Poll)
	assert.False(t, state.CanAskNewQuestion)
	assert.Equal(t, "What is 2+2?", state.Poll.Question)
}

func TestVoteFlowWithEarlyClose(t *testing.T) {
	coord, engine, hub := newTestCoordinator(t)
	join(t, coord, "t1", "teacher", "Miss T", "")
	join(t, coord, "c1", "student", "Ana", "s1")
	join(t, coord, "c2", "student", "Ben", "s2")

	poll := createPoll(t, coord, engine, "t1")
	optionA := poll.Options[0].ID.String()

	// Teachers cannot vote.
	err := coord.SubmitVote(context.Background(), "t1", realtime.VotePayload{PollID: poll.ID, OptionID: optionA})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	require.NoError(t, coord.SubmitVote(context.Background(), "c1", realtime.VotePayload{PollID: poll.ID, OptionID: optionA}))
	require.NoError(t, coord.SubmitVote(context.Background(), "c2", realtime.VotePayload{PollID: poll.ID, OptionID: optionA}))

	states := hub.broadcastsOf(realtime.EventPollState)
	require.NotEmpty(t, states)
	final := states[len(states)-1].payload.(*models.PollState)
	assert.True(t, final.CanAskNewQuestion, "both students voted, poll closes early")
	assert.Equal(t, models.PollStatusClosed, final.Poll.Status)
	assert.Equal(t, 2, final.Results.Total)
	assert.Equal(t, 2, final.Results.Counts[optionA])
}

func TestChatFanout(t *testing.T) {
	coord, _, hub := newTestCoordinator(t)

	err := coord.SendChat("ghost", realtime.ChatPayload{Message: "hello"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	join(t, coord, "c1", "student", "Ana", "s1")
	err = coord.SendChat("c1", realtime.ChatPayload{Message: "   "})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	require.NoError(t, coord.SendChat("c1", realtime.ChatPayload{Message: "hello"}))
	messages := hub.broadcastsOf(realtime.EventChatNew)
	require.Len(t, messages, 1)
	msg := messages[0].payload.(models.ChatMessage)
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "Ana", msg.Name)
	assert.Equal(t, models.RoleStudent, msg.Role)

	// A later joiner receives the message in history.
	join(t, coord, "c2", "student", "Ben", "s2")
	history := hub.sentTo("c2", realtime.EventChatHistory)
	require.Len(t, history, 1)
	assert.Len(t, history[0].payload.([]models.ChatMessage), 1)
}

func TestLeaveUpdatesRoster(t *testing.T) {
	coord, _, hub := newTestCoordinator(t)
	join(t, coord, "c1", "student", "Ana", "s1")
	join(t, coord, "c2", "student", "Ben", "s2")

	coord.Leave("c1")
	rosters := hub.broadcastsOf(realtime.EventParticipants)
	last := rosters[len(rosters)-1].payload.(RosterPayload)
	require.Len(t, last.Participants, 1)
	assert.Equal(t, "s2", last.Participants[0].StudentID)

	// Leaving twice is harmless.
	coord.Leave("c1")
}
