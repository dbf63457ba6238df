package polls

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classpulse/backend/internal/apperr"
	"github.com/classpulse/backend/internal/models"
)

// minDurationSeconds is the shortest poll a teacher may ask.
const minDurationSeconds = 5

// StudentCounter reports how many students are currently registered. The
// engine snapshots it after each vote for the all-votes-received early close.
type StudentCounter interface {
	StudentCount() int
}

// OptionInput is one answer choice in a create request.
type OptionInput struct {
	Text      string
	IsCorrect bool
}

// Engine owns the single current poll's state machine: creation gating, the
// expiry timer, vote recording and the two racing close triggers. All state
// transitions are serialized through its mutex; the timer goes through the
// same lock as inbound calls.
type Engine struct {
	store    Store
	students StudentCounter
	logger   *zap.Logger

	// test seams
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu            sync.Mutex
	currentPollID uuid.UUID
	timer         *time.Timer
	timerPollID   uuid.UUID
	onClose       func(pollID uuid.UUID)
}

// NewEngine creates a poll lifecycle engine.
func NewEngine(store Store, students StudentCounter, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		students:  students,
		logger:    logger,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// SetOnClose registers a hook invoked (outside the engine lock) after a poll
// is closed by the expiry timer, so the caller can re-broadcast state.
func (e *Engine) SetOnClose(fn func(pollID uuid.UUID)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onClose = fn
}

// Bootstrap adopts the most recent poll after a restart: an expired active
// poll is closed immediately, a still-running one gets its timer re-armed.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.store.CurrentPoll(ctx)
	if err != nil {
		return fmt.Errorf("load current poll: %w", err)
	}
	if p == nil {
		return nil
	}
	e.currentPollID = p.ID
	if expired, err := e.closeIfExpiredLocked(ctx, p); err != nil {
		return err
	} else if !expired {
		e.armTimerLocked(p)
	}
	return nil
}

// Create starts a new poll. Preconditions are checked in order: no active
// poll, non-empty question, at least two non-empty options, duration >= 5s.
func (e *Engine) Create(ctx context.Context, question string, options []OptionInput, durationSeconds int) (*models.Poll, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur, err := e.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	if cur != nil {
		if _, err := e.closeIfExpiredLocked(ctx, cur); err != nil {
			return nil, err
		}
		if cur.Status == models.PollStatusActive {
			return nil, apperr.Conflict("a poll is already running")
		}
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Validation("question is required")
	}
	if len(options) < 2 {
		return nil, apperr.Validation("at least two options are required")
	}
	for i := range options {
		options[i].Text = strings.TrimSpace(options[i].Text)
		if options[i].Text == "" {
			return nil, apperr.Validation("all options must have text")
		}
	}
	if durationSeconds < minDurationSeconds {
		return nil, apperr.Validation(fmt.Sprintf("duration must be at least %d seconds", minDurationSeconds))
	}

	now := e.now()
	p := &models.Poll{
		ID:              uuid.New(),
		Question:        question,
		DurationSeconds: durationSeconds,
		StartTime:       now,
		EndTime:         now.Add(time.Duration(durationSeconds) * time.Second),
		Status:          models.PollStatusActive,
		CreatedAt:       now,
	}
	p.Options = make([]models.Option, len(options))
	for i, o := range options {
		p.Options[i] = models.Option{ID: uuid.New(), Text: o.Text, IsCorrect: o.IsCorrect}
	}

	if err := e.store.CreatePoll(ctx, p); err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}
	e.currentPollID = p.ID
	e.armTimerLocked(p)

	e.logger.Info("poll created",
		zap.String("poll_id", p.ID.String()),
		zap.Int("duration_seconds", durationSeconds),
		zap.Int("options", len(p.Options)))
	return p, nil
}

// RecordVote appends one student's vote and runs the all-votes-received
// check. Duplicate votes are rejected atomically by the store.
func (e *Engine) RecordVote(ctx context.Context, pollID, optionID uuid.UUID, studentID, studentName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		return err
	}
	if p == nil {
		return apperr.NotFound("poll not found")
	}
	if expired, err := e.closeIfExpiredLocked(ctx, p); err != nil {
		return err
	} else if expired || p.Status != models.PollStatusActive {
		return apperr.Conflict("poll has ended")
	}
	if !p.HasOption(optionID) {
		return apperr.Validation("invalid option selected")
	}

	vote := &models.Vote{
		PollID:      pollID,
		OptionID:    optionID,
		StudentID:   studentID,
		StudentName: studentName,
		CreatedAt:   e.now(),
	}
	if err := e.store.InsertVote(ctx, vote); err != nil {
		if err == ErrDuplicateVote {
			return apperr.Conflict("you have already voted for this question")
		}
		return fmt.Errorf("record vote: %w", err)
	}

	// Early close when every currently registered student has voted. The
	// roster size is a snapshot at check time; students joining mid-poll
	// raise the bar, students leaving after voting do not lower it.
	students := e.students.StudentCount()
	if students > 0 {
		total, err := e.store.CountVotes(ctx, pollID)
		if err != nil {
			return fmt.Errorf("count votes: %w", err)
		}
		if total >= students {
			if _, err := e.closePollLocked(ctx, pollID); err != nil {
				return err
			}
			e.logger.Info("poll closed early, all students voted",
				zap.String("poll_id", pollID.String()),
				zap.Int("votes", total))
		}
	}
	return nil
}

// State returns the canonical snapshot. An expired active poll is closed
// synchronously before serializing, so a stale "active" poll is never
// observable; a discovered active poll re-validates the timer (restart
// recovery).
func (e *Engine) State(ctx context.Context) (*models.PollState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	serverTime := e.now().UnixMilli()
	p, err := e.currentLocked(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &models.PollState{ServerTime: serverTime, CanAskNewQuestion: true}, nil
	}
	if _, err := e.closeIfExpiredLocked(ctx, p); err != nil {
		return nil, err
	}
	if p.Status == models.PollStatusActive {
		e.armTimerLocked(p)
	}

	results, err := e.store.Results(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &models.PollState{
		Poll:              p.View(),
		Results:           results,
		ServerTime:        serverTime,
		CanAskNewQuestion: p.Status == models.PollStatusClosed,
	}, nil
}

// History returns closed polls with their final results, newest first.
func (e *Engine) History(ctx context.Context) ([]models.HistoryEntry, error) {
	polls, err := e.store.ClosedPolls(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]models.HistoryEntry, 0, len(polls))
	for _, p := range polls {
		results, err := e.store.Results(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.HistoryEntry{Poll: p.View(), Results: results})
	}
	return entries, nil
}

// Shutdown stops the expiry timer.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
}

// currentLocked resolves the current poll through the explicit reference,
// consulting the store only when the engine has not adopted one yet.
func (e *Engine) currentLocked(ctx context.Context) (*models.Poll, error) {
	if e.currentPollID == uuid.Nil {
		p, err := e.store.CurrentPoll(ctx)
		if err != nil || p == nil {
			return nil, err
		}
		e.currentPollID = p.ID
		return p, nil
	}
	return e.store.GetPoll(ctx, e.currentPollID)
}

// closeIfExpiredLocked closes p if it is active past its deadline, mutating
// p's status in place. Reports whether this call expired it.
func (e *Engine) closeIfExpiredLocked(ctx context.Context, p *models.Poll) (bool, error) {
	if !p.ExpiredAt(e.now()) {
		return false, nil
	}
	if _, err := e.closePollLocked(ctx, p.ID); err != nil {
		return false, err
	}
	p.Status = models.PollStatusClosed
	return true, nil
}

// closePollLocked is the single close transition used by every trigger. The
// store's compare-and-set makes it idempotent: whichever trigger arrives
// first wins and the rest observe "already closed".
func (e *Engine) closePollLocked(ctx context.Context, pollID uuid.UUID) (bool, error) {
	closedNow, err := e.store.ClosePoll(ctx, pollID)
	if err != nil {
		return false, fmt.Errorf("close poll: %w", err)
	}
	if e.timerPollID == pollID {
		e.stopTimerLocked()
	}
	return closedNow, nil
}

// armTimerLocked schedules the natural expiry of an active poll. A timer
// already armed for the same poll is left alone; one armed for a superseded
// poll is replaced.
func (e *Engine) armTimerLocked(p *models.Poll) {
	if p.Status != models.PollStatusActive {
		return
	}
	if e.timer != nil && e.timerPollID == p.ID {
		return
	}
	remaining := p.EndTime.Sub(e.now())
	if remaining <= 0 {
		return
	}
	e.stopTimerLocked()
	pollID := p.ID
	e.timerPollID = pollID
	e.timer = e.afterFunc(remaining, func() { e.expire(pollID) })
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerPollID = uuid.Nil
}

// expire is the timer trigger. It takes the same lock as inbound calls, so a
// vote can never be recorded against a poll mid-close. Poll ids are never
// reused, so a stale firing for a superseded poll id is harmless.
func (e *Engine) expire(pollID uuid.UUID) {
	ctx := context.Background()

	e.mu.Lock()
	if e.timerPollID == pollID {
		e.timer = nil
		e.timerPollID = uuid.Nil
	}
	closedNow, err := e.closePollLocked(ctx, pollID)
	onClose := e.onClose
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("close expired poll", zap.String("poll_id", pollID.String()), zap.Error(err))
		return
	}
	if !closedNow {
		return
	}
	e.logger.Info("poll closed, time elapsed", zap.String("poll_id", pollID.String()))
	if onClose != nil {
		onClose(pollID)
	}
}
