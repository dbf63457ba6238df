package polls

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classpulse/backend/internal/models"
)

func seedPoll(t *testing.T, s *MemoryStore) *models.Poll {
	t.Helper()
	now := time.Now()
	p := &models.Poll{
		ID:       uuid.New(),
		Question: "Q?",
		Options: []models.Option{
			{ID: uuid.New(), Text: "A", IsCorrect: true},
			{ID: uuid.New(), Text: "B"},
		},
		DurationSeconds: 30,
		StartTime:       now,
		EndTime:         now.Add(30 * time.Second),
		Status:          models.PollStatusActive,
		CreatedAt:       now,
	}
	require.NoError(t, s.CreatePoll(context.Background(), p))
	return p
}

func TestInsertVoteConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedPoll(t, s)

	const attempts = 20
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.InsertVote(ctx, &models.Vote{
				PollID:      p.ID,
				OptionID:    p.Options[0].ID,
				StudentID:   "s1",
				StudentName: "Ana",
				CreatedAt:   time.Now(),
			})
		}(i)
	}
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch err {
		case nil:
			won++
		case ErrDuplicateVote:
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent duplicate may land")
	assert.Equal(t, attempts-1, lost)

	n, err := s.CountVotes(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResultsZeroFilledAndConsistent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedPoll(t, s)

	require.NoError(t, s.InsertVote(ctx, &models.Vote{PollID: p.ID, OptionID: p.Options[0].ID, StudentID: "s1", StudentName: "Ana"}))
	require.NoError(t, s.InsertVote(ctx, &models.Vote{PollID: p.ID, OptionID: p.Options[0].ID, StudentID: "s2", StudentName: "Ben"}))

	results, err := s.Results(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, results.Counts[p.Options[0].ID.String()])
	assert.Equal(t, 0, results.Counts[p.Options[1].ID.String()])
	assert.Equal(t, 2, results.Total)

	sum := 0
	for _, n := range results.Counts {
		sum += n
	}
	assert.Equal(t, results.Total, sum)

	n, err := s.CountVotes(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, results.Total, n)
}

func TestClosePollCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedPoll(t, s)

	closed, err := s.ClosePoll(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = s.ClosePoll(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, closed, "second close must observe already-closed")

	closed, err = s.ClosePoll(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestCurrentAndClosedPollOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	first := seedPoll(t, s)
	_, err := s.ClosePoll(ctx, first.ID)
	require.NoError(t, err)
	second := seedPoll(t, s)

	cur, err := s.CurrentPoll(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, cur.ID)

	_, err = s.ClosePoll(ctx, second.ID)
	require.NoError(t, err)
	closed, err := s.ClosedPolls(ctx)
	require.NoError(t, err)
	require.Len(t, closed, 2)
	assert.Equal(t, second.ID, closed[0].ID)
	assert.Equal(t, first.ID, closed[1].ID)
}

func TestGetPollReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	p := seedPoll(t, s)

	got, err := s.GetPoll(ctx, p.ID)
	require.NoError(t, err)
	got.Status = models.PollStatusClosed
	got.Options[0].Text = "tampered"

	again, err := s.GetPoll(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PollStatusActive, again.Status)
	assert.Equal(t, "A", again.Options[0].Text)

	missing, err := s.GetPoll(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
