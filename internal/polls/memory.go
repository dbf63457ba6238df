package polls

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/classpulse/backend/internal/models"
)

// MemoryStore is an in-memory Store used when no database is configured and
// in tests. History does not survive a restart.
type MemoryStore struct {
	mu    sync.Mutex
	polls map[uuid.UUID]*models.Poll
	order []uuid.UUID
	votes map[uuid.UUID]map[string]*models.Vote
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		polls: make(map[uuid.UUID]*models.Poll),
		votes: make(map[uuid.UUID]map[string]*models.Vote),
	}
}

// CreatePoll inserts a poll with its options.
func (s *MemoryStore) CreatePoll(_ context.Context, p *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[p.ID] = clonePoll(p)
	s.order = append(s.order, p.ID)
	s.votes[p.ID] = make(map[string]*models.Vote)
	return nil
}

// GetPoll returns a poll by id, or (nil, nil) if absent.
func (s *MemoryStore) GetPoll(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, nil
	}
	return clonePoll(p), nil
}

// CurrentPoll returns the most recently created poll, or (nil, nil).
func (s *MemoryStore) CurrentPoll(_ context.Context) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return nil, nil
	}
	return clonePoll(s.polls[s.order[len(s.order)-1]]), nil
}

// ClosePoll transitions an active poll to closed, reporting whether this call
// performed the transition.
func (s *MemoryStore) ClosePoll(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok || p.Status != models.PollStatusActive {
		return false, nil
	}
	p.Status = models.PollStatusClosed
	return true, nil
}

// InsertVote appends a vote; the per-poll map makes the uniqueness check and
// the insert a single atomic step under the store lock.
func (s *MemoryStore) InsertVote(_ context.Context, v *models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ledger, ok := s.votes[v.PollID]
	if !ok {
		ledger = make(map[string]*models.Vote)
		s.votes[v.PollID] = ledger
	}
	if _, exists := ledger[v.StudentID]; exists {
		return ErrDuplicateVote
	}
	vc := *v
	ledger[v.StudentID] = &vc
	return nil
}

// CountVotes returns the number of votes recorded for a poll.
func (s *MemoryStore) CountVotes(_ context.Context, pollID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes[pollID]), nil
}

// Results tallies votes per option with zero-filled counts.
func (s *MemoryStore) Results(_ context.Context, pollID uuid.UUID) (*models.Results, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return nil, nil
	}
	counts := make(map[string]int, len(p.Options))
	for _, o := range p.Options {
		counts[o.ID.String()] = 0
	}
	total := 0
	for _, v := range s.votes[pollID] {
		counts[v.OptionID.String()]++
		total++
	}
	return &models.Results{Counts: counts, Total: total}, nil
}

// ClosedPolls returns closed polls newest first.
func (s *MemoryStore) ClosedPolls(_ context.Context) ([]*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Poll
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.polls[s.order[i]]
		if p.Status == models.PollStatusClosed {
			out = append(out, clonePoll(p))
		}
	}
	return out, nil
}

func clonePoll(p *models.Poll) *models.Poll {
	cp := *p
	cp.Options = make([]models.Option, len(p.Options))
	copy(cp.Options, p.Options)
	return &cp
}
