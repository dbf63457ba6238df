package polls

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/classpulse/backend/internal/models"
)

// ErrDuplicateVote is returned by Store.InsertVote when a vote for the same
// (poll, student) pair already exists.
var ErrDuplicateVote = errors.New("duplicate vote")

// Store persists polls and the vote ledger. Lookups return (nil, nil) when
// the poll does not exist.
//
// InsertVote must enforce vote uniqueness atomically (unique constraint, not
// check-then-insert) so concurrent duplicate submissions from a doubly
// connected session cannot both land.
type Store interface {
	// CreatePoll inserts a poll with its options.
	CreatePoll(ctx context.Context, p *models.Poll) error
	// GetPoll returns a poll by id.
	GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error)
	// CurrentPoll returns the most recently created poll.
	CurrentPoll(ctx context.Context) (*models.Poll, error)
	// ClosePoll transitions an active poll to closed. It reports whether this
	// call performed the transition; closing an already-closed poll is a no-op.
	ClosePoll(ctx context.Context, id uuid.UUID) (bool, error)
	// InsertVote appends a vote, returning ErrDuplicateVote if the student
	// already voted on this poll.
	InsertVote(ctx context.Context, v *models.Vote) error
	// CountVotes returns the number of votes recorded for a poll.
	CountVotes(ctx context.Context, pollID uuid.UUID) (int, error)
	// Results tallies votes per option, zero-filled for every option of the
	// poll. Always derived from the ledger at call time.
	Results(ctx context.Context, pollID uuid.UUID) (*models.Results, error)
	// ClosedPolls returns all closed polls, newest first.
	ClosedPolls(ctx context.Context) ([]*models.Poll, error)
}
