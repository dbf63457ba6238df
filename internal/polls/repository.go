package polls

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classpulse/backend/internal/models"
)

// Repository is the PostgreSQL-backed Store. The votes table carries a
// (poll_id, student_id) primary key, which is the atomic duplicate-vote guard.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePoll inserts a poll and its options in one transaction.
func (r *Repository) CreatePoll(ctx context.Context, p *models.Poll) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const pollQuery = `INSERT INTO polls (id, question, duration_seconds, start_time, end_time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, pollQuery, p.ID, p.Question, p.DurationSeconds, p.StartTime, p.EndTime, p.Status, p.CreatedAt); err != nil {
		return fmt.Errorf("insert poll: %w", err)
	}

	const optionQuery = `INSERT INTO poll_options (id, poll_id, position, text, is_correct)
		VALUES ($1, $2, $3, $4, $5)`
	for i, o := range p.Options {
		if _, err := tx.Exec(ctx, optionQuery, o.ID, p.ID, i, o.Text, o.IsCorrect); err != nil {
			return fmt.Errorf("insert option: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// GetPoll returns a poll with its options, or (nil, nil) if absent.
func (r *Repository) GetPoll(ctx context.Context, id uuid.UUID) (*models.Poll, error) {
	const query = `SELECT id, question, duration_seconds, start_time, end_time, status, created_at
		FROM polls WHERE id = $1`
	var p models.Poll
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.Question, &p.DurationSeconds, &p.StartTime, &p.EndTime, &p.Status, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Options, err = r.options(ctx, p.ID); err != nil {
		return nil, err
	}
	return &p, nil
}

// CurrentPoll returns the most recently created poll, or (nil, nil).
func (r *Repository) CurrentPoll(ctx context.Context) (*models.Poll, error) {
	const query = `SELECT id FROM polls ORDER BY created_at DESC, id DESC LIMIT 1`
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, query).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.GetPoll(ctx, id)
}

// ClosePoll flips status active -> closed with a compare-and-set so racing
// close triggers resolve to exactly one winner.
func (r *Repository) ClosePoll(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `UPDATE polls SET status = 'closed' WHERE id = $1 AND status = 'active'`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// InsertVote appends a vote. ON CONFLICT DO NOTHING against the primary key
// turns a duplicate submission into zero affected rows.
func (r *Repository) InsertVote(ctx context.Context, v *models.Vote) error {
	const query = `INSERT INTO votes (poll_id, student_id, option_id, student_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (poll_id, student_id) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, v.PollID, v.StudentID, v.OptionID, v.StudentName, v.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateVote
	}
	return nil
}

// CountVotes returns the number of votes recorded for a poll.
func (r *Repository) CountVotes(ctx context.Context, pollID uuid.UUID) (int, error) {
	const query = `SELECT COUNT(*) FROM votes WHERE poll_id = $1`
	var n int
	if err := r.pool.QueryRow(ctx, query, pollID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Results tallies votes per option, zero-filled for options with no votes.
func (r *Repository) Results(ctx context.Context, pollID uuid.UUID) (*models.Results, error) {
	options, err := r.options(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return nil, nil
	}
	counts := make(map[string]int, len(options))
	for _, o := range options {
		counts[o.ID.String()] = 0
	}

	const query = `SELECT option_id, COUNT(*) FROM votes WHERE poll_id = $1 GROUP BY option_id`
	rows, err := r.pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	total := 0
	for rows.Next() {
		var optionID uuid.UUID
		var n int
		if err := rows.Scan(&optionID, &n); err != nil {
			return nil, err
		}
		counts[optionID.String()] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &models.Results{Counts: counts, Total: total}, nil
}

// ClosedPolls returns closed polls newest first.
func (r *Repository) ClosedPolls(ctx context.Context) ([]*models.Poll, error) {
	const query = `SELECT id, question, duration_seconds, start_time, end_time, status, created_at
		FROM polls WHERE status = 'closed' ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Poll
	for rows.Next() {
		var p models.Poll
		if err := rows.Scan(&p.ID, &p.Question, &p.DurationSeconds, &p.StartTime, &p.EndTime, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range out {
		if p.Options, err = r.options(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Repository) options(ctx context.Context, pollID uuid.UUID) ([]models.Option, error) {
	const query = `SELECT id, text, is_correct FROM poll_options WHERE poll_id = $1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []models.Option
	for rows.Next() {
		var o models.Option
		if err := rows.Scan(&o.ID, &o.Text, &o.IsCorrect); err != nil {
			return nil, err
		}
		options = append(options, o)
	}
	return options, rows.Err()
}
