package postgres

import (
	"context"
	"errors"
	"fmt"

	"contest-ranking-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const participationColumns = `id, contest_id, user_id, joined_at, status, score,
	correct_count, total_questions, completed_at, score_event_id`

// ParticipationStore keeps participations; (contest_id, user_id) is unique.
type ParticipationStore struct {
	pool *pgxpool.Pool
}

func NewParticipationStore(pool *pgxpool.Pool) *ParticipationStore {
	return &ParticipationStore{pool: pool}
}

// InsertParticipation locks the contest row so concurrent joins from any
// instance count and insert one at a time.
func (s *ParticipationStore) InsertParticipation(ctx context.Context, p domain.Participation, capacity int) error {
	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx, `SELECT id FROM contests WHERE id=$1 FOR UPDATE`, p.ContestID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrContestNotFound
		}
		if err != nil {
			return fmt.Errorf("lock contest: %w", err)
		}

		var joined bool
		var count int
		err = tx.QueryRow(ctx, `SELECT
				EXISTS (SELECT 1 FROM participations WHERE contest_id=$1 AND user_id=$2),
				(SELECT count(*) FROM participations WHERE contest_id=$1)`,
			p.ContestID, p.UserID).Scan(&joined, &count)
		if err != nil {
			return fmt.Errorf("count participations: %w", err)
		}
		if joined {
			return domain.ErrAlreadyJoined
		}
		if count >= capacity {
			return domain.ErrContestFull
		}

		_, err = tx.Exec(ctx, `INSERT INTO participations (`+participationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID, p.ContestID, p.UserID, p.JoinedAt, string(p.Status), p.Score,
			p.CorrectCount, p.TotalQuestions, p.CompletedAt, p.ScoreEventID)
		if err != nil {
			return fmt.Errorf("insert participation: %w", err)
		}
		return nil
	})
}

func (s *ParticipationStore) GetParticipation(ctx context.Context, participationID string) (domain.Participation, error) {
	return s.queryOne(ctx, `SELECT `+participationColumns+` FROM participations WHERE id=$1`, participationID)
}

func (s *ParticipationStore) FindParticipation(ctx context.Context, contestID, userID string) (domain.Participation, error) {
	return s.queryOne(ctx, `SELECT `+participationColumns+` FROM participations
		WHERE contest_id=$1 AND user_id=$2`, contestID, userID)
}

// CountParticipations reports how many users joined the contest.
func (s *ParticipationStore) CountParticipations(ctx context.Context, contestID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM participations WHERE contest_id=$1`, contestID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count participations: %w", err)
	}
	return n, nil
}

// UpdateParticipation writes the mutable columns. A completed row is never
// rewritten, so a lagging writer cannot replace the stored score.
func (s *ParticipationStore) UpdateParticipation(ctx context.Context, p domain.Participation) error {
	tag, err := s.pool.Exec(ctx, `UPDATE participations
		SET status=$2, score=$3, correct_count=$4, total_questions=$5, completed_at=$6, score_event_id=$7
		WHERE id=$1 AND status <> $8`,
		p.ID, string(p.Status), p.Score, p.CorrectCount, p.TotalQuestions, p.CompletedAt, p.ScoreEventID,
		string(domain.StatusCompleted))
	if err != nil {
		return fmt.Errorf("update participation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetParticipation(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *ParticipationStore) queryOne(ctx context.Context, query string, args ...interface{}) (domain.Participation, error) {
	var (
		p      domain.Participation
		status string
	)
	err := s.pool.QueryRow(ctx, query, args...).Scan(&p.ID, &p.ContestID, &p.UserID, &p.JoinedAt, &status, &p.Score,
		&p.CorrectCount, &p.TotalQuestions, &p.CompletedAt, &p.ScoreEventID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	if err != nil {
		return domain.Participation{}, fmt.Errorf("load participation: %w", err)
	}
	p.Status = domain.ParticipationStatus(status)
	return p, nil
}
