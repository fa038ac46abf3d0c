package postgres

import (
	"context"
	"errors"
	"fmt"

	"contest-ranking-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const contestColumns = `id, title, description, subject_id, difficulty, question_count,
	duration_minutes, start_time, end_time, max_participants, prize, created_at`

// ContestStore persists contest definitions in the contests table.
type ContestStore struct {
	pool *pgxpool.Pool
}

func NewContestStore(pool *pgxpool.Pool) *ContestStore {
	return &ContestStore{pool: pool}
}

func (s *ContestStore) CreateContest(ctx context.Context, c domain.Contest) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO contests (`+contestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.Title, c.Description, c.SubjectID, string(c.Difficulty), c.QuestionCount,
		c.DurationMinutes, c.StartTime, c.EndTime, c.MaxParticipants, c.Prize, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert contest: %w", err)
	}
	return nil
}

func (s *ContestStore) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+contestColumns+` FROM contests WHERE id=$1`, contestID)
	c, err := scanContest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	if err != nil {
		return domain.Contest{}, fmt.Errorf("load contest: %w", err)
	}
	return c, nil
}

func (s *ContestStore) ListContests(ctx context.Context) ([]domain.Contest, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+contestColumns+` FROM contests ORDER BY start_time, id`)
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	defer rows.Close()

	var out []domain.Contest
	for rows.Next() {
		c, err := scanContest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contest: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContest(row pgx.Row) (domain.Contest, error) {
	var (
		c          domain.Contest
		difficulty string
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.SubjectID, &difficulty, &c.QuestionCount,
		&c.DurationMinutes, &c.StartTime, &c.EndTime, &c.MaxParticipants, &c.Prize, &c.CreatedAt)
	c.Difficulty = domain.Difficulty(difficulty)
	return c, err
}
