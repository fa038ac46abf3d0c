package postgres

import (
	"context"
	"errors"
	"fmt"

	"contest-ranking-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProfileLoader reads display profiles from Postgres.
type ProfileLoader struct {
	pool *pgxpool.Pool
}

func NewProfileLoader(pool *pgxpool.Pool) *ProfileLoader {
	return &ProfileLoader{pool: pool}
}

func (l *ProfileLoader) LoadProfile(ctx context.Context, userID string) (domain.Profile, error) {
	p := domain.Profile{UserID: userID}
	err := l.pool.QueryRow(ctx, `SELECT display_name, avatar, badge_count FROM profiles WHERE user_id=$1`, userID).
		Scan(&p.DisplayName, &p.Avatar, &p.BadgeCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

// UpsertProfile stores or replaces a profile.
func (l *ProfileLoader) UpsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := l.pool.Exec(ctx, `INSERT INTO profiles (user_id, display_name, avatar, badge_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET display_name=EXCLUDED.display_name,
			avatar=EXCLUDED.avatar, badge_count=EXCLUDED.badge_count`,
		p.UserID, p.DisplayName, p.Avatar, p.BadgeCount)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
