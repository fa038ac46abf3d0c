package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"contest-ranking-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const eventColumns = `seq, id, user_id, points, source_kind, source_id, occurred_at`

// LedgerStore is the append-only score_events table. seq is a BIGSERIAL and
// (source_kind, source_id) carries the idempotency constraint.
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

func (s *LedgerStore) AppendEvent(ctx context.Context, ev domain.ScoreEvent) (domain.ScoreEvent, error) {
	err := s.pool.QueryRow(ctx, `INSERT INTO score_events (id, user_id, points, source_kind, source_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_kind, source_id) DO NOTHING
		RETURNING seq`,
		ev.ID, ev.UserID, ev.Points, string(ev.SourceKind), ev.SourceID, ev.OccurredAt).Scan(&ev.Seq)
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreEvent{}, fmt.Errorf("insert score event: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM score_events
		WHERE source_kind=$1 AND source_id=$2`, string(ev.SourceKind), ev.SourceID)
	if err != nil {
		return domain.ScoreEvent{}, fmt.Errorf("load existing score event: %w", err)
	}
	existing, err := collectEvents(rows)
	if err != nil {
		return domain.ScoreEvent{}, err
	}
	if len(existing) == 0 {
		return domain.ScoreEvent{}, fmt.Errorf("score event %s/%s vanished after conflict", ev.SourceKind, ev.SourceID)
	}
	return existing[0], domain.ErrDeduplicated
}

func (s *LedgerStore) EventsForUser(ctx context.Context, userID string, afterSeq int64, limit int) ([]domain.ScoreEvent, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+eventColumns+` FROM score_events
		WHERE user_id=$1 AND seq > $2 ORDER BY seq LIMIT $3`, userID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query user events: %w", err)
	}
	return collectEvents(rows)
}

// EventsBetween pages events with occurred_at in [from, to); zero bounds are open.
func (s *LedgerStore) EventsBetween(ctx context.Context, from, to time.Time, afterSeq int64, limit int) ([]domain.ScoreEvent, error) {
	where := []string{"seq > $1"}
	args := []interface{}{afterSeq}
	if !from.IsZero() {
		args = append(args, from)
		where = append(where, "occurred_at >= $"+strconv.Itoa(len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		where = append(where, "occurred_at < $"+strconv.Itoa(len(args)))
	}
	args = append(args, limit)
	query := `SELECT ` + eventColumns + ` FROM score_events WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY seq LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query window events: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.ScoreEvent, error) {
	defer rows.Close()
	var out []domain.ScoreEvent
	for rows.Next() {
		var (
			ev   domain.ScoreEvent
			kind string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.UserID, &ev.Points, &kind, &ev.SourceID, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan score event: %w", err)
		}
		ev.SourceKind = domain.SourceKind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}
