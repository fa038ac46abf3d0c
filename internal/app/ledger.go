package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contest-ranking-service/internal/domain"
	"github.com/google/uuid"
)

const defaultLedgerBatch = 256

// ScoreLedger is the single source of truth for points.
type ScoreLedger struct {
	store     LedgerStore
	batchSize int
}

func NewScoreLedger(store LedgerStore, batchSize int) *ScoreLedger {
	if batchSize <= 0 {
		batchSize = defaultLedgerBatch
	}
	return &ScoreLedger{store: store, batchSize: batchSize}
}

// AppendResult carries the stored event; Deduplicated is set when an earlier
// append with the same idempotency key absorbed this one.
type AppendResult struct {
	Event        domain.ScoreEvent
	Deduplicated bool
}

// Append records a scoring event at most once per (kind, sourceID).
func (l *ScoreLedger) Append(ctx context.Context, userID string, delta int, kind domain.SourceKind, sourceID string, occurredAt time.Time) (AppendResult, error) {
	if userID == "" || sourceID == "" || !kind.Valid() {
		return AppendResult{}, fmt.Errorf("%w: user, source kind and source id are required", domain.ErrInvalidSubmission)
	}
	stored, err := l.store.AppendEvent(ctx, domain.ScoreEvent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Points:     delta,
		SourceKind: kind,
		SourceID:   sourceID,
		OccurredAt: occurredAt,
	})
	if errors.Is(err, domain.ErrDeduplicated) {
		return AppendResult{Event: stored, Deduplicated: true}, nil
	}
	if err != nil {
		return AppendResult{}, fmt.Errorf("append score event: %w", err)
	}
	return AppendResult{Event: stored}, nil
}

// EventsForUser iterates the user's events with Seq > since.
func (l *ScoreLedger) EventsForUser(userID string, since int64) *EventIterator {
	return &EventIterator{
		cursor: since,
		limit:  l.batchSize,
		fetch: func(ctx context.Context, after int64, limit int) ([]domain.ScoreEvent, error) {
			return l.store.EventsForUser(ctx, userID, after, limit)
		},
	}
}

// Scan iterates every event whose occurredAt falls in w.
func (l *ScoreLedger) Scan(w domain.Window) *EventIterator {
	return l.scanAfter(w, 0)
}

func (l *ScoreLedger) scanAfter(w domain.Window, since int64) *EventIterator {
	return &EventIterator{
		cursor: since,
		limit:  l.batchSize,
		fetch: func(ctx context.Context, after int64, limit int) ([]domain.ScoreEvent, error) {
			return l.store.EventsBetween(ctx, w.Start, w.End, after, limit)
		},
	}
}

// TotalForUser sums the user's deltas with occurredAt in [windowStart, windowEnd).
// Zero bounds are open.
func (l *ScoreLedger) TotalForUser(ctx context.Context, userID string, windowStart, windowEnd time.Time) (int, error) {
	total := 0
	it := l.EventsForUser(userID, 0)
	for it.Next(ctx) {
		ev := it.Event()
		if !windowStart.IsZero() && ev.OccurredAt.Before(windowStart) {
			continue
		}
		if !windowEnd.IsZero() && !ev.OccurredAt.Before(windowEnd) {
			continue
		}
		total += ev.Points
	}
	return total, it.Err()
}

// EventIterator pages lazily through the ledger in Seq order. It can be
// resumed from Cursor() by starting a new iterator at that sequence.
type EventIterator struct {
	fetch  func(ctx context.Context, after int64, limit int) ([]domain.ScoreEvent, error)
	cursor int64
	limit  int
	batch  []domain.ScoreEvent
	pos    int
	cur    domain.ScoreEvent
	done   bool
	err    error
}

// Next advances to the next event, fetching another batch when needed.
func (it *EventIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.pos >= len(it.batch) {
		if it.done {
			return false
		}
		batch, err := it.fetch(ctx, it.cursor, it.limit)
		if err != nil {
			it.err = err
			return false
		}
		it.batch, it.pos = batch, 0
		if len(batch) < it.limit {
			it.done = true
		}
		if len(batch) == 0 {
			return false
		}
	}
	it.cur = it.batch[it.pos]
	it.pos++
	it.cursor = it.cur.Seq
	return true
}

// Event returns the current event.
func (it *EventIterator) Event() domain.ScoreEvent { return it.cur }

// Cursor is the Seq of the last event returned.
func (it *EventIterator) Cursor() int64 { return it.cursor }

// Err reports the first fetch failure.
func (it *EventIterator) Err() error { return it.err }
