package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"contest-ranking-service/internal/domain"
)

func TestLedgerStoreDeduplicatesByKey(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	at := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

	first, err := store.AppendEvent(ctx, domain.ScoreEvent{ID: "e1", UserID: "u1", Points: 80, SourceKind: domain.SourceContestParticipation, SourceID: "p1", OccurredAt: at})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", first.Seq)
	}

	again, err := store.AppendEvent(ctx, domain.ScoreEvent{ID: "e2", UserID: "u1", Points: 95, SourceKind: domain.SourceContestParticipation, SourceID: "p1", OccurredAt: at.Add(time.Minute)})
	if !errors.Is(err, domain.ErrDeduplicated) {
		t.Fatalf("expected ErrDeduplicated, got %v", err)
	}
	if again.ID != "e1" || again.Points != 80 {
		t.Fatalf("expected original event back, got %+v", again)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 stored event, got %d", store.Len())
	}

	// Same source id under another kind is a different key.
	if _, err := store.AppendEvent(ctx, domain.ScoreEvent{ID: "e3", UserID: "u1", Points: 5, SourceKind: domain.SourceQuizAttempt, SourceID: "p1", OccurredAt: at}); err != nil {
		t.Fatalf("append other kind: %v", err)
	}
}

func TestLedgerStorePagingAndRanges(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()
	base := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		user := "u1"
		if i%2 == 1 {
			user = "u2"
		}
		_, err := store.AppendEvent(ctx, domain.ScoreEvent{
			ID: "e", UserID: user, Points: 10, SourceKind: domain.SourceQuizAttempt,
			SourceID: string(rune('a' + i)), OccurredAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	page, _ := store.EventsForUser(ctx, "u1", 0, 2)
	if len(page) != 2 || page[0].Seq != 1 || page[1].Seq != 3 {
		t.Fatalf("unexpected first page %+v", page)
	}
	rest, _ := store.EventsForUser(ctx, "u1", page[1].Seq, 2)
	if len(rest) != 1 || rest[0].Seq != 5 {
		t.Fatalf("unexpected second page %+v", rest)
	}

	ranged, _ := store.EventsBetween(ctx, base.Add(time.Hour), base.Add(3*time.Hour), 0, 10)
	if len(ranged) != 2 || ranged[0].Seq != 2 || ranged[1].Seq != 3 {
		t.Fatalf("expected events 2 and 3 in range, got %+v", ranged)
	}
	all, _ := store.EventsBetween(ctx, time.Time{}, time.Time{}, 0, 10)
	if len(all) != 5 {
		t.Fatalf("expected unbounded scan to return 5, got %d", len(all))
	}
}
