package app_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"contest-ranking-service/internal/app"
	"contest-ranking-service/internal/domain"
)

func TestJoinRejectsWhenFull(t *testing.T) {
	ctx := context.Background()
	t0 := midweek
	engine := newTestEngine(t, newFakeClock(t0.Add(-time.Hour)), app.AggregatorOptions{})
	contest := engine.createContest(t, t0, 30*time.Minute, 2)

	engine.clock.Set(t0.Add(5 * time.Minute))
	a, err := engine.service.JoinContest(ctx, contest.ID, "alice")
	if err != nil {
		t.Fatalf("alice join: %v", err)
	}
	if a.Status != domain.StatusJoined {
		t.Fatalf("expected Joined, got %s", a.Status)
	}

	engine.clock.Set(t0.Add(10 * time.Minute))
	if _, err := engine.service.JoinContest(ctx, contest.ID, "bob"); err != nil {
		t.Fatalf("bob join: %v", err)
	}

	engine.clock.Set(t0.Add(11 * time.Minute))
	if _, err := engine.service.JoinContest(ctx, contest.ID, "carol"); !errors.Is(err, domain.ErrContestFull) {
		t.Fatalf("expected ErrContestFull, got %v", err)
	}

	// A retry by an existing participant still succeeds on a full contest.
	again, err := engine.service.JoinContest(ctx, contest.ID, "alice")
	if err != nil || again.ID != a.ID {
		t.Fatalf("expected idempotent join, got %+v %v", again, err)
	}
}

func TestJoinWindowFollowsLifecycle(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	contest := engine.createContest(t, midweek.Add(time.Hour), 30*time.Minute, 10)

	// Scheduled contests accept joins.
	early, err := engine.service.JoinContest(ctx, contest.ID, "alice")
	if err != nil {
		t.Fatalf("join scheduled contest: %v", err)
	}

	engine.clock.Set(contest.EndTime.Add(time.Second))
	if _, err := engine.service.JoinContest(ctx, contest.ID, "bob"); !errors.Is(err, domain.ErrContestEnded) {
		t.Fatalf("expected ErrContestEnded, got %v", err)
	}
	retry, err := engine.service.JoinContest(ctx, contest.ID, "alice")
	if err != nil || retry.ID != early.ID {
		t.Fatalf("expected existing participation after end, got %+v %v", retry, err)
	}

	state, err := engine.service.GetContestState(ctx, contest.ID, time.Time{})
	if err != nil || state != domain.StateEnded {
		t.Fatalf("expected Ended, got %s %v", state, err)
	}
}

func TestConcurrentDuplicateJoinCreatesOneParticipation(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	contest := engine.createContest(t, midweek, time.Hour, 100)

	const clicks = 16
	ids := make([]string, clicks)
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := engine.service.JoinContest(ctx, contest.ID, "alice")
			if err != nil {
				t.Errorf("join %d: %v", i, err)
				return
			}
			ids[i] = p.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < clicks; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("expected one participation id, got %q and %q", ids[0], ids[i])
		}
	}
	if n, _ := engine.participations.CountParticipations(ctx, contest.ID); n != 1 {
		t.Fatalf("expected 1 stored participation, got %d", n)
	}
}

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	contest := engine.createContest(t, midweek, time.Hour, 5)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
		full   int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engine.service.JoinContest(ctx, contest.ID, fmt.Sprintf("user-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				joined++
			case errors.Is(err, domain.ErrContestFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	if joined != 5 || full != 15 {
		t.Fatalf("expected 5 joined and 15 full, got %d and %d", joined, full)
	}
}

func TestSubmitScoreIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	t0 := midweek
	engine := newTestEngine(t, newFakeClock(t0), app.AggregatorOptions{})
	contest := engine.createContest(t, t0, 30*time.Minute, 2)

	p, err := engine.service.JoinContest(ctx, contest.ID, "alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	engine.clock.Set(t0.Add(20 * time.Minute))
	done, err := engine.service.SubmitContestScore(ctx, p.ID, 80, 8, 10)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Status != domain.StatusCompleted || done.Score == nil || *done.Score != 80 || done.CompletedAt == nil {
		t.Fatalf("unexpected completed participation %+v", done)
	}

	lb, err := engine.service.GetLeaderboard(ctx, domain.WindowGlobal, 1, 10, 0)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "alice" || lb.Entries[0].Total != 80 || lb.Entries[0].Rank != 1 {
		t.Fatalf("expected alice with 80 at rank 1, got %+v", lb.Entries)
	}
	if lb.Entries[0].DisplayName != "Alice" || lb.Entries[0].BadgeCount != 2 {
		t.Fatalf("expected profile decoration, got %+v", lb.Entries[0])
	}

	// Network retry, then a retry with a different score.
	engine.clock.Set(t0.Add(21 * time.Minute))
	for _, score := range []int{80, 95} {
		retry, err := engine.service.SubmitContestScore(ctx, p.ID, score, 9, 10)
		if err != nil {
			t.Fatalf("retry submit: %v", err)
		}
		if *retry.Score != 80 || !retry.CompletedAt.Equal(*done.CompletedAt) {
			t.Fatalf("expected original result, got score=%d completedAt=%v", *retry.Score, retry.CompletedAt)
		}
	}
	if engine.ledgerStore.Len() != 1 {
		t.Fatalf("expected exactly one ledger event, got %d", engine.ledgerStore.Len())
	}
	total, err := engine.ledger.TotalForUser(ctx, "alice", time.Time{}, time.Time{})
	if err != nil || total != 80 {
		t.Fatalf("expected ledger total 80, got %d %v", total, err)
	}
	lb, _ = engine.service.GetLeaderboard(ctx, domain.WindowGlobal, 1, 10, 0)
	if lb.Entries[0].Total != 80 {
		t.Fatalf("expected leaderboard total unchanged, got %d", lb.Entries[0].Total)
	}
}

func TestConcurrentSubmitsCreditOnce(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	contest := engine.createContest(t, midweek, time.Hour, 10)
	p, _ := engine.service.JoinContest(ctx, contest.ID, "bob")

	var wg sync.WaitGroup
	scores := make([]int, 8)
	for i := range scores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := engine.service.SubmitContestScore(ctx, p.ID, 10*(i+1), 1, 10)
			if err != nil {
				t.Errorf("submit %d: %v", i, err)
				return
			}
			scores[i] = *res.Score
		}(i)
	}
	wg.Wait()

	for _, s := range scores[1:] {
		if s != scores[0] {
			t.Fatalf("expected every caller to see the same stored score, got %v", scores)
		}
	}
	if engine.ledgerStore.Len() != 1 {
		t.Fatalf("expected one ledger event, got %d", engine.ledgerStore.Len())
	}
	rank, ok, _ := engine.service.RankOf(ctx, domain.WindowGlobal, "bob")
	if !ok || rank != 1 {
		t.Fatalf("expected bob ranked 1, got %d %v", rank, ok)
	}
}

func TestAttemptStateMachine(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	contest := engine.createContest(t, midweek, time.Hour, 10)
	p, _ := engine.service.JoinContest(ctx, contest.ID, "alice")

	started, err := engine.service.StartAttempt(ctx, p.ID)
	if err != nil || started.Status != domain.StatusInProgress {
		t.Fatalf("expected InProgress, got %+v %v", started, err)
	}
	if again, err := engine.service.StartAttempt(ctx, p.ID); err != nil || again.Status != domain.StatusInProgress {
		t.Fatalf("expected InProgress no-op, got %+v %v", again, err)
	}
	if _, err := engine.service.SubmitContestScore(ctx, p.ID, 50, 5, 10); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := engine.service.StartAttempt(ctx, p.ID); !errors.Is(err, domain.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}

	stored, ok, err := engine.service.GetParticipation(ctx, contest.ID, "alice")
	if err != nil || !ok || stored.Status != domain.StatusCompleted {
		t.Fatalf("expected stored completed participation, got %+v %v %v", stored, ok, err)
	}
	if _, ok, _ := engine.service.GetParticipation(ctx, contest.ID, "nobody"); ok {
		t.Fatalf("expected no participation for a user who never joined")
	}
}

func TestSubmitValidatesShape(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	contest := engine.createContest(t, midweek, time.Hour, 10)
	p, _ := engine.service.JoinContest(ctx, contest.ID, "alice")

	bad := [][3]int{{-1, 0, 10}, {10, 11, 10}, {10, 1, 0}}
	for _, b := range bad {
		if _, err := engine.service.SubmitContestScore(ctx, p.ID, b[0], b[1], b[2]); !errors.Is(err, domain.ErrInvalidSubmission) {
			t.Fatalf("submission %v: expected ErrInvalidSubmission, got %v", b, err)
		}
	}
	if engine.ledgerStore.Len() != 0 {
		t.Fatalf("rejected submissions must not touch the ledger")
	}
	if _, err := engine.service.SubmitContestScore(ctx, "missing", 1, 1, 1); !errors.Is(err, domain.ErrParticipationNotFound) {
		t.Fatalf("expected ErrParticipationNotFound, got %v", err)
	}
}

func TestUnknownContest(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	if _, err := engine.service.JoinContest(ctx, "nope", "alice"); !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("expected ErrContestNotFound, got %v", err)
	}
	if _, err := engine.service.GetContestState(ctx, "nope", midweek); !errors.Is(err, domain.ErrContestNotFound) {
		t.Fatalf("expected ErrContestNotFound, got %v", err)
	}
}

func TestRecordActivityDeduplicates(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})

	first := engine.award(t, "alice", "quiz-attempt-1", 30)
	second := engine.award(t, "alice", "quiz-attempt-1", 30)
	if first.ID != second.ID || engine.ledgerStore.Len() != 1 {
		t.Fatalf("expected one event for a retried activity")
	}
	lb, _ := engine.service.GetLeaderboard(ctx, domain.WindowWeekly, 1, 10, 0)
	if len(lb.Entries) != 1 || lb.Entries[0].Total != 30 {
		t.Fatalf("expected weekly total 30, got %+v", lb.Entries)
	}
	if _, err := engine.service.RecordActivity(ctx, "alice", domain.SourceContestParticipation, "p1", 10); !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected contest kind to be rejected, got %v", err)
	}
}

func TestListContestsByState(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	past := engine.createContest(t, midweek.Add(-2*time.Hour), time.Hour, 10)
	live := engine.createContest(t, midweek.Add(-10*time.Minute), time.Hour, 10)
	future := engine.createContest(t, midweek.Add(time.Hour), time.Hour, 10)

	all, err := engine.service.ListContests(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 contests, got %d %v", len(all), err)
	}
	if all[0].ID != past.ID || all[1].ID != live.ID || all[2].ID != future.ID {
		t.Fatalf("expected contests ordered by start time")
	}
	liveOnly, _ := engine.service.ListContests(ctx, domain.StateLive)
	if len(liveOnly) != 1 || liveOnly[0].ID != live.ID {
		t.Fatalf("expected only the live contest, got %+v", liveOnly)
	}
}

func TestCreateContestRejectsInvalid(t *testing.T) {
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	_, err := engine.service.CreateContest(context.Background(), domain.Contest{
		Title:           "Backwards",
		Difficulty:      domain.DifficultyHard,
		QuestionCount:   5,
		DurationMinutes: 10,
		StartTime:       midweek,
		EndTime:         midweek.Add(-time.Minute),
		MaxParticipants: 3,
	})
	if !errors.Is(err, domain.ErrInvalidContest) {
		t.Fatalf("expected ErrInvalidContest, got %v", err)
	}
}

func TestGetLeaderboardRejectsPageOutOfRange(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	engine.award(t, "alice", "quiz-1", 10)

	if _, err := engine.service.GetLeaderboard(ctx, domain.WindowGlobal, math.MaxInt, 100, 0); !errors.Is(err, domain.ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
	// A page past the last row is empty rather than wrapping to page 1.
	lb, err := engine.service.GetLeaderboard(ctx, domain.WindowGlobal, 1000, 100, 0)
	if err != nil {
		t.Fatalf("far page: %v", err)
	}
	if len(lb.Entries) != 0 || lb.TotalCount != 1 {
		t.Fatalf("expected empty page with one ranked user, got %+v", lb)
	}
}

func TestCapacityHoldsAcrossTrackersSharingAStore(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, newFakeClock(midweek), app.AggregatorOptions{})
	contest := engine.createContest(t, midweek, time.Hour, 4)
	trackers := []*app.ParticipationTracker{
		app.NewParticipationTracker(engine.participations, engine.ledger, engine.clock.Now),
		app.NewParticipationTracker(engine.participations, engine.ledger, engine.clock.Now),
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, created, err := trackers[i%2].Join(ctx, contest, fmt.Sprintf("user-%02d", i))
			if err != nil && !errors.Is(err, domain.ErrContestFull) {
				t.Errorf("join: %v", err)
				return
			}
			if created {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if joined != 4 {
		t.Fatalf("expected 4 joins, got %d", joined)
	}
	if n, _ := engine.participations.CountParticipations(ctx, contest.ID); n != 4 {
		t.Fatalf("expected 4 stored participations, got %d", n)
	}
}
