package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"contest-ranking-service/internal/app"
	"contest-ranking-service/internal/domain"
	"contest-ranking-service/internal/infra/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEngine struct {
	clock          *fakeClock
	ledgerStore    *memory.LedgerStore
	participations *memory.ParticipationStore
	profiles       *memory.StaticProfileLoader
	ledger         *app.ScoreLedger
	board          *app.Aggregator
	service        *app.ContestService
}

func newTestEngine(t *testing.T, clock *fakeClock, opts app.AggregatorOptions) *testEngine {
	t.Helper()
	ledgerStore := memory.NewLedgerStore()
	participations := memory.NewParticipationStore()
	profiles := memory.NewStaticProfileLoader(map[string]domain.Profile{
		"alice": {UserID: "alice", DisplayName: "Alice", Avatar: "alice.png", BadgeCount: 2},
		"bob":   {UserID: "bob", DisplayName: "Bob", BadgeCount: 1},
	})

	// Small batches exercise the ledger iterator's paging.
	ledger := app.NewScoreLedger(ledgerStore, 2)
	opts.Now = clock.Now
	board := app.NewAggregator(ledger, memory.NewProfileRepository(profiles, time.Minute), opts)
	registry := app.NewContestRegistry(memory.NewContestStore(), clock.Now)
	tracker := app.NewParticipationTracker(participations, ledger, clock.Now)
	return &testEngine{
		clock:          clock,
		ledgerStore:    ledgerStore,
		participations: participations,
		profiles:       profiles,
		ledger:         ledger,
		board:          board,
		service:        app.NewContestService(registry, tracker, ledger, board, clock.Now),
	}
}

func (e *testEngine) createContest(t *testing.T, start time.Time, length time.Duration, capacity int) domain.Contest {
	t.Helper()
	contest, err := e.service.CreateContest(context.Background(), domain.Contest{
		Title:           "Friday fractions",
		Difficulty:      domain.DifficultyEasy,
		QuestionCount:   10,
		DurationMinutes: int(length / time.Minute),
		StartTime:       start,
		EndTime:         start.Add(length),
		MaxParticipants: capacity,
		Prize:           "500 XP",
	})
	if err != nil {
		t.Fatalf("create contest: %v", err)
	}
	return contest
}

func (e *testEngine) award(t *testing.T, userID, sourceID string, points int) domain.ScoreEvent {
	t.Helper()
	ev, err := e.service.RecordActivity(context.Background(), userID, domain.SourceQuizAttempt, sourceID, points)
	if err != nil {
		t.Fatalf("record activity %s: %v", sourceID, err)
	}
	return ev
}

// midweek is Wednesday 2026-10-14 12:00 UTC.
var midweek = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
