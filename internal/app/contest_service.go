package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"contest-ranking-service/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps (page-1)*pageSize inside int for any accepted page size.
	maxPage = math.MaxInt32 / maxPageSize
)

// ContestService is the external API of the ranking engine. It sequences
// registry, tracker, ledger and aggregator calls and adds no error kinds of
// its own beyond wrapping contest lookups.
type ContestService struct {
	registry *ContestRegistry
	tracker  *ParticipationTracker
	ledger   *ScoreLedger
	board    *Aggregator
	now      func() time.Time
}

func NewContestService(registry *ContestRegistry, tracker *ParticipationTracker, ledger *ScoreLedger, board *Aggregator, now func() time.Time) *ContestService {
	return &ContestService{
		registry: registry,
		tracker:  tracker,
		ledger:   ledger,
		board:    board,
		now:      clockOrDefault(now),
	}
}

// LeaderboardPage is one page of a single snapshot version.
type LeaderboardPage struct {
	domain.Leaderboard
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// CreateContest validates and stores a contest definition.
func (s *ContestService) CreateContest(ctx context.Context, def domain.Contest) (domain.Contest, error) {
	contest, err := s.registry.Create(ctx, def)
	if err != nil {
		return domain.Contest{}, err
	}
	zap.L().Info("contest created",
		zap.String("contestId", contest.ID),
		zap.Time("start", contest.StartTime),
		zap.Time("end", contest.EndTime),
		zap.Int("maxParticipants", contest.MaxParticipants))
	return contest, nil
}

// GetContest resolves a contest id.
func (s *ContestService) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	contest, err := s.registry.Get(ctx, contestID)
	if err != nil {
		return domain.Contest{}, fmt.Errorf("contest %q: %w", contestID, err)
	}
	return contest, nil
}

// ListContests lists contests, optionally only those in state at now.
func (s *ContestService) ListContests(ctx context.Context, state domain.LifecycleState) ([]domain.Contest, error) {
	return s.registry.List(ctx, s.now(), state)
}

// GetContestState derives the lifecycle phase of a contest at now.
func (s *ContestService) GetContestState(ctx context.Context, contestID string, now time.Time) (domain.LifecycleState, error) {
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return "", err
	}
	if now.IsZero() {
		now = s.now()
	}
	return s.registry.LifecycleState(contest, now), nil
}

// JoinContest registers userID for the contest. Repeated joins return the
// original participation.
func (s *ContestService) JoinContest(ctx context.Context, contestID, userID string) (domain.Participation, error) {
	if contestID == "" || userID == "" {
		return domain.Participation{}, fmt.Errorf("%w: contest id and user id are required", domain.ErrInvalidSubmission)
	}
	contest, err := s.GetContest(ctx, contestID)
	if err != nil {
		return domain.Participation{}, err
	}
	p, created, err := s.tracker.Join(ctx, contest, userID)
	if err != nil {
		return domain.Participation{}, err
	}
	if created {
		zap.L().Info("participant joined",
			zap.String("contestId", contestID),
			zap.String("userId", userID),
			zap.String("participationId", p.ID))
	}
	return p, nil
}

// StartAttempt marks the participation InProgress.
func (s *ContestService) StartAttempt(ctx context.Context, participationID string) (domain.Participation, error) {
	return s.tracker.MarkInProgress(ctx, participationID)
}

// SubmitContestScore completes a participation and credits the leaderboards.
// A retry returns the originally stored participation.
func (s *ContestService) SubmitContestScore(ctx context.Context, participationID string, score, correctCount, totalQuestions int) (domain.Participation, error) {
	res, err := s.tracker.SubmitScore(ctx, participationID, Submission{
		Score:          score,
		CorrectCount:   correctCount,
		TotalQuestions: totalQuestions,
	})
	if err != nil {
		return domain.Participation{}, err
	}
	if res.AlreadyCompleted {
		return res.Participation, nil
	}
	if err := s.board.Apply(ctx, res.Event); err != nil {
		return domain.Participation{}, fmt.Errorf("apply score event: %w", err)
	}
	zap.L().Info("contest score submitted",
		zap.String("participationId", participationID),
		zap.String("userId", res.Participation.UserID),
		zap.Int("score", res.Event.Points),
		zap.Int64("seq", res.Event.Seq))
	return res.Participation, nil
}

// RecordActivity credits non-contest activity (quiz attempts, daily challenges)
// through the same ledger and leaderboard path. sourceID is the idempotency key.
func (s *ContestService) RecordActivity(ctx context.Context, userID string, kind domain.SourceKind, sourceID string, points int) (domain.ScoreEvent, error) {
	if kind == domain.SourceContestParticipation {
		return domain.ScoreEvent{}, fmt.Errorf("%w: contest points are credited by score submission", domain.ErrInvalidSubmission)
	}
	res, err := s.ledger.Append(ctx, userID, points, kind, sourceID, s.now())
	if err != nil {
		return domain.ScoreEvent{}, err
	}
	if err := s.board.Apply(ctx, res.Event); err != nil {
		return domain.ScoreEvent{}, fmt.Errorf("apply score event: %w", err)
	}
	return res.Event, nil
}

// GetParticipation returns the pair's participation; ok is false if the user
// never joined.
func (s *ContestService) GetParticipation(ctx context.Context, contestID, userID string) (domain.Participation, bool, error) {
	if _, err := s.GetContest(ctx, contestID); err != nil {
		return domain.Participation{}, false, err
	}
	return s.tracker.GetParticipation(ctx, contestID, userID)
}

// GetLeaderboard returns a 1-based page. A non-zero version pins the snapshot
// so later pages come from the same point in time as the first.
func (s *ContestService) GetLeaderboard(ctx context.Context, window domain.WindowKind, page, pageSize int, version uint64) (LeaderboardPage, error) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		return LeaderboardPage{}, fmt.Errorf("%w: page %d exceeds %d", domain.ErrInvalidPage, page, maxPage)
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageSize = clamp(pageSize, 1, maxPageSize)
	lb, err := s.board.SnapshotAt(ctx, window, version, (page-1)*pageSize, pageSize)
	if err != nil {
		return LeaderboardPage{}, err
	}
	return LeaderboardPage{Leaderboard: lb, Page: page, PageSize: pageSize}, nil
}

// RankOf returns the user's current rank; ok is false when unranked.
func (s *ContestService) RankOf(_ context.Context, window domain.WindowKind, userID string) (int, bool, error) {
	return s.board.RankOf(window, userID)
}

// SubscribeLeaderboard streams whole top-N snapshots of a window.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *ContestService) SubscribeLeaderboard(ctx context.Context, window domain.WindowKind, topN int) (<-chan domain.Leaderboard, func(), error) {
	return s.board.Subscribe(ctx, window, clamp(topN, 1, maxPageSize))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
