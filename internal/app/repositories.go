package app

import (
	"context"
	"time"

	"contest-ranking-service/internal/domain"
)

// ContestStore persists contest definitions.
type ContestStore interface {
	CreateContest(ctx context.Context, contest domain.Contest) error
	GetContest(ctx context.Context, contestID string) (domain.Contest, error)
	ListContests(ctx context.Context) ([]domain.Contest, error)
}

// ParticipationStore persists participations.
//
// InsertParticipation must reject a second row for the same (contest, user)
// pair with domain.ErrAlreadyJoined and a row that would take the contest past
// capacity with domain.ErrContestFull. The pair check, the count and the insert
// are one atomic step across every process sharing the store.
type ParticipationStore interface {
	InsertParticipation(ctx context.Context, p domain.Participation, capacity int) error
	GetParticipation(ctx context.Context, participationID string) (domain.Participation, error)
	FindParticipation(ctx context.Context, contestID, userID string) (domain.Participation, error)
	UpdateParticipation(ctx context.Context, p domain.Participation) error
}

// LedgerStore is the append-only score event log.
//
// AppendEvent assigns the next sequence number. When an event with the same
// (SourceKind, SourceID) already exists it must return that stored event together
// with domain.ErrDeduplicated; the check and insert are one atomic step.
//
// The listing methods return at most limit events with Seq > afterSeq in
// ascending Seq order. Zero from/to bounds mean unbounded.
type LedgerStore interface {
	AppendEvent(ctx context.Context, event domain.ScoreEvent) (domain.ScoreEvent, error)
	EventsForUser(ctx context.Context, userID string, afterSeq int64, limit int) ([]domain.ScoreEvent, error)
	EventsBetween(ctx context.Context, from, to time.Time, afterSeq int64, limit int) ([]domain.ScoreEvent, error)
}

// ProfileRepository resolves display data for leaderboard rows (from cache/backing store).
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
}

// SnapshotSink mirrors published leaderboard snapshots outside the process.
type SnapshotSink interface {
	PublishSnapshot(ctx context.Context, lb domain.Leaderboard) error
}

// SnapshotArchiver stores the final snapshot of a window that rolled over.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, lb domain.Leaderboard) error
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
