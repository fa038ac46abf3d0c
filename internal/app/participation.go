package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contest-ranking-service/internal/domain"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// ParticipationTracker enforces one participation per (contest, user) and a
// write-once score per participation.
type ParticipationTracker struct {
	store  ParticipationStore
	ledger *ScoreLedger
	locks  *keyLocker
	now    func() time.Time
}

func NewParticipationTracker(store ParticipationStore, ledger *ScoreLedger, now func() time.Time) *ParticipationTracker {
	return &ParticipationTracker{
		store:  store,
		ledger: ledger,
		locks:  newKeyLocker(),
		now:    clockOrDefault(now),
	}
}

// Submission is a terminal score report for one participation.
type Submission struct {
	Score          int
	CorrectCount   int
	TotalQuestions int
}

// Validate checks the submission shape; the error wraps domain.ErrInvalidSubmission.
func (s Submission) Validate() error {
	err := validation.ValidateStruct(
		&s,
		validation.Field(&s.Score, validation.Min(0)),
		validation.Field(&s.TotalQuestions, validation.Required, validation.Min(1)),
		validation.Field(&s.CorrectCount, validation.Min(0), validation.Max(s.TotalQuestions)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSubmission, err)
	}
	return nil
}

// SubmitResult reports the participation after a submit. AlreadyCompleted is
// set when the call was absorbed as a retry and Event is then empty.
type SubmitResult struct {
	Participation    domain.Participation
	Event            domain.ScoreEvent
	AlreadyCompleted bool
}

// Join creates the participation for (contest, userID). An existing record is
// returned as-is with created=false, even once the contest is full or ended.
func (t *ParticipationTracker) Join(ctx context.Context, contest domain.Contest, userID string) (p domain.Participation, created bool, err error) {
	// The store enforces capacity across processes; the lock keeps joins for
	// one contest from contending on it inside this one.
	unlock := t.locks.Lock(contestKey(contest.ID))
	defer unlock()

	existing, err := t.store.FindParticipation(ctx, contest.ID, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrParticipationNotFound) {
		return domain.Participation{}, false, err
	}

	now := t.now()
	if contest.State(now) == domain.StateEnded {
		return domain.Participation{}, false, domain.ErrContestEnded
	}

	p = domain.Participation{
		ID:        uuid.NewString(),
		ContestID: contest.ID,
		UserID:    userID,
		JoinedAt:  now,
		Status:    domain.StatusJoined,
	}
	if err := t.store.InsertParticipation(ctx, p, contest.MaxParticipants); err != nil {
		if errors.Is(err, domain.ErrAlreadyJoined) {
			// Another instance won the insert; hand back its row.
			existing, findErr := t.store.FindParticipation(ctx, contest.ID, userID)
			if findErr != nil {
				return domain.Participation{}, false, findErr
			}
			return existing, false, nil
		}
		return domain.Participation{}, false, err
	}
	return p, true, nil
}

// MarkInProgress moves Joined to InProgress. It is a no-op when already
// InProgress and fails with domain.ErrAlreadyCompleted once Completed.
func (t *ParticipationTracker) MarkInProgress(ctx context.Context, participationID string) (domain.Participation, error) {
	p, unlock, err := t.lockParticipation(ctx, participationID)
	if err != nil {
		return domain.Participation{}, err
	}
	defer unlock()

	switch p.Status {
	case domain.StatusCompleted:
		return p, domain.ErrAlreadyCompleted
	case domain.StatusInProgress:
		return p, nil
	}
	p.Status = domain.StatusInProgress
	if err := t.store.UpdateParticipation(ctx, p); err != nil {
		return domain.Participation{}, err
	}
	return p, nil
}

// SubmitScore completes the participation exactly once. The ledger append
// happens first; a retry after a partial failure is absorbed by the ledger's
// idempotency key and the stored event's points win.
func (t *ParticipationTracker) SubmitScore(ctx context.Context, participationID string, sub Submission) (SubmitResult, error) {
	p, unlock, err := t.lockParticipation(ctx, participationID)
	if err != nil {
		return SubmitResult{}, err
	}
	defer unlock()

	if p.Completed() {
		return SubmitResult{Participation: p, AlreadyCompleted: true}, nil
	}
	if err := sub.Validate(); err != nil {
		return SubmitResult{}, err
	}

	appended, err := t.ledger.Append(ctx, p.UserID, sub.Score, domain.SourceContestParticipation, p.ID, t.now())
	if err != nil {
		return SubmitResult{}, err
	}
	ev := appended.Event
	score := ev.Points
	completedAt := ev.OccurredAt

	p.Score = &score
	p.CorrectCount = sub.CorrectCount
	p.TotalQuestions = sub.TotalQuestions
	p.CompletedAt = &completedAt
	p.Status = domain.StatusCompleted
	p.ScoreEventID = ev.ID
	if err := t.store.UpdateParticipation(ctx, p); err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Participation: p, Event: ev}, nil
}

// GetParticipation looks up the pair; ok is false when the user never joined.
func (t *ParticipationTracker) GetParticipation(ctx context.Context, contestID, userID string) (domain.Participation, bool, error) {
	p, err := t.store.FindParticipation(ctx, contestID, userID)
	if errors.Is(err, domain.ErrParticipationNotFound) {
		return domain.Participation{}, false, nil
	}
	if err != nil {
		return domain.Participation{}, false, err
	}
	return p, true, nil
}

// lockParticipation resolves the pair key, locks it and re-reads the row so the
// caller sees the state as of holding the lock.
func (t *ParticipationTracker) lockParticipation(ctx context.Context, participationID string) (domain.Participation, func(), error) {
	p, err := t.store.GetParticipation(ctx, participationID)
	if err != nil {
		return domain.Participation{}, nil, err
	}
	unlock := t.locks.Lock(pairKey(p.ContestID, p.UserID))
	p, err = t.store.GetParticipation(ctx, participationID)
	if err != nil {
		unlock()
		return domain.Participation{}, nil, err
	}
	return p, unlock, nil
}

func contestKey(contestID string) string {
	return "contest:" + contestID
}

func pairKey(contestID, userID string) string {
	return "participation:" + contestID + ":" + userID
}
