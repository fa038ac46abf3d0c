package domain

import "errors"

var (
	// ErrContestNotFound is returned when a contest id does not resolve.
	ErrContestNotFound = errors.New("contest not found")
	// ErrParticipationNotFound is returned when a participation id does not resolve.
	ErrParticipationNotFound = errors.New("participation not found")
	// ErrProfileNotFound indicates the user profile could not be loaded.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidContest indicates a contest definition breaks its invariants.
	ErrInvalidContest = errors.New("invalid contest")
	// ErrContestFull is returned when a join would exceed max participants.
	ErrContestFull = errors.New("contest is full")
	// ErrContestEnded is returned when joining after the contest end time.
	ErrContestEnded = errors.New("contest has ended")
	// ErrAlreadyCompleted marks a transition attempted on a completed participation.
	ErrAlreadyCompleted = errors.New("participation already completed")
	// ErrAlreadyJoined marks a duplicate join for the same contest and user.
	ErrAlreadyJoined = errors.New("user already joined contest")
	// ErrDeduplicated is the ledger's signal that an append was absorbed by an existing event.
	ErrDeduplicated = errors.New("score event already recorded")
	// ErrInvalidSubmission indicates a malformed score submission or activity.
	ErrInvalidSubmission = errors.New("invalid score submission")
	// ErrInvalidWindow indicates an unknown leaderboard window kind.
	ErrInvalidWindow = errors.New("invalid leaderboard window")
	// ErrInvalidPage indicates a leaderboard page number out of range.
	ErrInvalidPage = errors.New("invalid leaderboard page")
	// ErrSnapshotExpired is returned when a pinned snapshot version is no longer retained.
	ErrSnapshotExpired = errors.New("leaderboard snapshot expired")
)

// IsNotFound reports whether err means an id did not resolve.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContestNotFound) ||
		errors.Is(err, ErrParticipationNotFound) ||
		errors.Is(err, ErrProfileNotFound)
}
