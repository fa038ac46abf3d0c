package domain

import "time"

// Difficulty grades a contest.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Contest is a scheduled, timed competition. Its lifecycle is derived from
// StartTime/EndTime and is never stored.
type Contest struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	SubjectID       *string    `json:"subjectId,omitempty"`
	Difficulty      Difficulty `json:"difficulty"`
	QuestionCount   int        `json:"questionCount"`
	DurationMinutes int        `json:"durationMinutes"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         time.Time  `json:"endTime"`
	MaxParticipants int        `json:"maxParticipants"`
	Prize           string     `json:"prize"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// ParticipationStatus tracks one user's attempt at a contest.
type ParticipationStatus string

const (
	StatusJoined     ParticipationStatus = "Joined"
	StatusInProgress ParticipationStatus = "InProgress"
	StatusCompleted  ParticipationStatus = "Completed"
)

// Participation is owned by exactly one (ContestID, UserID) pair.
// CompletedAt and Score are set together when the status becomes Completed.
type Participation struct {
	ID             string              `json:"id"`
	ContestID      string              `json:"contestId"`
	UserID         string              `json:"userId"`
	JoinedAt       time.Time           `json:"joinedAt"`
	Status         ParticipationStatus `json:"status"`
	Score          *int                `json:"score,omitempty"`
	CorrectCount   int                 `json:"correctCount"`
	TotalQuestions int                 `json:"totalQuestions"`
	CompletedAt    *time.Time          `json:"completedAt,omitempty"`
	ScoreEventID   string              `json:"scoreEventId,omitempty"`
}

// Completed reports whether the participation reached its terminal state.
func (p Participation) Completed() bool {
	return p.Status == StatusCompleted
}

// SourceKind names the activity that produced a score event.
type SourceKind string

const (
	SourceContestParticipation SourceKind = "ContestParticipation"
	SourceQuizAttempt          SourceKind = "QuizAttempt"
	SourceDailyChallenge       SourceKind = "DailyChallenge"
	SourceAchievement          SourceKind = "Achievement"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceContestParticipation, SourceQuizAttempt, SourceDailyChallenge, SourceAchievement:
		return true
	}
	return false
}

// ScoreEvent is an immutable ledger entry. (SourceKind, SourceID) is unique
// across the ledger; Seq is assigned by the store on append.
type ScoreEvent struct {
	ID         string     `json:"id"`
	Seq        int64      `json:"seq"`
	UserID     string     `json:"userId"`
	Points     int        `json:"points"`
	SourceKind SourceKind `json:"sourceKind"`
	SourceID   string     `json:"sourceId"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// IdempotencyKey identifies the activity an event credits.
type IdempotencyKey struct {
	Kind SourceKind
	ID   string
}

// Key returns the event's idempotency key.
func (e ScoreEvent) Key() IdempotencyKey {
	return IdempotencyKey{Kind: e.SourceKind, ID: e.SourceID}
}

// Profile is the public projection of a user used to decorate leaderboards.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	BadgeCount  int    `json:"badgeCount"`
}

// LeaderboardEntry is one ranked row of a leaderboard snapshot.
type LeaderboardEntry struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Avatar      string    `json:"avatar,omitempty"`
	BadgeCount  int       `json:"badgeCount"`
	Total       int       `json:"total"`
	Rank        int       `json:"rank"`
	ReachedAt   time.Time `json:"reachedAt"`
}

// Leaderboard is one page (or the top N rows) of a single snapshot version.
type Leaderboard struct {
	Window      WindowKind         `json:"window"`
	Version     uint64             `json:"version"`
	WindowStart time.Time          `json:"windowStart"`
	WindowEnd   time.Time          `json:"windowEnd"`
	Entries     []LeaderboardEntry `json:"entries"`
	TotalCount  int                `json:"totalCount"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}
