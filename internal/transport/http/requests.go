package http

import (
	"time"

	"contest-ranking-service/internal/domain"
	validation "github.com/go-ozzo/ozzo-validation"
)

type createContestRequest struct {
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	SubjectID       *string   `json:"subjectId"`
	Difficulty      string    `json:"difficulty"`
	QuestionCount   int       `json:"questionCount"`
	DurationMinutes int       `json:"durationMinutes"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	MaxParticipants int       `json:"maxParticipants"`
	Prize           string    `json:"prize"`
}

func (req createContestRequest) contest() domain.Contest {
	return domain.Contest{
		Title:           req.Title,
		Description:     req.Description,
		SubjectID:       req.SubjectID,
		Difficulty:      domain.Difficulty(req.Difficulty),
		QuestionCount:   req.QuestionCount,
		DurationMinutes: req.DurationMinutes,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		MaxParticipants: req.MaxParticipants,
		Prize:           req.Prize,
	}
}

type joinRequest struct {
	UserID string `json:"userId"`
}

func (req joinRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.UserID, validation.Required, validation.Length(1, 128)),
	)
}

// submitScoreRequest uses pointers so a missing field is distinguishable from zero.
type submitScoreRequest struct {
	Score          *int `json:"score"`
	CorrectCount   *int `json:"correctCount"`
	TotalQuestions int  `json:"totalQuestions"`
}

func (req submitScoreRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Score, validation.NotNil),
		validation.Field(&req.CorrectCount, validation.NotNil),
		validation.Field(&req.TotalQuestions, validation.Required),
	)
}

type activityRequest struct {
	UserID   string `json:"userId"`
	Kind     string `json:"kind"`
	SourceID string `json:"sourceId"`
	Points   int    `json:"points"`
}

func (req activityRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.UserID, validation.Required, validation.Length(1, 128)),
		validation.Field(&req.Kind, validation.Required, validation.In(
			string(domain.SourceQuizAttempt),
			string(domain.SourceDailyChallenge),
			string(domain.SourceAchievement),
		)),
		validation.Field(&req.SourceID, validation.Required, validation.Length(1, 256)),
	)
}

type rankResponse struct {
	Window domain.WindowKind `json:"window"`
	UserID string            `json:"userId"`
	Ranked bool              `json:"ranked"`
	Rank   int               `json:"rank,omitempty"`
}

type stateResponse struct {
	ContestID string                `json:"contestId"`
	State     domain.LifecycleState `json:"state"`
	At        time.Time             `json:"at"`
}
