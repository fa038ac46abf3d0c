package domain

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

// LifecycleState is the derived phase of a contest.
type LifecycleState string

const (
	StateScheduled LifecycleState = "Scheduled"
	StateLive      LifecycleState = "Live"
	StateEnded     LifecycleState = "Ended"
)

// ParseLifecycleState accepts the state names case-sensitively; empty means no filter.
func ParseLifecycleState(raw string) (LifecycleState, error) {
	switch s := LifecycleState(raw); s {
	case StateScheduled, StateLive, StateEnded, "":
		return s, nil
	}
	return "", fmt.Errorf("unknown contest state %q", raw)
}

// LifecycleStateAt computes the contest phase from its bounds alone.
// The end bound is inclusive: a contest is still Live at exactly EndTime.
func LifecycleStateAt(start, end, now time.Time) LifecycleState {
	switch {
	case now.Before(start):
		return StateScheduled
	case now.After(end):
		return StateEnded
	default:
		return StateLive
	}
}

// State is LifecycleStateAt applied to the contest's stored bounds.
func (c Contest) State(now time.Time) LifecycleState {
	return LifecycleStateAt(c.StartTime, c.EndTime, now)
}

// Validate checks the contest definition; the returned error wraps ErrInvalidContest.
func (c Contest) Validate() error {
	err := validation.ValidateStruct(
		&c,
		validation.Field(&c.Title, validation.Required, validation.Length(1, 120)),
		validation.Field(&c.Description, validation.Length(0, 2000)),
		validation.Field(&c.Difficulty, validation.Required, validation.In(DifficultyEasy, DifficultyMedium, DifficultyHard)),
		validation.Field(&c.QuestionCount, validation.Required, validation.Min(1)),
		validation.Field(&c.DurationMinutes, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxParticipants, validation.Required, validation.Min(1)),
		validation.Field(&c.StartTime, validation.Required),
		validation.Field(&c.EndTime, validation.Required, validation.By(c.endAfterStart)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContest, err)
	}
	return nil
}

func (c Contest) endAfterStart(value interface{}) error {
	end, _ := value.(time.Time)
	if !c.StartTime.Before(end) {
		return errors.New("must be after start time")
	}
	return nil
}
