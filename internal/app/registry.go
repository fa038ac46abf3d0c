package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"contest-ranking-service/internal/domain"
	"github.com/google/uuid"
)

// ContestRegistry owns contest definitions. It holds no scoring logic.
type ContestRegistry struct {
	store ContestStore
	now   func() time.Time
}

func NewContestRegistry(store ContestStore, now func() time.Time) *ContestRegistry {
	return &ContestRegistry{store: store, now: clockOrDefault(now)}
}

// Create validates and stores a new contest definition.
func (r *ContestRegistry) Create(ctx context.Context, def domain.Contest) (domain.Contest, error) {
	if err := def.Validate(); err != nil {
		return domain.Contest{}, err
	}
	def.ID = uuid.NewString()
	def.CreatedAt = r.now()
	if err := r.store.CreateContest(ctx, def); err != nil {
		return domain.Contest{}, fmt.Errorf("create contest: %w", err)
	}
	return def, nil
}

// Get returns the contest or domain.ErrContestNotFound.
func (r *ContestRegistry) Get(ctx context.Context, contestID string) (domain.Contest, error) {
	return r.store.GetContest(ctx, contestID)
}

// LifecycleState derives the phase of contest at now.
func (r *ContestRegistry) LifecycleState(contest domain.Contest, now time.Time) domain.LifecycleState {
	return contest.State(now)
}

// List returns contests ordered by start time. A non-empty state keeps only
// contests in that phase at now.
func (r *ContestRegistry) List(ctx context.Context, now time.Time, state domain.LifecycleState) ([]domain.Contest, error) {
	all, err := r.store.ListContests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contests: %w", err)
	}
	out := make([]domain.Contest, 0, len(all))
	for _, c := range all {
		if state == "" || c.State(now) == state {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
