package memory

import (
	"context"
	"sync"

	"contest-ranking-service/internal/domain"
)

// ContestStore is an in-memory implementation of app.ContestStore.
type ContestStore struct {
	mu       sync.RWMutex
	contests map[string]domain.Contest
}

func NewContestStore() *ContestStore {
	return &ContestStore{contests: make(map[string]domain.Contest)}
}

func (s *ContestStore) CreateContest(_ context.Context, contest domain.Contest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contests[contest.ID] = contest
	return nil
}

func (s *ContestStore) GetContest(_ context.Context, contestID string) (domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	contest, ok := s.contests[contestID]
	if !ok {
		return domain.Contest{}, domain.ErrContestNotFound
	}
	return contest, nil
}

func (s *ContestStore) ListContests(_ context.Context) ([]domain.Contest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Contest, 0, len(s.contests))
	for _, c := range s.contests {
		out = append(out, c)
	}
	return out, nil
}
