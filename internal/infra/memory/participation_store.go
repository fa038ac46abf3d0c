package memory

import (
	"context"
	"sync"

	"contest-ranking-service/internal/domain"
)

// ParticipationStore is an in-memory implementation of app.ParticipationStore.
type ParticipationStore struct {
	mu        sync.RWMutex
	byID      map[string]domain.Participation
	byPair    map[pair]string
	byContest map[string]int
}

type pair struct {
	contestID string
	userID    string
}

func NewParticipationStore() *ParticipationStore {
	return &ParticipationStore{
		byID:      make(map[string]domain.Participation),
		byPair:    make(map[pair]string),
		byContest: make(map[string]int),
	}
}

func (s *ParticipationStore) InsertParticipation(_ context.Context, p domain.Participation, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pair{p.ContestID, p.UserID}
	if _, ok := s.byPair[key]; ok {
		return domain.ErrAlreadyJoined
	}
	if s.byContest[p.ContestID] >= capacity {
		return domain.ErrContestFull
	}
	s.byID[p.ID] = p
	s.byPair[key] = p.ID
	s.byContest[p.ContestID]++
	return nil
}

func (s *ParticipationStore) GetParticipation(_ context.Context, participationID string) (domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[participationID]
	if !ok {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	return p, nil
}

func (s *ParticipationStore) FindParticipation(_ context.Context, contestID, userID string) (domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPair[pair{contestID, userID}]
	if !ok {
		return domain.Participation{}, domain.ErrParticipationNotFound
	}
	return s.byID[id], nil
}

// CountParticipations reports how many users joined the contest.
func (s *ParticipationStore) CountParticipations(_ context.Context, contestID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byContest[contestID], nil
}

func (s *ParticipationStore) UpdateParticipation(_ context.Context, p domain.Participation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[p.ID]; !ok {
		return domain.ErrParticipationNotFound
	}
	s.byID[p.ID] = p
	return nil
}
