package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"contest-ranking-service/internal/domain"
)

// LedgerStore is an in-memory, append-only implementation of app.LedgerStore.
type LedgerStore struct {
	mu     sync.RWMutex
	seq    int64
	events []domain.ScoreEvent
	byKey  map[domain.IdempotencyKey]int
	byUser map[string][]int
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		byKey:  make(map[domain.IdempotencyKey]int),
		byUser: make(map[string][]int),
	}
}

func (s *LedgerStore) AppendEvent(_ context.Context, event domain.ScoreEvent) (domain.ScoreEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byKey[event.Key()]; ok {
		return s.events[i], domain.ErrDeduplicated
	}
	s.seq++
	event.Seq = s.seq
	s.events = append(s.events, event)
	i := len(s.events) - 1
	s.byKey[event.Key()] = i
	s.byUser[event.UserID] = append(s.byUser[event.UserID], i)
	return event, nil
}

func (s *LedgerStore) EventsForUser(_ context.Context, userID string, afterSeq int64, limit int) ([]domain.ScoreEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byUser[userID]
	// Indexes are appended in Seq order.
	start := sort.Search(len(idx), func(i int) bool { return s.events[idx[i]].Seq > afterSeq })
	out := make([]domain.ScoreEvent, 0, min(limit, len(idx)-start))
	for _, i := range idx[start:] {
		if len(out) == limit {
			break
		}
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *LedgerStore) EventsBetween(_ context.Context, from, to time.Time, afterSeq int64, limit int) ([]domain.ScoreEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := sort.Search(len(s.events), func(i int) bool { return s.events[i].Seq > afterSeq })
	out := make([]domain.ScoreEvent, 0)
	for _, ev := range s.events[start:] {
		if len(out) == limit {
			break
		}
		if !from.IsZero() && ev.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && !ev.OccurredAt.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Len reports how many events are stored.
func (s *LedgerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
