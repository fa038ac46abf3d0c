package app

import (
	"sort"
	"sync"
	"time"

	"contest-ranking-service/internal/domain"
)

// row is one ranked user inside an immutable snapshot.
type row struct {
	UserID    string
	Total     int
	ReachedAt time.Time
	Rank      int
}

// ranksBefore is the leaderboard order: higher total first, then whoever
// reached it earlier, then user id so the order is total.
func ranksBefore(a, b row) bool {
	if a.Total != b.Total {
		return a.Total > b.Total
	}
	if !a.ReachedAt.Equal(b.ReachedAt) {
		return a.ReachedAt.Before(b.ReachedAt)
	}
	return a.UserID < b.UserID
}

// searchRow returns the index at which r belongs in rows.
func searchRow(rows []row, r row) int {
	return sort.Search(len(rows), func(i int) bool { return !ranksBefore(rows[i], r) })
}

// assignRanks applies competition ranking to rows[from:]. Equal totals share a
// rank and the next distinct total skips past them. Rows after stop keep their
// positions, so it finishes the first tie group that starts past stop (whose
// members may have been ranked with an earlier group) and then stops.
func assignRanks(rows []row, from, stop int) {
	for from > 0 && rows[from-1].Total == rows[from].Total {
		from--
	}
	pastStop := false
	for i := from; i < len(rows); i++ {
		if i > 0 && rows[i].Total == rows[i-1].Total {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		if pastStop {
			break
		}
		rows[i].Rank = i + 1
		if i > stop {
			pastStop = true
		}
	}
}

// sortAndRank fully orders and ranks rows in place.
func sortAndRank(rows []row) {
	sort.Slice(rows, func(i, j int) bool { return ranksBefore(rows[i], rows[j]) })
	if len(rows) > 0 {
		assignRanks(rows, 0, len(rows)-1)
	}
}

// snapshot is one published, never mutated version of a window's ranking.
type snapshot struct {
	version     uint64
	window      domain.Window
	rows        []row
	publishedAt time.Time

	indexOnce sync.Once
	index     map[string]int
}

func (s *snapshot) position(userID string) (int, bool) {
	s.indexOnce.Do(func() {
		s.index = make(map[string]int, len(s.rows))
		for i, r := range s.rows {
			s.index[r.UserID] = i
		}
	})
	i, ok := s.index[userID]
	return i, ok
}

// page returns rows[offset:offset+limit] clamped to the snapshot.
func (s *snapshot) page(offset, limit int) []row {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s.rows) || limit <= 0 {
		return nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end]
}

func indexOfUser(rows []row, userID string) int {
	for i, r := range rows {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}
