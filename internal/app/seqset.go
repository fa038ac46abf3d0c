package app

// seqSet records which ledger sequence numbers a window has accounted for.
// Everything at or below floor is accounted; above holds the sparse entries
// past the first hole.
type seqSet struct {
	floor int64
	above map[int64]struct{}
}

func newSeqSet() *seqSet {
	return &seqSet{above: make(map[int64]struct{})}
}

func (s *seqSet) has(seq int64) bool {
	if seq <= s.floor {
		return true
	}
	_, ok := s.above[seq]
	return ok
}

func (s *seqSet) add(seq int64) {
	if seq <= s.floor {
		return
	}
	s.above[seq] = struct{}{}
	s.advance()
}

// skipTo treats every sequence number up to seq as accounted, whether or not
// it was added.
func (s *seqSet) skipTo(seq int64) {
	if seq <= s.floor {
		return
	}
	for k := range s.above {
		if k <= seq {
			delete(s.above, k)
		}
	}
	s.floor = seq
	s.advance()
}

func (s *seqSet) advance() {
	for {
		if _, ok := s.above[s.floor+1]; !ok {
			return
		}
		delete(s.above, s.floor+1)
		s.floor++
	}
}

// sparse is how many entries sit above the floor.
func (s *seqSet) sparse() int {
	return len(s.above)
}
