package store

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// IDSource hands out identifiers for new records: UUID strings for top-level
// entities and a monotonic sequence for items nested inside a bot. The
// sequence replaces the old timestamp-derived scheme, which could collide
// under rapid creation.
type IDSource interface {
	NewID() string
	NextItemID() int64
}

type idSource struct {
	seq atomic.Int64
}

func NewIDSource() IDSource {
	return &idSource{}
}

func (s *idSource) NewID() string {
	return uuid.NewString()
}

func (s *idSource) NextItemID() int64 {
	return s.seq.Add(1)
}

// advanceTo moves the sequence past ids restored from a snapshot so a
// restart cannot reissue one.
func (s *idSource) advanceTo(n int64) {
	for {
		cur := s.seq.Load()
		if cur >= n || s.seq.CompareAndSwap(cur, n) {
			return
		}
	}
}
