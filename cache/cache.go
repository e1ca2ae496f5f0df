package cache

import (
	"sync"
	"time"

	"github.com/use-agent/treasury/models"
)

// Snapshot holds the most recent daily holdings run. A run covers the
// entire roster, so one entry is enough; callers decide freshness per
// request via maxAge.
type Snapshot struct {
	mu        sync.RWMutex
	records   []models.HoldingsRecord
	createdAt time.Time
}

// New creates an empty snapshot cache.
func New() *Snapshot {
	return &Snapshot{}
}

// Get returns the cached records if they are younger than maxAge, along
// with their age. If maxAge <= 0 the cache is bypassed.
func (s *Snapshot) Get(maxAge time.Duration) ([]models.HoldingsRecord, time.Duration, bool) {
	if maxAge <= 0 {
		return nil, 0, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.records == nil {
		return nil, 0, false
	}
	age := time.Since(s.createdAt)
	if age > maxAge {
		return nil, 0, false
	}

	// Copy so callers cannot mutate the cached slice.
	out := make([]models.HoldingsRecord, len(s.records))
	copy(out, s.records)
	return out, age, true
}

// Set replaces the cached snapshot with the records of a fresh run.
func (s *Snapshot) Set(records []models.HoldingsRecord) {
	stored := make([]models.HoldingsRecord, len(records))
	copy(stored, records)

	s.mu.Lock()
	s.records = stored
	s.createdAt = time.Now()
	s.mu.Unlock()
}
