package fel

import (
	"sync"
	"time"
)

// Stats holds cumulative transfer counters for a Session with internal
// synchronization, generalized from controller.go's DeviceStats/
// DeviceStatsSnapshot split (counters behind a mutex, snapshot as a plain
// value safe to copy and hand to callers).
type Stats struct {
	mu            sync.RWMutex
	BytesWritten  uint64
	BytesRead     uint64
	WriteCount    uint64
	ReadCount     uint64
	ExecuteCount  uint64
	ErrorCount    uint64
	lastOpAt      time.Time
}

// StatsSnapshot is a copy of Stats without its mutex, safe to marshal or
// pass across goroutines.
type StatsSnapshot struct {
	BytesWritten uint64
	BytesRead    uint64
	WriteCount   uint64
	ReadCount    uint64
	ExecuteCount uint64
	ErrorCount   uint64
	LastOpAt     time.Time
}

func (s *Stats) recordWrite(n int) {
	s.mu.Lock()
	s.BytesWritten += uint64(n)
	s.WriteCount++
	s.lastOpAt = time.Now()
	s.mu.Unlock()
}

func (s *Stats) recordRead(n int) {
	s.mu.Lock()
	s.BytesRead += uint64(n)
	s.ReadCount++
	s.lastOpAt = time.Now()
	s.mu.Unlock()
}

func (s *Stats) recordExecute() {
	s.mu.Lock()
	s.ExecuteCount++
	s.lastOpAt = time.Now()
	s.mu.Unlock()
}

func (s *Stats) recordError() {
	s.mu.Lock()
	s.ErrorCount++
	s.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatsSnapshot{
		BytesWritten: s.BytesWritten,
		BytesRead:    s.BytesRead,
		WriteCount:   s.WriteCount,
		ReadCount:    s.ReadCount,
		ExecuteCount: s.ExecuteCount,
		ErrorCount:   s.ErrorCount,
		LastOpAt:     s.lastOpAt,
	}
}

// Stats returns a snapshot of this session's transfer counters.
func (s *Session) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}
