package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger keeps records in a process-wide map. Entries are never
// evicted and the map has no capacity bound; state is lost on restart and
// is not shared between instances.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// Get returns the record for sessionID, creating it on first sight.
func (m *MemoryLedger) Get(_ context.Context, sessionID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.getOrCreate(sessionID), nil
}

// Consume increments the usage of sessionID if it is below limit. The
// check and the increment happen under one lock, so concurrent requests
// for the same session cannot overshoot the limit within this process.
func (m *MemoryLedger) Consume(_ context.Context, sessionID string, limit int) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.getOrCreate(sessionID)
	if rec.UsageCount >= limit {
		return *rec, ErrLimitReached
	}
	rec.UsageCount++
	return *rec, nil
}

// Len returns the number of tracked sessions.
func (m *MemoryLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// caller must hold m.mu
func (m *MemoryLedger) getOrCreate(sessionID string) *Record {
	rec, ok := m.records[sessionID]
	if !ok {
		rec = &Record{SessionID: sessionID, CreatedAt: m.now()}
		m.records[sessionID] = rec
	}
	return rec
}

var _ Ledger = (*MemoryLedger)(nil)
