// Package ledger tracks per-session demo usage.
//
// A Ledger maps an opaque, caller-supplied session identifier to a Record
// counting how many quota-bound requests that session has made. The Access
// Gate depends only on the Ledger interface so the process-local
// MemoryLedger can be swapped for the shared RedisLedger when more than one
// instance serves traffic.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrLimitReached is returned by Consume when the session has already used
// its full quota. The returned Record is the unchanged stored record.
var ErrLimitReached = errors.New("usage limit reached")

// Record is the usage of a single demo session.
type Record struct {
	SessionID  string    `json:"session_id"`
	UsageCount int       `json:"usage_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Remaining returns how many uses are left under limit, never negative.
func (r Record) Remaining(limit int) int {
	if r.UsageCount >= limit {
		return 0
	}
	return limit - r.UsageCount
}

// Ledger stores session usage records.
type Ledger interface {
	// Get returns the record for sessionID, creating an empty one if the
	// session has not been seen before.
	Get(ctx context.Context, sessionID string) (Record, error)

	// Consume increments the usage count of sessionID if it is below limit
	// and returns the updated record. At the limit it returns the stored
	// record unchanged together with ErrLimitReached.
	Consume(ctx context.Context, sessionID string, limit int) (Record, error)
}
