package telemetry

import (
	"context"
	"sync"
	"time"
)

// UsageRecord is one generation call attributed to a user. The rate limiter
// counts these, so fallback-path calls append one too.
type UsageRecord struct {
	UserID     string    `json:"userId"`
	TokensUsed int       `json:"tokensUsed"`
	CreatedAt  time.Time `json:"timestamp"`
}

// CrisisRecord is written best-effort whenever the detector fires.
type CrisisRecord struct {
	UserID      string    `json:"userId"`
	Level       int       `json:"crisisLevel"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Store is the append-only telemetry sink. Writes are best-effort at the
// call sites; only CountUsageSince feeds a decision (the rate limiter, which
// fails open on error).
type Store interface {
	AppendUsage(ctx context.Context, rec UsageRecord) error
	CountUsageSince(ctx context.Context, userID string, since time.Time) (int, error)
	AppendCrisis(ctx context.Context, rec CrisisRecord) error
	Close() error
}

// MemoryStore keeps records in process memory, used in tests and when no
// database path is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	usage  []UsageRecord
	crisis []CrisisRecord
}

// NewMemoryStore returns an empty in-memory sink.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendUsage records one generation call.
func (s *MemoryStore) AppendUsage(_ context.Context, rec UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = append(s.usage, rec)
	return nil
}

// CountUsageSince counts usage records for userID at or after since.
func (s *MemoryStore) CountUsageSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.usage {
		if rec.UserID == userID && !rec.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// AppendCrisis records one crisis detection.
func (s *MemoryStore) AppendCrisis(_ context.Context, rec CrisisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crisis = append(s.crisis, rec)
	return nil
}

// CrisisRecords returns a copy of the stored crisis records.
func (s *MemoryStore) CrisisRecords() []CrisisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CrisisRecord, len(s.crisis))
	copy(out, s.crisis)
	return out
}

// Close is a no-op for the in-memory sink.
func (s *MemoryStore) Close() error { return nil }
