package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
)

// Store keeps heartbeats in memory. Intended for tests and dev runs.
type Store struct {
	mu   sync.RWMutex
	data []store.HeartbeatRecord
}

func New() *Store {
	return &Store{}
}

func (s *Store) RecordHeartbeat(_ context.Context, rec store.HeartbeatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	s.data = append(s.data, rec)
	return nil
}

func (s *Store) Recent(_ context.Context, deviceID string, limit int) ([]store.HeartbeatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.HeartbeatRecord
	for _, rec := range s.data {
		if rec.DeviceID == deviceID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data[:0]
	var deleted int64
	for _, rec := range s.data {
		if rec.ReceivedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.data = kept
	return deleted, nil
}

// Len returns the number of stored heartbeats. Test-only helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
