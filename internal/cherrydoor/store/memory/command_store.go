package memory

import (
	"context"
	"sync"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
)

// CommandStore is an in-memory append-only log of outbound frames.
type CommandStore struct {
	mu      sync.Mutex
	records []store.CommandRecord
}

func NewCommandStore() *CommandStore {
	return &CommandStore{}
}

func (s *CommandStore) RecordCommand(_ context.Context, rec store.CommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *CommandStore) Recent(_ context.Context, deviceID string, limit int) ([]store.CommandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.CommandRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].DeviceID == deviceID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// Records returns a copy of all recorded frames. Test-only helper.
func (s *CommandStore) Records() []store.CommandRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.CommandRecord, len(s.records))
	copy(out, s.records)
	return out
}
