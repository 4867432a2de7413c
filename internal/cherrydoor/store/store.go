package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
)

type HeartbeatRecord struct {
	DeviceID   string
	ReceivedAt time.Time
	Heartbeat  heartbeat.Heartbeat
}

type HeartbeatStore interface {
	RecordHeartbeat(ctx context.Context, rec HeartbeatRecord) error
	// Recent returns up to limit records for the device, newest first.
	Recent(ctx context.Context, deviceID string, limit int) ([]HeartbeatRecord, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
