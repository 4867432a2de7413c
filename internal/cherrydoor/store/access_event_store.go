package store

import (
	"context"
	"time"
)

// AccessEventRecord captures a single access decision for the audit log.
type AccessEventRecord struct {
	DeviceID     string
	CardCodeHash []byte // SHA-256 of the card code
	Granted      bool
	Reason       string
	FrameID      string // frame sent in response, empty when none was
	DecidedAt    time.Time
}

// AccessEventStore persists access decisions as an append-only audit log.
type AccessEventStore interface {
	RecordEvent(ctx context.Context, rec AccessEventRecord) error
}
