package store

import (
	"context"
	"time"
)

// CommandRecord captures one outbound frame for the audit log. Rejected
// commands have an empty Frame and Sent=false.
type CommandRecord struct {
	FrameID     string
	DeviceID    string
	RequestedAt time.Time
	Payload     []byte // JSON form of the command as requested
	Frame       string
	Mask        uint16
	Sent        bool
	Error       string
}

// CommandStore persists outbound frames as an append-only log.
type CommandStore interface {
	RecordCommand(ctx context.Context, rec CommandRecord) error
	// Recent returns up to limit records for the device, newest first.
	Recent(ctx context.Context, deviceID string, limit int) ([]CommandRecord, error)
}
