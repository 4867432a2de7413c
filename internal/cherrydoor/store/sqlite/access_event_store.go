package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	dbpkg "github.com/BrandonDHaskell/cherrydoor/internal/db"
)

type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

func (s *AccessEventStore) RecordEvent(ctx context.Context, rec store.AccessEventRecord) error {
	deviceID := strings.TrimSpace(rec.DeviceID)
	if deviceID == "" {
		return errDeviceRequired
	}
	if len(rec.CardCodeHash) != sha256.Size {
		return fmt.Errorf("RecordEvent: card code hash must be %d bytes, got %d", sha256.Size, len(rec.CardCodeHash))
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	decidedMs := rec.DecidedAt.UTC().UnixMilli()

	var frameID any
	if rec.FrameID != "" {
		frameID = rec.FrameID
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, decidedMs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_events(
  device_id, card_code_hash, granted, reason, frame_id, decided_at_ms
) VALUES (?, ?, ?, ?, ?, ?);
`,
			deviceID, rec.CardCodeHash, boolInt(rec.Granted), rec.Reason, frameID, decidedMs,
		); err != nil {
			return fmt.Errorf("RecordEvent insert: %w", err)
		}
		return nil
	})
}
