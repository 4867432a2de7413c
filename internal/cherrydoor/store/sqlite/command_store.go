package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	dbpkg "github.com/BrandonDHaskell/cherrydoor/internal/db"
)

type CommandStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewCommandStore(db *sql.DB, writer *dbpkg.Worker) *CommandStore {
	return &CommandStore{db: db, writer: writer}
}

func (s *CommandStore) RecordCommand(ctx context.Context, rec store.CommandRecord) error {
	deviceID := strings.TrimSpace(rec.DeviceID)
	if deviceID == "" {
		return errDeviceRequired
	}
	if rec.RequestedAt.IsZero() {
		rec.RequestedAt = time.Now().UTC()
	}
	reqMs := rec.RequestedAt.UTC().UnixMilli()

	var payload any
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, reqMs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO command_frames(
  frame_id, device_id, requested_at_ms, payload, frame, mask, sent, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.FrameID, deviceID, reqMs, payload, rec.Frame, int(rec.Mask), boolInt(rec.Sent), rec.Error,
		); err != nil {
			return fmt.Errorf("RecordCommand insert: %w", err)
		}
		return nil
	})
}

func (s *CommandStore) Recent(ctx context.Context, deviceID string, limit int) ([]store.CommandRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT frame_id, requested_at_ms, payload, frame, mask, sent, error
FROM command_frames
WHERE device_id = ?
ORDER BY requested_at_ms DESC, rowid DESC
LIMIT ?;
`, strings.TrimSpace(deviceID), limit)
	if err != nil {
		return nil, fmt.Errorf("Recent commands query: %w", err)
	}
	defer rows.Close()

	var out []store.CommandRecord
	for rows.Next() {
		var (
			rec     store.CommandRecord
			reqMs   int64
			payload sql.NullString
			mask    int
			sent    int
		)
		if err := rows.Scan(&rec.FrameID, &reqMs, &payload, &rec.Frame, &mask, &sent, &rec.Error); err != nil {
			return nil, fmt.Errorf("Recent commands scan: %w", err)
		}
		rec.DeviceID = deviceID
		rec.RequestedAt = time.UnixMilli(reqMs).UTC()
		if payload.Valid {
			rec.Payload = []byte(payload.String)
		}
		rec.Mask = uint16(mask)
		rec.Sent = sent == 1
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent commands rows: %w", err)
	}
	return out, nil
}
