package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	dbpkg "github.com/BrandonDHaskell/cherrydoor/internal/db"
)

var errDeviceRequired = errors.New("device_id is required")

// statusColumns is the order of the *_state/*_reason column pairs in
// device_heartbeats.
var statusColumns = [5]string{
	heartbeat.SubsystemController,
	heartbeat.SubsystemLock,
	heartbeat.SubsystemRFID,
	heartbeat.SubsystemLED,
	heartbeat.SubsystemSpeaker,
}

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

// RecordHeartbeat appends the heartbeat and refreshes the device snapshot.
func (s *HeartbeatStore) RecordHeartbeat(ctx context.Context, rec store.HeartbeatRecord) error {
	deviceID := strings.TrimSpace(rec.DeviceID)
	if deviceID == "" {
		return errDeviceRequired
	}

	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	recvMs := rec.ReceivedAt.UTC().UnixMilli()

	hb := rec.Heartbeat
	var code any
	if hb.HasCode() {
		code = hb.Code
	}
	allOK := boolInt(hb.AllOK())

	st := hb.Status
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureDevice(ctx, tx, deviceID, recvMs); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO device_heartbeats(
  device_id, received_at_ms, captured_at_s, card_code, health,
  controller_state, controller_reason, lock_state, lock_reason,
  rfid_state, rfid_reason, led_state, led_reason,
  speaker_state, speaker_reason, all_ok
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			deviceID, recvMs, hb.Timestamp, code, hb.Health,
			st.Controller.State.String(), st.Controller.Reason,
			st.Lock.State.String(), st.Lock.Reason,
			st.RFID.State.String(), st.RFID.Reason,
			st.LED.State.String(), st.LED.Reason,
			st.Speaker.State.String(), st.Speaker.Reason,
			allOK,
		); err != nil {
			return fmt.Errorf("RecordHeartbeat insert heartbeat: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE devices
SET last_seen_at_ms = ?,
    last_card_code  = ?,
    last_all_ok     = ?,
    updated_at_ms   = ?
WHERE device_id = ?;
`, recvMs, code, allOK, recvMs, deviceID); err != nil {
			return fmt.Errorf("RecordHeartbeat update device snapshot: %w", err)
		}

		return nil
	})
}

func (s *HeartbeatStore) Recent(ctx context.Context, deviceID string, limit int) ([]store.HeartbeatRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT received_at_ms, captured_at_s, card_code, health,
       controller_state, controller_reason, lock_state, lock_reason,
       rfid_state, rfid_reason, led_state, led_reason,
       speaker_state, speaker_reason
FROM device_heartbeats
WHERE device_id = ?
ORDER BY received_at_ms DESC, id DESC
LIMIT ?;
`, strings.TrimSpace(deviceID), limit)
	if err != nil {
		return nil, fmt.Errorf("Recent query: %w", err)
	}
	defer rows.Close()

	var out []store.HeartbeatRecord
	for rows.Next() {
		var (
			recvMs int64
			code   sql.NullString
			hb     heartbeat.Heartbeat
			states [5]string
			reason [5]string
		)
		if err := rows.Scan(&recvMs, &hb.Timestamp, &code, &hb.Health,
			&states[0], &reason[0], &states[1], &reason[1],
			&states[2], &reason[2], &states[3], &reason[3],
			&states[4], &reason[4],
		); err != nil {
			return nil, fmt.Errorf("Recent scan: %w", err)
		}

		hb.Code = code.String
		for i, name := range statusColumns {
			hb.Status = hb.Status.Set(name, statusFromRow(states[i], reason[i]))
		}

		out = append(out, store.HeartbeatRecord{
			DeviceID:   deviceID,
			ReceivedAt: time.UnixMilli(recvMs).UTC(),
			Heartbeat:  hb,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Recent rows: %w", err)
	}
	return out, nil
}

// PruneOlderThan deletes heartbeat rows received before cutoff and returns
// the number deleted.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM device_heartbeats
WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func statusFromRow(state, reason string) heartbeat.Status {
	return heartbeat.Status{State: heartbeat.ParseState(state), Reason: reason}
}
