package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/heartbeat"
	"github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store"
	sqlitestore "github.com/BrandonDHaskell/cherrydoor/internal/cherrydoor/store/sqlite"
)

func parsed(t *testing.T, line string) heartbeat.Heartbeat {
	t.Helper()
	h, err := heartbeat.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	return h
}

// ═══════════════════════════════════════════════════════════════════════════
// RecordHeartbeat: insert + device snapshot
// ═══════════════════════════════════════════════════════════════════════════

func TestHeartbeatStore_RecordHeartbeat_InsertsRow(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	hs := sqlitestore.NewHeartbeatStore(conn, w)
	ctx := context.Background()

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	err := hs.RecordHeartbeat(ctx, store.HeartbeatRecord{
		DeviceID:   "door-main",
		ReceivedAt: now,
		Heartbeat:  parsed(t, "04214556;0;\n"),
	})
	if err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}

	var (
		code  sql.NullString
		state string
		allOK int
	)
	err = conn.QueryRowContext(ctx,
		`SELECT card_code, controller_state, all_ok FROM device_heartbeats WHERE device_id = ?`, "door-main",
	).Scan(&code, &state, &allOK)
	if err != nil {
		t.Fatalf("query heartbeat: %v", err)
	}
	if !code.Valid || code.String != "04214556" {
		t.Errorf("card_code = %v, want 04214556", code)
	}
	if state != "ok" {
		t.Errorf("controller_state = %q, want ok", state)
	}
	if allOK != 1 {
		t.Errorf("all_ok = %d, want 1", allOK)
	}

	var lastSeen int64
	var lastCode sql.NullString
	err = conn.QueryRowContext(ctx,
		`SELECT last_seen_at_ms, last_card_code FROM devices WHERE device_id = ?`, "door-main",
	).Scan(&lastSeen, &lastCode)
	if err != nil {
		t.Fatalf("query device: %v", err)
	}
	if lastSeen != now.UnixMilli() {
		t.Errorf("last_seen_at_ms = %d, want %d", lastSeen, now.UnixMilli())
	}
	if lastCode.String != "04214556" {
		t.Errorf("last_card_code = %v", lastCode)
	}
}

func TestHeartbeatStore_RecordHeartbeat_NoCardStoresNull(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	hs := sqlitestore.NewHeartbeatStore(conn, w)
	ctx := context.Background()

	if err := hs.RecordHeartbeat(ctx, store.HeartbeatRecord{
		DeviceID:  "door-main",
		Heartbeat: parsed(t, "0;0;\n"),
	}); err != nil {
		t.Fatalf("RecordHeartbeat: %v", err)
	}

	var code sql.NullString
	if err := conn.QueryRowContext(ctx, `SELECT card_code FROM device_heartbeats`).Scan(&code); err != nil {
		t.Fatalf("query: %v", err)
	}
	if code.Valid {
		t.Errorf("expected NULL card_code, got %q", code.String)
	}
}

func TestHeartbeatStore_RecordHeartbeat_RequiresDevice(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	hs := sqlitestore.NewHeartbeatStore(conn, w)

	err := hs.RecordHeartbeat(context.Background(), store.HeartbeatRecord{DeviceID: "  "})
	if err == nil {
		t.Fatal("expected error for blank device id")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Recent: round trip of degraded heartbeats
// ═══════════════════════════════════════════════════════════════════════════

func TestHeartbeatStore_Recent_RoundTripsStatuses(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	hs := sqlitestore.NewHeartbeatStore(conn, w)
	ctx := context.Background()

	base := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	ok := parsed(t, "04214556;0;\n")
	peripherals := ok
	peripherals.Status = peripherals.Status.
		Set(heartbeat.SubsystemLock, heartbeat.Err("jammed")).
		Set(heartbeat.SubsystemLED, heartbeat.Unknown())
	broken := ok.WithConnectionBroken()

	for i, hb := range []heartbeat.Heartbeat{ok, peripherals, broken} {
		if err := hs.RecordHeartbeat(ctx, store.HeartbeatRecord{
			DeviceID:   "door-main",
			ReceivedAt: base.Add(time.Duration(i) * time.Second),
			Heartbeat:  hb,
		}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := hs.Recent(ctx, "door-main", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}

	if got[0].Heartbeat != broken {
		t.Errorf("newest = %+v, want %+v", got[0].Heartbeat, broken)
	}
	if got[1].Heartbeat != peripherals {
		t.Errorf("middle = %+v, want %+v", got[1].Heartbeat, peripherals)
	}
	if got[2].Heartbeat != ok {
		t.Errorf("oldest = %+v, want %+v", got[2].Heartbeat, ok)
	}
	if !got[0].ReceivedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("ReceivedAt = %v", got[0].ReceivedAt)
	}
}

func TestHeartbeatStore_Recent_Limit(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	hs := sqlitestore.NewHeartbeatStore(conn, w)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := hs.RecordHeartbeat(ctx, store.HeartbeatRecord{
			DeviceID:  "door-main",
			Heartbeat: heartbeat.New(),
		}); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := hs.Recent(ctx, "door-main", 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("expected 3 records, got %d", len(got))
	}

	none, err := hs.Recent(ctx, "door-main", 0)
	if err != nil {
		t.Fatalf("Recent(0): %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no records for limit 0, got %d", len(none))
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// PruneOlderThan
// ═══════════════════════════════════════════════════════════════════════════

func TestHeartbeatStore_PruneOlderThan(t *testing.T) {
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	hs := sqlitestore.NewHeartbeatStore(conn, w)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, age := range []int{-40, -31, -1} {
		if err := hs.RecordHeartbeat(ctx, store.HeartbeatRecord{
			DeviceID:   "door-main",
			ReceivedAt: now.AddDate(0, 0, age),
			Heartbeat:  heartbeat.New(),
		}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	deleted, err := hs.PruneOlderThan(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	var count int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM device_heartbeats`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining, got %d", count)
	}
}
