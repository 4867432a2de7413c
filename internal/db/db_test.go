package db_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/db"
	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:db_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestMigrate_AppliesOnce(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()

	n, err := db.Migrate(ctx, conn)
	if err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one migration applied")
	}

	n, err = db.Migrate(ctx, conn)
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no migrations on second run, got %d", n)
	}

	for _, table := range []string{"devices", "device_heartbeats", "command_frames", "access_events"} {
		var name string
		err := conn.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cherrydoor.db")

	conn, err := db.Open(context.Background(), db.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count == 0 {
		t.Error("expected recorded migrations")
	}
}

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  db.Config
		want string
	}{
		{
			name: "defaults",
			cfg:  db.Config{},
			want: "file:./data/cherrydoor.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		},
		{
			name: "full sync and short timeout",
			cfg:  db.Config{Path: "/var/lib/door.db", Synchronous: "full", BusyTimeout: 250 * time.Millisecond},
			want: "file:/var/lib/door.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(250)",
		},
		{
			name: "unknown sync level",
			cfg:  db.Config{Path: "x.db", Synchronous: "OFF"},
			want: "file:x.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DSN(); got != tt.want {
				t.Errorf("DSN = %q\nwant  %q", got, tt.want)
			}
		})
	}
}

func TestOpen_AppliesConnectionSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cherrydoor.db")

	conn, err := db.Open(context.Background(), db.Config{
		Path:        path,
		BusyTimeout: 1500 * time.Millisecond,
		Synchronous: "FULL",
		Log:         logger.Nop(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	var journal string
	if err := conn.QueryRow(`PRAGMA journal_mode;`).Scan(&journal); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if journal != "wal" {
		t.Errorf("journal_mode = %q, want wal", journal)
	}

	var busy int
	if err := conn.QueryRow(`PRAGMA busy_timeout;`).Scan(&busy); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if busy != 1500 {
		t.Errorf("busy_timeout = %d, want 1500", busy)
	}

	// 2 = FULL
	var sync int
	if err := conn.QueryRow(`PRAGMA synchronous;`).Scan(&sync); err != nil {
		t.Fatalf("synchronous: %v", err)
	}
	if sync != 2 {
		t.Errorf("synchronous = %d, want 2", sync)
	}
}

func TestWorker_RollsBackOnError(t *testing.T) {
	conn := openMemory(t)
	ctx := context.Background()
	if _, err := db.Migrate(ctx, conn); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	w := db.NewWorker(conn)
	defer w.Close()

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO devices(device_id, created_at_ms, updated_at_ms) VALUES ('door-main', 1, 1)`,
		); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do = %v, want boom", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected rollback, found %d rows", count)
	}
}

func TestWorker_DoAfterClose(t *testing.T) {
	conn := openMemory(t)

	w := db.NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })
	if !errors.Is(err, db.ErrWorkerClosed) {
		t.Fatalf("Do after Close = %v, want ErrWorkerClosed", err)
	}
}

func TestWorker_CanceledContext(t *testing.T) {
	conn := openMemory(t)
	w := db.NewWorker(conn)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Do(ctx, func(context.Context, *sql.Tx) error { return nil })
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
}
