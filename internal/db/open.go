package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/cherrydoor/internal/logger"
)

const (
	defaultPath        = "./data/cherrydoor.db"
	defaultBusyTimeout = 5 * time.Second
	defaultPingTimeout = 3 * time.Second
	defaultSynchronous = "NORMAL"
)

// Config selects the heartbeat database and how connections to it behave.
// Zero fields take the package defaults.
type Config struct {
	Path string

	// BusyTimeout is how long a statement waits on a locked database
	// before failing with SQLITE_BUSY.
	BusyTimeout time.Duration

	// Synchronous is the WAL sync level, "NORMAL" or "FULL". FULL survives
	// power loss at the cost of an fsync per commit.
	Synchronous string

	PingTimeout time.Duration

	Log *logger.Logger
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Path) == "" {
		c.Path = defaultPath
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
	switch s := strings.ToUpper(strings.TrimSpace(c.Synchronous)); s {
	case "NORMAL", "FULL":
		c.Synchronous = s
	default:
		c.Synchronous = defaultSynchronous
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = defaultPingTimeout
	}
	if c.Log == nil {
		c.Log = logger.Nop()
	}
	return c
}

// DSN returns the modernc.org/sqlite DSN for cfg. Every connection gets
// foreign keys, WAL, the configured sync level and busy timeout.
func (c Config) DSN() string {
	c = c.withDefaults()
	pragmas := []string{
		"foreign_keys(1)",
		"journal_mode(WAL)",
		fmt.Sprintf("synchronous(%s)", c.Synchronous),
		fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()),
	}
	return "file:" + c.Path + "?_pragma=" + strings.Join(pragmas, "&_pragma=")
}

// Open creates the database directory if needed, connects, and brings the
// schema up to date.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	cfg = cfg.withDefaults()
	log := cfg.Log.With("component", "db", "path", cfg.Path)

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	conn, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// Writes are serialised by Worker; a single connection keeps readers
	// and the writer from racing for the file lock.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	applied, err := Migrate(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	var journal string
	if err := conn.QueryRowContext(ctx, `PRAGMA journal_mode;`).Scan(&journal); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read journal_mode: %w", err)
	}

	log.Infow("database ready",
		"migrations_applied", applied,
		"journal_mode", journal,
		"synchronous", cfg.Synchronous,
		"busy_timeout", cfg.BusyTimeout,
	)
	return conn, nil
}
