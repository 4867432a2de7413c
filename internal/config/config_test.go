package config_test

import (
	"testing"
	"time"

	"github.com/BrandonDHaskell/cherrydoor/internal/config"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := config.FromEnv()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q", cfg.GRPCAddr)
	}
	if cfg.Env != "dev" {
		t.Errorf("Env = %q", cfg.Env)
	}
	if cfg.Store != "sqlite" {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.DB.Path != "./data/cherrydoor.db" || cfg.DB.BusyTimeout != 5*time.Second || cfg.DB.Synchronous != "NORMAL" {
		t.Errorf("DB = %+v", cfg.DB)
	}
	if cfg.DeviceID != "door-main" {
		t.Errorf("DeviceID = %q", cfg.DeviceID)
	}
	if cfg.Serial.BaudRate != 9600 || cfg.Serial.DataBits != 8 || cfg.Serial.StopBits != 1 || cfg.Serial.Parity != "N" {
		t.Errorf("Serial = %+v", cfg.Serial)
	}
	if cfg.Serial.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Serial.ReadTimeout)
	}
	if cfg.RetryInterval != time.Second {
		t.Errorf("RetryInterval = %v", cfg.RetryInterval)
	}
	if cfg.HeartbeatRetentionDays != 30 || cfg.PruneIntervalHours != 6 {
		t.Errorf("retention = %d, prune = %d", cfg.HeartbeatRetentionDays, cfg.PruneIntervalHours)
	}
	if cfg.AllowAll || len(cfg.AllowedCardCodes) != 0 || cfg.OpenSeconds != 5 {
		t.Errorf("access = %v %v %d", cfg.AllowAll, cfg.AllowedCardCodes, cfg.OpenSeconds)
	}
}

func TestFromEnv_AccessPolicy(t *testing.T) {
	t.Setenv("CHERRYDOOR_ALLOW_ALL", "true")
	t.Setenv("CHERRYDOOR_ALLOWED_CARDS", " 04214556, ,DEADBEEF,")
	t.Setenv("CHERRYDOOR_OPEN_SECONDS", "9")

	cfg := config.FromEnv()

	if !cfg.AllowAll {
		t.Error("expected AllowAll")
	}
	if len(cfg.AllowedCardCodes) != 2 || cfg.AllowedCardCodes[0] != "04214556" || cfg.AllowedCardCodes[1] != "DEADBEEF" {
		t.Errorf("AllowedCardCodes = %q", cfg.AllowedCardCodes)
	}
	if cfg.OpenSeconds != 9 {
		t.Errorf("OpenSeconds = %d", cfg.OpenSeconds)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CHERRYDOOR_HTTP_ADDR", ":18080")
	t.Setenv("CHERRYDOOR_ENV", "PROD")
	t.Setenv("CHERRYDOOR_STORE", "memory")
	t.Setenv("CHERRYDOOR_DEVICE_ID", "door-side")
	t.Setenv("CHERRYDOOR_SERIAL_PORT", "/dev/ttyACM1")
	t.Setenv("CHERRYDOOR_SERIAL_BAUD", "115200")
	t.Setenv("CHERRYDOOR_SERIAL_PARITY", "e")
	t.Setenv("CHERRYDOOR_SERIAL_READ_TIMEOUT_MS", "500")
	t.Setenv("CHERRYDOOR_HEARTBEAT_RETENTION_DAYS", "0")
	t.Setenv("CHERRYDOOR_DB_PATH", "/var/lib/cherrydoor/door.db")
	t.Setenv("CHERRYDOOR_DB_BUSY_TIMEOUT_MS", "750")

	cfg := config.FromEnv()

	if cfg.HTTPAddr != ":18080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Env != "prod" {
		t.Errorf("Env = %q", cfg.Env)
	}
	if cfg.Store != "memory" {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.DeviceID != "door-side" {
		t.Errorf("DeviceID = %q", cfg.DeviceID)
	}
	if cfg.Serial.Port != "/dev/ttyACM1" || cfg.Serial.BaudRate != 115200 || cfg.Serial.Parity != "E" {
		t.Errorf("Serial = %+v", cfg.Serial)
	}
	if cfg.Serial.ReadTimeout != 500*time.Millisecond {
		t.Errorf("ReadTimeout = %v", cfg.Serial.ReadTimeout)
	}
	if cfg.HeartbeatRetentionDays != 0 {
		t.Errorf("HeartbeatRetentionDays = %d, want 0 (keep forever)", cfg.HeartbeatRetentionDays)
	}
	if cfg.DB.Path != "/var/lib/cherrydoor/door.db" || cfg.DB.BusyTimeout != 750*time.Millisecond {
		t.Errorf("DB = %+v", cfg.DB)
	}
	// prod without an explicit level syncs fully
	if cfg.DB.Synchronous != "FULL" {
		t.Errorf("Synchronous = %q, want FULL", cfg.DB.Synchronous)
	}
}

func TestFromEnv_DBSynchronous(t *testing.T) {
	tests := []struct {
		env, sync string
		want      string
	}{
		{"dev", "", "NORMAL"},
		{"prod", "", "FULL"},
		{"prod", "normal", "NORMAL"},
		{"dev", "full", "FULL"},
		{"dev", "off", "NORMAL"},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.sync, func(t *testing.T) {
			t.Setenv("CHERRYDOOR_ENV", tt.env)
			t.Setenv("CHERRYDOOR_DB_SYNCHRONOUS", tt.sync)

			if got := config.FromEnv().DB.Synchronous; got != tt.want {
				t.Errorf("Synchronous = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromEnv_FailSoft(t *testing.T) {
	t.Setenv("CHERRYDOOR_ENV", "staging")
	t.Setenv("CHERRYDOOR_STORE", "postgres")
	t.Setenv("CHERRYDOOR_SERIAL_PARITY", "X")
	t.Setenv("CHERRYDOOR_SERIAL_BAUD", "fast")
	t.Setenv("CHERRYDOOR_HEARTBEAT_RETENTION_DAYS", "-3")
	t.Setenv("CHERRYDOOR_PRUNE_INTERVAL_HOURS", "0")
	t.Setenv("CHERRYDOOR_HTTP_ADDR", "   ")
	t.Setenv("CHERRYDOOR_ALLOW_ALL", "maybe")
	t.Setenv("CHERRYDOOR_DB_BUSY_TIMEOUT_MS", "-1")

	cfg := config.FromEnv()

	if cfg.Env != "dev" {
		t.Errorf("Env = %q, want dev", cfg.Env)
	}
	if cfg.Store != "sqlite" {
		t.Errorf("Store = %q, want sqlite", cfg.Store)
	}
	if cfg.Serial.Parity != "N" {
		t.Errorf("Parity = %q, want N", cfg.Serial.Parity)
	}
	if cfg.Serial.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", cfg.Serial.BaudRate)
	}
	if cfg.HeartbeatRetentionDays != 30 {
		t.Errorf("HeartbeatRetentionDays = %d, want 30", cfg.HeartbeatRetentionDays)
	}
	if cfg.PruneIntervalHours != 6 {
		t.Errorf("PruneIntervalHours = %d, want 6", cfg.PruneIntervalHours)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.AllowAll {
		t.Error("AllowAll should fall back to false")
	}
	if cfg.DB.BusyTimeout != 5*time.Second {
		t.Errorf("BusyTimeout = %v, want 5s", cfg.DB.BusyTimeout)
	}
}
