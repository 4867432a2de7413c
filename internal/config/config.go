package config

import (
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	Env   string // "dev" | "prod"
	Store string // "sqlite" | "memory"
	DB    DBConfig

	DeviceID string

	Serial SerialConfig

	// Access policy
	AllowAll         bool
	AllowedCardCodes []string
	OpenSeconds      int

	// RetryInterval paces reads after the link reports broken.
	RetryInterval time.Duration

	// Heartbeat retention
	HeartbeatRetentionDays int // 0 = keep forever
	PruneIntervalHours     int // how often the pruner runs (default 6)

	LogLevel string
}

type DBConfig struct {
	Path        string // e.g. "./data/cherrydoor.db"
	BusyTimeout time.Duration
	Synchronous string // "NORMAL" | "FULL"; prod defaults to FULL
}

type SerialConfig struct {
	Port        string
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      string // "N" | "E" | "O"
	ReadTimeout time.Duration
}

var defaults = map[string]any{
	"http_addr":                ":8080",
	"grpc_addr":                ":9090",
	"env":                      "dev",
	"db_path":                  "./data/cherrydoor.db",
	"db_busy_timeout_ms":       5000,
	"db_synchronous":           "",
	"store":                    "sqlite",
	"device_id":                "door-main",
	"serial_port":              "/dev/ttyUSB0",
	"serial_baud":              9600,
	"serial_data_bits":         8,
	"serial_stop_bits":         1,
	"serial_parity":            "N",
	"serial_read_timeout_ms":   2000,
	"retry_interval_ms":        1000,
	"heartbeat_retention_days": 30,
	"prune_interval_hours":     6,
	"allow_all":                false,
	"allowed_cards":            "",
	"open_seconds":             5,
	"log_level":                "info",
}

// FromEnv reads CHERRYDOOR_* environment variables, layered over an optional
// cherrydoor.yaml in "." or "./configs".
func FromEnv() Config {
	return load(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("CHERRYDOOR")
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetConfigName("cherrydoor")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("configs")
	// fail-soft: env + defaults still apply without a readable file
	_ = v.ReadInConfig()
	return v
}

func load(v *viper.Viper) Config {
	env := strings.ToLower(strings.TrimSpace(v.GetString("env")))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	store := strings.ToLower(strings.TrimSpace(v.GetString("store")))
	if store != "sqlite" && store != "memory" {
		store = "sqlite"
	}

	synchronous := strings.ToUpper(strings.TrimSpace(v.GetString("db_synchronous")))
	if synchronous != "NORMAL" && synchronous != "FULL" {
		// power loss on a door controller is routine; prod pays for the fsync
		synchronous = "NORMAL"
		if env == "prod" {
			synchronous = "FULL"
		}
	}

	parity := strings.ToUpper(strings.TrimSpace(v.GetString("serial_parity")))
	if parity != "N" && parity != "E" && parity != "O" {
		parity = "N"
	}

	return Config{
		HTTPAddr: stringDefault(v, "http_addr"),
		GRPCAddr: stringDefault(v, "grpc_addr"),
		Env:      env,
		Store:    store,
		DeviceID: stringDefault(v, "device_id"),

		DB: DBConfig{
			Path:        stringDefault(v, "db_path"),
			BusyTimeout: time.Duration(positiveInt(v, "db_busy_timeout_ms")) * time.Millisecond,
			Synchronous: synchronous,
		},

		Serial: SerialConfig{
			Port:        stringDefault(v, "serial_port"),
			BaudRate:    positiveInt(v, "serial_baud"),
			DataBits:    positiveInt(v, "serial_data_bits"),
			StopBits:    positiveInt(v, "serial_stop_bits"),
			Parity:      parity,
			ReadTimeout: time.Duration(positiveInt(v, "serial_read_timeout_ms")) * time.Millisecond,
		},

		AllowAll:         boolValue(v, "allow_all"),
		AllowedCardCodes: splitCSV(v.GetString("allowed_cards")),
		OpenSeconds:      positiveInt(v, "open_seconds"),

		RetryInterval: time.Duration(positiveInt(v, "retry_interval_ms")) * time.Millisecond,

		HeartbeatRetentionDays: nonNegativeInt(v, "heartbeat_retention_days"),
		PruneIntervalHours:     positiveInt(v, "prune_interval_hours"),

		LogLevel: strings.ToLower(stringDefault(v, "log_level")),
	}
}

func stringDefault(v *viper.Viper, key string) string {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return defaults[key].(string)
	}
	return s
}

// intValue parses the key, falling back to its default when the value is
// not an integer.
func intValue(v *viper.Viper, key string) int {
	n, err := cast.ToIntE(v.Get(key))
	if err != nil {
		return defaults[key].(int)
	}
	return n
}

func boolValue(v *viper.Viper, key string) bool {
	b, err := cast.ToBoolE(v.Get(key))
	if err != nil {
		return defaults[key].(bool)
	}
	return b
}

// splitCSV splits a comma separated list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nonNegativeInt(v *viper.Viper, key string) int {
	n := intValue(v, key)
	if n < 0 {
		return defaults[key].(int)
	}
	return n
}

func positiveInt(v *viper.Viper, key string) int {
	n := intValue(v, key)
	if n <= 0 {
		return defaults[key].(int)
	}
	return n
}
