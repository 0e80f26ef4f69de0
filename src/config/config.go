// Package config loads silc.toml (spec §6.6/§6.7) into an immutable
// Config value, applying SILC_* environment overrides on top of file
// values on top of built-in defaults. Parsing uses
// github.com/pelletier/go-toml/v2, promoted here from the teacher's
// indirect closure to SILC's primary configuration format.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Ports configures the two port ranges the daemon allocates from (spec
// §6.7: ports.{daemon_start,daemon_end,session_start,session_end,max_attempts}).
type Ports struct {
	DaemonStart  int `toml:"daemon_start"`
	DaemonEnd    int `toml:"daemon_end"`
	SessionStart int `toml:"session_start"`
	SessionEnd   int `toml:"session_end"`
	MaxAttempts  int `toml:"max_attempts"`
}

// Paths configures on-disk locations (spec §6.6).
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Tokens configures per-session API token generation (spec §6.3).
type Tokens struct {
	Length        int  `toml:"length"`
	RequireToken  bool `toml:"require_token"`
}

// Sessions configures session defaults (spec §6.7).
type Sessions struct {
	DefaultTimeoutSeconds float64 `toml:"default_timeout"`
	MaxBufferBytes        int     `toml:"max_buffer_bytes"`
	IdleTimeoutSeconds    float64 `toml:"idle_timeout"`
	GCIntervalSeconds     float64 `toml:"gc_interval"`
}

// Logging configures log rotation and verbosity (spec §6.7).
type Logging struct {
	MaxLogLines int    `toml:"max_log_lines"`
	LogLevel    string `toml:"log_level"`
}

// Config is the fully resolved, immutable configuration for one daemon
// process. Construct it with Load; do not mutate a Config after Load
// returns — share it by pointer.
type Config struct {
	ManagementPort int `toml:"management_port"`

	Ports    Ports    `toml:"ports"`
	Paths    Paths    `toml:"paths"`
	Tokens   Tokens   `toml:"tokens"`
	Sessions Sessions `toml:"sessions"`
	Logging  Logging  `toml:"logging"`
}

// Default returns the built-in defaults (spec §3/§6 defaults, collected
// here since the spec states them across several sections).
func Default() Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".silc")
	return Config{
		ManagementPort: 19999,
		Ports: Ports{
			DaemonStart:  19999,
			DaemonEnd:    19999,
			SessionStart: 20000,
			SessionEnd:   29999,
			MaxAttempts:  50,
		},
		Paths: Paths{
			DataDir: dataDir,
			LogDir:  filepath.Join(dataDir, "logs"),
		},
		Tokens: Tokens{
			Length:       32,
			RequireToken: false,
		},
		Sessions: Sessions{
			DefaultTimeoutSeconds: 30,
			MaxBufferBytes:        65536,
			IdleTimeoutSeconds:    1800,
			GCIntervalSeconds:     60,
		},
		Logging: Logging{
			MaxLogLines: 10000,
			LogLevel:    "info",
		},
	}
}

// Load reads silc.toml at path (if present), merges it over Default(),
// then applies SILC_* environment overrides, in that order (spec §6.7:
// "Environment variables SILC_* override file which overrides defaults").
// A missing config file is not an error: the defaults (plus any env
// overrides) are used as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envInt(&cfg.ManagementPort, "SILC_MANAGEMENT_PORT")

	envInt(&cfg.Ports.DaemonStart, "SILC_PORTS_DAEMON_START")
	envInt(&cfg.Ports.DaemonEnd, "SILC_PORTS_DAEMON_END")
	envInt(&cfg.Ports.SessionStart, "SILC_PORTS_SESSION_START")
	envInt(&cfg.Ports.SessionEnd, "SILC_PORTS_SESSION_END")
	envInt(&cfg.Ports.MaxAttempts, "SILC_PORTS_MAX_ATTEMPTS")

	envString(&cfg.Paths.DataDir, "SILC_PATHS_DATA_DIR")
	envString(&cfg.Paths.LogDir, "SILC_PATHS_LOG_DIR")

	envInt(&cfg.Tokens.Length, "SILC_TOKENS_LENGTH")
	envBool(&cfg.Tokens.RequireToken, "SILC_TOKENS_REQUIRE_TOKEN")

	envFloat(&cfg.Sessions.DefaultTimeoutSeconds, "SILC_SESSIONS_DEFAULT_TIMEOUT")
	envInt(&cfg.Sessions.MaxBufferBytes, "SILC_SESSIONS_MAX_BUFFER_BYTES")
	envFloat(&cfg.Sessions.IdleTimeoutSeconds, "SILC_SESSIONS_IDLE_TIMEOUT")
	envFloat(&cfg.Sessions.GCIntervalSeconds, "SILC_SESSIONS_GC_INTERVAL")

	envInt(&cfg.Logging.MaxLogLines, "SILC_LOGGING_MAX_LOG_LINES")
	envString(&cfg.Logging.LogLevel, "SILC_LOGGING_LOG_LEVEL")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
