package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the telemetry server listens on.
	DefaultAddr = ":43180"
	// DefaultTickRate is the nominal fixed-timestep frequency in Hz.
	DefaultTickRate = 60.0
	// DefaultRaceLaps is the lap count a race runs unless overridden.
	DefaultRaceLaps = 3
	// DefaultGridSize bounds the total number of cars (human + AI).
	DefaultGridSize = 6
	// DefaultPingInterval controls the keepalive cadence for WebSocket viewers.
	DefaultPingInterval = 30 * time.Second
	// DefaultCountdownStep is the duration each start light stays lit.
	DefaultCountdownStep = time.Second
	// DefaultWeather selects the starting weather condition.
	DefaultWeather = "dry"
	// DefaultSeed feeds the deterministic per-driver noise sources.
	DefaultSeed int64 = 1

	// DefaultLogLevel controls verbosity for simulator logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "sim.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the simulation service.
type Config struct {
	Address       string
	TickRate      float64
	RaceLaps      int
	GridSize      int
	PingInterval  time.Duration
	CountdownStep time.Duration
	Weather       string
	DynamicSkies  bool
	Seed          int64
	ReplayDir     string
	Logging       LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the simulator configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:       getString("SIM_ADDR", DefaultAddr),
		TickRate:      DefaultTickRate,
		RaceLaps:      DefaultRaceLaps,
		GridSize:      DefaultGridSize,
		PingInterval:  DefaultPingInterval,
		CountdownStep: DefaultCountdownStep,
		Weather:       strings.TrimSpace(getString("SIM_WEATHER", DefaultWeather)),
		Seed:          DefaultSeed,
		ReplayDir:     strings.TrimSpace(os.Getenv("SIM_REPLAY_DIR")),
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("SIM_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("SIM_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("SIM_TICK_RATE")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_TICK_RATE must be a positive number, got %q", raw))
		} else {
			cfg.TickRate = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_RACE_LAPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_RACE_LAPS must be a positive integer, got %q", raw))
		} else {
			cfg.RaceLaps = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_GRID_SIZE")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_GRID_SIZE must be a positive integer, got %q", raw))
		} else {
			cfg.GridSize = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_COUNTDOWN_STEP")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_COUNTDOWN_STEP must be a positive duration, got %q", raw))
		} else {
			cfg.CountdownStep = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_DYNAMIC_WEATHER")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("SIM_DYNAMIC_WEATHER must be a boolean value, got %q", raw))
		} else {
			cfg.DynamicSkies = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_SEED")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("SIM_SEED must be an integer, got %q", raw))
		} else {
			cfg.Seed = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("SIM_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SIM_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("SIM_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("SIM_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("SIM_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
