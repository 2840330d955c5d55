package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the base server configuration.
type Config struct {
	Host         string
	Port         string
	SQLiteDBPath string

	// Volumio connection
	VolumioHost      string
	VolumioTimeoutMs int

	// Push enrollment
	ReenrollTime string // "No" disables the nightly re-enrollment trigger
	CallbackPort int    // 0 means reuse the server port

	// Operating mode: push is primary, poll is the legacy fallback
	PollMode       bool
	PollIntervalMs int

	// Debug toggles
	Debug    bool // general debug logging
	DebugAPI bool // log raw Volumio API responses

	// Optional preselection applied during device initialization
	PreselectPlaylist string
	PreselectShuffle  string // "", "true" or "false"
	PreselectRepeat   string // "", "true" or "false"
}

// overlay mirrors Config with optional fields for the YAML config file.
type overlay struct {
	Host              *string `yaml:"host"`
	Port              *string `yaml:"port"`
	SQLiteDBPath      *string `yaml:"sqlite_db_path"`
	VolumioHost       *string `yaml:"volumio_host"`
	VolumioTimeoutMs  *int    `yaml:"volumio_timeout_ms"`
	ReenrollTime      *string `yaml:"reenroll_time"`
	CallbackPort      *int    `yaml:"callback_port"`
	PollMode          *bool   `yaml:"poll_mode"`
	PollIntervalMs    *int    `yaml:"poll_interval_ms"`
	Debug             *bool   `yaml:"debug"`
	DebugAPI          *bool   `yaml:"debug_api"`
	PreselectPlaylist *string `yaml:"preselect_playlist"`
	PreselectShuffle  *string `yaml:"preselect_shuffle"`
	PreselectRepeat   *string `yaml:"preselect_repeat"`
}

// Load reads configuration from environment variables with defaults,
// then applies the optional YAML overlay file named by VOLUMIO_HUB_CONFIG.
func Load() (Config, error) {
	cfg := Config{
		Host:              envString("HOST", "0.0.0.0"),
		Port:              envString("PORT", "9100"),
		SQLiteDBPath:      envString("SQLITE_DB_PATH", "./data/volumio-hub.db"),
		VolumioHost:       envString("VOLUMIO_HOST", "volumio.local"),
		VolumioTimeoutMs:  envInt("VOLUMIO_TIMEOUT_MS", 5000),
		ReenrollTime:      envString("REENROLL_TIME", "No"),
		CallbackPort:      envInt("CALLBACK_PORT", 0),
		PollMode:          envBool("POLL_MODE", false),
		PollIntervalMs:    envInt("POLL_INTERVAL_MS", 1000),
		Debug:             envBool("DEBUG", false),
		DebugAPI:          envBool("DEBUG_API", false),
		PreselectPlaylist: envString("PRESELECT_PLAYLIST", ""),
		PreselectShuffle:  envString("PRESELECT_SHUFFLE", ""),
		PreselectRepeat:   envString("PRESELECT_REPEAT", ""),
	}

	if path := os.Getenv("VOLUMIO_HUB_CONFIG"); path != "" {
		if err := applyOverlay(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if strings.TrimSpace(cfg.VolumioHost) == "" {
		return Config{}, fmt.Errorf("VOLUMIO_HOST must not be empty")
	}
	if cfg.VolumioTimeoutMs <= 0 {
		return Config{}, fmt.Errorf("VOLUMIO_TIMEOUT_MS must be positive")
	}
	if cfg.PollIntervalMs <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}

	return cfg, nil
}

// applyOverlay merges the YAML config file on top of env-derived values.
func applyOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var over overlay
	if err := yaml.Unmarshal(data, &over); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if over.Host != nil {
		cfg.Host = *over.Host
	}
	if over.Port != nil {
		cfg.Port = *over.Port
	}
	if over.SQLiteDBPath != nil {
		cfg.SQLiteDBPath = *over.SQLiteDBPath
	}
	if over.VolumioHost != nil {
		cfg.VolumioHost = *over.VolumioHost
	}
	if over.VolumioTimeoutMs != nil {
		cfg.VolumioTimeoutMs = *over.VolumioTimeoutMs
	}
	if over.ReenrollTime != nil {
		cfg.ReenrollTime = *over.ReenrollTime
	}
	if over.CallbackPort != nil {
		cfg.CallbackPort = *over.CallbackPort
	}
	if over.PollMode != nil {
		cfg.PollMode = *over.PollMode
	}
	if over.PollIntervalMs != nil {
		cfg.PollIntervalMs = *over.PollIntervalMs
	}
	if over.Debug != nil {
		cfg.Debug = *over.Debug
	}
	if over.DebugAPI != nil {
		cfg.DebugAPI = *over.DebugAPI
	}
	if over.PreselectPlaylist != nil {
		cfg.PreselectPlaylist = *over.PreselectPlaylist
	}
	if over.PreselectShuffle != nil {
		cfg.PreselectShuffle = *over.PreselectShuffle
	}
	if over.PreselectRepeat != nil {
		cfg.PreselectRepeat = *over.PreselectRepeat
	}

	return nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}
