// Package config provides configuration management for reclaimd.
package config

import (
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a key is absent from the config file.
const (
	DefaultListenAddr = ":8420"
	DefaultBatchSize  = 10
	DefaultLogLevel   = "info"
	DefaultMQTTTopic  = "water/quality/readings"
)

// MQTT configures the optional sensor ingest bridge. Disabled unless a
// broker URL is set.
type MQTT struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// Config holds all reclaimd settings. Loaded once at startup; changes
// to the file on disk take effect via process restart (see the config
// watcher in cmd/reclaimd).
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	BatchSize  int    `yaml:"batch_size"`
	LogLevel   string `yaml:"log_level"`
	MQTT       MQTT   `yaml:"mqtt"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		BatchSize:  DefaultBatchSize,
		LogLevel:   DefaultLogLevel,
		MQTT: MQTT{
			Topic:    DefaultMQTTTopic,
			ClientID: "reclaimd",
		},
	}
}

// Load reads the YAML file at path. A missing file is not an error:
// defaults are returned so the service can run unconfigured. Malformed
// YAML is an error. Environment variables RECLAIM_LISTEN and
// RECLAIM_BATCH_SIZE override the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	normalize(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// normalize backfills defaults for keys the file left empty or set to
// unusable values.
func normalize(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = DefaultMQTTTopic
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "reclaimd"
	}
}

// applyEnv applies environment overrides on top of the loaded file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("RECLAIM_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("RECLAIM_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchSize = n
		}
	}
}

var (
	global   *Config
	globalMu sync.Mutex
)

// Get returns the process-wide config, loading it from DefaultPath on
// first use. Falls back to defaults if loading fails.
func Get() *Config {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		cfg, err := Load(DefaultPath())
		if err != nil {
			cfg = Default()
		}
		global = cfg
	}
	return global
}

// Set replaces the process-wide config. Intended for main after flag
// parsing and for tests.
func Set(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = cfg
}

// DefaultPath returns the default config file location,
// ~/.reclaim/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return home + "/.reclaim/config.yaml"
}
