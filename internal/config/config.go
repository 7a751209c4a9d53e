// Package config loads espersistd's YAML configuration and layers
// environment-variable overrides on top, the way
// internet-connection-monitor's config package layers LoadFromEnv on top
// of DefaultConfig.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QueueConfig is one entry of persist_queues: a persister class name (see
// internal/persist.Registry) and a worker count.
type QueueConfig struct {
	PersisterClass string `yaml:"persister_class"`
	Workers        int    `yaml:"workers"`
}

// OIDConfig describes one OID within an OID-set: whether it drives a
// derived aggregate, and an Integer flag. Integer is parsed but no
// persister reads it; the history reconcilers coerce fixed OID lists to
// integer.
type OIDConfig struct {
	Aggregate bool `yaml:"aggregate"`
	Integer   bool `yaml:"integer"`
}

// OIDSetConfig is the in-memory configuration for one OID-set, read once
// at worker start and never refreshed mid-process, per the TSDB persister
// contract.
type OIDSetConfig struct {
	SetName     string               `yaml:"set_name"`
	Frequency   int64                `yaml:"frequency"`
	ChunkMapper string               `yaml:"chunk_mapper"`
	Aggregates  []int64              `yaml:"aggregates"`
	OIDs        map[string]OIDConfig `yaml:"oids"`
}

// LoggingConfig controls the ambient slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HealthConfig controls the optional per-worker HTTP health endpoint.
type HealthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Port          int    `yaml:"port"`
	Path          string `yaml:"path"`
	ListenAddress string `yaml:"listen_address"`
}

// Config is the full espersistd configuration tree, as described in
// spec.md §6 "Configuration".
type Config struct {
	PersistQueues    map[string]QueueConfig  `yaml:"persist_queues"`
	PersistMap       map[string][]string     `yaml:"persist_map"`
	OIDSets          map[string]OIDSetConfig `yaml:"oidsets"`
	EspersistdURI    string                  `yaml:"espersistd_uri"`
	TSDBRoot         string                  `yaml:"tsdb_root"`
	StreamingLogDir  string                  `yaml:"streaming_log_dir"`
	DBURI            string                  `yaml:"db_uri"`
	PIDDir           string                  `yaml:"pid_dir"`
	SyslogFacility   string                  `yaml:"syslog_facility"`
	SyslogPriority   string                  `yaml:"syslog_priority"`
	EspollPersistURI []string                `yaml:"espoll_persist_uri"`
	StatsESURI       string                  `yaml:"stats_es_uri"`
	MetricsAddr      string                  `yaml:"metrics_addr"`
	IntakeAddr       string                  `yaml:"intake_addr"`
	IntakePath       string                  `yaml:"intake_path"`
	Health           HealthConfig            `yaml:"health"`
	Logging          LoggingConfig           `yaml:"logging"`
}

// DefaultConfig returns a minimal configuration usable against a local
// Redis and Postgres, the same role DefaultConfig plays in the teacher's
// config package: a safe starting point, not production defaults.
func DefaultConfig() *Config {
	return &Config{
		PersistQueues: map[string]QueueConfig{
			"tsdb":    {PersisterClass: "TSDBPersister", Workers: 1},
			"history": {PersisterClass: "IfRefPersister", Workers: 1},
		},
		PersistMap:      map[string][]string{},
		OIDSets:         map[string]OIDSetConfig{},
		EspersistdURI:   "redis://127.0.0.1:6379/0",
		TSDBRoot:        "/var/lib/espersistd/tsdb",
		StreamingLogDir: "/var/lib/espersistd/stream",
		DBURI:           "postgres://espersistd@127.0.0.1:5432/espersistd",
		PIDDir:          "/var/run/espersistd",
		SyslogFacility:  "local4",
		SyslogPriority:  "info",
		IntakeAddr:      "127.0.0.1:9100",
		IntakePath:      "/results",
		Health:          HealthConfig{Enabled: false, Port: 8090, Path: "/health", ListenAddress: "127.0.0.1"},
		Logging:         LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads YAML configuration from path, applying env overrides
// afterward. An empty path yields DefaultConfig with env overrides only.
// configFile failing to exist is a configuration error: fatal at startup
// per the error taxonomy in spec.md §7.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		b, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configFile, err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.EspersistdURI == "" {
		return fmt.Errorf("config: espersistd_uri is required")
	}
	for qname, qc := range cfg.PersistQueues {
		if qc.Workers < 1 {
			return fmt.Errorf("config: persist_queues[%s].workers must be >= 1, got %d", qname, qc.Workers)
		}
		if qc.PersisterClass == "" {
			return fmt.Errorf("config: persist_queues[%s].persister_class is required", qname)
		}
	}
	return nil
}

// IsTesting reports whether ESXSNMP_TESTING selects the embedded-database
// configuration, preserved verbatim from the original source's env var.
func IsTesting() bool {
	v := os.Getenv("ESXSNMP_TESTING")
	return v != "" && v != "0" && v != "false"
}
