package config

import (
	"fmt"
	"os"
	"strings"
)

// LoadFromEnv layers environment variable overrides onto cfg, the same
// env-over-defaults idiom the teacher's config package uses.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("ESPERSISTD_URI"); v != "" {
		cfg.EspersistdURI = v
	}

	if v := os.Getenv("ESPERSISTD_DB_URI"); v != "" {
		cfg.DBURI = v
	}

	if v := os.Getenv("ESPERSISTD_TSDB_ROOT"); v != "" {
		cfg.TSDBRoot = v
	}

	if v := os.Getenv("ESPERSISTD_STREAMING_LOG_DIR"); v != "" {
		cfg.StreamingLogDir = v
	}

	if v := os.Getenv("ESPERSISTD_PID_DIR"); v != "" {
		cfg.PIDDir = v
	}

	if v := os.Getenv("ESPERSISTD_STATS_ES_URI"); v != "" {
		cfg.StatsESURI = v
	}

	if v := os.Getenv("ESPERSISTD_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	if v := os.Getenv("ESPERSISTD_INTAKE_ADDR"); v != "" {
		cfg.IntakeAddr = v
	}

	if v := os.Getenv("ESPERSISTD_SYSLOG_FACILITY"); v != "" {
		cfg.SyslogFacility = v
	}

	if v := os.Getenv("ESPERSISTD_SYSLOG_PRIORITY"); v != "" {
		cfg.SyslogPriority = v
	}

	if v := os.Getenv("ESPERSISTD_EPOLL_PERSIST_URI"); v != "" {
		cfg.EspollPersistURI = ParseSinkList(v)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if IsTesting() {
		if cfg.DBURI == "" || cfg.DBURI == DefaultConfig().DBURI {
			cfg.DBURI = "postgres://espersistd@127.0.0.1:5432/espersistd_test"
		}
		if cfg.EspersistdURI == "" || cfg.EspersistdURI == DefaultConfig().EspersistdURI {
			cfg.EspersistdURI = "mem://"
		}
	}

	return nil
}

// ParseSinkList parses the comma-separated "kind:uri" list that backs
// espoll_persist_uri, e.g. "tsdb:tcp://host:port,history:postgres://...".
func ParseSinkList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	sinks := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sinks = append(sinks, p)
	}
	return sinks
}

// ParseSink splits one "kind:uri" sink spec into its two parts.
func ParseSink(spec string) (kind, uri string, err error) {
	idx := strings.Index(spec, ":")
	if idx <= 0 {
		return "", "", fmt.Errorf("config: malformed sink spec %q, want kind:uri", spec)
	}
	return spec[:idx], spec[idx+1:], nil
}
