package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "database.path", typ: kString, env: "DBCHECK_DATABASE_PATH",
		apply:   func(cfg *Config, v any) { cfg.Database.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Database.Path },
	},
	{
		key: "report.profile", typ: kString, env: "DBCHECK_REPORT_PROFILE",
		apply:   func(cfg *Config, v any) { cfg.Report.Profile = v.(string) },
		extract: func(cfg Config) any { return cfg.Report.Profile },
	},
	{
		key: "report.top_types", typ: kInt, env: "DBCHECK_REPORT_TOP_TYPES",
		apply:   func(cfg *Config, v any) { cfg.Report.TopTypes = v.(int) },
		extract: func(cfg Config) any { return cfg.Report.TopTypes },
	},
	{
		key: "report.recent_limit", typ: kInt, env: "DBCHECK_REPORT_RECENT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Report.RecentLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Report.RecentLimit },
	},
	{
		key: "report.preview_bytes", typ: kInt, env: "DBCHECK_REPORT_PREVIEW_BYTES",
		apply:   func(cfg *Config, v any) { cfg.Report.PreviewBytes = v.(int) },
		extract: func(cfg Config) any { return cfg.Report.PreviewBytes },
	},
	{
		key: "server.port", typ: kInt, env: "DBCHECK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "DBCHECK_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.token", typ: kString, env: "DBCHECK_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "log.level", typ: kString, env: "DBCHECK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}

func (c Config) validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Report.TopTypes <= 0 {
		return fmt.Errorf("report.top_types must be positive, got %d", c.Report.TopTypes)
	}
	if c.Report.RecentLimit <= 0 {
		return fmt.Errorf("report.recent_limit must be positive, got %d", c.Report.RecentLimit)
	}
	if c.Report.PreviewBytes <= 0 {
		return fmt.Errorf("report.preview_bytes must be positive, got %d", c.Report.PreviewBytes)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxConns <= 0 {
		return fmt.Errorf("server.max_conns must be positive, got %d", c.Server.MaxConns)
	}
	return nil
}
