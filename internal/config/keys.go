package config

import (
	"fmt"
	"os"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
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
		key: "catalog.base_url", typ: kString, env: "PROBLEMS_CATALOG_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Catalog.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.BaseURL },
	},
	{
		key: "catalog.path", typ: kString, env: "PROBLEMS_CATALOG_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.Path },
	},
	{
		key: "analysis.base_url", typ: kString, env: "PROBLEMS_ANALYSIS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Analysis.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.BaseURL },
	},
	{
		key: "analysis.path", typ: kString, env: "PROBLEMS_ANALYSIS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Analysis.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Analysis.Path },
	},
	{
		key: "service.api_key", typ: kString, env: "PROBLEMS_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Service.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Service.APIKey },
	},
	{
		key: "service.timeout", typ: kString, env: "PROBLEMS_SERVICE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Service.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Service.Timeout },
	},
	{
		key: "server.port", typ: kInt, env: "PROBLEMS_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.max_conns", typ: kInt, env: "PROBLEMS_SERVER_MAX_CONNS",
		apply:   func(cfg *Config, v any) { cfg.Server.MaxConns = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MaxConns },
	},
	{
		key: "server.allowed_origins", typ: kString, env: "PROBLEMS_SERVER_ALLOWED_ORIGINS",
		apply:   func(cfg *Config, v any) { cfg.Server.AllowedOrigins = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AllowedOrigins },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PROBLEMS_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "history.enabled", typ: kBool, env: "PROBLEMS_HISTORY_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.History.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.History.Enabled },
	},
	{
		key: "log.level", typ: kString, env: "PROBLEMS_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "PROBLEMS_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		v, ok, err := b.Lookup(s.key, s.typ)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if ok {
			s.apply(cfg, v)
		}
	}
	return nil
}

// applyEnvOverrides lets PROBLEMS_* variables win over stored settings.
// A malformed value is reported and skipped.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := coerce(s.env, s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] %v. Using default value.\n", err)
			continue
		}
		s.apply(cfg, v)
	}
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}
