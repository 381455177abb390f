package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

// specs is the single list of configuration keys. Secrets are read from the
// environment only and never written to or shown from the file backend.
var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PROPEVAL_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "PROPEVAL_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "server.api_token", typ: kString, env: "PROPEVAL_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.driver", typ: kString, env: "PROPEVAL_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PROPEVAL_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.postgres_dsn", typ: kString, env: "PROPEVAL_STORAGE_POSTGRES_DSN",
		apply:   func(cfg *Config, v any) { cfg.Storage.PostgresDSN = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.PostgresDSN },
	},
	{
		key: "filters.max_price", typ: kFloat, env: "PROPEVAL_FILTERS_MAX_PRICE",
		apply:   func(cfg *Config, v any) { cfg.Filters.MaxPrice = v.(float64) },
		extract: func(cfg Config) any { return cfg.Filters.MaxPrice },
	},
	{
		key: "filters.min_population", typ: kInt, env: "PROPEVAL_FILTERS_MIN_POPULATION",
		apply:   func(cfg *Config, v any) { cfg.Filters.MinPopulation = v.(int) },
		extract: func(cfg Config) any { return cfg.Filters.MinPopulation },
	},
	{
		key: "vision.provider", typ: kString, env: "PROPEVAL_VISION_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Vision.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.Provider },
	},
	{
		key: "vision.model", typ: kString, env: "PROPEVAL_VISION_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Vision.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.Model },
	},
	{
		key: "vision.base_url", typ: kString, env: "PROPEVAL_VISION_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Vision.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.BaseURL },
	},
	{
		key: "vision.max_photos", typ: kInt, env: "PROPEVAL_VISION_MAX_PHOTOS",
		apply:   func(cfg *Config, v any) { cfg.Vision.MaxPhotos = v.(int) },
		extract: func(cfg Config) any { return cfg.Vision.MaxPhotos },
	},
	{
		key: "vision.openai_api_key", typ: kString, env: "PROPEVAL_OPENAI_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Vision.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Vision.APIKey },
	},
	{
		key: "council.use_council_rules", typ: kBool, env: "PROPEVAL_COUNCIL_USE_COUNCIL_RULES",
		apply:   func(cfg *Config, v any) { cfg.Council.UseCouncilRules = v.(bool) },
		extract: func(cfg Config) any { return cfg.Council.UseCouncilRules },
	},
	{
		key: "council.registry_path", typ: kString, env: "PROPEVAL_COUNCIL_REGISTRY_PATH",
		apply:   func(cfg *Config, v any) { cfg.Council.RegistryPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Council.RegistryPath },
	},
	{
		key: "council.google_maps_api_key", typ: kString, env: "PROPEVAL_GOOGLE_MAPS_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Council.GoogleMapsAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Council.GoogleMapsAPIKey },
	},
	{
		key: "tenancy.provider", typ: kString, env: "PROPEVAL_TENANCY_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Tenancy.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Tenancy.Provider },
	},
	{
		key: "tenancy.base_url", typ: kString, env: "PROPEVAL_TENANCY_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Tenancy.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Tenancy.BaseURL },
	},
	{
		key: "tenancy.api_key", typ: kString, env: "PROPEVAL_TENANCY_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Tenancy.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Tenancy.APIKey },
	},
	{
		key: "insurance.provider", typ: kString, env: "PROPEVAL_INSURANCE_PROVIDER",
		apply:   func(cfg *Config, v any) { cfg.Insurance.Provider = v.(string) },
		extract: func(cfg Config) any { return cfg.Insurance.Provider },
	},
	{
		key: "insurance.base_url", typ: kString, env: "PROPEVAL_INSURANCE_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Insurance.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Insurance.BaseURL },
	},
	{
		key: "insurance.insurer", typ: kString, env: "PROPEVAL_INSURANCE_INSURER",
		apply:   func(cfg *Config, v any) { cfg.Insurance.Insurer = v.(string) },
		extract: func(cfg Config) any { return cfg.Insurance.Insurer },
	},
	{
		key: "insurance.api_key", typ: kString, env: "PROPEVAL_INSURANCE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Insurance.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Insurance.APIKey },
	},
	{
		key: "cache.backend", typ: kString, env: "PROPEVAL_CACHE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Cache.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.Backend },
	},
	{
		key: "cache.redis_url", typ: kString, env: "PROPEVAL_CACHE_REDIS_URL",
		apply:   func(cfg *Config, v any) { cfg.Cache.RedisURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Cache.RedisURL },
	},
	{
		key: "cache.ttl", typ: kDuration, env: "PROPEVAL_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Cache.TTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Cache.TTL },
	},
	{
		key: "pipeline.vision_rate_limit_delay", typ: kDuration, env: "PROPEVAL_PIPELINE_VISION_RATE_LIMIT_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.VisionRateLimitDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.VisionRateLimitDelay },
	},
	{
		key: "pipeline.analysis_mode", typ: kString, env: "PROPEVAL_PIPELINE_ANALYSIS_MODE",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.AnalysisMode = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.AnalysisMode },
	},
	{
		key: "pipeline.risk_tolerance", typ: kString, env: "PROPEVAL_PIPELINE_RISK_TOLERANCE",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.RiskTolerance = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.RiskTolerance },
	},
	{
		key: "pipeline.market_trend", typ: kString, env: "PROPEVAL_PIPELINE_MARKET_TREND",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.MarketTrend = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.MarketTrend },
	},
	{
		key: "pipeline.parallel_enrichment", typ: kBool, env: "PROPEVAL_PIPELINE_PARALLEL_ENRICHMENT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.ParallelEnrichment = v.(bool) },
		extract: func(cfg Config) any { return cfg.Pipeline.ParallelEnrichment },
	},
	{
		key: "scheduler.enabled", typ: kBool, env: "PROPEVAL_SCHEDULER_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Scheduler.Enabled },
	},
	{
		key: "scheduler.hour", typ: kInt, env: "PROPEVAL_SCHEDULER_HOUR",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.Hour = v.(int) },
		extract: func(cfg Config) any { return cfg.Scheduler.Hour },
	},
	{
		key: "scheduler.minute", typ: kInt, env: "PROPEVAL_SCHEDULER_MINUTE",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.Minute = v.(int) },
		extract: func(cfg Config) any { return cfg.Scheduler.Minute },
	},
	{
		key: "log.level", typ: kString, env: "PROPEVAL_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts raw text to the Go type a key expects.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

func typeName(typ keyType) string {
	switch typ {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kFloat:
		return "float"
	case kDuration:
		return "duration"
	default:
		return "string"
	}
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
		default:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from config key %s=%q: %v. Using default value.\n", typeName(s.typ), s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
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
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", typeName(s.typ), s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
