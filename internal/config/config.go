package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultVisionModel = "gpt-4o-mini"
	defaultVisionURL   = "https://api.openai.com/v1"
	ollamaVisionModel  = "llava"
	ollamaVisionURL    = "http://localhost:11434"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Filters   FiltersConfig
	Vision    VisionConfig
	Council   CouncilConfig
	Tenancy   TenancyConfig
	Insurance InsuranceConfig
	Cache     CacheConfig
	Pipeline  PipelineConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port     int
	MCPPort  int
	APIToken string
}

type StorageConfig struct {
	Driver      string // "sqlite" or "postgres"
	DataDir     string
	PostgresDSN string
}

type FiltersConfig struct {
	MaxPrice      float64
	MinPopulation int
}

type VisionConfig struct {
	Provider  string // "mock", "openai" or "ollama"
	Model     string
	BaseURL   string
	APIKey    string
	MaxPhotos int
}

type CouncilConfig struct {
	UseCouncilRules  bool
	RegistryPath     string
	GoogleMapsAPIKey string
}

type TenancyConfig struct {
	Provider string // "none" or "api"
	BaseURL  string
	APIKey   string
}

type InsuranceConfig struct {
	Provider string // "mock" or "api"
	BaseURL  string
	APIKey   string
	Insurer  string
}

type CacheConfig struct {
	Backend  string // "memory" or "redis"
	RedisURL string
	TTL      time.Duration
}

type PipelineConfig struct {
	VisionRateLimitDelay time.Duration
	AnalysisMode         string
	RiskTolerance        string
	MarketTrend          string
	ParallelEnrichment   bool
}

type SchedulerConfig struct {
	Enabled bool
	Hour    int
	Minute  int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4100,
			MCPPort: 4101,
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: defaultDataDir(),
		},
		Filters: FiltersConfig{
			MaxPrice:      500000,
			MinPopulation: 50000,
		},
		Vision: VisionConfig{
			Provider:  "mock",
			Model:     defaultVisionModel,
			BaseURL:   defaultVisionURL,
			MaxPhotos: 6,
		},
		Council: CouncilConfig{
			UseCouncilRules: true,
		},
		Tenancy: TenancyConfig{
			Provider: "none",
		},
		Insurance: InsuranceConfig{
			Provider: "mock",
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     720 * time.Hour,
		},
		Pipeline: PipelineConfig{
			VisionRateLimitDelay: 65 * time.Second,
			AnalysisMode:         "standard",
			RiskTolerance:        "MODERATE",
		},
		Scheduler: SchedulerConfig{
			Hour: 7,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration, lowest precedence first, from defaults, the JSON
// file at $XDG_CONFIG_HOME/propeval/config.json, a .env file in the working
// directory, and PROPEVAL_* environment variables. Secrets are only read
// from the environment.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), ".env")
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	// godotenv.Load leaves variables that are already set untouched.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read %s: %v. Ignoring it.\n", envFile, err)
		}
	}
	applyEnvOverrides(&cfg)

	// The OpenAI defaults make no sense against a local Ollama server.
	if cfg.Vision.Provider == "ollama" {
		if cfg.Vision.Model == defaultVisionModel {
			cfg.Vision.Model = ollamaVisionModel
		}
		if cfg.Vision.BaseURL == defaultVisionURL {
			cfg.Vision.BaseURL = ollamaVisionURL
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work at startup.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.driver is postgres but storage.postgres_dsn is empty")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q (want sqlite or postgres)", c.Storage.Driver)
	}

	switch c.Vision.Provider {
	case "mock", "ollama":
	case "openai":
		if c.Vision.APIKey == "" {
			return fmt.Errorf("missing required config: OpenAI API key for vision.provider=openai. " +
				"Set it via environment variable PROPEVAL_OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown vision.provider %q (want mock, openai or ollama)", c.Vision.Provider)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.backend is redis but cache.redis_url is empty")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q (want memory or redis)", c.Cache.Backend)
	}

	switch c.Pipeline.AnalysisMode {
	case "standard", "openai_deep":
	default:
		return fmt.Errorf("unknown pipeline.analysis_mode %q (want standard or openai_deep)", c.Pipeline.AnalysisMode)
	}
	switch c.Pipeline.RiskTolerance {
	case "LOW", "MODERATE", "HIGH":
	default:
		return fmt.Errorf("unknown pipeline.risk_tolerance %q (want LOW, MODERATE or HIGH)", c.Pipeline.RiskTolerance)
	}
	switch c.Pipeline.MarketTrend {
	case "", "HEATING", "STABLE", "COOLING":
	default:
		return fmt.Errorf("unknown pipeline.market_trend %q (want HEATING, STABLE or COOLING)", c.Pipeline.MarketTrend)
	}

	if c.Tenancy.Provider == "api" && c.Tenancy.BaseURL == "" {
		return fmt.Errorf("tenancy.provider is api but tenancy.base_url is empty")
	}
	if c.Insurance.Provider == "api" && c.Insurance.BaseURL == "" {
		return fmt.Errorf("insurance.provider is api but insurance.base_url is empty")
	}

	if c.Scheduler.Hour < 0 || c.Scheduler.Hour > 23 || c.Scheduler.Minute < 0 || c.Scheduler.Minute > 59 {
		return fmt.Errorf("scheduler time %02d:%02d is not a valid time of day", c.Scheduler.Hour, c.Scheduler.Minute)
	}
	return nil
}
