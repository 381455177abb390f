package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// memBackend is an in-memory ConfigBackend.
type memBackend struct {
	strs map[string]string
	ints map[string]int
	err  error
}

func newMemBackend() *memBackend {
	return &memBackend{strs: map[string]string{}, ints: map[string]int{}}
}

func (m *memBackend) GetString(key string) (string, bool, error) {
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.strs[key]
	return v, ok, nil
}

func (m *memBackend) GetInt(key string) (int, bool, error) {
	if m.err != nil {
		return 0, false, m.err
	}
	v, ok := m.ints[key]
	return v, ok, nil
}

func (m *memBackend) SetString(key, val string) error { m.strs[key] = val; return nil }
func (m *memBackend) SetInt(key string, val int) error  { m.ints[key] = val; return nil }
func (m *memBackend) Delete(key string) error {
	delete(m.strs, key)
	delete(m.ints, key)
	return nil
}

// clearEnv unsets every PROPEVAL_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if v, ok := os.LookupEnv(s.env); ok {
			os.Unsetenv(s.env)
			t.Cleanup(func() { os.Setenv(s.env, v) })
		}
	}
}

// TestDefaults verifies all default values apply when nothing is configured.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := loadWith(newMemBackend(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"Server.Port", cfg.Server.Port, 4100},
		{"Server.MCPPort", cfg.Server.MCPPort, 4101},
		{"Storage.Driver", cfg.Storage.Driver, "sqlite"},
		{"Filters.MaxPrice", cfg.Filters.MaxPrice, 500000.0},
		{"Filters.MinPopulation", cfg.Filters.MinPopulation, 50000},
		{"Vision.Provider", cfg.Vision.Provider, "mock"},
		{"Vision.Model", cfg.Vision.Model, "gpt-4o-mini"},
		{"Vision.MaxPhotos", cfg.Vision.MaxPhotos, 6},
		{"Council.UseCouncilRules", cfg.Council.UseCouncilRules, true},
		{"Tenancy.Provider", cfg.Tenancy.Provider, "none"},
		{"Insurance.Provider", cfg.Insurance.Provider, "mock"},
		{"Cache.Backend", cfg.Cache.Backend, "memory"},
		{"Cache.TTL", cfg.Cache.TTL, 720 * time.Hour},
		{"Pipeline.VisionRateLimitDelay", cfg.Pipeline.VisionRateLimitDelay, 65 * time.Second},
		{"Pipeline.AnalysisMode", cfg.Pipeline.AnalysisMode, "standard"},
		{"Pipeline.RiskTolerance", cfg.Pipeline.RiskTolerance, "MODERATE"},
		{"Pipeline.ParallelEnrichment", cfg.Pipeline.ParallelEnrichment, false},
		{"Scheduler.Enabled", cfg.Scheduler.Enabled, false},
		{"Scheduler.Hour", cfg.Scheduler.Hour, 7},
		{"Log.Level", cfg.Log.Level, "info"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

// TestBackendValues verifies typed values are read from the backend.
func TestBackendValues(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.ints["server.port"] = 5000
	b.strs["filters.max_price"] = "650000"
	b.strs["pipeline.vision_rate_limit_delay"] = "10s"
	b.strs["pipeline.parallel_enrichment"] = "true"
	b.strs["pipeline.market_trend"] = "HEATING"
	b.strs["storage.data_dir"] = "/tmp/propeval-test"

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Filters.MaxPrice != 650000 {
		t.Errorf("Filters.MaxPrice = %v, want 650000", cfg.Filters.MaxPrice)
	}
	if cfg.Pipeline.VisionRateLimitDelay != 10*time.Second {
		t.Errorf("VisionRateLimitDelay = %v, want 10s", cfg.Pipeline.VisionRateLimitDelay)
	}
	if !cfg.Pipeline.ParallelEnrichment {
		t.Error("ParallelEnrichment = false, want true")
	}
	if cfg.Pipeline.MarketTrend != "HEATING" {
		t.Errorf("MarketTrend = %q", cfg.Pipeline.MarketTrend)
	}
	if cfg.Storage.DataDir != "/tmp/propeval-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestBackendUnparseableKeepsDefault(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.strs["cache.ttl"] = "forever"
	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.TTL != 720*time.Hour {
		t.Errorf("Cache.TTL = %v, want default", cfg.Cache.TTL)
	}
}

func TestBackendError(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.err = errors.New("disk on fire")
	if _, err := loadWith(b, ""); err == nil {
		t.Fatal("expected backend error to surface")
	}
}

// TestEnvOverride verifies that environment variables override backend values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.strs["vision.model"] = "file-model"
	t.Setenv("PROPEVAL_VISION_MODEL", "env-model")
	t.Setenv("PROPEVAL_SCHEDULER_ENABLED", "true")
	t.Setenv("PROPEVAL_FILTERS_MIN_POPULATION", "not-a-number")

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Vision.Model != "env-model" {
		t.Errorf("Vision.Model = %q, want env-model", cfg.Vision.Model)
	}
	if !cfg.Scheduler.Enabled {
		t.Error("Scheduler.Enabled = false, want true")
	}
	if cfg.Filters.MinPopulation != 50000 {
		t.Errorf("MinPopulation = %d, want default after bad env value", cfg.Filters.MinPopulation)
	}
}

func TestOllamaVisionDefaults(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.strs["vision.provider"] = "ollama"

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Vision.Model != "llava" || cfg.Vision.BaseURL != "http://localhost:11434" {
		t.Errorf("Vision = %+v, want local Ollama defaults", cfg.Vision)
	}

	b.strs["vision.model"] = "bakllava"
	cfg, err = loadWith(b, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vision.Model != "bakllava" {
		t.Errorf("Vision.Model = %q, explicit model should be kept", cfg.Vision.Model)
	}
}

// TestSecretsAreEnvOnly verifies secrets in the file backend are ignored.
func TestSecretsAreEnvOnly(t *testing.T) {
	clearEnv(t)
	b := newMemBackend()
	b.strs["server.api_token"] = "from-file"

	cfg, err := loadWith(b, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.APIToken != "" {
		t.Errorf("APIToken = %q, want empty", cfg.Server.APIToken)
	}

	t.Setenv("PROPEVAL_API_TOKEN", "from-env")
	cfg, err = loadWith(b, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.APIToken != "from-env" {
		t.Errorf("APIToken = %q, want from-env", cfg.Server.APIToken)
	}
}

// TestDotEnvFile verifies .env values apply but never beat the real environment.
func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "PROPEVAL_INSURANCE_INSURER=DotEnv Mutual\nPROPEVAL_LOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROPEVAL_LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("PROPEVAL_INSURANCE_INSURER") })

	cfg, err := loadWith(newMemBackend(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Insurance.Insurer != "DotEnv Mutual" {
		t.Errorf("Insurer = %q, want value from .env", cfg.Insurance.Insurer)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want the real environment to win", cfg.Log.Level)
	}
}

func TestMissingDotEnvIsIgnored(t *testing.T) {
	clearEnv(t)
	if _, err := loadWith(newMemBackend(), filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"openai without key", func(c *Config) { c.Vision.Provider = "openai" }, "OpenAI API key"},
		{"openai with key", func(c *Config) { c.Vision.Provider = "openai"; c.Vision.APIKey = "sk" }, ""},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "postgres_dsn"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, "storage.driver"},
		{"redis without url", func(c *Config) { c.Cache.Backend = "redis" }, "redis_url"},
		{"bad mode", func(c *Config) { c.Pipeline.AnalysisMode = "deep" }, "analysis_mode"},
		{"bad risk", func(c *Config) { c.Pipeline.RiskTolerance = "YOLO" }, "risk_tolerance"},
		{"bad trend", func(c *Config) { c.Pipeline.MarketTrend = "SIDEWAYS" }, "market_trend"},
		{"tenancy api without url", func(c *Config) { c.Tenancy.Provider = "api" }, "tenancy.base_url"},
		{"bad schedule", func(c *Config) { c.Scheduler.Hour = 24 }, "scheduler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetKey(t *testing.T) {
	b := newMemBackend()
	tests := []struct {
		key, value string
		wantErr    bool
	}{
		{"vision.model", "gpt-4o", false},
		{"server.port", "4200", false},
		{"server.port", "abc", true},
		{"pipeline.vision_rate_limit_delay", "30s", false},
		{"pipeline.vision_rate_limit_delay", "soon", true},
		{"scheduler.enabled", "yes please", true},
		{"vision.openai_api_key", "sk-123", true},
		{"no.such.key", "x", true},
	}
	for _, tt := range tests {
		err := setKey(b, tt.key, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("setKey(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
		}
	}
	if b.ints["server.port"] != 4200 {
		t.Errorf("server.port = %d, want 4200", b.ints["server.port"])
	}
	if b.strs["pipeline.vision_rate_limit_delay"] != "30s" {
		t.Errorf("delay = %q, want 30s", b.strs["pipeline.vision_rate_limit_delay"])
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "propeval", "config.json")
	b := newFileBackend(path)
	if err := setKey(b, "server.port", "4300"); err != nil {
		t.Fatal(err)
	}
	if err := setKey(b, "pipeline.analysis_mode", "openai_deep"); err != nil {
		t.Fatal(err)
	}

	reloaded := newFileBackend(path)
	if v, ok, err := reloaded.GetInt("server.port"); err != nil || !ok || v != 4300 {
		t.Errorf("GetInt(server.port) = %d, %v, %v", v, ok, err)
	}
	if v, ok, _ := reloaded.GetString("pipeline.analysis_mode"); !ok || v != "openai_deep" {
		t.Errorf("GetString(pipeline.analysis_mode) = %q, %v", v, ok)
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Vision.APIKey = "sk-secret"
	for _, info := range ShowAll(cfg) {
		if strings.Contains(info.Value, "sk-secret") {
			t.Fatalf("secret leaked in %s", info.Key)
		}
		if info.Key == "vision.openai_api_key" && info.Value != "********" {
			t.Errorf("masked value = %q", info.Value)
		}
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		for _, s := range specs {
			if s.key == k && s.secret {
				t.Errorf("ValidKeys includes secret %q", k)
			}
		}
	}
}
