package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var identityEnv = []string{"SECFACTS_SEC_EMAIL", "SECFACTS_SEC_USER_AGENT", "SEC_EMAIL"}

func clearIdentityEnv(t *testing.T) {
	t.Helper()
	for _, e := range identityEnv {
		t.Setenv(e, "")
		os.Unsetenv(e)
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearIdentityEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// SEC defaults
	if cfg.SEC.UserAgent != "secfacts/1.0" {
		t.Errorf("SEC.UserAgent: got %q, want %q", cfg.SEC.UserAgent, "secfacts/1.0")
	}
	if cfg.SEC.TickersURL != "https://www.sec.gov/files/company_tickers.json" {
		t.Errorf("SEC.TickersURL: got %q", cfg.SEC.TickersURL)
	}
	if cfg.SEC.DatasetsURL != "https://www.sec.gov/files/dera/data/financial-statement-data-sets" {
		t.Errorf("SEC.DatasetsURL: got %q", cfg.SEC.DatasetsURL)
	}
	if cfg.SEC.MinInterval() != 100*time.Millisecond {
		t.Errorf("SEC.MinInterval: got %v, want 100ms", cfg.SEC.MinInterval())
	}

	// Cache defaults
	if cfg.Cache.DatasetTTL != time.Hour {
		t.Errorf("Cache.DatasetTTL: got %v, want 1h", cfg.Cache.DatasetTTL)
	}
	if cfg.Cache.TickerTTL != time.Hour {
		t.Errorf("Cache.TickerTTL: got %v, want 1h", cfg.Cache.TickerTTL)
	}
	if cfg.Cache.Dir != "" {
		t.Errorf("Cache.Dir: got %q, want empty", cfg.Cache.Dir)
	}

	// Pipeline defaults
	if cfg.Pipeline.FailurePolicy != FailFast {
		t.Errorf("Pipeline.FailurePolicy: got %q, want %q", cfg.Pipeline.FailurePolicy, FailFast)
	}
	if cfg.Pipeline.PrefetchConcurrency != 2 {
		t.Errorf("Pipeline.PrefetchConcurrency: got %d, want 2", cfg.Pipeline.PrefetchConcurrency)
	}
	if cfg.Pipeline.IncludeDimensional {
		t.Error("Pipeline.IncludeDimensional should be false by default")
	}

	// API defaults
	if cfg.API.Addr() != "0.0.0.0:8080" {
		t.Errorf("API.Addr: got %q, want %q", cfg.API.Addr(), "0.0.0.0:8080")
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	clearIdentityEnv(t)

	cfgPath := filepath.Join(t.TempDir(), "test_config.yaml")
	content := []byte(`
sec:
  email: "analyst@example.org"
  min_interval_ms: 250
cache:
  dataset_ttl: 30m
  dir: "/tmp/fsds"
pipeline:
  failure_policy: "best_effort"
  include_dimensional: true
api:
  port: 9090
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.SEC.Email != "analyst@example.org" {
		t.Errorf("SEC.Email: got %q", cfg.SEC.Email)
	}
	if cfg.SEC.MinInterval() != 250*time.Millisecond {
		t.Errorf("SEC.MinInterval: got %v, want 250ms", cfg.SEC.MinInterval())
	}
	if cfg.Cache.DatasetTTL != 30*time.Minute {
		t.Errorf("Cache.DatasetTTL: got %v, want 30m", cfg.Cache.DatasetTTL)
	}
	if cfg.Cache.TickerTTL != time.Hour {
		t.Errorf("Cache.TickerTTL should keep its default, got %v", cfg.Cache.TickerTTL)
	}
	if cfg.Cache.Dir != "/tmp/fsds" {
		t.Errorf("Cache.Dir: got %q", cfg.Cache.Dir)
	}
	if cfg.Pipeline.FailurePolicy != BestEffort {
		t.Errorf("Pipeline.FailurePolicy: got %q, want %q", cfg.Pipeline.FailurePolicy, BestEffort)
	}
	if !cfg.Pipeline.IncludeDimensional {
		t.Error("Pipeline.IncludeDimensional should be true")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "json")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── Validate ──

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SEC:      SECConfig{Email: "a@b.org", MinIntervalMs: 100},
			Cache:    CacheConfig{DatasetTTL: time.Hour},
			Pipeline: PipelineConfig{FailurePolicy: FailFast},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"best effort", func(c *Config) { c.Pipeline.FailurePolicy = BestEffort }, false},
		{"missing email", func(c *Config) { c.SEC.Email = "" }, true},
		{"email without at", func(c *Config) { c.SEC.Email = "nobody" }, true},
		{"unknown policy", func(c *Config) { c.Pipeline.FailurePolicy = "retry" }, true},
		{"negative interval", func(c *Config) { c.SEC.MinIntervalMs = -1 }, true},
		{"zero ttl", func(c *Config) { c.Cache.DatasetTTL = 0 }, true},
	}
	for _, tc := range tests {
		cfg := valid()
		tc.mutate(cfg)
		err := cfg.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		ua, email, want string
	}{
		{"secfacts/1.0", "a@b.org", "secfacts/1.0 a@b.org"},
		{"", "a@b.org", "a@b.org"},
		{"secfacts/1.0", "", "secfacts/1.0"},
	}
	for _, tc := range tests {
		got := SECConfig{UserAgent: tc.ua, Email: tc.email}.Identity()
		if got != tc.want {
			t.Errorf("Identity(%q, %q): got %q, want %q", tc.ua, tc.email, got, tc.want)
		}
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	clearIdentityEnv(t)
	t.Setenv("SECFACTS_SEC_EMAIL", "env@example.org")
	t.Setenv("SECFACTS_SEC_USER_AGENT", "acme-research/2.0")

	cfg := &Config{SEC: SECConfig{Email: "file@example.org"}}
	overrideFromEnv(cfg)

	if cfg.SEC.Email != "env@example.org" {
		t.Errorf("Email: got %q", cfg.SEC.Email)
	}
	if cfg.SEC.UserAgent != "acme-research/2.0" {
		t.Errorf("UserAgent: got %q", cfg.SEC.UserAgent)
	}
}

func TestOverrideFromEnvFallsBackToSECEmail(t *testing.T) {
	clearIdentityEnv(t)
	t.Setenv("SEC_EMAIL", "legacy@example.org")

	cfg := &Config{}
	overrideFromEnv(cfg)
	if cfg.SEC.Email != "legacy@example.org" {
		t.Errorf("Email: got %q, want legacy@example.org", cfg.SEC.Email)
	}

	// A configured email is not replaced by the fallback.
	cfg = &Config{SEC: SECConfig{Email: "from-config@example.org"}}
	overrideFromEnv(cfg)
	if cfg.SEC.Email != "from-config@example.org" {
		t.Errorf("Email should stay as configured, got %q", cfg.SEC.Email)
	}
}

// ── masking ──

func TestMaskKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"12345678", "***"},
		{"123456789", "123...789"},
		{"ABCDEFGHIJKLMNOP", "ABC...NOP"},
	}
	for _, tc := range tests {
		got := maskKey(tc.input)
		if got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"jane.doe@example.org", "jan...@example.org"},
		{"ab@example.org", "***@example.org"},
		{"not-an-email-address", "not...ess"},
	}
	for _, tc := range tests {
		got := maskEmail(tc.input)
		if got != tc.want {
			t.Errorf("maskEmail(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ── CheckIdentity ──

func TestCheckIdentitySources(t *testing.T) {
	clearIdentityEnv(t)

	statuses := CheckIdentity(&Config{})
	if len(statuses) != 2 {
		t.Fatalf("CheckIdentity: got %d statuses, want 2", len(statuses))
	}
	for _, s := range statuses {
		if s.IsSet || s.Source != SourceNone {
			t.Errorf("%s: got set=%v source=%q, want unset", s.Name, s.IsSet, s.Source)
		}
	}

	cfg := &Config{SEC: SECConfig{Email: "jane.doe@example.org", UserAgent: "secfacts/1.0"}}
	statuses = CheckIdentity(cfg)
	if statuses[0].Source != SourceConfig {
		t.Errorf("email source: got %q, want %q", statuses[0].Source, SourceConfig)
	}
	if statuses[0].Masked != "jan...@example.org" {
		t.Errorf("email masked: got %q", statuses[0].Masked)
	}
	if statuses[1].Masked != "secfacts/1.0" {
		t.Errorf("user agent should be shown verbatim, got %q", statuses[1].Masked)
	}

	t.Setenv("SEC_EMAIL", "jane.doe@example.org")
	statuses = CheckIdentity(cfg)
	if statuses[0].Source != SourceEnv {
		t.Errorf("email source with SEC_EMAIL: got %q, want %q", statuses[0].Source, SourceEnv)
	}
}
