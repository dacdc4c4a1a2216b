package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/ansuz/internal/budget"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	dc := cfg.DiscoveryServiceConfig()
	if dc.Search.TitleWeight != 10 || dc.Graph.LinkScore != 100 || dc.Graph.BacklinkScore != 90 || dc.Graph.TagWeight != 20 {
		t.Errorf("unexpected weights: %+v", dc)
	}
	if dc.Ceiling != budget.DefaultCeiling {
		t.Errorf("ceiling = %d, want %d", dc.Ceiling, budget.DefaultCeiling)
	}
}

func TestFullConfig_SectionValidationCalled(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"auth", func(c *Config) { c.Auth.Mode, c.Auth.Token = "token", "" }},
		{"log format", func(c *Config) { c.App.LogFormat = "xml" }},
		{"store driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"sqlite path", func(c *Config) { c.Store.Driver, c.Store.SQLitePath = StoreDriverSQLite, "" }},
		{"negative weight", func(c *Config) { c.Discovery.TitleWeight = -1 }},
		{"zero max results", func(c *Config) { c.Discovery.MaxResults = 0 }},
		{"ceiling over max", func(c *Config) { c.Budget.Ceiling = budget.MaxTokens + 1 }},
		{"estimator", func(c *Config) { c.Budget.Estimator = "guess" }},
		{"tiktoken encoding", func(c *Config) { c.Budget.Estimator, c.Budget.Encoding = EstimatorTiktoken, "" }},
		{"negative throttle", func(c *Config) { c.Watch.Throttle = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBudgetConfig_NewEstimator(t *testing.T) {
	cfg := NewDefaultConfig().Budget
	est, err := cfg.NewEstimator()
	if err != nil {
		t.Fatal(err)
	}
	if got := est.Estimate(strings.Repeat("a", 40)); got != 10 {
		t.Errorf("char estimate = %d, want 10", got)
	}

	cfg.Estimator, cfg.Encoding = EstimatorTiktoken, "no-such-encoding"
	if _, err := cfg.NewEstimator(); err == nil {
		t.Error("expected error for unknown encoding")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("ANSUZ_TEST_TOKEN", "s3cret")
	data := `
app:
  log_level: debug
  log_format: console
  http:
    port: 9090
vault:
  path: /srv/notes
store:
  driver: sqlite
  sqlite_path: /srv/ansuz.db
auth:
  mode: token
  token: ${ANSUZ_TEST_TOKEN}
watch:
  enabled: false
  throttle: 5s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogFormat != LogFormatConsole || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Store.Driver != StoreDriverSQLite || cfg.Auth.Token != "s3cret" {
		t.Errorf("store/auth = %+v %+v", cfg.Store, cfg.Auth)
	}
	if cfg.Watch.Enabled || cfg.Watch.Throttle != 5*time.Second {
		t.Errorf("watch = %+v", cfg.Watch)
	}
	if cfg.Discovery.MaxResults != 50 {
		t.Errorf("unset section should keep defaults, got %+v", cfg.Discovery)
	}
}
