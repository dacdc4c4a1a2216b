package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/budget"
	"github.com/starford/ansuz/internal/discovery"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/search"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
)

// Store drivers.
const (
	StoreDriverFS     = "fs"
	StoreDriverSQLite = "sqlite"
)

// Token estimators.
const (
	EstimatorChars    = "chars"
	EstimatorTiktoken = "tiktoken"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	Store     StoreConfig       `yaml:"store"`
	Auth      AuthConfig        `yaml:"auth"`
	Discovery DiscoveryConfig   `yaml:"discovery"`
	Budget    BudgetConfig      `yaml:"budget"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return fmt.Errorf("discovery: %w", err)
	}
	if err := c.Budget.Validate(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	return c.Watch.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatConsole)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// StoreConfig selects where discovery reads nodes from.
//
// Driver "fs" reads the vault directly. Driver "sqlite" reads a SQLite
// copy of the vault that is synced at startup and after vault changes.
type StoreConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = StoreDriverFS
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.In(StoreDriverFS, StoreDriverSQLite)),
		validation.Field(&c.SQLitePath, validation.When(c.Driver == StoreDriverSQLite, validation.Required)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// DiscoveryConfig holds search and graph scoring parameters.
type DiscoveryConfig struct {
	TitleWeight    int `yaml:"title_weight"`
	BodyWeight     int `yaml:"body_weight"`
	TagWeight      int `yaml:"tag_weight"`
	LinkScore      int `yaml:"link_score"`
	BacklinkScore  int `yaml:"backlink_score"`
	FragmentRadius int `yaml:"fragment_radius"`
	MaxFragments   int `yaml:"max_fragments"`
	MaxResults     int `yaml:"max_results"`
	MaxRelated     int `yaml:"max_related"`
	MaxDepth       int `yaml:"max_depth"`
	SearchPreview  int `yaml:"search_preview_chars"`
	RelatedPreview int `yaml:"related_preview_chars"`
}

// Validate validates the discovery configuration.
func (c *DiscoveryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TitleWeight, validation.Min(0)),
		validation.Field(&c.BodyWeight, validation.Min(0)),
		validation.Field(&c.TagWeight, validation.Min(0)),
		validation.Field(&c.LinkScore, validation.Min(0)),
		validation.Field(&c.BacklinkScore, validation.Min(0)),
		validation.Field(&c.FragmentRadius, validation.Min(0)),
		validation.Field(&c.MaxFragments, validation.Min(0)),
		validation.Field(&c.MaxResults, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxRelated, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxDepth, validation.Min(0)),
		validation.Field(&c.SearchPreview, validation.Min(0)),
		validation.Field(&c.RelatedPreview, validation.Min(0)),
	)
}

// BudgetConfig controls token-budgeted paging.
type BudgetConfig struct {
	Ceiling   int     `yaml:"ceiling"`
	Estimator string  `yaml:"estimator"`
	TextChars float64 `yaml:"text_chars_per_token"`
	CodeChars float64 `yaml:"code_chars_per_token"`
	JSONChars float64 `yaml:"json_chars_per_token"`
	Encoding  string  `yaml:"encoding"`
}

// Validate validates the budget configuration.
func (c *BudgetConfig) Validate() error {
	if c.Estimator == "" {
		c.Estimator = EstimatorChars
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Ceiling, validation.Required, validation.Min(1), validation.Max(budget.MaxTokens)),
		validation.Field(&c.Estimator, validation.In(EstimatorChars, EstimatorTiktoken)),
		validation.Field(&c.TextChars, validation.When(c.Estimator == EstimatorChars, validation.Required, validation.Min(0.1))),
		validation.Field(&c.CodeChars, validation.When(c.Estimator == EstimatorChars, validation.Required, validation.Min(0.1))),
		validation.Field(&c.JSONChars, validation.When(c.Estimator == EstimatorChars, validation.Required, validation.Min(0.1))),
		validation.Field(&c.Encoding, validation.When(c.Estimator == EstimatorTiktoken, validation.Required)),
	)
}

// WatchConfig controls the vault watcher and change events.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Throttle time.Duration `yaml:"throttle"`
	Settle   time.Duration `yaml:"settle"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
		validation.Field(&c.Settle, validation.Min(time.Duration(0))),
	)
}

// DiscoveryServiceConfig maps the configuration onto the discovery engine.
func (c *Config) DiscoveryServiceConfig() discovery.Config {
	d := c.Discovery
	return discovery.Config{
		Search: search.Config{
			TitleWeight:       d.TitleWeight,
			BodyWeight:        d.BodyWeight,
			FragmentRadius:    d.FragmentRadius,
			MaxFragments:      d.MaxFragments,
			PreviewChars:      d.SearchPreview,
			DefaultMaxResults: d.MaxResults,
		},
		Graph: graph.Config{
			LinkScore:         d.LinkScore,
			BacklinkScore:     d.BacklinkScore,
			TagWeight:         d.TagWeight,
			DefaultMaxRelated: d.MaxRelated,
			MaxDepth:          d.MaxDepth,
			PreviewChars:      d.RelatedPreview,
		},
		Ceiling: c.Budget.Ceiling,
	}
}

// NewEstimator builds the configured token estimator.
func (c *BudgetConfig) NewEstimator() (budget.Estimator, error) {
	if c.Estimator == EstimatorTiktoken {
		tk, err := budget.NewTiktoken(c.Encoding)
		if err != nil {
			return nil, err
		}
		return tk, nil
	}
	return budget.CharRatio{
		TextChars: c.TextChars,
		CodeChars: c.CodeChars,
		JSONChars: c.JSONChars,
	}, nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	sc := search.DefaultConfig()
	gc := graph.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Store: StoreConfig{
			Driver:     StoreDriverFS,
			SQLitePath: "./ansuz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Discovery: DiscoveryConfig{
			TitleWeight:    sc.TitleWeight,
			BodyWeight:     sc.BodyWeight,
			TagWeight:      gc.TagWeight,
			LinkScore:      gc.LinkScore,
			BacklinkScore:  gc.BacklinkScore,
			FragmentRadius: sc.FragmentRadius,
			MaxFragments:   sc.MaxFragments,
			MaxResults:     sc.DefaultMaxResults,
			MaxRelated:     gc.DefaultMaxRelated,
			MaxDepth:       gc.MaxDepth,
			SearchPreview:  sc.PreviewChars,
			RelatedPreview: gc.PreviewChars,
		},
		Budget: BudgetConfig{
			Ceiling:   budget.DefaultCeiling,
			Estimator: EstimatorChars,
			TextChars: budget.DefaultTextChars,
			CodeChars: budget.DefaultCodeChars,
			JSONChars: budget.DefaultJSONChars,
			Encoding:  "cl100k_base",
		},
		Watch: WatchConfig{
			Enabled:  true,
			Throttle: 2 * time.Second,
			Settle:   200 * time.Millisecond,
		},
	}
}
