// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when a field is unset.
const (
	DefaultFetchLimit     = 50
	DefaultRequestTimeout = 20
	DefaultPollInterval   = 60
	DefaultCash           = 100000.0
	DefaultQuoteBaseURL   = "https://query1.finance.yahoo.com"
)

// Config represents the complete configuration structure
type Config struct {
	App       AppConfig       `yaml:"app"`
	Trading   TradingConfig   `yaml:"trading"`
	Quotes    QuotesConfig    `yaml:"quotes"`
	Discord   DiscordConfig   `yaml:"discord"`
	GitHub    GitHubConfig    `yaml:"github"`
	State     StateConfig     `yaml:"state"`
	System    SystemConfig    `yaml:"system"`
	Timing    TimingConfig    `yaml:"timing"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Source  string `yaml:"source" validate:"required,oneof=discord github"`
	Mode    string `yaml:"mode" validate:"oneof=fills mark both"`
	DataDir string `yaml:"data_dir"`
}

// TradingConfig contains trading parameters
type TradingConfig struct {
	DefaultCash   float64 `yaml:"default_cash"`
	CommandSigil  string  `yaml:"command_sigil"`
	AllowlistFile string  `yaml:"allowlist_file"`
	PortfolioFile string  `yaml:"portfolio_file"`
	LedgerFile    string  `yaml:"ledger_file"`
}

// QuotesConfig contains quote provider settings
type QuotesConfig struct {
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DiscordConfig contains channel transport credentials
type DiscordConfig struct {
	BotToken   Secret `yaml:"bot_token"`
	ChannelID  string `yaml:"channel_id"`
	WebhookURL Secret `yaml:"webhook_url"`
	BaseURL    string `yaml:"base_url"`
	FetchLimit int    `yaml:"fetch_limit"`
}

// GitHubConfig contains issue transport credentials
type GitHubConfig struct {
	Token      Secret `yaml:"token"`
	Repository string `yaml:"repository"` // owner/repo
	OrderLabel string `yaml:"order_label"`
	BaseURL    string `yaml:"base_url"`
}

// StateConfig selects the cursor state backend
type StateConfig struct {
	Backend string `yaml:"backend" validate:"oneof=json sqlite"`
	Path    string `yaml:"path"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// TimingConfig contains timing-related settings
type TimingConfig struct {
	PollIntervalSeconds   int `yaml:"poll_interval_seconds" validate:"min=1,max=3600"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" validate:"min=1,max=300"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration and fills
// in defaults for optional fields
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateAppConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	if err := c.validateTradingConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	if err := c.validateSourceConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	if err := c.validateStateConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	if err := c.validateSystemConfig(); err != nil {
		errs = append(errs, err.Error())
	}

	c.applyTimingDefaults()

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	validSources := []string{"discord", "github"}
	if !contains(validSources, c.App.Source) {
		return ValidationError{
			Field:   "app.source",
			Value:   c.App.Source,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validSources, ", ")),
		}
	}

	if c.App.Mode == "" {
		c.App.Mode = "fills"
	}
	validModes := []string{"fills", "mark", "both"}
	if !contains(validModes, c.App.Mode) {
		return ValidationError{
			Field:   "app.mode",
			Value:   c.App.Mode,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validModes, ", ")),
		}
	}

	if c.App.DataDir == "" {
		c.App.DataDir = "data"
	}

	return nil
}

func (c *Config) validateTradingConfig() error {
	if c.Trading.DefaultCash == 0 {
		c.Trading.DefaultCash = DefaultCash
	}
	if c.Trading.DefaultCash < 0 {
		return ValidationError{
			Field:   "trading.default_cash",
			Value:   c.Trading.DefaultCash,
			Message: "default cash must not be negative",
		}
	}

	// The sigil is configuration, not grammar: issues use "/", channels "!".
	if c.Trading.CommandSigil == "" {
		if c.App.Source == "github" {
			c.Trading.CommandSigil = "/"
		} else {
			c.Trading.CommandSigil = "!"
		}
	}

	if c.Trading.AllowlistFile == "" {
		c.Trading.AllowlistFile = c.App.DataDir + "/symbols_allowlist.txt"
	}
	if c.Trading.PortfolioFile == "" {
		c.Trading.PortfolioFile = c.App.DataDir + "/portfolio.json"
	}
	if c.Trading.LedgerFile == "" {
		c.Trading.LedgerFile = c.App.DataDir + "/ledger.csv"
	}

	if c.Quotes.BaseURL == "" {
		c.Quotes.BaseURL = DefaultQuoteBaseURL
	}

	return nil
}

func (c *Config) validateSourceConfig() error {
	switch c.App.Source {
	case "discord":
		if c.Discord.BotToken == "" {
			return ValidationError{
				Field:   "discord.bot_token",
				Message: "bot token is required for the discord source",
			}
		}
		if c.Discord.ChannelID == "" {
			return ValidationError{
				Field:   "discord.channel_id",
				Message: "channel id is required for the discord source",
			}
		}
		if c.Discord.BaseURL == "" {
			c.Discord.BaseURL = "https://discord.com/api/v10"
		}
		if c.Discord.FetchLimit <= 0 {
			c.Discord.FetchLimit = DefaultFetchLimit
		}
	case "github":
		if c.GitHub.Token == "" {
			return ValidationError{
				Field:   "github.token",
				Message: "token is required for the github source",
			}
		}
		if c.GitHub.Repository == "" || !strings.Contains(c.GitHub.Repository, "/") {
			return ValidationError{
				Field:   "github.repository",
				Value:   c.GitHub.Repository,
				Message: "repository must be in owner/repo form",
			}
		}
		if c.GitHub.OrderLabel == "" {
			c.GitHub.OrderLabel = "paper-trade"
		}
		if c.GitHub.BaseURL == "" {
			c.GitHub.BaseURL = "https://api.github.com"
		}
	}
	return nil
}

func (c *Config) validateStateConfig() error {
	if c.State.Backend == "" {
		c.State.Backend = "json"
	}
	validBackends := []string{"json", "sqlite"}
	if !contains(validBackends, c.State.Backend) {
		return ValidationError{
			Field:   "state.backend",
			Value:   c.State.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validBackends, ", ")),
		}
	}
	if c.State.Path == "" {
		if c.State.Backend == "sqlite" {
			c.State.Path = c.App.DataDir + "/state.db"
		} else {
			c.State.Path = c.App.DataDir + "/state.json"
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) applyTimingDefaults() {
	if c.Timing.PollIntervalSeconds <= 0 {
		c.Timing.PollIntervalSeconds = DefaultPollInterval
	}
	if c.Timing.RequestTimeoutSeconds <= 0 {
		c.Timing.RequestTimeoutSeconds = DefaultRequestTimeout
	}
}

// String returns a string representation of the configuration (with sensitive data masked)
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	cfg := &Config{
		App: AppConfig{
			Source: "discord",
			Mode:   "both",
		},
		Discord: DiscordConfig{
			BotToken:  "test_bot_token",
			ChannelID: "1234567890",
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
	}
	_ = cfg.Validate()
	return cfg
}
