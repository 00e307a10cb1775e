package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Mailbox provider identifiers.
const (
	ProviderIMAP  = "imap"
	ProviderGraph = "graph"
)

// Language model provider identifiers.
const (
	AIProviderAnthropic = "anthropic"
	AIProviderOpenAI    = "openai"
)

// MailboxConfig holds the settings for the mailbox gateway.
type MailboxConfig struct {
	// Provider selects the gateway implementation ("imap" or "graph").
	Provider string `mapstructure:"provider" yaml:"provider"`

	// Username is the mailbox login; also the From address for sends.
	Username string `mapstructure:"username" yaml:"username"`

	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`

	// TLS selects implicit TLS; false means STARTTLS.
	TLS bool `mapstructure:"tls" yaml:"tls"`

	// Folder is the IMAP mailbox listed by list_recent.
	Folder string `mapstructure:"folder" yaml:"folder"`

	// GraphBaseURL is the Microsoft Graph root, e.g. https://graph.microsoft.com/v1.0.
	GraphBaseURL string `mapstructure:"graph_base_url" yaml:"graph_base_url"`

	// GraphClientID and GraphTenant identify the Azure AD app used to
	// refresh Graph tokens. Without a client id the stored access token
	// is used as is.
	GraphClientID string `mapstructure:"graph_client_id" yaml:"graph_client_id"`
	GraphTenant   string `mapstructure:"graph_tenant" yaml:"graph_tenant"`
}

// AIConfig holds settings for the language model used to plan and classify.
type AIConfig struct {
	Provider          string `mapstructure:"provider" yaml:"provider"`
	Model             string `mapstructure:"model" yaml:"model"`
	MaxTokens         int    `mapstructure:"max_tokens" yaml:"max_tokens"`
	BaseURL           string `mapstructure:"base_url" yaml:"base_url"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	TimeoutSec        int    `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// ExecutorConfig holds plan execution settings.
type ExecutorConfig struct {
	// SubFailurePolicy decides whether failed per-email sub-calls fail a
	// list_recent step: "tolerate", "any" or "majority".
	SubFailurePolicy string `mapstructure:"sub_failure_policy" yaml:"sub_failure_policy"`
}

// StoreConfig holds settings for the run history database.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailbox  MailboxConfig  `mapstructure:"mailbox" yaml:"mailbox"`
	AI       AIConfig       `mapstructure:"ai" yaml:"ai"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailagent/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// DefaultStorePath returns the default run history database path.
func DefaultStorePath() string {
	return filepath.Join(configDir(), "runs.db")
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mailagent")
}

// DefaultAppConfig returns a sensible default configuration.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		Mailbox: MailboxConfig{
			Provider:     ProviderIMAP,
			IMAPPort:     "993",
			SMTPPort:     "465",
			TLS:          true,
			Folder:       "INBOX",
			GraphBaseURL: "https://graph.microsoft.com/v1.0",
			GraphTenant:  "common",
		},
		AI: AIConfig{
			Provider:          AIProviderAnthropic,
			Model:             "claude-sonnet-4-5-20250929",
			MaxTokens:         1024,
			RequestsPerMinute: 50,
			TimeoutSec:        60,
		},
		Executor: ExecutorConfig{
			SubFailurePolicy: "tolerate",
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    DefaultStorePath(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// setDefaults mirrors DefaultAppConfig into v so missing keys and env
// overrides resolve consistently.
func setDefaults(v *viper.Viper) {
	d := DefaultAppConfig()
	v.SetDefault("mailbox.provider", d.Mailbox.Provider)
	v.SetDefault("mailbox.username", "")
	v.SetDefault("mailbox.imap_host", "")
	v.SetDefault("mailbox.imap_port", d.Mailbox.IMAPPort)
	v.SetDefault("mailbox.smtp_host", "")
	v.SetDefault("mailbox.smtp_port", d.Mailbox.SMTPPort)
	v.SetDefault("mailbox.tls", d.Mailbox.TLS)
	v.SetDefault("mailbox.folder", d.Mailbox.Folder)
	v.SetDefault("mailbox.graph_base_url", d.Mailbox.GraphBaseURL)
	v.SetDefault("mailbox.graph_client_id", "")
	v.SetDefault("mailbox.graph_tenant", d.Mailbox.GraphTenant)
	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.requests_per_minute", d.AI.RequestsPerMinute)
	v.SetDefault("ai.timeout_sec", d.AI.TimeoutSec)
	v.SetDefault("executor.sub_failure_policy", d.Executor.SubFailurePolicy)
	v.SetDefault("store.enabled", d.Store.Enabled)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with MAILAGENT_ (MAILAGENT_AI_MODEL,
// MAILAGENT_MAILBOX_IMAP_HOST, ...) override file values. If the file
// does not exist, defaults plus environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MAILAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *os.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mailbox", cfg.Mailbox)
	v.Set("ai", cfg.AI)
	v.Set("executor", cfg.Executor)
	v.Set("store", cfg.Store)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Validate reports the first configuration problem found.
func (c *AppConfig) Validate() error {
	switch c.Mailbox.Provider {
	case ProviderIMAP:
		if c.Mailbox.IMAPHost == "" {
			return errors.New("mailbox.imap_host is required for the imap provider")
		}
		if c.Mailbox.SMTPHost == "" {
			return errors.New("mailbox.smtp_host is required for the imap provider")
		}
		if c.Mailbox.Username == "" {
			return errors.New("mailbox.username is required for the imap provider")
		}
	case ProviderGraph:
		if c.Mailbox.GraphBaseURL == "" {
			return errors.New("mailbox.graph_base_url is required for the graph provider")
		}
	default:
		return fmt.Errorf("unknown mailbox.provider %q", c.Mailbox.Provider)
	}

	switch c.AI.Provider {
	case AIProviderAnthropic, AIProviderOpenAI:
	default:
		return fmt.Errorf("unknown ai.provider %q", c.AI.Provider)
	}
	if c.AI.MaxTokens < 0 {
		return fmt.Errorf("ai.max_tokens must not be negative, got %d", c.AI.MaxTokens)
	}

	switch c.Executor.SubFailurePolicy {
	case "", "tolerate", "any", "majority":
	default:
		return fmt.Errorf(
			"unknown executor.sub_failure_policy %q (want tolerate, any or majority)",
			c.Executor.SubFailurePolicy,
		)
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return errors.New("store.path is required when the store is enabled")
	}

	return nil
}
