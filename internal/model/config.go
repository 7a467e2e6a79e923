package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AccountConfig holds the connection settings for a single IMAP account.
// The list of accounts is read once at startup and is immutable for the
// process lifetime.
type AccountConfig struct {
	// Name is the user-defined label for this account (e.g. "Account 1").
	Name string `mapstructure:"name" yaml:"name"`

	// Host is the IMAP server hostname.
	Host string `mapstructure:"host" yaml:"host"`

	// Port is the IMAP server port (993 for implicit TLS).
	Port int `mapstructure:"port" yaml:"port"`

	// Username is the login name for the mailbox.
	Username string `mapstructure:"username" yaml:"username"`

	// Password is the mailbox password. When empty, it is resolved from
	// the system keyring under the account name.
	Password string `mapstructure:"password" yaml:"password"`

	// TLS selects implicit TLS; when false, STARTTLS is used instead.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// OpenAIConfig holds settings for the classifier and embedding provider.
// An empty APIKey disables classification and embedding; dependent
// operations degrade to their documented defaults.
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	ChatModel string `mapstructure:"chat_model" yaml:"chat_model"`
}

// ElasticsearchConfig holds the search index connection settings.
type ElasticsearchConfig struct {
	URL   string `mapstructure:"url" yaml:"url"`
	Index string `mapstructure:"index" yaml:"index"`
}

// PostgresConfig holds the vector store connection. An empty URL disables
// the embedding store entirely.
type PostgresConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// NotifyConfig holds the webhook sink URLs. Either may be empty, which
// silently disables that sink.
type NotifyConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url" yaml:"slack_webhook_url"`
	WebhookURL      string `mapstructure:"webhook_url" yaml:"webhook_url"`

	// FrontendURL is the base URL used to build view links in Slack
	// notifications.
	FrontendURL string `mapstructure:"frontend_url" yaml:"frontend_url"`
}

// SyncConfig holds tunables for the mailbox sync workers.
type SyncConfig struct {
	// BackfillDays is the size of the historical fetch window.
	BackfillDays int `mapstructure:"backfill_days" yaml:"backfill_days"`

	// KeepAliveSec is the interval between NOOP probes on an idle
	// connection.
	KeepAliveSec int `mapstructure:"keepalive_sec" yaml:"keepalive_sec"`

	// StatePath is the SQLite file holding per-folder sync marks.
	// Empty disables mark persistence and every run rescans the full
	// backfill window.
	StatePath string `mapstructure:"state_path" yaml:"state_path"`

	// RetentionDays is the age cutoff for the embedding sweep.
	RetentionDays int `mapstructure:"retention_days" yaml:"retention_days"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Accounts      []AccountConfig     `mapstructure:"accounts" yaml:"accounts"`
	OpenAI        OpenAIConfig        `mapstructure:"openai" yaml:"openai"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch" yaml:"elasticsearch"`
	Postgres      PostgresConfig      `mapstructure:"postgres" yaml:"postgres"`
	Notify        NotifyConfig        `mapstructure:"notify" yaml:"notify"`
	Sync          SyncConfig          `mapstructure:"sync" yaml:"sync"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/inbox-aggregator/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "inbox-aggregator", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		OpenAI: OpenAIConfig{
			ChatModel: "gpt-3.5-turbo",
		},
		Elasticsearch: ElasticsearchConfig{
			URL:   "http://localhost:9200",
			Index: "emails",
		},
		Notify: NotifyConfig{
			FrontendURL: "http://localhost:3000",
		},
		Sync: SyncConfig{
			BackfillDays:  30,
			KeepAliveSec:  30,
			RetentionDays: 90,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with INBOXAGG_ override file values
// (e.g. INBOXAGG_OPENAI_API_KEY). If the file does not exist, it returns
// a default configuration with no accounts.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("INBOXAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("openai.chat_model", "gpt-3.5-turbo")
	v.SetDefault("elasticsearch.url", "http://localhost:9200")
	v.SetDefault("elasticsearch.index", "emails")
	v.SetDefault("notify.frontend_url", "http://localhost:3000")
	v.SetDefault("sync.backfill_days", 30)
	v.SetDefault("sync.keepalive_sec", 30)
	v.SetDefault("sync.retention_days", 90)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Apply defaults for each account entry.
	for i := range cfg.Accounts {
		if cfg.Accounts[i].Port == 0 {
			cfg.Accounts[i].Port = 993
		}
		if cfg.Accounts[i].Name == "" {
			cfg.Accounts[i].Name = fmt.Sprintf("Account %d", i+1)
		}
	}

	return cfg, nil
}
