// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the temp-mail server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	smtptls "github.com/AI-WORKERS1729/TempMailServiceCustomDomain/internal/tls"
)

// defaultMaxMessageSize is 25 MB in bytes.
const defaultMaxMessageSize = 26214400

// Config holds the complete application configuration.
type Config struct {
	SMTP     SMTPConfig     `yaml:"smtp"`
	TLS      TLSConfig      `yaml:"tls"`
	Store    StoreConfig    `yaml:"store"`
	Minio    MinioConfig    `yaml:"minio"`
	Access   AccessConfig   `yaml:"access"`
	Notify   NotifyConfig   `yaml:"notify"`
	Telegram TelegramConfig `yaml:"telegram"`
	SES      SESConfig      `yaml:"ses"`
	Graph    GraphConfig    `yaml:"graph"`
	NATS     NATSConfig     `yaml:"nats"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Listen            string        `yaml:"listen"`
	Hostname          string        `yaml:"hostname"`
	Username          string        `yaml:"username"`
	Password          string        `yaml:"password"`
	AuthRequired      bool          `yaml:"auth_required"`
	AllowInsecureAuth bool          `yaml:"allow_insecure_auth"`
	MaxMessageSize    int64         `yaml:"max_message_size"`
	MaxRecipients     int           `yaml:"max_recipients"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	SPFCheck          bool          `yaml:"spf_check"`
}

// TLSConfig selects the TLS mode and certificate file paths.
type TLSConfig struct {
	Mode     string `yaml:"mode"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StoreConfig selects where message records and side files live.
type StoreConfig struct {
	Backend        string `yaml:"backend"`
	Path           string `yaml:"path"`
	SQLitePath     string `yaml:"sqlite_path"`
	BlobBackend    string `yaml:"blob_backend"`
	AttachmentsDir string `yaml:"attachments_dir"`
	HTMLDir        string `yaml:"html_dir"`
}

// MinioConfig holds S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// AccessConfig holds the sender blacklist and recipient whitelist paths.
type AccessConfig struct {
	BlacklistFile string `yaml:"blacklist_file"`
	WhitelistFile string `yaml:"whitelist_file"`
}

// NotifyConfig selects the notification channel and tunes its queue.
type NotifyConfig struct {
	Provider  string        `yaml:"provider"`
	QueueSize int           `yaml:"queue_size"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
}

// TelegramConfig holds Telegram Bot API credentials.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
	Recipient       string `yaml:"recipient"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
	Recipient    string `yaml:"recipient"`
}

// NATSConfig holds the NATS server URL and event subject.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if _, err := smtptls.ParseMode(c.TLS.Mode); err != nil {
		return fmt.Errorf("tls.mode: %w", err)
	}
	if c.SMTP.MaxMessageSize <= 0 {
		return fmt.Errorf("smtp.max_message_size must be positive, got %d", c.SMTP.MaxMessageSize)
	}
	if c.SMTP.MaxRecipients < 0 {
		return fmt.Errorf("smtp.max_recipients must not be negative, got %d", c.SMTP.MaxRecipients)
	}

	switch c.Store.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}

	switch c.Store.BlobBackend {
	case "fs":
	case "minio":
		if !c.MinioConfigured() {
			return fmt.Errorf("store.blob_backend minio requires minio.endpoint and minio.bucket")
		}
	default:
		return fmt.Errorf("store.blob_backend: unknown backend %q", c.Store.BlobBackend)
	}

	switch c.Notify.Provider {
	case "", "stdout", "telegram", "ses", "graph", "nats":
	default:
		return fmt.Errorf("notify.provider: unknown provider %q", c.Notify.Provider)
	}
	return nil
}

// AuthEnabled returns true if both SMTP username and password are set.
func (c *Config) AuthEnabled() bool {
	return c.SMTP.Username != "" && c.SMTP.Password != ""
}

// TelegramConfigured returns true if the bot token and chat id are set.
func (c *Config) TelegramConfigured() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// SESConfigured returns true if the SES region, sender and recipient are set.
// Credentials may come from the default AWS chain.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != "" && c.SES.Recipient != ""
}

// GraphConfigured returns true if all Graph API credentials and both
// addresses are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != "" &&
		c.Graph.Recipient != ""
}

// NATSConfigured returns true if a NATS URL is set.
func (c *Config) NATSConfigured() bool {
	return c.NATS.URL != ""
}

// MinioConfigured returns true if an object storage endpoint and bucket are set.
func (c *Config) MinioConfigured() bool {
	return c.Minio.Endpoint != "" && c.Minio.Bucket != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.SMTP.Listen = ":2525"
	c.SMTP.Hostname = "localhost"
	c.SMTP.MaxMessageSize = defaultMaxMessageSize
	c.SMTP.ReadTimeout = 60 * time.Second
	c.SMTP.WriteTimeout = 60 * time.Second

	c.TLS.Mode = string(smtptls.ModeNone)

	c.Store.Backend = "json"
	c.Store.Path = "emails.json"
	c.Store.SQLitePath = "emails.db"
	c.Store.BlobBackend = "fs"
	c.Store.AttachmentsDir = "attachments"
	c.Store.HTMLDir = "html_emails"

	c.Access.BlacklistFile = "blacklist.txt"
	c.Access.WhitelistFile = "whitelist.txt"

	c.Notify.QueueSize = 100
	c.Notify.Workers = 1
	c.Notify.Timeout = 60 * time.Second

	c.NATS.Subject = "tempmail.received"

	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values; values
// that fail to parse are ignored.
func (c *Config) applyEnvVars() {
	envString("SMTP_LISTEN", &c.SMTP.Listen)
	envString("SMTP_HOSTNAME", &c.SMTP.Hostname)
	envString("SMTP_USERNAME", &c.SMTP.Username)
	envString("SMTP_PASSWORD", &c.SMTP.Password)
	envBool("SMTP_AUTH_REQUIRED", &c.SMTP.AuthRequired)
	envBool("SMTP_ALLOW_INSECURE_AUTH", &c.SMTP.AllowInsecureAuth)
	if v := os.Getenv("SMTP_MAX_MESSAGE_SIZE"); v != "" {
		if size, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.SMTP.MaxMessageSize = size
		}
	}
	envInt("SMTP_MAX_RECIPIENTS", &c.SMTP.MaxRecipients)
	envDuration("SMTP_READ_TIMEOUT", &c.SMTP.ReadTimeout)
	envDuration("SMTP_WRITE_TIMEOUT", &c.SMTP.WriteTimeout)
	envBool("SMTP_SPF_CHECK", &c.SMTP.SPFCheck)

	if v := os.Getenv("TLS_MODE"); v != "" {
		c.TLS.Mode = strings.ToLower(v)
	}
	envString("TLS_CERT_FILE", &c.TLS.CertFile)
	envString("TLS_KEY_FILE", &c.TLS.KeyFile)

	if v := os.Getenv("STORE_BACKEND"); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	envString("STORE_PATH", &c.Store.Path)
	envString("STORE_SQLITE_PATH", &c.Store.SQLitePath)
	if v := os.Getenv("BLOB_BACKEND"); v != "" {
		c.Store.BlobBackend = strings.ToLower(v)
	}
	envString("ATTACHMENTS_DIR", &c.Store.AttachmentsDir)
	envString("HTML_DIR", &c.Store.HTMLDir)

	envString("MINIO_ENDPOINT", &c.Minio.Endpoint)
	envString("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	envString("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	envString("MINIO_BUCKET", &c.Minio.Bucket)
	envString("MINIO_REGION", &c.Minio.Region)
	envBool("MINIO_SECURE", &c.Minio.Secure)

	envString("ACCESS_BLACKLIST_FILE", &c.Access.BlacklistFile)
	envString("ACCESS_WHITELIST_FILE", &c.Access.WhitelistFile)

	if v := os.Getenv("NOTIFY_PROVIDER"); v != "" {
		c.Notify.Provider = strings.ToLower(v)
	}
	envInt("NOTIFY_QUEUE_SIZE", &c.Notify.QueueSize)
	envInt("NOTIFY_WORKERS", &c.Notify.Workers)
	envDuration("NOTIFY_TIMEOUT", &c.Notify.Timeout)

	envString("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	envString("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)

	envString("SES_REGION", &c.SES.Region)
	envString("SES_ACCESS_KEY_ID", &c.SES.AccessKeyID)
	envString("SES_SECRET_ACCESS_KEY", &c.SES.SecretAccessKey)
	envString("SES_SENDER", &c.SES.Sender)
	envString("SES_RECIPIENT", &c.SES.Recipient)

	envString("GRAPH_TENANT_ID", &c.Graph.TenantID)
	envString("GRAPH_CLIENT_ID", &c.Graph.ClientID)
	envString("GRAPH_CLIENT_SECRET", &c.Graph.ClientSecret)
	envString("GRAPH_SENDER", &c.Graph.Sender)
	envString("GRAPH_RECIPIENT", &c.Graph.Recipient)

	envString("NATS_URL", &c.NATS.URL)
	envString("NATS_SUBJECT", &c.NATS.Subject)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
