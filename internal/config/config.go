// Package config provides configuration loading for the dashboard backend.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server Server `mapstructure:"server"`
	Data   Data   `mapstructure:"data"`
	Auth   Auth   `mapstructure:"auth"`
	Vault  Vault  `mapstructure:"vault"`
	Scan   Scan   `mapstructure:"scan"`
	Git    Git    `mapstructure:"git"`
	SMS    SMS    `mapstructure:"sms"`
	Cache  Cache  `mapstructure:"cache"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"` // dev, staging, prod
}

// Data holds filesystem layout configuration.
type Data struct {
	Root string `mapstructure:"root"`
}

// GitDir returns the directory holding all Git working trees.
func (d Data) GitDir() string { return filepath.Join(d.Root, "git") }

// SettingsDB returns the path of the sqlite settings database.
func (d Data) SettingsDB() string { return filepath.Join(d.Root, "settings", "credentials.db") }

// TemplatesDir returns the directory backing template content.
func (d Data) TemplatesDir() string { return filepath.Join(d.Root, "templates") }

// InventoryDir returns the fallback inventory output directory.
func (d Data) InventoryDir() string { return filepath.Join(d.Root, "inventory") }

// Auth holds API authentication configuration.
type Auth struct {
	// Token is the bearer token required on /api routes. Token issuance
	// is owned by the auth collaborator; this process only verifies.
	Token string `mapstructure:"token"`
}

// Vault holds credential encryption configuration.
type Vault struct {
	// SecretKey is hashed with SHA-256 to derive the AES-256-GCM key.
	SecretKey string `mapstructure:"secret_key"`
}

// Scan holds discovery engine tunables. Worker concurrency is fixed
// in the engine and deliberately not configurable.
type Scan struct {
	PingTimeout  time.Duration `mapstructure:"ping_timeout"`
	PingAttempts int           `mapstructure:"ping_attempts"`
	SSHTimeout   time.Duration `mapstructure:"ssh_timeout"`
	JobTTL       time.Duration `mapstructure:"job_ttl"`
	// Privileged selects raw-socket ICMP; unprivileged UDP ping otherwise.
	Privileged bool `mapstructure:"privileged"`
}

// Git holds working-tree orchestrator tunables.
type Git struct {
	CloneTimeout  time.Duration `mapstructure:"clone_timeout"`
	PullTimeout   time.Duration `mapstructure:"pull_timeout"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
	TestTimeout   time.Duration `mapstructure:"test_timeout"`
	SSLCAInfo     string        `mapstructure:"ssl_ca_info"`
	SSLCert       string        `mapstructure:"ssl_cert"`
}

// SMS holds the structured-management-system endpoint configuration.
type SMS struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Cache holds TTL cache configuration.
type Cache struct {
	TTL             time.Duration `mapstructure:"ttl"`
	PrefetchOnStart bool          `mapstructure:"prefetch_on_start"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// Load reads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cockpit")

	// Enable environment variable override
	v.SetEnvPrefix("COCKPIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Explicitly bind secrets (nested struct issue with viper)
	v.BindEnv("auth.token", "COCKPIT_AUTH_TOKEN")
	v.BindEnv("vault.secret_key", "COCKPIT_VAULT_SECRET_KEY")
	v.BindEnv("sms.url", "COCKPIT_SMS_URL")
	v.BindEnv("sms.token", "COCKPIT_SMS_TOKEN")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Vault.SecretKey == "" {
		return nil, fmt.Errorf("vault.secret_key is required for credential encryption")
	}

	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "dev")

	// Filesystem defaults
	v.SetDefault("data.root", "./data")

	// Scan defaults
	v.SetDefault("scan.ping_timeout", "1500ms")
	v.SetDefault("scan.ping_attempts", 3)
	v.SetDefault("scan.ssh_timeout", "5s")
	v.SetDefault("scan.job_ttl", "24h")
	v.SetDefault("scan.privileged", false)

	// Git defaults
	v.SetDefault("git.clone_timeout", "120s")
	v.SetDefault("git.pull_timeout", "60s")
	v.SetDefault("git.remote_timeout", "10s")
	v.SetDefault("git.test_timeout", "30s")

	// SMS defaults
	v.SetDefault("sms.timeout", "30s")

	// Cache defaults
	v.SetDefault("cache.ttl", "600s")
	v.SetDefault("cache.prefetch_on_start", false)
	v.SetDefault("cache.refresh_interval", "0s")
}
