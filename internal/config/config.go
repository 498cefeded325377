package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	OpenAI         OpenAIConfig         `mapstructure:"openai"`
	Lark           LarkConfig           `mapstructure:"lark"`
	Export         ExportConfig         `mapstructure:"export"`
	Logger         LoggerConfig         `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ReconciliationConfig tunes candidate generation
type ReconciliationConfig struct {
	ScoreThreshold       float64 `mapstructure:"score_threshold"`
	CandidatesPerInvoice int     `mapstructure:"candidates_per_invoice"`
	ScoringWorkers       int     `mapstructure:"scoring_workers"`
}

// Threshold returns the score threshold as an exact decimal
func (r ReconciliationConfig) Threshold() decimal.Decimal {
	return decimal.NewFromFloat(r.ScoreThreshold)
}

// OpenAIConfig holds OpenAI API configuration. An empty APIKey disables AI explanations.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// LarkConfig holds Lark API configuration. Notifications are sent only when all three ids are set.
type LarkConfig struct {
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	NotifyChatID string `mapstructure:"notify_chat_id"`
	BaseURL      string `mapstructure:"base_url"`
}

// ExportConfig holds report export configuration
type ExportConfig struct {
	SheetName string `mapstructure:"sheet_name"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// LoadEnvFile loads variables from a dotenv file without overriding the
// process environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from .env, the optional YAML file and environment variables
func Load(configPath string) (*Config, error) {
	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/reconciler.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Reconciliation defaults
	v.SetDefault("reconciliation.score_threshold", 0.45)
	v.SetDefault("reconciliation.candidates_per_invoice", 3)
	v.SetDefault("reconciliation.scoring_workers", 4)

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("openai.max_tokens", 200)
	v.SetDefault("openai.timeout", 8*time.Second)

	// Export defaults
	v.SetDefault("export.sheet_name", "Matches")

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := [][]string{
		{"server.port", "SERVER_PORT"},
		{"database.path", "DATABASE_PATH"},
		{"openai.api_key", "AI_API_KEY", "OPENAI_API_KEY"},
		{"openai.model", "AI_MODEL"},
		{"lark.app_id", "LARK_APP_ID"},
		{"lark.app_secret", "LARK_APP_SECRET"},
		{"lark.notify_chat_id", "LARK_NOTIFY_CHAT_ID"},
		{"logger.level", "LOG_LEVEL"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b[0], err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	r := c.Reconciliation
	if r.ScoreThreshold < 0 || r.ScoreThreshold > 1 {
		return fmt.Errorf("reconciliation.score_threshold must be within [0, 1]")
	}
	if r.CandidatesPerInvoice < 1 {
		return fmt.Errorf("reconciliation.candidates_per_invoice must be at least 1")
	}
	if r.ScoringWorkers < 1 {
		return fmt.Errorf("reconciliation.scoring_workers must be at least 1")
	}

	// AI and Lark are optional; half-configured Lark is a mistake worth reporting
	if (c.Lark.AppID == "") != (c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret must be set together")
	}

	return nil
}

// AIEnabled reports whether AI explanations are configured
func (c *Config) AIEnabled() bool {
	return c.OpenAI.APIKey != ""
}

// NotificationsEnabled reports whether Lark notifications are configured
func (c *Config) NotificationsEnabled() bool {
	return c.Lark.AppID != "" && c.Lark.AppSecret != "" && c.Lark.NotifyChatID != ""
}
