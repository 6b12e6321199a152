// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Keywords []string       `mapstructure:"keywords"`
	WeCom    WeComConfig    `mapstructure:"wecom"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Email    EmailConfig    `mapstructure:"email"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Channel Configuration Sections ---

// WeComConfig holds the enterprise-messaging push channel settings. The
// channel degrades to simulation mode when CorpID, AgentID or AgentSecret is
// missing.
type WeComConfig struct {
	CorpID      string `mapstructure:"corp_id"`
	AgentID     string `mapstructure:"agent_id"`
	AgentSecret string `mapstructure:"agent_secret"`
	// Token is the shared secret for the inbound URL-verification handshake.
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// Configured reports whether all three send credentials are present.
func (w WeComConfig) Configured() bool {
	return w.CorpID != "" && w.AgentID != "" && w.AgentSecret != ""
}

// SMSConfig holds SMS channel settings. The default deployment runs the
// simulated carrier; AWS SNS is the reserved live integration.
type SMSConfig struct {
	Enabled bool `mapstructure:"enabled"`
	AWS     struct {
		Enabled  bool   `mapstructure:"enabled"`
		Region   string `mapstructure:"region"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"aws"`
}

// EmailConfig holds the optional SES email channel settings.
type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
	AWSRegion string `mapstructure:"aws_region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
