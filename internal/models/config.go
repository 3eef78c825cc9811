package models

import (
	"path"
	"time"

	"github.com/kardianos/osext"
)

// Storage backends available for events and flat records
const (
	BackendSQL   = "sql"
	BackendRedis = "redis"
)

// AppConfig is the application's main configuration structure
type AppConfig struct {
	// The directory where the service stores its local data (SQLite database) - defaults to the /data subdirectory of
	// the folder the executable resides in
	DataDir string `koanf:"data_dir"`
	// The IP address to listen at - including the port number
	ListenAddress string `koanf:"listen_address"`
	// Logging output
	Log LogConfig `koanf:"log"`
	// The relational database
	Database DatabaseConfig `koanf:"database"`
	// Which backends to use for storing events and records
	Storage StorageConfig `koanf:"storage"`
	// Redis connection, only needed if one of the storage backends is "redis"
	Redis RedisConfig `koanf:"redis"`
	// Cloudflare Images and Stream access
	Cloudflare CloudflareConfig `koanf:"cloudflare"`
	// Outgoing mail
	Mail MailConfig `koanf:"mail"`
	// Admin authentication
	Auth AuthConfig `koanf:"auth"`
	// Limits for the public form endpoints
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level string `koanf:"level"`
	// "text" or "json"
	Format string `koanf:"format"`
}

// DatabaseConfig configures the relational database
type DatabaseConfig struct {
	// "sqlite3" or "postgres"
	Driver string `koanf:"driver"`
	// The data source name. For SQLite, an empty DSN means "gamemixer.db" inside the data directory
	DSN string `koanf:"dsn"`
}

// StorageConfig selects the storage backends
type StorageConfig struct {
	Events  string `koanf:"events"`
	Records string `koanf:"records"`
}

// RedisConfig configures the Redis connection
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// CloudflareConfig configures the media store
type CloudflareConfig struct {
	AccountID string `koanf:"account_id"`
	APIToken  string `koanf:"api_token"`
	// Base URL of the Cloudflare API
	APIBaseURL string `koanf:"api_base_url"`
	// Base URL under which uploaded videos can be watched
	StreamBaseURL string        `koanf:"stream_base_url"`
	Timeout       time.Duration `koanf:"timeout"`
	// Number of consecutive failures after which calls to Cloudflare are rejected for BreakerTimeout
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// MailConfig configures the SMTP server used to send notifications. An empty host disables sending
type MailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	// Sender address - also the address that receives the organization's notifications
	Sender string `koanf:"sender"`
	// Name of the organization used inside mails
	OrgName string `koanf:"org_name"`
}

// AuthConfig configures the admin authentication
type AuthConfig struct {
	// Secret used for signing the access tokens
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
	// The credentials for the default admin account that is created on startup if it does not exist
	DefaultUser DefaultUserConfig `koanf:"default_user"`
}

// The DefaultUserConfig struct configures the default user that can log in. It is only created if a password is
// configured - there is no built-in password
type DefaultUserConfig struct {
	Name     string `koanf:"name"`
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

// RateLimitConfig limits the requests per client IP on the public form endpoints
type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// GetDefaultConfig returns the default configuration values for the application
func GetDefaultConfig() (*AppConfig, error) {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		return nil, err
	}
	return &AppConfig{
		DataDir:       path.Join(execDir, "data"),
		ListenAddress: ":3000",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
		},
		Storage: StorageConfig{
			Events:  BackendSQL,
			Records: BackendSQL,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Cloudflare: CloudflareConfig{
			APIBaseURL:      "https://api.cloudflare.com/client/v4",
			StreamBaseURL:   "https://watch.cloudflarestream.com",
			Timeout:         2 * time.Minute,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Mail: MailConfig{
			Port:    587,
			OrgName: "Game Mixer",
		},
		Auth: AuthConfig{
			TokenTTL: time.Hour,
			DefaultUser: DefaultUserConfig{
				Name: "admin",
			},
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		},
	}, nil
}
