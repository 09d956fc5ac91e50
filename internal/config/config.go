// Package config loads the service configuration from an optional YAML file
// and the environment.
//
// HOW VALUES ARE RESOLVED:
// Every field carries three struct tags read by cleanenv:
//
//	yaml:"port"            key inside the YAML file
//	env:"SERVER_PORT"      environment variable that overrides it
//	env-default:"8080"     value used when neither is present
//
// So the priority is ENV > YAML > default. cmd/server loads a .env file into
// the environment first, which makes local development a matter of copying
// .env.example.
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cards    CardsConfig    `yaml:"cards"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// Addr is the listen address for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path" env:"DB_PATH" env-default:"data/cards.db"`
}

// AuthConfig holds token, GitHub OAuth and staff account settings.
//
// Staff accounts (reviewers and admins) are not self-registered: they are
// created or refreshed from these values on every start. Leaving a password
// empty skips that account.
type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"           env:"JWT_SECRET"           env-required:"true"`
	TokenTTL           time.Duration `yaml:"token_ttl"            env:"TOKEN_TTL"            env-default:"24h"`
	GitHubClientID     string        `yaml:"github_client_id"     env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string        `yaml:"github_client_secret" env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string        `yaml:"github_callback_url"  env:"GITHUB_CALLBACK_URL"  env-default:"http://localhost:8080/auth/github/callback"`
	AdminUsername      string        `yaml:"admin_username"       env:"ADMIN_USERNAME"       env-default:"admin"`
	AdminPassword      string        `yaml:"admin_password"       env:"ADMIN_PASSWORD"`
	ReviewerUsername   string        `yaml:"reviewer_username"    env:"REVIEWER_USERNAME"    env-default:"reviewer"`
	ReviewerPassword   string        `yaml:"reviewer_password"    env:"REVIEWER_PASSWORD"`
	SecureCookies      bool          `yaml:"secure_cookies"       env:"SECURE_COOKIES"       env-default:"false"`
	BcryptCost         int           `yaml:"bcrypt_cost"          env:"BCRYPT_COST"          env-default:"12"`
}

// GitHubEnabled reports whether both GitHub OAuth credentials are present.
// Without them the /auth/github routes are not registered.
func (a AuthConfig) GitHubEnabled() bool {
	return a.GitHubClientID != "" && a.GitHubClientSecret != ""
}

// CardsConfig holds limits of the card API.
type CardsConfig struct {
	RecentActivityDefault int `yaml:"recent_activity_default" env:"RECENT_ACTIVITY_DEFAULT" env-default:"10"`
	RecentActivityMax     int `yaml:"recent_activity_max"     env:"RECENT_ACTIVITY_MAX"     env-default:"100"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// SlogLevel maps Level onto slog. Validate has already rejected unknown
// names, so the fallback is never reached for a loaded config.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
