package config

import (
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"
)

// Validate performs the checks struct tags cannot express. Load calls it.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0 (got %s)", c.Auth.TokenTTL)
	}
	if (c.Auth.GitHubClientID == "") != (c.Auth.GitHubClientSecret == "") {
		return fmt.Errorf("auth: github_client_id and github_client_secret must be set together")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d (got %d)",
			bcrypt.MinCost, bcrypt.MaxCost, c.Auth.BcryptCost)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}

	if c.Cards.RecentActivityDefault <= 0 {
		return fmt.Errorf("cards.recent_activity_default must be > 0 (got %d)", c.Cards.RecentActivityDefault)
	}
	if c.Cards.RecentActivityMax < c.Cards.RecentActivityDefault {
		return fmt.Errorf("cards.recent_activity_max (%d) must be >= recent_activity_default (%d)",
			c.Cards.RecentActivityMax, c.Cards.RecentActivityDefault)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}

	return nil
}
