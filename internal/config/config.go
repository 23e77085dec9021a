package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"CATALOG_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"CATALOG_DB_MAX_CONNS" default:"8"`

	// TenantDSNTemplate carries one %s placeholder replaced with the tenant
	// slug. Empty means single-tenant: every tenant routes to DATABASE_URL.
	TenantDSNTemplate string `envconfig:"TENANT_DSN_TEMPLATE" default:""`
	DefaultTenant     string `envconfig:"DEFAULT_TENANT" default:"default"`

	// APIKeyHashes is a comma-separated list of bcrypt hashes accepted by the
	// HTTP API. Empty disables the API-key check (local use only).
	APIKeyHashes       string `envconfig:"API_KEY_HASHES" default:""`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("CATALOG_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CATALOG_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("CATALOG_DB_MIN_CONNS (%d) cannot exceed CATALOG_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if template := strings.TrimSpace(c.TenantDSNTemplate); template != "" {
		if strings.Count(template, "%s") != 1 {
			return fmt.Errorf("TENANT_DSN_TEMPLATE must contain exactly one %%s placeholder")
		}
	}
	if strings.TrimSpace(c.DefaultTenant) == "" {
		return fmt.Errorf("DEFAULT_TENANT is required")
	}
	return nil
}

func (c *Config) APIKeyHashList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.APIKeyHashes, ",")
	hashes := make([]string, 0, len(parts))
	for _, part := range parts {
		hash := strings.TrimSpace(part)
		if hash == "" {
			continue
		}
		hashes = append(hashes, hash)
	}
	return hashes
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
