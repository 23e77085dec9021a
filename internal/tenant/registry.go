package tenant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"karigari.shop/catalog/internal/config"
	"karigari.shop/catalog/internal/db"
)

// Slugs are lowercase alphanumerics with single inner hyphens; they end up
// interpolated into DSNs, so anything looser is rejected outright.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Registry hands out one database pool per tenant slug. Pools are opened
// lazily on first use and cached for the process lifetime.
type Registry struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu    sync.Mutex
	pools map[string]*db.Pool

	// open is swappable in tests.
	open func(ctx context.Context, cfg *config.Config, dsn string) (*db.Pool, error)
}

func NewRegistry(cfg *config.Config, logger zerolog.Logger) *Registry {
	return &Registry{
		cfg:    cfg,
		logger: logger,
		pools:  make(map[string]*db.Pool),
		open:   db.NewPoolForDSN,
	}
}

// Pool returns the pool for slug, opening it on first call. A blank slug
// routes to the configured default tenant.
func (r *Registry) Pool(ctx context.Context, slug string) (*db.Pool, error) {
	resolved := strings.ToLower(strings.TrimSpace(slug))
	if resolved == "" {
		resolved = strings.ToLower(strings.TrimSpace(r.cfg.DefaultTenant))
	}
	if !slugPattern.MatchString(resolved) {
		return nil, fmt.Errorf("invalid tenant slug %q", slug)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if pool, exists := r.pools[resolved]; exists {
		return pool, nil
	}

	pool, err := r.open(ctx, r.cfg, r.dsnFor(resolved))
	if err != nil {
		return nil, fmt.Errorf("open pool for tenant %s: %w", resolved, err)
	}
	r.pools[resolved] = pool

	r.logger.Info().Str("tenant", resolved).Msg("tenant pool opened")
	return pool, nil
}

func (r *Registry) dsnFor(slug string) string {
	template := strings.TrimSpace(r.cfg.TenantDSNTemplate)
	if template == "" {
		return r.cfg.DatabaseURL
	}
	return fmt.Sprintf(template, slug)
}

// Close tears down every cached pool. Errors are collected, not short-circuited,
// so one bad pool does not leak the rest.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for slug, pool := range r.pools {
		if err := pool.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close pool for tenant %s: %w", slug, err)
		}
		delete(r.pools, slug)
	}
	return firstErr
}
