package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"karigari.shop/catalog/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	tenantSlug := fs.String("tenant", "", "Tenant slug (defaults to DEFAULT_TENANT)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadConfigAndLogger(envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	registry, pool, err := connectTenant(ctx, cfg, logger, *tenantSlug)
	if err != nil {
		logger.Error().Err(err).Msg("health check failed to connect")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer registry.Close()

	var one int
	if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		logger.Error().Err(err).Msg("health probe query failed")
		fmt.Fprintf(os.Stderr, "Health probe failed: %v\n", err)
		return 1
	}

	fmt.Println("database: ok")
	return 0
}
