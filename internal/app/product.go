package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"karigari.shop/catalog/internal/catalog"
	"karigari.shop/catalog/internal/cli"
)

func runProduct(args []string) int {
	fs := flag.NewFlagSet("product", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	tenantSlug := fs.String("tenant", "", "Tenant slug (defaults to DEFAULT_TENANT)")
	sku := fs.String("sku", "", "SKU of the product to print")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*sku) == "" {
		fmt.Fprintln(os.Stderr, "--sku is required")
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
		logger.Error().Err(err).Msg("product lookup failed to connect")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer registry.Close()

	reader := catalog.NewReader(catalog.NewStore(pool))
	view, err := reader.GetProduct(ctx, *sku)
	if err != nil {
		if catalog.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "Not found: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		return 1
	}

	if err := printJSON(view); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print product: %v\n", err)
		return 1
	}
	return 0
}
