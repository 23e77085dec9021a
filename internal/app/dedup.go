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

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	tenantSlug := fs.String("tenant", "", "Tenant slug (defaults to DEFAULT_TENANT)")
	sku := fs.String("sku", "", "SKU of the product to deduplicate")

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
		logger.Error().Err(err).Msg("dedup failed to connect")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer registry.Close()

	merger := catalog.NewMerger(catalog.NewStore(pool), logger)
	report, err := merger.DeduplicateProduct(ctx, *sku)
	if err != nil {
		if catalog.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "Dedup refused: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Dedup failed: %v\n", err)
		return 1
	}

	fmt.Printf("product_id=%d variants=%d superseded_images=%d\n",
		report.ProductID, report.Variants, report.SupersededImages)
	return 0
}
