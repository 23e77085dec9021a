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

func runMerge(args []string) int {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	tenantSlug := fs.String("tenant", "", "Tenant slug (defaults to DEFAULT_TENANT)")
	targetSKU := fs.String("target", "", "SKU of the product that absorbs the source")
	sourceSKU := fs.String("source", "", "SKU of the product to merge away")
	deleteSource := fs.Bool("delete-source", false, "Delete the source product after the merge")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*targetSKU) == "" || strings.TrimSpace(*sourceSKU) == "" {
		fmt.Fprintln(os.Stderr, "--target and --source are required")
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
		logger.Error().Err(err).Msg("merge failed to connect")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer registry.Close()

	merger := catalog.NewMerger(catalog.NewStore(pool), logger)
	result, err := merger.MergeProducts(ctx, catalog.MergeRequest{
		TargetSKU:    *targetSKU,
		SourceSKU:    *sourceSKU,
		DeleteSource: *deleteSource,
	})
	if err != nil {
		if catalog.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "Merge refused: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Merge failed: %v\n", err)
		return 1
	}

	if err := printJSON(result); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to print result: %v\n", err)
		return 1
	}
	return 0
}
