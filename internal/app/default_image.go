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

func runSetDefaultImage(args []string) int {
	fs := flag.NewFlagSet("set-default-image", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")
	tenantSlug := fs.String("tenant", "", "Tenant slug (defaults to DEFAULT_TENANT)")
	imageUUID := fs.String("image", "", "UUID of the image")
	unset := fs.Bool("unset", false, "Clear the default flag instead of setting it")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*imageUUID) == "" {
		fmt.Fprintln(os.Stderr, "--image is required")
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
		logger.Error().Err(err).Msg("set-default-image failed to connect")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer registry.Close()

	ingestor := catalog.NewIngestor(catalog.NewStore(pool), logger)
	if err := ingestor.SetDefaultImage(ctx, *imageUUID, !*unset); err != nil {
		if catalog.IsNotFound(err) {
			fmt.Fprintf(os.Stderr, "Refused: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Failed: %v\n", err)
		return 1
	}

	fmt.Printf("image_uuid=%s is_default=%t\n", strings.TrimSpace(*imageUUID), !*unset)
	return 0
}
