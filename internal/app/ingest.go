package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"karigari.shop/catalog/internal/catalog"
	"karigari.shop/catalog/internal/cli"
	payloadschema "karigari.shop/catalog/schema"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	tenantSlug := fs.String("tenant", "", "Tenant slug (defaults to DEFAULT_TENANT)")
	payload := fs.String("payload", "", "Upload payload JSON")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	upload, err := payloadschema.ValidateUploadPayload(payloadJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	uploadedAt, err := parseOptionalRFC3339("image.uploaded_at", optionalString(upload.Image.UploadedAt))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
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
		logger.Error().Err(err).Msg("ingest failed to connect")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer registry.Close()

	store := catalog.NewStore(pool)
	resolver := catalog.NewResolver(store, logger)
	ingestor := catalog.NewIngestor(store, logger)

	productReq := catalog.ProductRequest{
		SKU:   optionalString(upload.Product.SKU),
		Title: upload.Product.Title,
		Tags:  upload.Product.Tags,
	}
	product, err := resolver.ResolveProduct(ctx, productReq)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Resolve product failed: %v\n", err)
		return 1
	}

	variant, err := resolver.ResolveVariant(ctx, product.ProductID, catalog.VariantRequest{
		Attributes: catalog.Attributes{
			Color:         upload.Variant.Color,
			Fabric:        upload.Variant.Fabric,
			StitchType:    upload.Variant.StitchType,
			WorkHeaviness: upload.Variant.WorkHeaviness,
		},
		SearchKeywords: upload.Variant.SearchKeywords,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Resolve variant failed: %v\n", err)
		return 1
	}

	imageMeta := catalog.ImageMetadata{
		StoragePath:  upload.Image.StoragePath,
		Phash:        upload.Image.Phash,
		QualityScore: upload.Image.QualityScore,
	}
	if uploadedAt != nil {
		imageMeta.UploadedAt = *uploadedAt
	}

	listingMeta := catalog.ListingMetadata{
		SellerID:    upload.Listing.SellerID,
		Price:       upload.Listing.Price,
		Currency:    upload.Listing.Currency,
		Description: optionalString(upload.Listing.Description),
	}

	image, err := ingestor.SaveIngestionData(ctx, variant.VariantID, imageMeta, listingMeta)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf("product_id=%d variant_id=%d image_id=%d status=%d\n",
		product.ProductID, variant.VariantID, image.ImageID, image.Status)
	fmt.Printf("product_uuid=%s\n", product.ProductUUID)
	fmt.Printf("variant_uuid=%s\n", variant.VariantUUID)
	fmt.Printf("image_uuid=%s\n", image.ImageUUID)
	if product.BaseSKU != nil {
		fmt.Printf("base_sku=%s\n", *product.BaseSKU)
	}
	return 0
}
