package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestResolveProduct_ExistingSKU(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	existingID := store.addProduct("SKU-1", "Silk saree", []string{"silk"})

	resolver := NewResolver(store, zerolog.Nop())
	product, err := resolver.ResolveProduct(context.Background(), ProductRequest{SKU: "SKU-1"})
	if err != nil {
		t.Fatalf("resolve product: %v", err)
	}
	if product.ProductID != existingID {
		t.Fatalf("expected existing product %d, got %d", existingID, product.ProductID)
	}
	if len(store.state.products) != 1 {
		t.Fatalf("expected no new product rows, got %d", len(store.state.products))
	}
}

func TestResolveProduct_CreatesWhenAbsent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())

	product, err := resolver.ResolveProduct(context.Background(), ProductRequest{
		SKU:   "SKU-NEW",
		Title: "Kantha stole",
		Tags:  []string{"kantha", "kantha", "stole"},
	})
	if err != nil {
		t.Fatalf("resolve product: %v", err)
	}
	if product.BaseSKU == nil || *product.BaseSKU != "SKU-NEW" {
		t.Fatalf("unexpected sku on created product: %v", product.BaseSKU)
	}
	if len(product.Tags) != 2 {
		t.Fatalf("expected request tags deduped to 2 elements, got %v", product.Tags)
	}
}

func TestResolveProduct_SynthesizesSKU(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())

	first, err := resolver.ResolveProduct(context.Background(), ProductRequest{Title: "Untitled upload"})
	if err != nil {
		t.Fatalf("resolve product: %v", err)
	}
	second, err := resolver.ResolveProduct(context.Background(), ProductRequest{Title: "Untitled upload"})
	if err != nil {
		t.Fatalf("resolve product: %v", err)
	}

	if first.BaseSKU == nil || !strings.HasPrefix(*first.BaseSKU, "AUTO-") {
		t.Fatalf("expected synthesized AUTO- sku, got %v", first.BaseSKU)
	}
	if *first.BaseSKU == *second.BaseSKU {
		t.Fatalf("expected distinct synthesized SKUs, both were %q", *first.BaseSKU)
	}
}

func TestResolveProduct_LostRaceResolvesToWinner(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())

	// A concurrent caller wins the insert between this caller's miss and
	// its insert. The fake's conflict path models that: the row exists by
	// the time InsertProductIfAbsent runs.
	winnerID := store.addProduct("SKU-RACE", "Winner", nil)
	// Force the initial read to miss by resolving through the insert path:
	// the fake returns (nil, false, nil) because the SKU is taken, and the
	// resolver re-reads.
	product, err := resolver.ResolveProduct(context.Background(), ProductRequest{SKU: " SKU-RACE "})
	if err != nil {
		t.Fatalf("resolve product: %v", err)
	}
	if product.ProductID != winnerID {
		t.Fatalf("expected winner product %d, got %d", winnerID, product.ProductID)
	}
}

func TestResolveVariant_MatchesNullAware(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	productID := store.addProduct("SKU-1", "Saree", nil)
	matchID := store.addVariant(productID, Attributes{Color: strPtr("Red"), Fabric: strPtr("Silk")})
	store.addVariant(productID, Attributes{Color: strPtr("Red"), Fabric: strPtr("Silk"), StitchType: strPtr("Kantha")})

	resolver := NewResolver(store, zerolog.Nop())
	variant, err := resolver.ResolveVariant(context.Background(), productID, VariantRequest{
		Attributes: Attributes{Color: strPtr("Red"), Fabric: strPtr("Silk")},
	})
	if err != nil {
		t.Fatalf("resolve variant: %v", err)
	}
	if variant.VariantID != matchID {
		t.Fatalf("expected variant %d, got %d", matchID, variant.VariantID)
	}
	if len(store.state.variants) != 2 {
		t.Fatalf("expected no new variant rows, got %d", len(store.state.variants))
	}
}

func TestResolveVariant_CreatesWhenNoMatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	productID := store.addProduct("SKU-1", "Saree", nil)
	store.addVariant(productID, Attributes{Color: strPtr("Red")})

	resolver := NewResolver(store, zerolog.Nop())
	variant, err := resolver.ResolveVariant(context.Background(), productID, VariantRequest{
		Attributes:     Attributes{Color: strPtr("Blue"), WorkHeaviness: strPtr("Heavy")},
		SearchKeywords: []string{"blue", "heavy work"},
	})
	if err != nil {
		t.Fatalf("resolve variant: %v", err)
	}
	if variant.Color == nil || *variant.Color != "Blue" {
		t.Fatalf("unexpected color on created variant: %v", variant.Color)
	}
	if len(store.state.variants) != 2 {
		t.Fatalf("expected a new variant row, got %d total", len(store.state.variants))
	}
}

func TestResolveVariant_EarliestCreatedWinsOnDuplicates(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	productID := store.addProduct("SKU-1", "Saree", nil)
	// Bad legacy data: two variants with the identical attribute tuple.
	earliestID := store.addVariant(productID, Attributes{Color: strPtr("Red"), Fabric: strPtr("Silk")})
	store.addVariant(productID, Attributes{Color: strPtr("Red"), Fabric: strPtr("Silk")})

	resolver := NewResolver(store, zerolog.Nop())
	variant, err := resolver.ResolveVariant(context.Background(), productID, VariantRequest{
		Attributes: Attributes{Color: strPtr("Red"), Fabric: strPtr("Silk")},
	})
	if err != nil {
		t.Fatalf("resolve variant: %v", err)
	}
	if variant.VariantID != earliestID {
		t.Fatalf("expected earliest variant %d, got %d", earliestID, variant.VariantID)
	}
}

func TestResolveVariant_RequiresProduct(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(newFakeStore(), zerolog.Nop())
	if _, err := resolver.ResolveVariant(context.Background(), 0, VariantRequest{}); err == nil {
		t.Fatalf("expected error for missing product id")
	}
}
