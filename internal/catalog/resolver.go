package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"karigari.shop/catalog/internal/db"
)

// ProductRequest carries the descriptive upload fields the resolver maps to
// a canonical product. SKU may be empty; one is synthesized.
type ProductRequest struct {
	SKU   string
	Title string
	Tags  []string
}

// VariantRequest carries the attribute tuple plus the free-form payload
// stored on a newly created variant.
type VariantRequest struct {
	Attributes     Attributes
	SearchKeywords []string
	ExtraAttrs     map[string]any
}

// Resolver finds or creates the Product and ProductVariant rows an upload
// resolves to.
type Resolver struct {
	store  Store
	logger zerolog.Logger
}

func NewResolver(store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// ResolveProduct returns the product owning the request's SKU, creating it
// when absent. A lost creation race resolves to the winner's row; only an
// unresolvable conflict surfaces as ConflictError.
func (r *Resolver) ResolveProduct(ctx context.Context, req ProductRequest) (*db.ProductRow, error) {
	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		synthesized, err := synthesizeSKU()
		if err != nil {
			return nil, fmt.Errorf("synthesize sku: %w", err)
		}
		sku = synthesized
	} else {
		existing, err := r.store.GetProductBySKU(ctx, sku)
		if err == nil {
			return existing, nil
		}
		if !db.IsNoRows(err) {
			return nil, storeError("resolve product", err)
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = sku
	}

	inserted, created, err := r.store.InsertProductIfAbsent(ctx, db.NewProduct{
		BaseSKU: sku,
		Title:   title,
		Tags:    dedupeTags(req.Tags),
	})
	if err != nil {
		return nil, storeError("create product", err)
	}
	if created {
		r.logger.Info().
			Str("sku", sku).
			Int64("product_id", inserted.ProductID).
			Msg("product created")
		return inserted, nil
	}

	// Lost the insert race: the concurrent winner's row is the resolution.
	winner, err := r.store.GetProductBySKU(ctx, sku)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, &ConflictError{Msg: fmt.Sprintf("product with sku %q raced and is not readable", sku)}
		}
		return nil, storeError("re-read product after conflict", err)
	}
	return winner, nil
}

// ResolveVariant returns the variant under the product matching the
// attribute tuple, creating one when no variant matches. When bad data
// already holds several matching variants, the earliest created wins.
func (r *Resolver) ResolveVariant(ctx context.Context, productID int64, req VariantRequest) (*db.VariantRow, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("product id is required")
	}

	attrs := req.Attributes.Normalize()

	variants, err := r.store.ListVariantsByProduct(ctx, productID)
	if err != nil {
		return nil, storeError("list variants", err)
	}

	// Rows arrive ordered created_at asc, variant_id asc, so the first
	// match is the deterministic earliest-created tie-break.
	matched := 0
	var first *db.VariantRow
	for i := range variants {
		if attrs.Matches(variantAttributes(variants[i])) {
			if first == nil {
				first = &variants[i]
			}
			matched++
		}
	}
	if first != nil {
		if matched > 1 {
			r.logger.Warn().
				Int64("product_id", productID).
				Int("matches", matched).
				Int64("variant_id", first.VariantID).
				Msg("multiple variants match attribute tuple, using earliest created")
		}
		return first, nil
	}

	inserted, err := r.store.InsertVariant(ctx, db.NewVariant{
		ProductID:      productID,
		Color:          attrs.Color,
		Fabric:         attrs.Fabric,
		StitchType:     attrs.StitchType,
		WorkHeaviness:  attrs.WorkHeaviness,
		SearchKeywords: dedupeTags(req.SearchKeywords),
		Attributes:     req.ExtraAttrs,
	})
	if err != nil {
		return nil, storeError("create variant", err)
	}

	r.logger.Info().
		Int64("product_id", productID).
		Int64("variant_id", inserted.VariantID).
		Msg("variant created")
	return inserted, nil
}

// synthesizeSKU mints a unique SKU for uploads that arrived without one.
// The format is an implementation detail, not part of the contract.
func synthesizeSKU() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "AUTO-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

func dedupeTags(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		tag := strings.TrimSpace(value)
		if tag == "" {
			continue
		}
		if _, exists := seen[tag]; exists {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
