package catalog

import (
	"context"
	"fmt"
	"strings"

	"karigari.shop/catalog/internal/db"
)

// ProductView is the catalog-facing read model for one product: its
// variants and their visible images. PendingDelete images never appear.
type ProductView struct {
	Product  db.ProductRow `json:"product"`
	Variants []VariantView `json:"variants"`
}

type VariantView struct {
	Variant db.VariantRow `json:"variant"`
	Images  []db.ImageRow `json:"images"`
}

// Reader serves read-only product lookups for the API surface.
type Reader struct {
	store Store
}

func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

// GetProduct returns one product by SKU with its variants and images.
func (r *Reader) GetProduct(ctx context.Context, sku string) (*ProductView, error) {
	trimmedSKU := strings.TrimSpace(sku)
	if trimmedSKU == "" {
		return nil, fmt.Errorf("sku is required")
	}

	product, err := r.store.GetProductBySKU(ctx, trimmedSKU)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, &NotFoundError{Msg: fmt.Sprintf("product with sku %q does not exist", trimmedSKU)}
		}
		return nil, storeError("read product", err)
	}

	variants, err := r.store.ListVariantsByProduct(ctx, product.ProductID)
	if err != nil {
		return nil, storeError("read variants", err)
	}

	variantIDs := make([]int64, 0, len(variants))
	for _, variant := range variants {
		variantIDs = append(variantIDs, variant.VariantID)
	}

	images, err := r.store.ListImagesByVariants(ctx, variantIDs)
	if err != nil {
		return nil, storeError("read images", err)
	}

	byVariant := make(map[int64][]db.ImageRow, len(variants))
	for _, image := range images {
		byVariant[image.VariantID] = append(byVariant[image.VariantID], image)
	}

	views := make([]VariantView, 0, len(variants))
	for _, variant := range variants {
		imageList := byVariant[variant.VariantID]
		if imageList == nil {
			imageList = []db.ImageRow{}
		}
		views = append(views, VariantView{
			Variant: variant,
			Images:  imageList,
		})
	}

	return &ProductView{
		Product:  *product,
		Variants: views,
	}, nil
}
