package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"karigari.shop/catalog/internal/db"
)

// MergeRequest identifies the two products a cataloger judged to be the
// same real-world item. Target absorbs source.
type MergeRequest struct {
	TargetSKU    string
	SourceSKU    string
	DeleteSource bool
}

// MergeResult summarizes a committed merge.
type MergeResult struct {
	TargetProductID    int64    `json:"target_product_id"`
	SourceProductID    int64    `json:"source_product_id"`
	ReparentedVariants int64    `json:"reparented_variants"`
	Tags               []string `json:"tags"`
	SupersededImages   int      `json:"superseded_images"`
	SourceDeleted      bool     `json:"source_deleted"`
}

// Merger runs the merge workflow: reparent variants, union tags,
// deduplicate images, enqueue deletions, optionally drop the source. All
// steps share one transaction.
type Merger struct {
	store  Store
	judge  *Judge
	queue  *QueueWriter
	logger zerolog.Logger
}

func NewMerger(store Store, logger zerolog.Logger) *Merger {
	return &Merger{
		store:  store,
		judge:  NewJudge(logger),
		queue:  NewQueueWriter(logger),
		logger: logger,
	}
}

// MergeProducts merges source into target. A missing SKU fails with
// NotFoundError before anything mutates; every later failure rolls the
// whole transaction back and surfaces as MergeFailedError.
func (m *Merger) MergeProducts(ctx context.Context, req MergeRequest) (*MergeResult, error) {
	targetSKU := strings.TrimSpace(req.TargetSKU)
	sourceSKU := strings.TrimSpace(req.SourceSKU)
	if targetSKU == "" || sourceSKU == "" {
		return nil, fmt.Errorf("target and source SKUs are required")
	}
	if targetSKU == sourceSKU {
		return nil, fmt.Errorf("target and source SKUs must differ")
	}

	var result MergeResult
	err := m.store.WithTx(ctx, func(tx Tx) error {
		target, source, err := m.lookupPair(ctx, tx, targetSKU, sourceSKU)
		if err != nil {
			return err
		}

		// Serialize against concurrent merges touching either product.
		// Lock order is ascending id on both sides, so two merges over the
		// same pair cannot deadlock. Re-read after acquiring: the pair may
		// have changed while this transaction waited.
		if err := tx.LockProducts(ctx, target.ProductID, source.ProductID); err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		target, source, err = m.lookupPair(ctx, tx, targetSKU, sourceSKU)
		if err != nil {
			return err
		}

		reparented, err := tx.ReparentVariants(ctx, source.ProductID, target.ProductID)
		if err != nil {
			return fmt.Errorf("reparent variants: %w", err)
		}

		// Source tags were read above, before any destructive step.
		tags := unionTags(target.Tags, source.Tags)
		if err := tx.UpdateProductTags(ctx, target.ProductID, tags); err != nil {
			return fmt.Errorf("union tags: %w", err)
		}

		variantIDs, err := tx.ListVariantIDsByProduct(ctx, target.ProductID)
		if err != nil {
			return fmt.Errorf("list merged variants: %w", err)
		}

		superseded, err := m.judge.Deduplicate(ctx, tx, variantIDs)
		if err != nil {
			return fmt.Errorf("deduplicate images: %w", err)
		}

		for _, image := range superseded {
			if _, err := m.queue.Enqueue(ctx, tx, image.ImageID, image.StoragePath); err != nil {
				return fmt.Errorf("enqueue deletion for image %d: %w", image.ImageID, err)
			}
		}

		sourceDeleted := false
		if req.DeleteSource {
			affected, err := tx.DeleteProduct(ctx, source.ProductID)
			if err != nil {
				return fmt.Errorf("delete source product: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("source product %d vanished mid-merge", source.ProductID)
			}
			sourceDeleted = true
		}

		result = MergeResult{
			TargetProductID:    target.ProductID,
			SourceProductID:    source.ProductID,
			ReparentedVariants: reparented,
			Tags:               tags,
			SupersededImages:   len(superseded),
			SourceDeleted:      sourceDeleted,
		}
		return nil
	})
	if err != nil {
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			return nil, notFound
		}
		return nil, &MergeFailedError{Err: err}
	}

	m.logger.Info().
		Str("target_sku", targetSKU).
		Str("source_sku", sourceSKU).
		Int64("reparented_variants", result.ReparentedVariants).
		Int("superseded_images", result.SupersededImages).
		Bool("source_deleted", result.SourceDeleted).
		Msg("products merged")
	return &result, nil
}

// DedupReport summarizes a standalone dedup pass over one product.
type DedupReport struct {
	ProductID        int64 `json:"product_id"`
	Variants         int   `json:"variants"`
	SupersededImages int   `json:"superseded_images"`
}

// DeduplicateProduct runs the image dedup pass over one product outside a
// merge. Useful when phashes arrive late or a previous pass was skipped.
func (m *Merger) DeduplicateProduct(ctx context.Context, sku string) (*DedupReport, error) {
	trimmedSKU := strings.TrimSpace(sku)
	if trimmedSKU == "" {
		return nil, fmt.Errorf("sku is required")
	}

	var report DedupReport
	err := m.store.WithTx(ctx, func(tx Tx) error {
		product, err := tx.GetProductBySKU(ctx, trimmedSKU)
		if err != nil {
			if db.IsNoRows(err) {
				return &NotFoundError{Msg: fmt.Sprintf("product with sku %q does not exist", trimmedSKU)}
			}
			return fmt.Errorf("lookup product: %w", err)
		}

		if err := tx.LockProducts(ctx, product.ProductID); err != nil {
			return fmt.Errorf("lock product: %w", err)
		}

		variantIDs, err := tx.ListVariantIDsByProduct(ctx, product.ProductID)
		if err != nil {
			return fmt.Errorf("list variants: %w", err)
		}

		superseded, err := m.judge.Deduplicate(ctx, tx, variantIDs)
		if err != nil {
			return fmt.Errorf("deduplicate images: %w", err)
		}

		for _, image := range superseded {
			if _, err := m.queue.Enqueue(ctx, tx, image.ImageID, image.StoragePath); err != nil {
				return fmt.Errorf("enqueue deletion for image %d: %w", image.ImageID, err)
			}
		}

		report = DedupReport{
			ProductID:        product.ProductID,
			Variants:         len(variantIDs),
			SupersededImages: len(superseded),
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, err
		}
		return nil, storeError("deduplicate product", err)
	}

	m.logger.Info().
		Str("sku", trimmedSKU).
		Int("superseded_images", report.SupersededImages).
		Msg("product deduplicated")
	return &report, nil
}

func (m *Merger) lookupPair(ctx context.Context, tx Tx, targetSKU, sourceSKU string) (*db.ProductRow, *db.ProductRow, error) {
	target, err := tx.GetProductBySKU(ctx, targetSKU)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, &NotFoundError{Msg: "target and source SKUs must both exist"}
		}
		return nil, nil, fmt.Errorf("lookup target product: %w", err)
	}

	source, err := tx.GetProductBySKU(ctx, sourceSKU)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil, &NotFoundError{Msg: "target and source SKUs must both exist"}
		}
		return nil, nil, fmt.Errorf("lookup source product: %w", err)
	}

	return target, source, nil
}

// unionTags collapses duplicates, keeping target order first and appending
// tags only the source carried.
func unionTags(target, source []string) []string {
	out := make([]string, 0, len(target)+len(source))
	seen := make(map[string]struct{}, len(target)+len(source))
	for _, list := range [][]string{target, source} {
		for _, value := range list {
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
	}
	return out
}
