package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"karigari.shop/catalog/internal/globaltime"
)

// ProductRow is the read model returned by product lookups.
type ProductRow struct {
	ProductID   int64     `json:"product_id"`
	ProductUUID string    `json:"product_uuid"`
	BaseSKU     *string   `json:"base_sku,omitempty"`
	Title       string    `json:"title"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewProduct carries the insertable fields for a product row.
type NewProduct struct {
	BaseSKU string
	Title   string
	Tags    []string
}

// GetProductBySKU returns the product owning the exact base SKU, or ErrNoRows.
func (s *Queries) GetProductBySKU(ctx context.Context, sku string) (*ProductRow, error) {
	trimmedSKU := strings.TrimSpace(sku)
	if trimmedSKU == "" {
		return nil, fmt.Errorf("sku is required")
	}

	const q = `
SELECT
	p.product_id,
	p.product_uuid::text,
	p.base_sku,
	p.title,
	p.tags,
	p.created_at,
	p.updated_at
FROM catalog.products p
WHERE p.base_sku = $1
`

	var row ProductRow
	var tagsRaw []byte
	if err := s.q.QueryRow(ctx, q, trimmedSKU).Scan(
		&row.ProductID,
		&row.ProductUUID,
		&row.BaseSKU,
		&row.Title,
		&tagsRaw,
		&row.CreatedAt,
		&row.UpdatedAt,
	); err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query product by sku: %w", err)
	}

	tags, err := decodeStringList(tagsRaw)
	if err != nil {
		return nil, fmt.Errorf("decode product tags: %w", err)
	}
	row.Tags = tags
	return &row, nil
}

// InsertProductIfAbsent inserts a product and returns it, or (nil, false,
// nil) when another row already owns the SKU. Callers resolve the conflict
// by re-reading.
func (s *Queries) InsertProductIfAbsent(ctx context.Context, row NewProduct) (*ProductRow, bool, error) {
	trimmedSKU := strings.TrimSpace(row.BaseSKU)
	if trimmedSKU == "" {
		return nil, false, fmt.Errorf("base sku is required")
	}

	tagsJSON, err := encodeStringList(row.Tags)
	if err != nil {
		return nil, false, fmt.Errorf("encode product tags: %w", err)
	}

	now := globaltime.UTC()

	const q = `
INSERT INTO catalog.products (base_sku, title, tags, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, $4, $4)
ON CONFLICT (base_sku) WHERE base_sku IS NOT NULL DO NOTHING
RETURNING product_id, product_uuid::text, base_sku, title, tags, created_at, updated_at
`

	var inserted ProductRow
	var tagsRaw []byte
	if err := s.q.QueryRow(ctx, q, trimmedSKU, strings.TrimSpace(row.Title), tagsJSON, now).Scan(
		&inserted.ProductID,
		&inserted.ProductUUID,
		&inserted.BaseSKU,
		&inserted.Title,
		&tagsRaw,
		&inserted.CreatedAt,
		&inserted.UpdatedAt,
	); err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("insert product: %w", err)
	}

	tags, err := decodeStringList(tagsRaw)
	if err != nil {
		return nil, false, fmt.Errorf("decode product tags: %w", err)
	}
	inserted.Tags = tags
	return &inserted, true, nil
}

// LockProducts takes transaction-scoped advisory locks on the given product
// ids in ascending order. Locks release on commit or rollback.
func (s *Queries) LockProducts(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	sorted := make([]int64, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, id := range sorted {
		if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, id); err != nil {
			return fmt.Errorf("advisory lock product %d: %w", id, err)
		}
	}
	return nil
}

// UpdateProductTags replaces the tag set of one product.
func (s *Queries) UpdateProductTags(ctx context.Context, productID int64, tags []string) error {
	tagsJSON, err := encodeStringList(tags)
	if err != nil {
		return fmt.Errorf("encode product tags: %w", err)
	}

	const q = `
UPDATE catalog.products
SET
	tags = $2::jsonb,
	updated_at = $3
WHERE product_id = $1
`
	tag, err := s.q.Exec(ctx, q, productID, tagsJSON, globaltime.UTC())
	if err != nil {
		return fmt.Errorf("update product tags: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// DeleteProduct removes one product row and reports how many rows matched.
func (s *Queries) DeleteProduct(ctx context.Context, productID int64) (int64, error) {
	const q = `
DELETE FROM catalog.products
WHERE product_id = $1
`
	tag, err := s.q.Exec(ctx, q, productID)
	if err != nil {
		return 0, fmt.Errorf("delete product: %w", err)
	}
	return tag.RowsAffected(), nil
}

func encodeStringList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeStringList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
