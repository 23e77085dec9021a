package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"karigari.shop/catalog/internal/globaltime"
)

// VariantRow is the read model returned by variant lookups. Ordering is
// created_at ascending, then variant_id, so "earliest wins" tie-breaks are
// simply the first row.
type VariantRow struct {
	VariantID      int64           `json:"variant_id"`
	VariantUUID    string          `json:"variant_uuid"`
	ProductID      int64           `json:"product_id"`
	Color          *string         `json:"color,omitempty"`
	Fabric         *string         `json:"fabric,omitempty"`
	StitchType     *string         `json:"stitch_type,omitempty"`
	WorkHeaviness  *string         `json:"work_heaviness,omitempty"`
	SearchKeywords []string        `json:"search_keywords"`
	Attributes     json.RawMessage `json:"attributes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewVariant carries the insertable fields for a variant row.
type NewVariant struct {
	ProductID      int64
	Color          *string
	Fabric         *string
	StitchType     *string
	WorkHeaviness  *string
	SearchKeywords []string
	Attributes     map[string]any
}

const variantColumns = `
	v.variant_id,
	v.variant_uuid::text,
	v.product_id,
	v.color,
	v.fabric,
	v.stitch_type,
	v.work_heaviness,
	v.search_keywords,
	v.attributes,
	v.created_at
`

// ListVariantsByProduct returns every variant owned by the product, earliest
// first.
func (s *Queries) ListVariantsByProduct(ctx context.Context, productID int64) ([]VariantRow, error) {
	q := `
SELECT` + variantColumns + `
FROM catalog.product_variants v
WHERE v.product_id = $1
ORDER BY v.created_at ASC, v.variant_id ASC
`

	rows, err := s.q.Query(ctx, q, productID)
	if err != nil {
		return nil, fmt.Errorf("query variants by product: %w", err)
	}
	defer rows.Close()

	return scanVariantRows(rows)
}

// ListVariantIDsByProduct returns the ids of every variant owned by the
// product.
func (s *Queries) ListVariantIDsByProduct(ctx context.Context, productID int64) ([]int64, error) {
	const q = `
SELECT v.variant_id
FROM catalog.product_variants v
WHERE v.product_id = $1
ORDER BY v.variant_id ASC
`

	rows, err := s.q.Query(ctx, q, productID)
	if err != nil {
		return nil, fmt.Errorf("query variant ids by product: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 8)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan variant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant ids: %w", err)
	}
	return ids, nil
}

// InsertVariant inserts one variant row and returns it.
func (s *Queries) InsertVariant(ctx context.Context, row NewVariant) (*VariantRow, error) {
	if row.ProductID <= 0 {
		return nil, fmt.Errorf("product id is required")
	}

	keywordsJSON, err := encodeStringList(row.SearchKeywords)
	if err != nil {
		return nil, fmt.Errorf("encode search keywords: %w", err)
	}

	var attributesJSON any
	if row.Attributes != nil {
		encoded, err := json.Marshal(row.Attributes)
		if err != nil {
			return nil, fmt.Errorf("encode variant attributes: %w", err)
		}
		attributesJSON = string(encoded)
	}

	now := globaltime.UTC()

	const q = `
INSERT INTO catalog.product_variants
	(product_id, color, fabric, stitch_type, work_heaviness, search_keywords, attributes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $8)
RETURNING
	variant_id,
	variant_uuid::text,
	product_id,
	color,
	fabric,
	stitch_type,
	work_heaviness,
	search_keywords,
	attributes,
	created_at
`

	var inserted VariantRow
	var keywordsRaw []byte
	if err := s.q.QueryRow(ctx, q,
		row.ProductID,
		row.Color,
		row.Fabric,
		row.StitchType,
		row.WorkHeaviness,
		keywordsJSON,
		attributesJSON,
		now,
	).Scan(
		&inserted.VariantID,
		&inserted.VariantUUID,
		&inserted.ProductID,
		&inserted.Color,
		&inserted.Fabric,
		&inserted.StitchType,
		&inserted.WorkHeaviness,
		&keywordsRaw,
		&inserted.Attributes,
		&inserted.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert variant: %w", err)
	}

	keywords, err := decodeStringList(keywordsRaw)
	if err != nil {
		return nil, fmt.Errorf("decode search keywords: %w", err)
	}
	inserted.SearchKeywords = keywords
	return &inserted, nil
}

// ReparentVariants moves every variant of sourceProductID under
// targetProductID and reports how many rows moved.
func (s *Queries) ReparentVariants(ctx context.Context, sourceProductID, targetProductID int64) (int64, error) {
	const q = `
UPDATE catalog.product_variants
SET
	product_id = $2,
	updated_at = $3
WHERE product_id = $1
`
	tag, err := s.q.Exec(ctx, q, sourceProductID, targetProductID, globaltime.UTC())
	if err != nil {
		return 0, fmt.Errorf("reparent variants: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanVariantRows(rows *Rows) ([]VariantRow, error) {
	items := make([]VariantRow, 0, 8)
	for rows.Next() {
		var row VariantRow
		var keywordsRaw []byte
		if err := rows.Scan(
			&row.VariantID,
			&row.VariantUUID,
			&row.ProductID,
			&row.Color,
			&row.Fabric,
			&row.StitchType,
			&row.WorkHeaviness,
			&keywordsRaw,
			&row.Attributes,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}

		keywords, err := decodeStringList(keywordsRaw)
		if err != nil {
			return nil, fmt.Errorf("decode search keywords: %w", err)
		}
		row.SearchKeywords = keywords
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}
	return items, nil
}
