package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"karigari.shop/catalog/internal/globaltime"
)

// ImageRow is the read model returned by image lookups.
type ImageRow struct {
	ImageID      int64     `json:"image_id"`
	ImageUUID    string    `json:"image_uuid"`
	VariantID    int64     `json:"variant_id"`
	StoragePath  string    `json:"storage_path"`
	Phash        *string   `json:"phash,omitempty"`
	QualityScore *float64  `json:"quality_score,omitempty"`
	Status       int16     `json:"status"`
	IsDefault    bool      `json:"is_default"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// NewImage carries the insertable fields for an image row.
type NewImage struct {
	VariantID    int64
	StoragePath  string
	Phash        *string
	QualityScore *float64
	UploadedAt   time.Time
}

// NewListing carries the insertable fields for a seller listing row.
type NewListing struct {
	VariantID   int64
	SellerID    string
	Price       float64
	Currency    string
	Description string
}

// DedupImage is the slice of an image the deduplication ranking needs.
type DedupImage struct {
	ImageID      int64
	VariantID    int64
	StoragePath  string
	Phash        string
	QualityScore *float64
	UploadedAt   time.Time
}

const imageColumns = `
	i.image_id,
	i.image_uuid::text,
	i.variant_id,
	i.storage_path,
	i.phash,
	i.quality_score,
	i.status,
	i.is_default,
	i.uploaded_at
`

// InsertImage inserts one image row in status Uploaded and returns it.
func (s *Queries) InsertImage(ctx context.Context, row NewImage) (*ImageRow, error) {
	if row.VariantID <= 0 {
		return nil, fmt.Errorf("variant id is required")
	}
	if strings.TrimSpace(row.StoragePath) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	uploadedAt := row.UploadedAt.UTC()
	if uploadedAt.IsZero() {
		uploadedAt = globaltime.UTC()
	}

	const q = `
INSERT INTO catalog.images
	(variant_id, storage_path, phash, quality_score, status, uploaded_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
RETURNING
	image_id,
	image_uuid::text,
	variant_id,
	storage_path,
	phash,
	quality_score,
	status,
	is_default,
	uploaded_at
`

	var inserted ImageRow
	if err := s.q.QueryRow(ctx, q,
		row.VariantID,
		strings.TrimSpace(row.StoragePath),
		row.Phash,
		row.QualityScore,
		ImageStatusUploaded,
		uploadedAt,
	).Scan(
		&inserted.ImageID,
		&inserted.ImageUUID,
		&inserted.VariantID,
		&inserted.StoragePath,
		&inserted.Phash,
		&inserted.QualityScore,
		&inserted.Status,
		&inserted.IsDefault,
		&inserted.UploadedAt,
	); err != nil {
		return nil, fmt.Errorf("insert image: %w", err)
	}
	return &inserted, nil
}

// InsertListing inserts one seller listing row and returns its id.
func (s *Queries) InsertListing(ctx context.Context, row NewListing) (int64, error) {
	if row.VariantID <= 0 {
		return 0, fmt.Errorf("variant id is required")
	}
	if strings.TrimSpace(row.SellerID) == "" {
		return 0, fmt.Errorf("seller id is required")
	}
	if strings.TrimSpace(row.Currency) == "" {
		return 0, fmt.Errorf("currency is required")
	}

	const q = `
INSERT INTO catalog.seller_listings
	(variant_id, seller_id, price, currency, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING listing_id
`

	var listingID int64
	if err := s.q.QueryRow(ctx, q,
		row.VariantID,
		strings.TrimSpace(row.SellerID),
		row.Price,
		strings.ToUpper(strings.TrimSpace(row.Currency)),
		row.Description,
		globaltime.UTC(),
	).Scan(&listingID); err != nil {
		return 0, fmt.Errorf("insert listing: %w", err)
	}
	return listingID, nil
}

// GetImageByUUID returns one image by its external UUID, or ErrNoRows.
func (s *Queries) GetImageByUUID(ctx context.Context, imageUUID string) (*ImageRow, error) {
	trimmedUUID := strings.TrimSpace(imageUUID)
	if trimmedUUID == "" {
		return nil, fmt.Errorf("image UUID is required")
	}

	q := `
SELECT` + imageColumns + `
FROM catalog.images i
WHERE i.image_uuid = $1::uuid
`

	var row ImageRow
	if err := s.q.QueryRow(ctx, q, trimmedUUID).Scan(
		&row.ImageID,
		&row.ImageUUID,
		&row.VariantID,
		&row.StoragePath,
		&row.Phash,
		&row.QualityScore,
		&row.Status,
		&row.IsDefault,
		&row.UploadedAt,
	); err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, ErrNoRows
		}
		return nil, fmt.Errorf("query image by uuid: %w", err)
	}
	return &row, nil
}

// ListImagesByVariants returns the catalog-facing images of the given
// variants. PendingDelete rows are excluded.
func (s *Queries) ListImagesByVariants(ctx context.Context, variantIDs []int64) ([]ImageRow, error) {
	if len(variantIDs) == 0 {
		return []ImageRow{}, nil
	}

	q := `
SELECT` + imageColumns + `
FROM catalog.images i
WHERE i.variant_id IN (` + int64Placeholders(1, len(variantIDs)) + `)
  AND i.status <> ` + fmt.Sprintf("%d", ImageStatusPendingDelete) + `
ORDER BY i.variant_id ASC, i.uploaded_at ASC, i.image_id ASC
`

	rows, err := s.q.Query(ctx, q, int64Args(variantIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query images by variants: %w", err)
	}
	defer rows.Close()

	items := make([]ImageRow, 0, 8)
	for rows.Next() {
		var row ImageRow
		if err := rows.Scan(
			&row.ImageID,
			&row.ImageUUID,
			&row.VariantID,
			&row.StoragePath,
			&row.Phash,
			&row.QualityScore,
			&row.Status,
			&row.IsDefault,
			&row.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}
	return items, nil
}

// ListDedupCandidates returns every image in the variant set that carries a
// perceptual hash and is not already marked for deletion.
func (s *Queries) ListDedupCandidates(ctx context.Context, variantIDs []int64) ([]DedupImage, error) {
	if len(variantIDs) == 0 {
		return []DedupImage{}, nil
	}

	q := `
SELECT
	i.image_id,
	i.variant_id,
	i.storage_path,
	i.phash,
	i.quality_score,
	i.uploaded_at
FROM catalog.images i
WHERE i.variant_id IN (` + int64Placeholders(1, len(variantIDs)) + `)
  AND i.phash IS NOT NULL
  AND i.status <> ` + fmt.Sprintf("%d", ImageStatusPendingDelete) + `
ORDER BY i.image_id ASC
`

	rows, err := s.q.Query(ctx, q, int64Args(variantIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query dedup candidates: %w", err)
	}
	defer rows.Close()

	items := make([]DedupImage, 0, 8)
	for rows.Next() {
		var row DedupImage
		if err := rows.Scan(
			&row.ImageID,
			&row.VariantID,
			&row.StoragePath,
			&row.Phash,
			&row.QualityScore,
			&row.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan dedup candidate: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dedup candidates: %w", err)
	}
	return items, nil
}

// MarkImagesPendingDelete flips the given images to PendingDelete and
// reports how many rows changed.
func (s *Queries) MarkImagesPendingDelete(ctx context.Context, imageIDs []int64) (int64, error) {
	if len(imageIDs) == 0 {
		return 0, nil
	}

	q := `
UPDATE catalog.images
SET
	status = $1,
	is_default = FALSE,
	updated_at = $2
WHERE image_id IN (` + int64Placeholders(3, len(imageIDs)) + `)
`

	args := append([]any{ImageStatusPendingDelete, globaltime.UTC()}, int64Args(imageIDs)...)
	tag, err := s.q.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("mark images pending delete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EnqueueImageDeletion appends one deletion-queue row and returns its id.
// The worker flags start false and are never written here.
func (s *Queries) EnqueueImageDeletion(ctx context.Context, imageID int64, storagePath string) (int64, error) {
	if imageID <= 0 {
		return 0, fmt.Errorf("image id is required")
	}
	if strings.TrimSpace(storagePath) == "" {
		return 0, fmt.Errorf("storage path is required")
	}

	const q = `
INSERT INTO catalog.image_deletion_queue (image_id, storage_path, created_at)
VALUES ($1, $2, $3)
RETURNING queue_entry_id
`

	var queueEntryID int64
	if err := s.q.QueryRow(ctx, q, imageID, strings.TrimSpace(storagePath), globaltime.UTC()).Scan(&queueEntryID); err != nil {
		return 0, fmt.Errorf("enqueue image deletion: %w", err)
	}
	return queueEntryID, nil
}

// ClearVariantDefault clears the default flag on every image of the variant.
func (s *Queries) ClearVariantDefault(ctx context.Context, variantID int64) error {
	const q = `
UPDATE catalog.images
SET
	is_default = FALSE,
	updated_at = $2
WHERE variant_id = $1
  AND is_default = TRUE
`
	if _, err := s.q.Exec(ctx, q, variantID, globaltime.UTC()); err != nil {
		return fmt.Errorf("clear variant default image: %w", err)
	}
	return nil
}

// SetImageDefault sets or clears the default flag on one image and reports
// how many rows matched.
func (s *Queries) SetImageDefault(ctx context.Context, imageID int64, isDefault bool) (int64, error) {
	const q = `
UPDATE catalog.images
SET
	is_default = $2,
	updated_at = $3
WHERE image_id = $1
`
	tag, err := s.q.Exec(ctx, q, imageID, isDefault, globaltime.UTC())
	if err != nil {
		return 0, fmt.Errorf("set image default flag: %w", err)
	}
	return tag.RowsAffected(), nil
}
