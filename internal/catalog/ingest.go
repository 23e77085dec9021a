package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"karigari.shop/catalog/internal/db"
)

// ImageMetadata describes the uploaded file. The perceptual hash arrives
// precomputed; this engine never derives one.
type ImageMetadata struct {
	StoragePath  string
	Phash        *string
	QualityScore *float64
	UploadedAt   time.Time
}

// ListingMetadata describes the seller offer attached to the upload.
type ListingMetadata struct {
	SellerID    string
	Price       float64
	Currency    string
	Description string
}

// Ingestor persists the image and listing rows of one resolved upload.
type Ingestor struct {
	store  Store
	logger zerolog.Logger
}

func NewIngestor(store Store, logger zerolog.Logger) *Ingestor {
	return &Ingestor{
		store:  store,
		logger: logger,
	}
}

// SaveIngestionData inserts one image and one seller listing in a single
// transaction. Either both rows commit or neither does; blob storage and
// index sync are the caller's follow-up after a successful return.
func (w *Ingestor) SaveIngestionData(ctx context.Context, variantID int64, image ImageMetadata, listing ListingMetadata) (*db.ImageRow, error) {
	if variantID <= 0 {
		return nil, fmt.Errorf("variant id is required")
	}
	if strings.TrimSpace(image.StoragePath) == "" {
		return nil, fmt.Errorf("image storage path is required")
	}
	if strings.TrimSpace(listing.SellerID) == "" {
		return nil, fmt.Errorf("listing seller id is required")
	}
	if strings.TrimSpace(listing.Currency) == "" {
		return nil, fmt.Errorf("listing currency is required")
	}
	if listing.Price < 0 {
		return nil, fmt.Errorf("listing price must be >= 0")
	}

	var saved *db.ImageRow
	err := w.store.WithTx(ctx, func(tx Tx) error {
		inserted, err := tx.InsertImage(ctx, db.NewImage{
			VariantID:    variantID,
			StoragePath:  image.StoragePath,
			Phash:        image.Phash,
			QualityScore: image.QualityScore,
			UploadedAt:   image.UploadedAt,
		})
		if err != nil {
			return err
		}

		if _, err := tx.InsertListing(ctx, db.NewListing{
			VariantID:   variantID,
			SellerID:    listing.SellerID,
			Price:       listing.Price,
			Currency:    listing.Currency,
			Description: listing.Description,
		}); err != nil {
			return err
		}

		saved = inserted
		return nil
	})
	if err != nil {
		return nil, storeError("save ingestion data", err)
	}

	w.logger.Info().
		Int64("variant_id", variantID).
		Int64("image_id", saved.ImageID).
		Str("image_uuid", saved.ImageUUID).
		Msg("upload ingested")
	return saved, nil
}

// SetDefaultImage flips the default flag on one image, clearing it on its
// variant siblings first. PendingDelete images are not addressable here.
func (w *Ingestor) SetDefaultImage(ctx context.Context, imageUUID string, isDefault bool) error {
	trimmedUUID := strings.TrimSpace(imageUUID)
	if trimmedUUID == "" {
		return fmt.Errorf("image UUID is required")
	}

	err := w.store.WithTx(ctx, func(tx Tx) error {
		image, err := tx.GetImageByUUID(ctx, trimmedUUID)
		if err != nil {
			if db.IsNoRows(err) {
				return &NotFoundError{Msg: fmt.Sprintf("image %s does not exist", trimmedUUID)}
			}
			return err
		}
		if image.Status == db.ImageStatusPendingDelete {
			return &NotFoundError{Msg: fmt.Sprintf("image %s is pending deletion", trimmedUUID)}
		}

		if isDefault {
			if err := tx.ClearVariantDefault(ctx, image.VariantID); err != nil {
				return err
			}
		}

		affected, err := tx.SetImageDefault(ctx, image.ImageID, isDefault)
		if err != nil {
			return err
		}
		if affected == 0 {
			return &NotFoundError{Msg: fmt.Sprintf("image %s does not exist", trimmedUUID)}
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return storeError("set default image", err)
	}

	w.logger.Info().
		Str("image_uuid", trimmedUUID).
		Bool("is_default", isDefault).
		Msg("default image updated")
	return nil
}
