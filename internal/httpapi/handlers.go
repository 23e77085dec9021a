package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"karigari.shop/catalog/internal/catalog"
	"karigari.shop/catalog/internal/globaltime"
	payloadschema "karigari.shop/catalog/schema"
)

type mergeRequestBody struct {
	TargetSKU    string `json:"target_sku"`
	SourceSKU    string `json:"source_sku"`
	DeleteSource bool   `json:"delete_source"`
}

type defaultImageRequestBody struct {
	IsDefault *bool `json:"is_default"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "catalog",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleIngest(c echo.Context) error {
	raw, err := readRequestBody(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	payload, err := payloadschema.ValidateUploadPayload(raw)
	if err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	engine, err := s.engineFor(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("resolve tenant engine failed")
		return failValidation(c, map[string]string{"tenant": "could not be resolved"})
	}

	ctx := c.Request().Context()

	productReq := catalog.ProductRequest{
		Title: payload.Product.Title,
		Tags:  payload.Product.Tags,
	}
	if payload.Product.SKU != nil {
		productReq.SKU = *payload.Product.SKU
	}

	product, err := engine.Resolver.ResolveProduct(ctx, productReq)
	if err != nil {
		if catalog.IsConflict(err) {
			return fail(c, http.StatusConflict, "Product creation raced, retry the upload", nil)
		}
		s.logger.Error().Err(err).Msg("resolve product failed")
		return internalError(c, "Failed to resolve product")
	}

	variant, err := engine.Resolver.ResolveVariant(ctx, product.ProductID, catalog.VariantRequest{
		Attributes: catalog.Attributes{
			Color:         payload.Variant.Color,
			Fabric:        payload.Variant.Fabric,
			StitchType:    payload.Variant.StitchType,
			WorkHeaviness: payload.Variant.WorkHeaviness,
		},
		SearchKeywords: payload.Variant.SearchKeywords,
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("product_id", product.ProductID).Msg("resolve variant failed")
		return internalError(c, "Failed to resolve variant")
	}

	imageMeta := catalog.ImageMetadata{
		StoragePath:  payload.Image.StoragePath,
		Phash:        payload.Image.Phash,
		QualityScore: payload.Image.QualityScore,
	}
	if payload.Image.UploadedAt != nil {
		// Already validated as RFC3339.
		if uploadedAt, parseErr := time.Parse(time.RFC3339, strings.TrimSpace(*payload.Image.UploadedAt)); parseErr == nil {
			imageMeta.UploadedAt = uploadedAt.UTC()
		}
	}

	listingMeta := catalog.ListingMetadata{
		SellerID: payload.Listing.SellerID,
		Price:    payload.Listing.Price,
		Currency: payload.Listing.Currency,
	}
	if payload.Listing.Description != nil {
		listingMeta.Description = *payload.Listing.Description
	}

	image, err := engine.Ingestor.SaveIngestionData(ctx, variant.VariantID, imageMeta, listingMeta)
	if err != nil {
		s.logger.Error().Err(err).Int64("variant_id", variant.VariantID).Msg("save ingestion data failed")
		return internalError(c, "Failed to save ingestion data")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"product": map[string]any{
			"product_id":   product.ProductID,
			"product_uuid": product.ProductUUID,
			"base_sku":     product.BaseSKU,
		},
		"variant": map[string]any{
			"variant_id":   variant.VariantID,
			"variant_uuid": variant.VariantUUID,
		},
		"image": map[string]any{
			"image_id":   image.ImageID,
			"image_uuid": image.ImageUUID,
			"status":     image.Status,
		},
	})
}

func (s *Server) handleMerge(c echo.Context) error {
	var req mergeRequestBody
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}

	targetSKU := strings.TrimSpace(req.TargetSKU)
	sourceSKU := strings.TrimSpace(req.SourceSKU)
	if targetSKU == "" || sourceSKU == "" {
		return failValidation(c, map[string]string{
			"target_sku": "is required",
			"source_sku": "is required",
		})
	}
	if targetSKU == sourceSKU {
		return failValidation(c, map[string]string{"source_sku": "must differ from target_sku"})
	}

	engine, err := s.engineFor(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("resolve tenant engine failed")
		return failValidation(c, map[string]string{"tenant": "could not be resolved"})
	}

	result, err := engine.Merger.MergeProducts(c.Request().Context(), catalog.MergeRequest{
		TargetSKU:    targetSKU,
		SourceSKU:    sourceSKU,
		DeleteSource: req.DeleteSource,
	})
	if err != nil {
		if catalog.IsNotFound(err) {
			return failNotFound(c, err.Error())
		}
		s.logger.Error().
			Err(err).
			Str("target_sku", targetSKU).
			Str("source_sku", sourceSKU).
			Msg("merge products failed")
		return internalError(c, "Failed to merge products")
	}

	return success(c, result)
}

func (s *Server) handleSetDefaultImage(c echo.Context) error {
	imageUUID := strings.TrimSpace(c.Param("image_uuid"))
	if imageUUID == "" {
		return failValidation(c, map[string]string{"image_uuid": "is required"})
	}

	// Body is optional; absence means set as default.
	isDefault := true
	if c.Request().ContentLength != 0 {
		var req defaultImageRequestBody
		if err := decodeJSONBody(c, &req); err != nil {
			return failValidation(c, map[string]string{"body": err.Error()})
		}
		if req.IsDefault != nil {
			isDefault = *req.IsDefault
		}
	}

	engine, err := s.engineFor(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("resolve tenant engine failed")
		return failValidation(c, map[string]string{"tenant": "could not be resolved"})
	}

	if err := engine.Ingestor.SetDefaultImage(c.Request().Context(), imageUUID, isDefault); err != nil {
		if catalog.IsNotFound(err) {
			return failNotFound(c, err.Error())
		}
		s.logger.Error().Err(err).Str("image_uuid", imageUUID).Msg("set default image failed")
		return internalError(c, "Failed to update default image")
	}

	return success(c, map[string]any{
		"image_uuid": imageUUID,
		"is_default": isDefault,
	})
}

func (s *Server) handleGetProduct(c echo.Context) error {
	sku := strings.TrimSpace(c.Param("sku"))
	if sku == "" {
		return failValidation(c, map[string]string{"sku": "is required"})
	}

	engine, err := s.engineFor(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("resolve tenant engine failed")
		return failValidation(c, map[string]string{"tenant": "could not be resolved"})
	}

	view, err := engine.Reader.GetProduct(c.Request().Context(), sku)
	if err != nil {
		if catalog.IsNotFound(err) {
			return failNotFound(c, "Product not found")
		}
		s.logger.Error().Err(err).Str("sku", sku).Msg("load product failed")
		return internalError(c, "Failed to load product")
	}

	return success(c, view)
}
