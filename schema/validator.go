package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed upload_payload.schema.json
var uploadPayloadSchemaJSON string

// UploadPayload is the v1 ingestion contract. Upstream services post one
// payload per uploaded image; product and variant metadata ride along so
// the engine can resolve or create the canonical rows.
type UploadPayload struct {
	PayloadVersion string       `json:"payload_version"`
	Product        ProductInput `json:"product"`
	Variant        VariantInput `json:"variant"`
	Image          ImageInput   `json:"image"`
	Listing        ListingInput `json:"listing"`
}

type ProductInput struct {
	SKU   *string  `json:"sku,omitempty"`
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

type VariantInput struct {
	Color          *string  `json:"color,omitempty"`
	Fabric         *string  `json:"fabric,omitempty"`
	StitchType     *string  `json:"stitch_type,omitempty"`
	WorkHeaviness  *string  `json:"work_heaviness,omitempty"`
	SearchKeywords []string `json:"search_keywords,omitempty"`
}

type ImageInput struct {
	StoragePath  string   `json:"storage_path"`
	Phash        *string  `json:"phash,omitempty"`
	QualityScore *float64 `json:"quality_score,omitempty"`
	UploadedAt   *string  `json:"uploaded_at,omitempty"`
}

type ListingInput struct {
	SellerID    string  `json:"seller_id"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	Description *string `json:"description,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

func ValidateUploadPayload(payload json.RawMessage) (*UploadPayload, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var parsed UploadPayload
	if err := json.Unmarshal(normalized, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&parsed); err != nil {
		return nil, err
	}

	return &parsed, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("upload_payload.schema.json", strings.NewReader(uploadPayloadSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("upload_payload.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(payload *UploadPayload) error {
	if payload == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(payload.PayloadVersion) != "v1" {
		return fmt.Errorf("payload_version must be v1")
	}
	if strings.TrimSpace(payload.Product.Title) == "" {
		return fmt.Errorf("product.title must not be empty")
	}
	if strings.TrimSpace(payload.Image.StoragePath) == "" {
		return fmt.Errorf("image.storage_path must not be empty")
	}
	if strings.TrimSpace(payload.Listing.SellerID) == "" {
		return fmt.Errorf("listing.seller_id must not be empty")
	}

	if payload.Image.Phash != nil && strings.TrimSpace(*payload.Image.Phash) == "" {
		return fmt.Errorf("image.phash must not be blank when present")
	}
	if payload.Image.UploadedAt != nil {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(*payload.Image.UploadedAt)); err != nil {
			return fmt.Errorf("image.uploaded_at must be RFC3339: %w", err)
		}
	}

	for i, tag := range payload.Product.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("product.tags[%d] must not be empty", i)
		}
	}
	for i, keyword := range payload.Variant.SearchKeywords {
		if strings.TrimSpace(keyword) == "" {
			return fmt.Errorf("variant.search_keywords[%d] must not be empty", i)
		}
	}

	return nil
}
