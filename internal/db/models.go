package db

import (
	"encoding/json"
	"time"
)

// Image status codes shared with the deletion worker.
const (
	ImageStatusUploaded      int16 = 0
	ImageStatusProcessed     int16 = 1
	ImageStatusIndexed       int16 = 2
	ImageStatusPendingDelete int16 = 98
	ImageStatusFailed        int16 = 99
)

// Product maps catalog.products.
type Product struct {
	ProductID   int64           `gorm:"column:product_id;primaryKey;autoIncrement"`
	ProductUUID string          `gorm:"column:product_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	BaseSKU     *string         `gorm:"column:base_sku;type:text"`
	Title       string          `gorm:"column:title;type:text;not null"`
	Tags        json.RawMessage `gorm:"column:tags;type:jsonb;not null;default:'[]'"`
	CreatedAt   time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Product) TableName() string { return "catalog.products" }

// ProductVariant maps catalog.product_variants.
type ProductVariant struct {
	VariantID      int64           `gorm:"column:variant_id;primaryKey;autoIncrement"`
	VariantUUID    string          `gorm:"column:variant_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ProductID      int64           `gorm:"column:product_id;type:bigint;not null"`
	Color          *string         `gorm:"column:color;type:text"`
	Fabric         *string         `gorm:"column:fabric;type:text"`
	StitchType     *string         `gorm:"column:stitch_type;type:text"`
	WorkHeaviness  *string         `gorm:"column:work_heaviness;type:text"`
	SearchKeywords json.RawMessage `gorm:"column:search_keywords;type:jsonb;not null;default:'[]'"`
	Attributes     json.RawMessage `gorm:"column:attributes;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (ProductVariant) TableName() string { return "catalog.product_variants" }

// Image maps catalog.images.
type Image struct {
	ImageID      int64     `gorm:"column:image_id;primaryKey;autoIncrement"`
	ImageUUID    string    `gorm:"column:image_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	VariantID    int64     `gorm:"column:variant_id;type:bigint;not null"`
	StoragePath  string    `gorm:"column:storage_path;type:text;not null"`
	Phash        *string   `gorm:"column:phash;type:text"`
	QualityScore *float64  `gorm:"column:quality_score;type:double precision"`
	Status       int16     `gorm:"column:status;type:smallint;not null;default:0"`
	IsDefault    bool      `gorm:"column:is_default;type:boolean;not null;default:false"`
	UploadedAt   time.Time `gorm:"column:uploaded_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Image) TableName() string { return "catalog.images" }

// SellerListing maps catalog.seller_listings.
type SellerListing struct {
	ListingID   int64     `gorm:"column:listing_id;primaryKey;autoIncrement"`
	ListingUUID string    `gorm:"column:listing_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	VariantID   int64     `gorm:"column:variant_id;type:bigint;not null"`
	SellerID    string    `gorm:"column:seller_id;type:text;not null"`
	Price       float64   `gorm:"column:price;type:numeric(12,2);not null"`
	Currency    string    `gorm:"column:currency;type:text;not null"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (SellerListing) TableName() string { return "catalog.seller_listings" }

// ImageDeletionQueueEntry maps catalog.image_deletion_queue. Rows are
// appended by the merge path; deleted_from_disk, deleted_from_vector,
// retries and processed_at are written only by the deletion worker.
type ImageDeletionQueueEntry struct {
	QueueEntryID      int64      `gorm:"column:queue_entry_id;primaryKey;autoIncrement"`
	QueueEntryUUID    string     `gorm:"column:queue_entry_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	ImageID           int64      `gorm:"column:image_id;type:bigint;not null"`
	StoragePath       string     `gorm:"column:storage_path;type:text;not null"`
	DeletedFromDisk   bool       `gorm:"column:deleted_from_disk;type:boolean;not null;default:false"`
	DeletedFromVector bool       `gorm:"column:deleted_from_vector;type:boolean;not null;default:false"`
	Retries           int        `gorm:"column:retries;type:integer;not null;default:0"`
	CreatedAt         time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	ProcessedAt       *time.Time `gorm:"column:processed_at;type:timestamptz"`
}

func (ImageDeletionQueueEntry) TableName() string { return "catalog.image_deletion_queue" }

func autoMigrateModels() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&Image{},
		&SellerListing{},
		&ImageDeletionQueueEntry{},
	}
}
