package catalog

import (
	"context"

	"karigari.shop/catalog/internal/db"
)

// Tx is the statement surface the engine needs, valid either inside a
// transaction or in auto-commit mode. *db.Queries satisfies it.
type Tx interface {
	LockProducts(ctx context.Context, ids ...int64) error
	GetProductBySKU(ctx context.Context, sku string) (*db.ProductRow, error)
	InsertProductIfAbsent(ctx context.Context, row db.NewProduct) (*db.ProductRow, bool, error)
	UpdateProductTags(ctx context.Context, productID int64, tags []string) error
	DeleteProduct(ctx context.Context, productID int64) (int64, error)

	ListVariantsByProduct(ctx context.Context, productID int64) ([]db.VariantRow, error)
	ListVariantIDsByProduct(ctx context.Context, productID int64) ([]int64, error)
	InsertVariant(ctx context.Context, row db.NewVariant) (*db.VariantRow, error)
	ReparentVariants(ctx context.Context, sourceProductID, targetProductID int64) (int64, error)

	InsertImage(ctx context.Context, row db.NewImage) (*db.ImageRow, error)
	InsertListing(ctx context.Context, row db.NewListing) (int64, error)
	GetImageByUUID(ctx context.Context, imageUUID string) (*db.ImageRow, error)
	ListImagesByVariants(ctx context.Context, variantIDs []int64) ([]db.ImageRow, error)
	ListDedupCandidates(ctx context.Context, variantIDs []int64) ([]db.DedupImage, error)
	MarkImagesPendingDelete(ctx context.Context, imageIDs []int64) (int64, error)
	EnqueueImageDeletion(ctx context.Context, imageID int64, storagePath string) (int64, error)
	ClearVariantDefault(ctx context.Context, variantID int64) error
	SetImageDefault(ctx context.Context, imageID int64, isDefault bool) (int64, error)
}

// Store is a Tx plus a transaction runner. Errors returned by fn roll the
// transaction back and propagate unchanged.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(Tx) error) error
}

type poolStore struct {
	*db.Queries
	pool *db.Pool
}

// NewStore adapts a database pool to the engine's store contract.
func NewStore(pool *db.Pool) Store {
	return &poolStore{
		Queries: pool.Queries(),
		pool:    pool,
	}
}

func (s *poolStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return s.pool.WithTx(ctx, func(q *db.Queries) error {
		return fn(q)
	})
}
