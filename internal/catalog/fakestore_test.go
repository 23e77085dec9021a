package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"karigari.shop/catalog/internal/db"
)

// fakeStore is an in-memory Store. WithTx snapshots state before fn and
// restores it when fn fails, mirroring transactional rollback.
type fakeStore struct {
	state fakeState

	insertListingErr error
	enqueueErr       error
	updateTagsErr    error
	deleteProductErr error

	lockCalls  [][]int64
	txStarted  int
	txRolled   int
	txCommits int
}

type queueEntry struct {
	QueueEntryID int64
	ImageID      int64
	StoragePath  string
}

type fakeState struct {
	products map[int64]db.ProductRow
	variants map[int64]db.VariantRow
	images   map[int64]db.ImageRow
	listings map[int64]db.NewListing
	queue    map[int64]queueEntry
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: fakeState{
			products: map[int64]db.ProductRow{},
			variants: map[int64]db.VariantRow{},
			images:   map[int64]db.ImageRow{},
			listings: map[int64]db.NewListing{},
			queue:    map[int64]queueEntry{},
		},
	}
}

func (s *fakeState) clone() fakeState {
	out := fakeState{
		products: make(map[int64]db.ProductRow, len(s.products)),
		variants: make(map[int64]db.VariantRow, len(s.variants)),
		images:   make(map[int64]db.ImageRow, len(s.images)),
		listings: make(map[int64]db.NewListing, len(s.listings)),
		queue:    make(map[int64]queueEntry, len(s.queue)),
		nextID:   s.nextID,
	}
	for id, row := range s.products {
		copied := row
		copied.Tags = append([]string(nil), row.Tags...)
		out.products[id] = copied
	}
	for id, row := range s.variants {
		copied := row
		copied.SearchKeywords = append([]string(nil), row.SearchKeywords...)
		out.variants[id] = copied
	}
	for id, row := range s.images {
		out.images[id] = row
	}
	for id, row := range s.listings {
		out.listings[id] = row
	}
	for id, row := range s.queue {
		out.queue[id] = row
	}
	return out
}

func (s *fakeStore) nextID() int64 {
	s.state.nextID++
	return s.state.nextID
}

func fakeUUID(id int64) string {
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", id)
}

func (s *fakeStore) WithTx(_ context.Context, fn func(Tx) error) error {
	s.txStarted++
	snapshot := s.state.clone()
	if err := fn(s); err != nil {
		s.state = snapshot
		s.txRolled++
		return err
	}
	s.txCommits++
	return nil
}

func (s *fakeStore) LockProducts(_ context.Context, ids ...int64) error {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	s.lockCalls = append(s.lockCalls, sorted)
	return nil
}

func (s *fakeStore) GetProductBySKU(_ context.Context, sku string) (*db.ProductRow, error) {
	trimmed := strings.TrimSpace(sku)
	for _, row := range s.state.products {
		if row.BaseSKU != nil && *row.BaseSKU == trimmed {
			copied := row
			copied.Tags = append([]string(nil), row.Tags...)
			return &copied, nil
		}
	}
	return nil, db.ErrNoRows
}

func (s *fakeStore) InsertProductIfAbsent(_ context.Context, row db.NewProduct) (*db.ProductRow, bool, error) {
	sku := strings.TrimSpace(row.BaseSKU)
	for _, existing := range s.state.products {
		if existing.BaseSKU != nil && *existing.BaseSKU == sku {
			return nil, false, nil
		}
	}
	id := s.nextID()
	inserted := db.ProductRow{
		ProductID:   id,
		ProductUUID: fakeUUID(id),
		BaseSKU:     &sku,
		Title:       row.Title,
		Tags:        append([]string(nil), row.Tags...),
		CreatedAt:   baseTime.Add(time.Duration(id) * time.Second),
		UpdatedAt:   baseTime.Add(time.Duration(id) * time.Second),
	}
	s.state.products[id] = inserted
	copied := inserted
	return &copied, true, nil
}

func (s *fakeStore) UpdateProductTags(_ context.Context, productID int64, tags []string) error {
	if s.updateTagsErr != nil {
		return s.updateTagsErr
	}
	row, exists := s.state.products[productID]
	if !exists {
		return db.ErrNoRows
	}
	row.Tags = append([]string(nil), tags...)
	s.state.products[productID] = row
	return nil
}

func (s *fakeStore) DeleteProduct(_ context.Context, productID int64) (int64, error) {
	if s.deleteProductErr != nil {
		return 0, s.deleteProductErr
	}
	if _, exists := s.state.products[productID]; !exists {
		return 0, nil
	}
	delete(s.state.products, productID)
	return 1, nil
}

func (s *fakeStore) ListVariantsByProduct(_ context.Context, productID int64) ([]db.VariantRow, error) {
	rows := make([]db.VariantRow, 0)
	for _, row := range s.state.variants {
		if row.ProductID == productID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.Before(rows[j].CreatedAt)
		}
		return rows[i].VariantID < rows[j].VariantID
	})
	return rows, nil
}

func (s *fakeStore) ListVariantIDsByProduct(_ context.Context, productID int64) ([]int64, error) {
	ids := make([]int64, 0)
	for _, row := range s.state.variants {
		if row.ProductID == productID {
			ids = append(ids, row.VariantID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *fakeStore) InsertVariant(_ context.Context, row db.NewVariant) (*db.VariantRow, error) {
	id := s.nextID()
	inserted := db.VariantRow{
		VariantID:      id,
		VariantUUID:    fakeUUID(id),
		ProductID:      row.ProductID,
		Color:          row.Color,
		Fabric:         row.Fabric,
		StitchType:     row.StitchType,
		WorkHeaviness:  row.WorkHeaviness,
		SearchKeywords: append([]string(nil), row.SearchKeywords...),
		CreatedAt:      baseTime.Add(time.Duration(id) * time.Second),
	}
	s.state.variants[id] = inserted
	copied := inserted
	return &copied, nil
}

func (s *fakeStore) ReparentVariants(_ context.Context, sourceProductID, targetProductID int64) (int64, error) {
	var moved int64
	for id, row := range s.state.variants {
		if row.ProductID == sourceProductID {
			row.ProductID = targetProductID
			s.state.variants[id] = row
			moved++
		}
	}
	return moved, nil
}

func (s *fakeStore) InsertImage(_ context.Context, row db.NewImage) (*db.ImageRow, error) {
	id := s.nextID()
	uploadedAt := row.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = baseTime.Add(time.Duration(id) * time.Second)
	}
	inserted := db.ImageRow{
		ImageID:      id,
		ImageUUID:    fakeUUID(id),
		VariantID:    row.VariantID,
		StoragePath:  row.StoragePath,
		Phash:        row.Phash,
		QualityScore: row.QualityScore,
		Status:       db.ImageStatusUploaded,
		UploadedAt:   uploadedAt,
	}
	s.state.images[id] = inserted
	copied := inserted
	return &copied, nil
}

func (s *fakeStore) InsertListing(_ context.Context, row db.NewListing) (int64, error) {
	if s.insertListingErr != nil {
		return 0, s.insertListingErr
	}
	id := s.nextID()
	s.state.listings[id] = row
	return id, nil
}

func (s *fakeStore) GetImageByUUID(_ context.Context, imageUUID string) (*db.ImageRow, error) {
	for _, row := range s.state.images {
		if row.ImageUUID == strings.TrimSpace(imageUUID) {
			copied := row
			return &copied, nil
		}
	}
	return nil, db.ErrNoRows
}

func (s *fakeStore) ListImagesByVariants(_ context.Context, variantIDs []int64) ([]db.ImageRow, error) {
	wanted := make(map[int64]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		wanted[id] = struct{}{}
	}
	rows := make([]db.ImageRow, 0)
	for _, row := range s.state.images {
		if _, ok := wanted[row.VariantID]; !ok {
			continue
		}
		if row.Status == db.ImageStatusPendingDelete {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ImageID < rows[j].ImageID })
	return rows, nil
}

func (s *fakeStore) ListDedupCandidates(_ context.Context, variantIDs []int64) ([]db.DedupImage, error) {
	wanted := make(map[int64]struct{}, len(variantIDs))
	for _, id := range variantIDs {
		wanted[id] = struct{}{}
	}
	rows := make([]db.DedupImage, 0)
	for _, row := range s.state.images {
		if _, ok := wanted[row.VariantID]; !ok {
			continue
		}
		if row.Phash == nil || row.Status == db.ImageStatusPendingDelete {
			continue
		}
		rows = append(rows, db.DedupImage{
			ImageID:      row.ImageID,
			VariantID:    row.VariantID,
			StoragePath:  row.StoragePath,
			Phash:        *row.Phash,
			QualityScore: row.QualityScore,
			UploadedAt:   row.UploadedAt,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ImageID < rows[j].ImageID })
	return rows, nil
}

func (s *fakeStore) MarkImagesPendingDelete(_ context.Context, imageIDs []int64) (int64, error) {
	var affected int64
	for _, id := range imageIDs {
		row, exists := s.state.images[id]
		if !exists {
			continue
		}
		row.Status = db.ImageStatusPendingDelete
		row.IsDefault = false
		s.state.images[id] = row
		affected++
	}
	return affected, nil
}

func (s *fakeStore) EnqueueImageDeletion(_ context.Context, imageID int64, storagePath string) (int64, error) {
	if s.enqueueErr != nil {
		return 0, s.enqueueErr
	}
	id := s.nextID()
	s.state.queue[id] = queueEntry{
		QueueEntryID: id,
		ImageID:      imageID,
		StoragePath:  storagePath,
	}
	return id, nil
}

func (s *fakeStore) ClearVariantDefault(_ context.Context, variantID int64) error {
	for id, row := range s.state.images {
		if row.VariantID == variantID && row.IsDefault {
			row.IsDefault = false
			s.state.images[id] = row
		}
	}
	return nil
}

func (s *fakeStore) SetImageDefault(_ context.Context, imageID int64, isDefault bool) (int64, error) {
	row, exists := s.state.images[imageID]
	if !exists {
		return 0, nil
	}
	row.IsDefault = isDefault
	s.state.images[imageID] = row
	return 1, nil
}

var baseTime = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

// Seed helpers used across the service tests.

func (s *fakeStore) addProduct(sku, title string, tags []string) int64 {
	id := s.nextID()
	skuCopy := sku
	s.state.products[id] = db.ProductRow{
		ProductID:   id,
		ProductUUID: fakeUUID(id),
		BaseSKU:     &skuCopy,
		Title:       title,
		Tags:        append([]string(nil), tags...),
		CreatedAt:   baseTime.Add(time.Duration(id) * time.Second),
		UpdatedAt:   baseTime.Add(time.Duration(id) * time.Second),
	}
	return id
}

func (s *fakeStore) addVariant(productID int64, attrs Attributes) int64 {
	id := s.nextID()
	normalized := attrs.Normalize()
	s.state.variants[id] = db.VariantRow{
		VariantID:     id,
		VariantUUID:   fakeUUID(id),
		ProductID:     productID,
		Color:         normalized.Color,
		Fabric:        normalized.Fabric,
		StitchType:    normalized.StitchType,
		WorkHeaviness: normalized.WorkHeaviness,
		CreatedAt:     baseTime.Add(time.Duration(id) * time.Second),
	}
	return id
}

func (s *fakeStore) addImage(variantID int64, path string, phash *string, quality *float64, uploadedAt time.Time) int64 {
	id := s.nextID()
	s.state.images[id] = db.ImageRow{
		ImageID:      id,
		ImageUUID:    fakeUUID(id),
		VariantID:    variantID,
		StoragePath:  path,
		Phash:        phash,
		QualityScore: quality,
		Status:       db.ImageStatusUploaded,
		UploadedAt:   uploadedAt,
	}
	return id
}

func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }
