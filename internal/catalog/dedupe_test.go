package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"karigari.shop/catalog/internal/db"
)

func TestRankSuperseded_QualityDescending(t *testing.T) {
	t.Parallel()

	candidates := []db.DedupImage{
		{ImageID: 1, Phash: "h1", QualityScore: floatPtr(0.5), UploadedAt: baseTime},
		{ImageID: 2, Phash: "h1", QualityScore: floatPtr(0.9), UploadedAt: baseTime.Add(time.Hour)},
		{ImageID: 3, Phash: "h1", QualityScore: floatPtr(0.7), UploadedAt: baseTime.Add(2 * time.Hour)},
	}

	superseded := rankSuperseded(candidates)
	gotIDs := supersededIDs(superseded)
	if len(gotIDs) != 2 || gotIDs[0] != 3 || gotIDs[1] != 1 {
		t.Fatalf("expected images 3 and 1 superseded, got %v", gotIDs)
	}
}

func TestRankSuperseded_NullQualityRanksLast(t *testing.T) {
	t.Parallel()

	candidates := []db.DedupImage{
		{ImageID: 1, Phash: "h1", QualityScore: nil, UploadedAt: baseTime},
		{ImageID: 2, Phash: "h1", QualityScore: floatPtr(0.1), UploadedAt: baseTime.Add(time.Hour)},
	}

	superseded := rankSuperseded(candidates)
	if ids := supersededIDs(superseded); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected null-quality image 1 superseded, got %v", ids)
	}
}

func TestRankSuperseded_TieBreaksByEarliestUpload(t *testing.T) {
	t.Parallel()

	candidates := []db.DedupImage{
		{ImageID: 1, Phash: "h1", QualityScore: floatPtr(0.8), UploadedAt: baseTime.Add(time.Hour)},
		{ImageID: 2, Phash: "h1", QualityScore: floatPtr(0.8), UploadedAt: baseTime},
	}

	superseded := rankSuperseded(candidates)
	if ids := supersededIDs(superseded); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected later upload 1 superseded, got %v", ids)
	}
}

func TestRankSuperseded_SingletonAndDistinctHashesUntouched(t *testing.T) {
	t.Parallel()

	candidates := []db.DedupImage{
		{ImageID: 1, Phash: "h1", QualityScore: floatPtr(0.8), UploadedAt: baseTime},
		{ImageID: 2, Phash: "h2", QualityScore: floatPtr(0.1), UploadedAt: baseTime},
	}

	if superseded := rankSuperseded(candidates); len(superseded) != 0 {
		t.Fatalf("expected nothing superseded across distinct hashes, got %v", supersededIDs(superseded))
	}
}

func TestRankSuperseded_MultiplePartitions(t *testing.T) {
	t.Parallel()

	candidates := []db.DedupImage{
		{ImageID: 1, Phash: "h1", QualityScore: floatPtr(0.9), UploadedAt: baseTime},
		{ImageID: 2, Phash: "h1", QualityScore: floatPtr(0.5), UploadedAt: baseTime},
		{ImageID: 3, Phash: "h2", QualityScore: nil, UploadedAt: baseTime},
		{ImageID: 4, Phash: "h2", QualityScore: nil, UploadedAt: baseTime.Add(time.Minute)},
	}

	superseded := rankSuperseded(candidates)
	gotIDs := supersededIDs(superseded)
	if len(gotIDs) != 2 || gotIDs[0] != 2 || gotIDs[1] != 4 {
		t.Fatalf("expected images 2 and 4 superseded, got %v", gotIDs)
	}
}

func TestDeduplicate_MarksSupersededPendingDelete(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	productID := store.addProduct("SKU-1", "Saree", nil)
	variantID := store.addVariant(productID, Attributes{Color: strPtr("Red")})
	keepID := store.addImage(variantID, "images/a.jpg", strPtr("H"), floatPtr(0.9), baseTime)
	dropID := store.addImage(variantID, "images/b.jpg", strPtr("H"), floatPtr(0.5), baseTime.Add(time.Hour))
	noHashID := store.addImage(variantID, "images/c.jpg", nil, floatPtr(0.99), baseTime)

	judge := NewJudge(zerolog.Nop())
	superseded, err := judge.Deduplicate(context.Background(), store, []int64{variantID})
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}

	if ids := supersededIDs(superseded); len(ids) != 1 || ids[0] != dropID {
		t.Fatalf("expected only image %d superseded, got %v", dropID, ids)
	}
	if store.state.images[dropID].Status != db.ImageStatusPendingDelete {
		t.Fatalf("expected superseded image in PendingDelete, got status %d", store.state.images[dropID].Status)
	}
	if store.state.images[keepID].Status != db.ImageStatusUploaded {
		t.Fatalf("canonical image must not be mutated, got status %d", store.state.images[keepID].Status)
	}
	if store.state.images[noHashID].Status != db.ImageStatusUploaded {
		t.Fatalf("hashless image must not be mutated, got status %d", store.state.images[noHashID].Status)
	}
}

func TestDeduplicate_EmptyVariantSet(t *testing.T) {
	t.Parallel()

	judge := NewJudge(zerolog.Nop())
	superseded, err := judge.Deduplicate(context.Background(), newFakeStore(), nil)
	if err != nil {
		t.Fatalf("deduplicate: %v", err)
	}
	if len(superseded) != 0 {
		t.Fatalf("expected no work for empty variant set, got %v", superseded)
	}
}

func supersededIDs(images []db.DedupImage) []int64 {
	ids := make([]int64, 0, len(images))
	for _, image := range images {
		ids = append(ids, image.ImageID)
	}
	return ids
}
