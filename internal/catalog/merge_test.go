package catalog

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"karigari.shop/catalog/internal/db"
)

// mergeFixture seeds the standard two-product scenario: target and source
// each own one variant with identical attributes, and each variant owns one
// image sharing the same perceptual hash. Target's image has the higher
// quality score, so source's is the one to supersede.
type mergeFixture struct {
	store           *fakeStore
	targetProductID int64
	sourceProductID int64
	targetImageID   int64
	sourceImageID   int64
}

func newMergeFixture() *mergeFixture {
	store := newFakeStore()
	targetID := store.addProduct("SKU-TARGET", "Banarasi Saree", []string{"silk", "red"})
	sourceID := store.addProduct("SKU-SOURCE", "Banarasi Saree", []string{"handmade", "red"})

	targetVariant := store.addVariant(targetID, Attributes{Color: strPtr("Red"), Fabric: strPtr("Silk")})
	sourceVariant := store.addVariant(sourceID, Attributes{Color: strPtr("Red"), Fabric: strPtr("Silk")})

	targetImage := store.addImage(targetVariant, "images/target-a.jpg", strPtr("f00dbeef"), floatPtr(0.9), baseTime)
	sourceImage := store.addImage(sourceVariant, "images/source-b.jpg", strPtr("f00dbeef"), floatPtr(0.5), baseTime.Add(time.Hour))

	return &mergeFixture{
		store:           store,
		targetProductID: targetID,
		sourceProductID: sourceID,
		targetImageID:   targetImage,
		sourceImageID:   sourceImage,
	}
}

func TestMergeProducts_AbsorbsSourceIntoTarget(t *testing.T) {
	t.Parallel()

	fx := newMergeFixture()
	merger := NewMerger(fx.store, zerolog.Nop())

	result, err := merger.MergeProducts(context.Background(), MergeRequest{
		TargetSKU:    "SKU-TARGET",
		SourceSKU:    "SKU-SOURCE",
		DeleteSource: true,
	})
	if err != nil {
		t.Fatalf("merge products: %v", err)
	}

	wantTags := []string{"silk", "red", "handmade"}
	if !reflect.DeepEqual(result.Tags, wantTags) {
		t.Fatalf("tag union = %v, want %v", result.Tags, wantTags)
	}
	stored := fx.store.state.products[fx.targetProductID]
	if !reflect.DeepEqual(stored.Tags, wantTags) {
		t.Fatalf("persisted tags = %v, want %v", stored.Tags, wantTags)
	}

	if result.ReparentedVariants != 1 {
		t.Fatalf("reparented %d variants, want 1", result.ReparentedVariants)
	}
	for _, variant := range fx.store.state.variants {
		if variant.ProductID != fx.targetProductID {
			t.Fatalf("variant %d still parented to product %d", variant.VariantID, variant.ProductID)
		}
	}

	if result.SupersededImages != 1 {
		t.Fatalf("superseded %d images, want 1", result.SupersededImages)
	}
	if got := fx.store.state.images[fx.sourceImageID].Status; got != db.ImageStatusPendingDelete {
		t.Fatalf("source image status = %d, want %d", got, db.ImageStatusPendingDelete)
	}
	if got := fx.store.state.images[fx.targetImageID].Status; got != db.ImageStatusUploaded {
		t.Fatalf("target image status = %d, want %d", got, db.ImageStatusUploaded)
	}

	if len(fx.store.state.queue) != 1 {
		t.Fatalf("expected one deletion queue entry, got %d", len(fx.store.state.queue))
	}
	for _, entry := range fx.store.state.queue {
		if entry.ImageID != fx.sourceImageID {
			t.Fatalf("queue entry references image %d, want %d", entry.ImageID, fx.sourceImageID)
		}
		if entry.StoragePath != "images/source-b.jpg" {
			t.Fatalf("queue entry storage path = %q", entry.StoragePath)
		}
	}

	if !result.SourceDeleted {
		t.Fatalf("expected source deleted")
	}
	if _, exists := fx.store.state.products[fx.sourceProductID]; exists {
		t.Fatalf("source product still present after merge")
	}
}

func TestMergeProducts_KeepsSourceWhenNotAsked(t *testing.T) {
	t.Parallel()

	fx := newMergeFixture()
	merger := NewMerger(fx.store, zerolog.Nop())

	result, err := merger.MergeProducts(context.Background(), MergeRequest{
		TargetSKU: "SKU-TARGET",
		SourceSKU: "SKU-SOURCE",
	})
	if err != nil {
		t.Fatalf("merge products: %v", err)
	}
	if result.SourceDeleted {
		t.Fatalf("source should survive when DeleteSource is false")
	}
	if _, exists := fx.store.state.products[fx.sourceProductID]; !exists {
		t.Fatalf("source product missing")
	}
}

func TestMergeProducts_LocksBothProductsAscending(t *testing.T) {
	t.Parallel()

	fx := newMergeFixture()
	merger := NewMerger(fx.store, zerolog.Nop())

	if _, err := merger.MergeProducts(context.Background(), MergeRequest{
		TargetSKU: "SKU-TARGET",
		SourceSKU: "SKU-SOURCE",
	}); err != nil {
		t.Fatalf("merge products: %v", err)
	}

	if len(fx.store.lockCalls) != 1 {
		t.Fatalf("expected one lock call, got %d", len(fx.store.lockCalls))
	}
	want := []int64{fx.targetProductID, fx.sourceProductID}
	if want[0] > want[1] {
		want[0], want[1] = want[1], want[0]
	}
	if !reflect.DeepEqual(fx.store.lockCalls[0], want) {
		t.Fatalf("lock call = %v, want ascending %v", fx.store.lockCalls[0], want)
	}
}

func TestMergeProducts_MissingSKUFailsBeforeMutation(t *testing.T) {
	t.Parallel()

	fx := newMergeFixture()
	merger := NewMerger(fx.store, zerolog.Nop())

	_, err := merger.MergeProducts(context.Background(), MergeRequest{
		TargetSKU: "SKU-TARGET",
		SourceSKU: "SKU-GONE",
	})
	if !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if IsMergeFailed(err) {
		t.Fatalf("missing SKU must not wrap as MergeFailedError")
	}

	if len(fx.store.state.products) != 2 {
		t.Fatalf("product count changed on a failed lookup")
	}
	if got := fx.store.state.images[fx.sourceImageID].Status; got != db.ImageStatusUploaded {
		t.Fatalf("image status mutated on a failed lookup")
	}
	if fx.store.txRolled != 1 {
		t.Fatalf("expected the transaction rolled back, rollbacks = %d", fx.store.txRolled)
	}
}

func TestMergeProducts_SecondMergeAfterDeleteIsNotFound(t *testing.T) {
	t.Parallel()

	fx := newMergeFixture()
	merger := NewMerger(fx.store, zerolog.Nop())
	ctx := context.Background()

	req := MergeRequest{TargetSKU: "SKU-TARGET", SourceSKU: "SKU-SOURCE", DeleteSource: true}
	if _, err := merger.MergeProducts(ctx, req); err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if _, err := merger.MergeProducts(ctx, req); !IsNotFound(err) {
		t.Fatalf("second merge should report NotFoundError, got %v", err)
	}
}

func TestMergeProducts_RollsBackWhenTagUpdateFails(t *testing.T) {
	t.Parallel()

	fx := newMergeFixture()
	fx.store.updateTagsErr = errors.New("tags column rejected")
	merger := NewMerger(fx.store, zerolog.Nop())

	_, err := merger.MergeProducts(context.Background(), MergeRequest{
		TargetSKU: "SKU-TARGET",
		SourceSKU: "SKU-SOURCE",
	})
	if !IsMergeFailed(err) {
		t.Fatalf("expected MergeFailedError, got %v", err)
	}

	sourceVariantStillOwned := false
	for _, variant := range fx.store.state.variants {
		if variant.ProductID == fx.sourceProductID {
			sourceVariantStillOwned = true
		}
	}
	if !sourceVariantStillOwned {
		t.Fatalf("reparenting survived a rolled-back merge")
	}
	if got := fx.store.state.products[fx.targetProductID].Tags; !reflect.DeepEqual(got, []string{"silk", "red"}) {
		t.Fatalf("target tags mutated after rollback: %v", got)
	}
}

func TestMergeProducts_RollsBackWhenEnqueueFails(t *testing.T) {
	t.Parallel()

	fx := newMergeFixture()
	fx.store.enqueueErr = errors.New("queue table unavailable")
	merger := NewMerger(fx.store, zerolog.Nop())

	_, err := merger.MergeProducts(context.Background(), MergeRequest{
		TargetSKU:    "SKU-TARGET",
		SourceSKU:    "SKU-SOURCE",
		DeleteSource: true,
	})
	if !IsMergeFailed(err) {
		t.Fatalf("expected MergeFailedError, got %v", err)
	}

	if got := fx.store.state.images[fx.sourceImageID].Status; got != db.ImageStatusUploaded {
		t.Fatalf("status flip survived a rolled-back merge: %d", got)
	}
	if len(fx.store.state.queue) != 0 {
		t.Fatalf("queue entries survived a rolled-back merge")
	}
	if _, exists := fx.store.state.products[fx.sourceProductID]; !exists {
		t.Fatalf("source deletion survived a rolled-back merge")
	}
}

func TestMergeProducts_ValidatesSKUs(t *testing.T) {
	t.Parallel()

	merger := NewMerger(newFakeStore(), zerolog.Nop())
	ctx := context.Background()

	if _, err := merger.MergeProducts(ctx, MergeRequest{TargetSKU: "", SourceSKU: "SKU-B"}); err == nil {
		t.Fatalf("expected error for blank target SKU")
	}
	if _, err := merger.MergeProducts(ctx, MergeRequest{TargetSKU: "SKU-A", SourceSKU: "  "}); err == nil {
		t.Fatalf("expected error for blank source SKU")
	}
	if _, err := merger.MergeProducts(ctx, MergeRequest{TargetSKU: "SKU-A", SourceSKU: "SKU-A"}); err == nil {
		t.Fatalf("expected error for identical SKUs")
	}
}

func TestDeduplicateProduct(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	productID := store.addProduct("SKU-1", "Saree", nil)
	variantID := store.addVariant(productID, Attributes{})
	keeper := store.addImage(variantID, "images/keep.jpg", strPtr("H1"), floatPtr(0.9), baseTime)
	loser := store.addImage(variantID, "images/drop.jpg", strPtr("H1"), floatPtr(0.3), baseTime)

	merger := NewMerger(store, zerolog.Nop())
	report, err := merger.DeduplicateProduct(context.Background(), "SKU-1")
	if err != nil {
		t.Fatalf("deduplicate product: %v", err)
	}

	if report.SupersededImages != 1 {
		t.Fatalf("superseded %d images, want 1", report.SupersededImages)
	}
	if got := store.state.images[loser].Status; got != db.ImageStatusPendingDelete {
		t.Fatalf("loser status = %d, want %d", got, db.ImageStatusPendingDelete)
	}
	if got := store.state.images[keeper].Status; got != db.ImageStatusUploaded {
		t.Fatalf("keeper status = %d, want %d", got, db.ImageStatusUploaded)
	}
	if len(store.state.queue) != 1 {
		t.Fatalf("expected one queue entry, got %d", len(store.state.queue))
	}
}

func TestDeduplicateProduct_UnknownSKU(t *testing.T) {
	t.Parallel()

	merger := NewMerger(newFakeStore(), zerolog.Nop())
	if _, err := merger.DeduplicateProduct(context.Background(), "SKU-GONE"); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUnionTags(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		target []string
		source []string
		want   []string
	}{
		{"disjoint", []string{"silk"}, []string{"handmade"}, []string{"silk", "handmade"}},
		{"overlap keeps target order", []string{"silk", "red"}, []string{"handmade", "red"}, []string{"silk", "red", "handmade"}},
		{"blank and duplicate entries dropped", []string{"silk", "silk", " "}, []string{"", "silk"}, []string{"silk"}},
		{"both empty", nil, nil, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := unionTags(tc.target, tc.source); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("unionTags(%v, %v) = %v, want %v", tc.target, tc.source, got, tc.want)
			}
		})
	}
}
