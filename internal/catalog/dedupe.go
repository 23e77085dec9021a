package catalog

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"karigari.shop/catalog/internal/db"
)

// Judge partitions a variant set's images by perceptual hash and keeps
// exactly one canonical image per partition.
type Judge struct {
	logger zerolog.Logger
}

func NewJudge(logger zerolog.Logger) *Judge {
	return &Judge{logger: logger}
}

// Deduplicate marks every superseded image in the variant set as
// PendingDelete and returns those rows so the caller can enqueue physical
// deletion in the same transaction. Partitions with a single member are
// left untouched; the canonical image is never mutated.
func (j *Judge) Deduplicate(ctx context.Context, tx Tx, variantIDs []int64) ([]db.DedupImage, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}

	candidates, err := tx.ListDedupCandidates(ctx, variantIDs)
	if err != nil {
		return nil, err
	}

	superseded := rankSuperseded(candidates)
	if len(superseded) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(superseded))
	for _, image := range superseded {
		ids = append(ids, image.ImageID)
	}

	affected, err := tx.MarkImagesPendingDelete(ctx, ids)
	if err != nil {
		return nil, err
	}

	j.logger.Info().
		Int("candidates", len(candidates)).
		Int("superseded", len(superseded)).
		Int64("rows_updated", affected).
		Msg("duplicate images superseded")
	return superseded, nil
}

// rankSuperseded partitions by exact hash and, within each partition of
// two or more, ranks by quality score descending (nulls last) with
// uploaded-at ascending as tie-break. Everything below rank 1 is returned.
func rankSuperseded(candidates []db.DedupImage) []db.DedupImage {
	groups := make(map[string][]db.DedupImage)
	for _, image := range candidates {
		groups[image.Phash] = append(groups[image.Phash], image)
	}

	hashes := make([]string, 0, len(groups))
	for hash, group := range groups {
		if len(group) > 1 {
			hashes = append(hashes, hash)
		}
	}
	sort.Strings(hashes)

	superseded := make([]db.DedupImage, 0)
	for _, hash := range hashes {
		group := groups[hash]
		sort.SliceStable(group, func(i, j int) bool {
			return dedupRankLess(group[i], group[j])
		})
		superseded = append(superseded, group[1:]...)
	}
	return superseded
}

func dedupRankLess(a, b db.DedupImage) bool {
	switch {
	case a.QualityScore != nil && b.QualityScore == nil:
		return true
	case a.QualityScore == nil && b.QualityScore != nil:
		return false
	case a.QualityScore != nil && b.QualityScore != nil && *a.QualityScore != *b.QualityScore:
		return *a.QualityScore > *b.QualityScore
	}
	if !a.UploadedAt.Equal(b.UploadedAt) {
		return a.UploadedAt.Before(b.UploadedAt)
	}
	return a.ImageID < b.ImageID
}
