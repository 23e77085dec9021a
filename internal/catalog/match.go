package catalog

import (
	"strings"

	"karigari.shop/catalog/internal/db"
)

// Attributes is the four-field tuple that distinguishes variants of one
// product. A nil or blank field means "absent".
type Attributes struct {
	Color         *string
	Fabric        *string
	StitchType    *string
	WorkHeaviness *string
}

// Matches reports whether two attribute tuples describe the same variant:
// every field is either equal after trimming, or absent on both sides.
// Stores disagree on NULL-safe equality, so this runs in application code
// over a coarse per-product prefetch.
func (a Attributes) Matches(b Attributes) bool {
	return equalOrBothAbsent(a.Color, b.Color) &&
		equalOrBothAbsent(a.Fabric, b.Fabric) &&
		equalOrBothAbsent(a.StitchType, b.StitchType) &&
		equalOrBothAbsent(a.WorkHeaviness, b.WorkHeaviness)
}

// Normalize returns a copy with blank fields collapsed to nil and the rest
// trimmed, so stored rows and incoming requests compare on equal footing.
func (a Attributes) Normalize() Attributes {
	return Attributes{
		Color:         normalizeAttr(a.Color),
		Fabric:        normalizeAttr(a.Fabric),
		StitchType:    normalizeAttr(a.StitchType),
		WorkHeaviness: normalizeAttr(a.WorkHeaviness),
	}
}

func variantAttributes(row db.VariantRow) Attributes {
	return Attributes{
		Color:         row.Color,
		Fabric:        row.Fabric,
		StitchType:    row.StitchType,
		WorkHeaviness: row.WorkHeaviness,
	}.Normalize()
}

func equalOrBothAbsent(x, y *string) bool {
	xAbsent := isAbsent(x)
	yAbsent := isAbsent(y)
	if xAbsent || yAbsent {
		return xAbsent && yAbsent
	}
	return strings.TrimSpace(*x) == strings.TrimSpace(*y)
}

func isAbsent(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}

func normalizeAttr(v *string) *string {
	if isAbsent(v) {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}
