package reconcile

import (
	"sort"

	"github.com/okian/roofline/internal/domain/model"
)

// Rank orders candidate estimates best first: higher confidence, then a
// non-zero area, then a higher zoom. The input slice is sorted in place.
func Rank(candidates []model.RoofEstimate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ra, rb := a.Confidence.Rank(), b.Confidence.Rank(); ra != rb {
			return ra > rb
		}
		if za, zb := a.AreaSqFt > 0, b.AreaSqFt > 0; za != zb {
			return za
		}
		return a.Zoom > b.Zoom
	})
}

// Best returns the top-ranked candidate. ok is false for an empty set.
func Best(candidates []model.RoofEstimate) (best model.RoofEstimate, ok bool) {
	if len(candidates) == 0 {
		return model.RoofEstimate{}, false
	}
	ranked := append([]model.RoofEstimate(nil), candidates...)
	Rank(ranked)
	return ranked[0], true
}
