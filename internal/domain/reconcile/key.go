package reconcile

import (
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
)

// CacheKey identifies a reconciliation by rounded location and property
// fingerprint, e.g. "39.739200,-104.990300-3f1a9c0e2b7d".
func CacheKey(coord model.Coordinate, rec *property.Record) string {
	return coord.Key() + "-" + rec.Fingerprint()
}
