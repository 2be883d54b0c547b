// Package fairvalue resolves the estimated market price for one
// (card, grader, grade) cohort from persisted historical snapshots.
package fairvalue

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/slabwatch/slabwatch/internal/model"
)

// SnapshotSource reads the most recent persisted snapshot for a cohort.
// A nil snapshot with a nil error means the cohort has never been collected.
type SnapshotSource interface {
	LatestSnapshot(cardID string, grader, grade string) (*model.PriceSnapshot, error)
}

// Estimate is the resolver's answer for one cohort lookup.
type Estimate struct {
	Average    float64 `json:"average"`
	Confidence int     `json:"confidence"`
	Volume     int     `json:"volume"`
	HasData    bool    `json:"has_data"`
}

// Reliable reports whether the estimate is evidence-backed enough to use
// verbatim: a snapshot exists and its confidence clears 50.
func (e Estimate) Reliable() bool {
	return e.HasData && e.Confidence > 50
}

// Resolver looks up cohort fair values with a short-lived read-through
// cache, so a scan over many listings of the same card hits the store once
// per cohort.
type Resolver struct {
	src   SnapshotSource
	cache *lru.LRU[string, Estimate]
}

const (
	cacheSize = 512
	cacheTTL  = 5 * time.Minute
)

// NewResolver wraps a snapshot source.
func NewResolver(src SnapshotSource) *Resolver {
	return &Resolver{
		src:   src,
		cache: lru.NewLRU[string, Estimate](cacheSize, nil, cacheTTL),
	}
}

// Resolve returns the newest snapshot's statistics for the exact
// (cardID, grader, grade) triple. Grade labels are never conflated: "PSA 9"
// and "PSA 10" are distinct lookups. A missing cohort is not an error; it
// returns HasData=false and the caller chooses its own fallback.
func (r *Resolver) Resolve(cardID string, grader, grade string) (Estimate, error) {
	key := cardID + "|" + grader + "|" + grade
	if est, ok := r.cache.Get(key); ok {
		return est, nil
	}

	snap, err := r.src.LatestSnapshot(cardID, grader, grade)
	if err != nil {
		return Estimate{}, fmt.Errorf("snapshot lookup %s %s %s: %w", cardID, grader, grade, err)
	}
	if snap == nil {
		est := Estimate{}
		r.cache.Add(key, est)
		return est, nil
	}

	est := Estimate{
		Average:    snap.Mean,
		Confidence: snap.Confidence,
		Volume:     snap.Volume,
		HasData:    true,
	}
	r.cache.Add(key, est)
	return est, nil
}
