package market

import (
	"sort"
	"time"
)

// Quote holds the per-asset metrics of one sampling interval.
type Quote struct {
	MarketCap float64 `json:"market_cap"`
	Volume    float64 `json:"volume"`
	Price     float64 `json:"price"`
}

// Snapshot is one cross-sectional view of the market. Immutable once produced;
// snapshots arrive ordered by timestamp with no duplicates.
type Snapshot struct {
	Timestamp time.Time        `json:"timestamp"`
	Assets    map[string]Quote `json:"assets"`
}

// Validate checks the snapshot against the input contract: a non-empty asset
// set, positive market caps and prices, non-negative volumes.
func (s *Snapshot) Validate() error {
	if len(s.Assets) == 0 {
		return &ValidationError{Timestamp: s.Timestamp, Field: "assets", Reason: "empty asset set"}
	}
	for id, q := range s.Assets {
		if q.MarketCap <= 0 {
			return &ValidationError{Timestamp: s.Timestamp, Field: "market_cap",
				Reason: "non-positive market cap for " + id}
		}
		if q.Price <= 0 {
			return &ValidationError{Timestamp: s.Timestamp, Field: "price",
				Reason: "non-positive price for " + id}
		}
		if q.Volume < 0 {
			return &ValidationError{Timestamp: s.Timestamp, Field: "volume",
				Reason: "negative volume for " + id}
		}
	}
	return nil
}

// AssetIDs returns the snapshot's asset identifiers in lexical order.
// Deterministic iteration order is load-bearing for tie-breaking downstream.
func (s *Snapshot) AssetIDs() []string {
	ids := make([]string, 0, len(s.Assets))
	for id := range s.Assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TotalMarketCap sums market cap across the snapshot.
func (s *Snapshot) TotalMarketCap() float64 {
	var total float64
	for _, q := range s.Assets {
		total += q.MarketCap
	}
	return total
}

// PricePoint is one observation of an asset's own history, used by the
// smart-money analyzer.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	MarketCap float64   `json:"market_cap"`
}

// History extracts the per-asset series from an ordered run of snapshots.
// Snapshots missing the asset are skipped.
func History(snapshots []Snapshot, assetID string) []PricePoint {
	points := make([]PricePoint, 0, len(snapshots))
	for _, snap := range snapshots {
		q, ok := snap.Assets[assetID]
		if !ok {
			continue
		}
		points = append(points, PricePoint{
			Timestamp: snap.Timestamp,
			Price:     q.Price,
			Volume:    q.Volume,
			MarketCap: q.MarketCap,
		})
	}
	return points
}

// CheckOrder verifies that timestamps are strictly increasing across the
// stream. Returns a ValidationError naming the first offending snapshot.
func CheckOrder(snapshots []Snapshot) error {
	for i := 1; i < len(snapshots); i++ {
		if !snapshots[i].Timestamp.After(snapshots[i-1].Timestamp) {
			return &ValidationError{
				Timestamp: snapshots[i].Timestamp,
				Field:     "timestamp",
				Reason:    "not strictly increasing",
			}
		}
	}
	return nil
}
