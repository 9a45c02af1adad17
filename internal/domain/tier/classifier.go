package tier

import (
	"fmt"
	"sort"

	"github.com/sawpanic/tierflow/internal/domain/market"
)

// Mode selects the boundary algorithm for tier classification.
type Mode string

const (
	// ModeEqualCount distributes assets evenly across tiers by market-cap
	// rank. This is the documented default.
	ModeEqualCount Mode = "equal-count"

	// ModeCapShare draws boundaries so each tier holds an approximately
	// equal share of total market cap, which concentrates tier 0 on the
	// few largest assets.
	ModeCapShare Mode = "cap-share"
)

// Assignment maps every asset of one snapshot to a tier index. Tier 0 holds
// the largest caps; indices are contiguous and partition the snapshot.
type Assignment struct {
	Timestamp  int64          `json:"timestamp_unix"`
	Tiers      map[string]int `json:"tiers"`
	TierCount  int            `json:"tier_count"`
	Reduced    bool           `json:"reduced,omitempty"` // effective count < requested
}

// Members returns the asset ids assigned to the given tier, in lexical order.
func (a Assignment) Members(tier int) []string {
	var members []string
	for id, t := range a.Tiers {
		if t == tier {
			members = append(members, id)
		}
	}
	sort.Strings(members)
	return members
}

// Classifier partitions snapshots into market-cap tiers. Pure; safe to share
// across goroutines.
type Classifier struct {
	tierCount int
	mode      Mode
}

// NewClassifier creates a classifier for the requested tier count (>= 2).
func NewClassifier(tierCount int, mode Mode) (*Classifier, error) {
	if tierCount < 2 {
		return nil, &market.ConfigError{Field: "tier_count",
			Reason: fmt.Sprintf("must be >= 2, got %d", tierCount)}
	}
	if mode == "" {
		mode = ModeEqualCount
	}
	if mode != ModeEqualCount && mode != ModeCapShare {
		return nil, &market.ConfigError{Field: "tier_mode",
			Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	return &Classifier{tierCount: tierCount, mode: mode}, nil
}

// Classify assigns every asset in the snapshot to a tier. When the snapshot
// holds fewer assets than the configured tier count, the effective count is
// reduced to the asset count and the assignment is returned together with
// market.ErrInsufficientData so the caller may choose to skip the snapshot.
func (c *Classifier) Classify(snap market.Snapshot) (Assignment, error) {
	if err := snap.Validate(); err != nil {
		return Assignment{}, err
	}

	ranked := rankByMarketCap(snap)

	effective := c.tierCount
	reduced := false
	if len(ranked) < effective {
		effective = len(ranked)
		reduced = true
	}

	assignment := Assignment{
		Timestamp: snap.Timestamp.Unix(),
		Tiers:     make(map[string]int, len(ranked)),
		TierCount: effective,
		Reduced:   reduced,
	}

	switch c.mode {
	case ModeCapShare:
		c.assignByCapShare(snap, ranked, effective, &assignment)
	default:
		c.assignByCount(ranked, effective, &assignment)
	}

	if reduced {
		return assignment, fmt.Errorf("%d assets for %d tiers: %w",
			len(ranked), c.tierCount, market.ErrInsufficientData)
	}
	return assignment, nil
}

// assignByCount splits the ranking into near-equal buckets. Remainder assets
// go to the upper tiers so tier 0 is never smaller than tier N-1.
func (c *Classifier) assignByCount(ranked []string, tiers int, out *Assignment) {
	n := len(ranked)
	base := n / tiers
	remainder := n % tiers

	idx := 0
	for t := 0; t < tiers; t++ {
		size := base
		if t < remainder {
			size++
		}
		for i := 0; i < size; i++ {
			out.Tiers[ranked[idx]] = t
			idx++
		}
	}
}

// assignByCapShare walks the ranking and advances to the next tier once the
// accumulated share of total market cap crosses the tier's cumulative target.
func (c *Classifier) assignByCapShare(snap market.Snapshot, ranked []string, tiers int, out *Assignment) {
	total := snap.TotalMarketCap()
	perTier := 1.0 / float64(tiers)

	accumulated := 0.0
	current := 0
	for i, id := range ranked {
		out.Tiers[id] = current
		accumulated += snap.Assets[id].MarketCap / total

		// Leave enough assets so every remaining tier gets at least one.
		remainingAssets := len(ranked) - i - 1
		remainingTiers := tiers - current - 1
		crossed := accumulated >= perTier*float64(current+1)
		if current < tiers-1 && (crossed || remainingAssets == remainingTiers) {
			current++
		}
	}
}

// rankByMarketCap orders asset ids by descending market cap, breaking ties by
// asset id to keep classification deterministic.
func rankByMarketCap(snap market.Snapshot) []string {
	ids := snap.AssetIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		ci := snap.Assets[ids[i]].MarketCap
		cj := snap.Assets[ids[j]].MarketCap
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})
	return ids
}
