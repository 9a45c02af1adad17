package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapAt(ts time.Time, assets map[string]Quote) Snapshot {
	return Snapshot{Timestamp: ts, Assets: assets}
}

func TestSnapshotValidate(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		snap    Snapshot
		wantErr bool
		field   string
	}{
		{
			name: "valid snapshot",
			snap: snapAt(base, map[string]Quote{
				"btc": {MarketCap: 1e12, Volume: 1e10, Price: 60000},
			}),
		},
		{
			name:    "empty asset set",
			snap:    snapAt(base, map[string]Quote{}),
			wantErr: true,
			field:   "assets",
		},
		{
			name: "zero market cap",
			snap: snapAt(base, map[string]Quote{
				"btc": {MarketCap: 0, Volume: 1e10, Price: 60000},
			}),
			wantErr: true,
			field:   "market_cap",
		},
		{
			name: "negative price",
			snap: snapAt(base, map[string]Quote{
				"btc": {MarketCap: 1e12, Volume: 1e10, Price: -1},
			}),
			wantErr: true,
			field:   "price",
		},
		{
			name: "negative volume",
			snap: snapAt(base, map[string]Quote{
				"btc": {MarketCap: 1e12, Volume: -5, Price: 60000},
			}),
			wantErr: true,
			field:   "volume",
		},
		{
			name: "zero volume is allowed",
			snap: snapAt(base, map[string]Quote{
				"btc": {MarketCap: 1e12, Volume: 0, Price: 60000},
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestAssetIDsSorted(t *testing.T) {
	snap := snapAt(time.Now(), map[string]Quote{
		"sol": {MarketCap: 1, Volume: 1, Price: 1},
		"btc": {MarketCap: 1, Volume: 1, Price: 1},
		"eth": {MarketCap: 1, Volume: 1, Price: 1},
	})
	assert.Equal(t, []string{"btc", "eth", "sol"}, snap.AssetIDs())
}

func TestHistorySkipsMissingAssets(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snapshots := []Snapshot{
		snapAt(base, map[string]Quote{
			"btc": {MarketCap: 100, Volume: 10, Price: 1},
			"eth": {MarketCap: 50, Volume: 5, Price: 2},
		}),
		snapAt(base.Add(time.Hour), map[string]Quote{
			"btc": {MarketCap: 110, Volume: 11, Price: 1.1},
		}),
		snapAt(base.Add(2*time.Hour), map[string]Quote{
			"btc": {MarketCap: 120, Volume: 12, Price: 1.2},
			"eth": {MarketCap: 55, Volume: 6, Price: 2.1},
		}),
	}

	points := History(snapshots, "eth")
	require.Len(t, points, 2)
	assert.Equal(t, base, points[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Hour), points[1].Timestamp)
	assert.Equal(t, 2.1, points[1].Price)
}

func TestCheckOrder(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ok := []Snapshot{
		snapAt(base, map[string]Quote{"a": {MarketCap: 1, Volume: 1, Price: 1}}),
		snapAt(base.Add(time.Hour), map[string]Quote{"a": {MarketCap: 1, Volume: 1, Price: 1}}),
	}
	assert.NoError(t, CheckOrder(ok))

	dup := append(ok, snapAt(base.Add(time.Hour), map[string]Quote{"a": {MarketCap: 1, Volume: 1, Price: 1}}))
	err := CheckOrder(dup)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	backwards := []Snapshot{ok[1], ok[0]}
	assert.Error(t, CheckOrder(backwards))
}
