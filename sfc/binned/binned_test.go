package binned

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/sfc"
	"github.com/hupe1980/sfcgo/sfc/hilbert"
)

func spatialTemporalDims() []dimension.Definition {
	return []dimension.Definition{
		dimension.NewLongitude(),
		dimension.NewLatitude(true),
		dimension.NewTime(dimension.UnitYear),
	}
}

func newCurve(t *testing.T, dims []dimension.Definition, bits int) sfc.SpaceFillingCurve {
	t.Helper()
	defs := make([]*sfc.DimensionDefinition, len(dims))
	for i, d := range dims {
		defs[i] = sfc.NewDimensionDefinition(d, bits)
	}
	curve, err := hilbert.New(defs...)
	require.NoError(t, err)
	return curve
}

func TestSingleBinnedInsertionID(t *testing.T) {
	dims := spatialTemporalDims()
	curve := newCurve(t, dims, 16)
	ts := time.Date(1999, time.March, 3, 11, 1, 1, 0, time.UTC)
	data := numeric.NewDataset(
		numeric.Value(45),
		numeric.Value(45),
		numeric.Value(float64(ts.UnixMilli())),
	)
	bins := dimension.ApplyBins(data, dims)
	require.Len(t, bins, 1)

	tier := byte(16)
	ids := SingleBinnedInsertionID(big.NewInt(1), &tier, bins[0], curve)
	require.NotNil(t, ids)
	// 1 tier byte + 4 bin bytes.
	assert.Len(t, ids.PartitionKey, 5)
	assert.Equal(t, tier, ids.PartitionKey[0])
	require.Len(t, ids.SortKeys, 1)
	// 48 bits of curve index.
	assert.Len(t, ids.SortKeys[0], 6)
}

func TestSingleBinnedInsertionIDRejectsMultiCell(t *testing.T) {
	dims := []dimension.Definition{dimension.NewBasic(0, 1)}
	curve := newCurve(t, dims, 8)
	bins := dimension.ApplyBins(numeric.NewDataset(numeric.NewRange(0.1, 0.9)), dims)
	require.Len(t, bins, 1)

	tier := byte(8)
	count := curve.EstimatedIDCount(bins[0].Dataset)
	assert.Nil(t, SingleBinnedInsertionID(count, &tier, bins[0], curve))
}

func TestDecomposeRangesForEntry(t *testing.T) {
	dims := []dimension.Definition{dimension.NewBasic(0, 1)}
	curve := newCurve(t, dims, 4)
	bins := dimension.ApplyBins(numeric.NewDataset(numeric.NewRange(0.30, 0.55)), dims)
	require.Len(t, bins, 1)

	tier := byte(4)
	ids := DecomposeRangesForEntry(bins[0], &tier, curve)
	assert.Equal(t, []byte{4}, ids.PartitionKey)
	// Cells 4..8 of 16 (1D: curve order equals coordinate order).
	require.Len(t, ids.SortKeys, 5)
	for i := 1; i < len(ids.SortKeys); i++ {
		assert.True(t, bytes.Compare(ids.SortKeys[i-1], ids.SortKeys[i]) < 0)
	}
}

func TestQueryRangesPrefixesTierAndBin(t *testing.T) {
	dims := spatialTemporalDims()
	curve := newCurve(t, dims, 8)
	ts := time.Date(2003, time.June, 1, 0, 0, 0, 0, time.UTC)
	query := numeric.NewDataset(
		numeric.NewRange(10, 11),
		numeric.NewRange(10, 11),
		numeric.Value(float64(ts.UnixMilli())),
	)
	binnedQueries := dimension.ApplyBins(query, dims)
	tier := byte(8)
	partitions := QueryRanges(binnedQueries, curve, -1, &tier)
	require.NotEmpty(t, partitions)
	for _, p := range partitions {
		assert.Len(t, p.PartitionKey, 5)
		assert.Equal(t, tier, p.PartitionKey[0])
		assert.NotEmpty(t, p.Ranges)
	}
}

func TestRangeForIDRoundTrip(t *testing.T) {
	dims := spatialTemporalDims()
	curve := newCurve(t, dims, 12)
	ts := time.Date(1999, time.March, 3, 11, 1, 1, 0, time.UTC)
	data := numeric.NewDataset(
		numeric.Value(45),
		numeric.Value(45),
		numeric.Value(float64(ts.UnixMilli())),
	)
	bins := dimension.ApplyBins(data, dims)
	require.Len(t, bins, 1)
	tier := byte(12)
	ids := SingleBinnedInsertionID(big.NewInt(1), &tier, bins[0], curve)
	require.NotNil(t, ids)

	rowID := append(append([]byte(nil), ids.PartitionKey...), ids.SortKeys[0]...)
	ranges, err := RangeForID(rowID, dims, curve, 1)
	require.NoError(t, err)
	// The reconstructed cell contains the original values.
	assert.LessOrEqual(t, ranges.PerDimension[0].Min(), 45.0)
	assert.GreaterOrEqual(t, ranges.PerDimension[0].Max(), 45.0)
	assert.LessOrEqual(t, ranges.PerDimension[1].Min(), 45.0)
	assert.GreaterOrEqual(t, ranges.PerDimension[1].Max(), 45.0)
	assert.LessOrEqual(t, ranges.PerDimension[2].Min(), float64(ts.UnixMilli()))
	assert.GreaterOrEqual(t, ranges.PerDimension[2].Max(), float64(ts.UnixMilli()))

	coords, err := CoordinatesForID(rowID, dims, curve, 1)
	require.NoError(t, err)
	assert.Len(t, coords, 3)
}
