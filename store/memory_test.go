package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/tiered"
)

func newTestStrategy(t *testing.T) *tiered.Strategy {
	t.Helper()
	strategy, err := tiered.CreateEqualIntervalPrecisionTieredStrategy(
		[]dimension.Definition{
			dimension.NewLongitude(),
			dimension.NewLatitude(true),
			dimension.NewTime(dimension.UnitYear),
		},
		[]int{16, 16, 16}, 4)
	require.NoError(t, err)
	return strategy
}

func entry(lon, lat float64, ts time.Time) numeric.Dataset {
	return numeric.NewDataset(
		numeric.Value(lon),
		numeric.Value(lat),
		numeric.Value(float64(ts.UnixMilli())),
	)
}

func TestMemoryStoreWriteScanDelete(t *testing.T) {
	ctx := context.Background()
	strategy := newTestStrategy(t)
	s := NewMemoryStore(strategy.CreateMetaData())

	ts := time.Date(2005, time.April, 1, 12, 0, 0, 0, time.UTC)
	inside := entry(10.001, 20.001, ts)
	outside := entry(-120, -45, ts)

	idsInside := strategy.GetInsertionIds(inside)
	idsOutside := strategy.GetInsertionIds(outside)
	require.NoError(t, s.Write(ctx, idsInside, 1))
	require.NoError(t, s.Write(ctx, idsOutside, 2))

	box := numeric.NewDataset(
		numeric.NewRange(10, 10.01),
		numeric.NewRange(20, 20.01),
		numeric.NewRange(float64(ts.Add(-time.Hour).UnixMilli()), float64(ts.Add(time.Hour).UnixMilli())),
	)
	hits, err := s.Scan(ctx, strategy.GetQueryRanges(box, s.Metadata()))
	require.NoError(t, err)
	assert.True(t, hits.Contains(1))
	assert.False(t, hits.Contains(2))

	require.NoError(t, s.Delete(ctx, idsInside, 1))
	hits, err = s.Scan(ctx, strategy.GetQueryRanges(box, s.Metadata()))
	require.NoError(t, err)
	assert.True(t, hits.IsEmpty())
}

func TestMemoryStoreMaintainsMetadata(t *testing.T) {
	ctx := context.Background()
	strategy := newTestStrategy(t)
	meta := strategy.CreateMetaData()
	s := NewMemoryStore(meta)

	ts := time.Date(2005, time.April, 1, 12, 0, 0, 0, time.UTC)
	ids := strategy.GetInsertionIds(entry(1, 2, ts))
	require.NoError(t, s.Write(ctx, ids, 7))

	// A query against metadata only touches the populated tier.
	box := numeric.NewDataset(
		numeric.NewRange(0.9, 1.1),
		numeric.NewRange(1.9, 2.1),
		numeric.NewRange(float64(ts.Add(-time.Hour).UnixMilli()), float64(ts.Add(time.Hour).UnixMilli())),
	)
	ranges := strategy.GetQueryRanges(box, meta)
	require.False(t, ranges.IsEmpty())
	for _, p := range ranges.Partitions {
		assert.Equal(t, ids.Partitions[0].PartitionKey[0], p.PartitionKey[0])
	}

	require.NoError(t, s.Delete(ctx, ids, 7))
	assert.True(t, strategy.GetQueryRanges(box, meta).IsEmpty())
}

func TestMemoryStoreMultiKeyEntryReportedOnce(t *testing.T) {
	ctx := context.Background()
	strategy := newTestStrategy(t)
	s := NewMemoryStore(strategy.CreateMetaData())

	ts := time.Date(2005, time.April, 1, 12, 0, 0, 0, time.UTC)
	region := numeric.NewDataset(
		numeric.NewRange(10, 10.2),
		numeric.NewRange(20, 20.2),
		numeric.Value(float64(ts.UnixMilli())),
	)
	ids := strategy.GetInsertionIds(region)
	require.NoError(t, s.Write(ctx, ids, 42))

	box := numeric.NewDataset(
		numeric.NewRange(9, 11),
		numeric.NewRange(19, 21),
		numeric.NewRange(float64(ts.Add(-time.Hour).UnixMilli()), float64(ts.Add(time.Hour).UnixMilli())),
	)
	hits, err := s.Scan(ctx, strategy.GetQueryRanges(box, s.Metadata()))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), hits.GetCardinality())
	assert.True(t, hits.Contains(42))
}
