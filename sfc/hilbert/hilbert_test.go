package hilbert

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/sfc"
)

func newTestSFC(t *testing.T, bits ...int) *SFC {
	t.Helper()
	defs := make([]*sfc.DimensionDefinition, len(bits))
	for i, b := range bits {
		defs[i] = sfc.NewDimensionDefinition(dimension.NewBasic(0, 1), b)
	}
	s, err := New(defs...)
	require.NoError(t, err)
	return s
}

func newSpatialSFC(t *testing.T, lonBits, latBits int) *SFC {
	t.Helper()
	s, err := New(
		sfc.NewDimensionDefinition(dimension.NewLongitude(), lonBits),
		sfc.NewDimensionDefinition(dimension.NewLatitude(true), latBits),
	)
	require.NoError(t, err)
	return s
}

func TestKeyWidth(t *testing.T) {
	assert.Len(t, newTestSFC(t, 4, 4).Encode([]float64{0, 0}), 1)
	assert.Len(t, newTestSFC(t, 8, 8).Encode([]float64{0, 0}), 2)
	assert.Len(t, newTestSFC(t, 20, 20, 20).Encode([]float64{0, 0, 0}), 8)
	assert.Len(t, newTestSFC(t, 0, 0).Encode([]float64{0, 0}), 0)
}

func TestEncodeIsBijectiveOnSmallCurve(t *testing.T) {
	s := newTestSFC(t, 3, 3)
	seen := make(map[string][2]uint64)
	for x := range uint64(8) {
		for y := range uint64(8) {
			key := string(s.encodeOps.(*primitiveOps).hilbertIndexBytes([]uint64{x, y}))
			prev, dup := seen[key]
			require.False(t, dup, "cells %v and %v collide on key %x", prev, [2]uint64{x, y}, key)
			seen[key] = [2]uint64{x, y}
		}
	}
	assert.Len(t, seen, 64)
}

func TestCurveAdjacency(t *testing.T) {
	// Consecutive curve positions identify cells that differ by one step
	// in exactly one dimension.
	s := newTestSFC(t, 3, 3)
	ops := s.encodeOps.(*primitiveOps)
	var prev []uint64
	for h := uint64(0); h < 64; h++ {
		coords, err := ops.coordinates(ops.indexToBytes(h))
		require.NoError(t, err)
		if prev != nil {
			dx := int64(coords[0]) - int64(prev[0])
			dy := int64(coords[1]) - int64(prev[1])
			assert.Equal(t, int64(1), dx*dx+dy*dy, "jump between %v and %v", prev, coords)
		}
		prev = coords
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	curves := []*SFC{
		newTestSFC(t, 8),
		newTestSFC(t, 8, 8),
		newTestSFC(t, 5, 9),
		newTestSFC(t, 7, 3, 12),
		newSpatialSFC(t, 16, 16),
	}
	for _, s := range curves {
		for range 200 {
			values := make([]float64, len(s.dims))
			for j, d := range s.dims {
				r := d.Dimension.Range()
				values[j] = r.Lo + rng.Float64()*(r.Hi-r.Lo)
			}
			key := s.Encode(values)
			cell, err := s.Decode(key)
			require.NoError(t, err)
			for j, d := range cell.PerDimension {
				assert.LessOrEqual(t, d.Min(), values[j])
				assert.GreaterOrEqual(t, d.Max(), values[j])
			}
			// The cell re-encodes to the same key.
			assert.Equal(t, key, s.Encode(cell.Centroids()))
		}
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	s := newTestSFC(t, 4, 4)
	low := s.Encode([]float64{-10, -10})
	assert.Equal(t, s.Encode([]float64{0, 0}), low)
	high := s.Encode([]float64{10, 10})
	assert.Equal(t, s.Encode([]float64{1, 1}), high)
}

func TestDecomposeExactCell(t *testing.T) {
	// A box exactly covering one aligned cell decomposes into a single
	// degenerate range.
	s := newTestSFC(t, 6, 6)
	cellSize := 1.0 / 64
	query := numeric.NewDataset(
		numeric.NewRange(3*cellSize+1e-12, 4*cellSize-1e-12),
		numeric.NewRange(17*cellSize+1e-12, 18*cellSize-1e-12),
	)
	decomp := s.DecomposeRange(query, true, -1)
	require.Len(t, decomp.Ranges, 1)
	assert.Equal(t, decomp.Ranges[0].Start, decomp.Ranges[0].End)
}

func TestDecomposeCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := newTestSFC(t, 8, 8)
	for range 50 {
		lo0, hi0 := sortedPair(rng)
		lo1, hi1 := sortedPair(rng)
		query := numeric.NewDataset(numeric.NewRange(lo0, hi0), numeric.NewRange(lo1, hi1))
		decomp := s.DecomposeRange(query, false, -1)
		for range 20 {
			p := []float64{lo0 + rng.Float64()*(hi0-lo0), lo1 + rng.Float64()*(hi1-lo1)}
			key := s.Encode(p)
			assert.True(t, anyRangeContains(decomp.Ranges, key),
				"key %x of point %v not covered", key, p)
		}
	}
}

func TestDecomposeTightness(t *testing.T) {
	// With strict edges and no cardinality cap, every decomposed cell
	// intersects the query box.
	s := newTestSFC(t, 5, 5)
	query := numeric.NewDataset(
		numeric.NewRange(0.20, 0.45),
		numeric.NewRange(0.55, 0.80),
	)
	decomp := s.DecomposeRange(query, false, -1)
	require.NotEmpty(t, decomp.Ranges)
	for _, r := range decomp.Ranges {
		for key := append([]byte(nil), r.Start...); bytes.Compare(key, r.End) <= 0; {
			cell, err := s.Decode(key)
			require.NoError(t, err)
			assert.Less(t, cell.PerDimension[0].Min(), 0.45)
			assert.Greater(t, cell.PerDimension[0].Max(), 0.20)
			assert.Less(t, cell.PerDimension[1].Min(), 0.80)
			assert.Greater(t, cell.PerDimension[1].Max(), 0.55)
			next, ok := nextKey(key)
			if !ok {
				break
			}
			key = next
		}
	}
}

func TestDecomposeMaxRanges(t *testing.T) {
	s := newTestSFC(t, 8, 8)
	query := numeric.NewDataset(
		numeric.NewRange(0.1, 0.6),
		numeric.NewRange(0.3, 0.9),
	)
	full := s.DecomposeRange(query, false, -1)
	require.Greater(t, len(full.Ranges), 4)

	capped := s.DecomposeRange(query, false, 4)
	assert.LessOrEqual(t, len(capped.Ranges), 4)
	// Capping only merges: every full range stays covered.
	for _, r := range full.Ranges {
		assert.True(t, anyRangeContains(capped.Ranges, r.Start))
		assert.True(t, anyRangeContains(capped.Ranges, r.End))
	}
}

func TestDecomposeRangesSortedAndDisjoint(t *testing.T) {
	s := newTestSFC(t, 7, 7)
	query := numeric.NewDataset(
		numeric.NewRange(0.05, 0.7),
		numeric.NewRange(0.1, 0.55),
	)
	decomp := s.DecomposeRange(query, false, -1)
	for i := 1; i < len(decomp.Ranges); i++ {
		assert.True(t, bytes.Compare(decomp.Ranges[i-1].End, decomp.Ranges[i].Start) < 0)
	}
	for _, r := range decomp.Ranges {
		assert.True(t, bytes.Compare(r.Start, r.End) <= 0)
	}
}

func TestBackendsAgree(t *testing.T) {
	s := newTestSFC(t, 10, 10)
	primitive := s.encodeOps.(*primitiveOps)
	unbounded := newUnboundedOps(s.spec, s.dims, s.expectedBytes)

	rng := rand.New(rand.NewSource(99))
	for range 100 {
		values := []float64{rng.Float64(), rng.Float64()}
		assert.Equal(t, primitive.encode(values), unbounded.encode(values))
	}

	query := numeric.NewDataset(
		numeric.NewRange(0.12, 0.38),
		numeric.NewRange(0.42, 0.77),
	)
	for _, overInclusive := range []bool{false, true} {
		p := primitive.decomposeRange(query, overInclusive, unlimitedRanges)
		u := unbounded.decomposeRange(query, overInclusive, unlimitedRanges)
		assert.Equal(t, p, u)
	}
	assert.Equal(t,
		primitive.estimatedIDCount(query),
		unbounded.estimatedIDCount(query))
}

func TestHierarchicalContainment(t *testing.T) {
	// A coarse cell decomposes into exactly one contiguous range on a
	// finer curve over the same dimensions, and the finer key of any
	// point in the cell lies within it.
	coarse := newTestSFC(t, 4, 4)
	fine := newTestSFC(t, 9, 9)
	rng := rand.New(rand.NewSource(3))
	for range 50 {
		p := []float64{rng.Float64(), rng.Float64()}
		cell, err := coarse.Decode(coarse.Encode(p))
		require.NoError(t, err)
		decomp := fine.DecomposeRange(cell, false, -1)
		require.Len(t, decomp.Ranges, 1)
		fineKey := fine.Encode(p)
		assert.True(t, bytes.Compare(decomp.Ranges[0].Start, fineKey) <= 0)
		assert.True(t, bytes.Compare(fineKey, decomp.Ranges[0].End) <= 0)
	}
}

func TestEstimatedIDCount(t *testing.T) {
	s := newTestSFC(t, 4, 4)
	// A point covers one cell.
	point := numeric.NewDataset(numeric.Value(0.3), numeric.Value(0.3))
	assert.Equal(t, "1", s.EstimatedIDCount(point).String())

	// The full domain caps at 2^totalPrecision.
	all := numeric.NewDataset(numeric.NewRange(0, 1), numeric.NewRange(0, 1))
	assert.Equal(t, "256", s.EstimatedIDCount(all).String())
}

func TestNormalizeRange(t *testing.T) {
	s := newTestSFC(t, 4)
	lo, hi, err := s.NormalizeRange(0, 0.5, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), lo)
	assert.Equal(t, uint64(7), hi)

	_, _, err = s.NormalizeRange(0.5, 0.1, 0)
	assert.Error(t, err)
}

func TestCacheDeterminism(t *testing.T) {
	ResetDecompositionCache()
	s := newTestSFC(t, 8, 8)
	query := numeric.NewDataset(
		numeric.NewRange(0.11, 0.52),
		numeric.NewRange(0.23, 0.61),
	)
	first := s.DecomposeRange(query, true, 16)
	second := s.DecomposeRange(query, true, 16)
	assert.Equal(t, first, second)

	ResetDecompositionCache()
	third := s.DecomposeRange(query, true, 16)
	assert.Equal(t, first, third)
}

func TestBinaryRoundTrip(t *testing.T) {
	s := newSpatialSFC(t, 12, 10)
	bin, err := persist.ToBinary(s)
	require.NoError(t, err)
	out, err := persist.FromBinary(bin)
	require.NoError(t, err)
	restored, ok := out.(*SFC)
	require.True(t, ok)

	values := []float64{-77.03, 38.89}
	assert.Equal(t, s.Encode(values), restored.Encode(values))
	assert.Equal(t, s.TotalPrecision(), restored.TotalPrecision())
}

func TestUnmarshalCorrupt(t *testing.T) {
	var s SFC
	assert.ErrorIs(t, s.UnmarshalBinary([]byte{0x02, 0x05}), persist.ErrCorruptFormat)
}

func TestInvalidPrecision(t *testing.T) {
	_, err := New()
	assert.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = New(sfc.NewDimensionDefinition(dimension.NewBasic(0, 1), 65))
	assert.ErrorIs(t, err, ErrInvalidPrecision)
}

func sortedPair(rng *rand.Rand) (float64, float64) {
	a, b := rng.Float64(), rng.Float64()
	if a > b {
		a, b = b, a
	}
	return a, b
}

func anyRangeContains(ranges []model.ByteArrayRange, key []byte) bool {
	for _, r := range ranges {
		if bytes.Compare(r.Start, key) <= 0 && bytes.Compare(key, r.End) <= 0 {
			return true
		}
	}
	return false
}

func nextKey(key []byte) ([]byte, bool) {
	out := append([]byte(nil), key...)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			return out, true
		}
	}
	return nil, false
}
