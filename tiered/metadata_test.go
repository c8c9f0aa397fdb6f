package tiered

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sfcgo/persist"
)

func newTestMeta(t *testing.T) (*Strategy, *TierMetaData) {
	t.Helper()
	strategy, err := CreateEqualIntervalPrecisionTieredStrategy(
		spatialDimensions(), []int{12, 12}, 3)
	require.NoError(t, err)
	return strategy, strategy.CreateMetaData().(*TierMetaData)
}

func TestMetadataAddRemove(t *testing.T) {
	strategy, meta := newTestMeta(t)
	tier1 := strategy.sfcIndexToTier[1]

	meta.InsertionIdsAdded(insertionIdsAtTier(tier1, 4))
	assert.Equal(t, 4, meta.CountAtSfcIndex(1))
	assert.Equal(t, 0, meta.CountAtSfcIndex(0))

	meta.InsertionIdsRemoved(insertionIdsAtTier(tier1, 3))
	assert.Equal(t, 1, meta.CountAtSfcIndex(1))

	// Unknown tier bytes are ignored silently.
	meta.InsertionIdsAdded(insertionIdsAtTier(0xEE, 2))
	for i := range 3 {
		assert.LessOrEqual(t, meta.CountAtSfcIndex(i), 4)
	}
}

func TestMetadataMergeCommutativeAssociative(t *testing.T) {
	strategy, _ := newTestMeta(t)
	build := func(counts ...int) *TierMetaData {
		m := strategy.CreateMetaData().(*TierMetaData)
		for i, c := range counts {
			m.InsertionIdsAdded(insertionIdsAtTier(strategy.sfcIndexToTier[i], c))
		}
		return m
	}

	// Commutative: a+b == b+a.
	ab := build(1, 2, 3)
	ab.Merge(build(4, 0, 6))
	ba := build(4, 0, 6)
	ba.Merge(build(1, 2, 3))
	assert.Equal(t, ab.tierCounts, ba.tierCounts)

	// Associative: (a+b)+c == a+(b+c).
	left := build(1, 2, 3)
	left.Merge(build(4, 5, 6))
	left.Merge(build(7, 8, 9))
	bc := build(4, 5, 6)
	bc.Merge(build(7, 8, 9))
	right := build(1, 2, 3)
	right.Merge(bc)
	assert.Equal(t, left.tierCounts, right.tierCounts)
}

func TestMetadataBinaryRoundTrip(t *testing.T) {
	strategy, meta := newTestMeta(t)
	meta.InsertionIdsAdded(insertionIdsAtTier(strategy.sfcIndexToTier[0], 7))
	meta.InsertionIdsAdded(insertionIdsAtTier(strategy.sfcIndexToTier[2], 2))

	bin, err := persist.ToBinary(meta)
	require.NoError(t, err)
	out, err := persist.FromBinary(bin)
	require.NoError(t, err)
	restored, ok := out.(*TierMetaData)
	require.True(t, ok)
	assert.Equal(t, meta, restored)
}

func TestMetadataBinaryCorrupt(t *testing.T) {
	var m TierMetaData
	assert.ErrorIs(t, m.UnmarshalBinary(nil), persist.ErrCorruptFormat)
	// Count promises more tiers than the buffer holds.
	assert.ErrorIs(t, m.UnmarshalBinary([]byte{0x05, 0x01}), persist.ErrCorruptFormat)
}
