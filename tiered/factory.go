package tiered

import (
	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/sfc"
	"github.com/hupe1980/sfcgo/sfc/hilbert"
)

// The factories build tier stacks over compact Hilbert curves. Tier
// bytes are the per-dimension bits of precision at that tier, so the
// first byte of a stored key reads directly as its precision level.

func newTierCurve(dims []dimension.Definition, bitsPerDim []int) (sfc.SpaceFillingCurve, error) {
	defs := make([]*sfc.DimensionDefinition, len(dims))
	for i, d := range dims {
		defs[i] = sfc.NewDimensionDefinition(d, bitsPerDim[i])
	}
	return hilbert.New(defs...)
}

// CreateSingleTierStrategy builds a strategy with exactly one precision
// level.
func CreateSingleTierStrategy(dims []dimension.Definition, bitsPerDim []int, opts ...Option) (*Strategy, error) {
	return CreateDefinedPrecisionTieredStrategy(dims, singleTier(bitsPerDim), opts...)
}

func singleTier(bitsPerDim []int) [][]int {
	out := make([][]int, len(bitsPerDim))
	for i, b := range bitsPerDim {
		out[i] = []int{b}
	}
	return out
}

// CreateFullIncrementalTieredStrategy builds one tier per bit of
// precision, from 0 up to the per-dimension maxima.
func CreateFullIncrementalTieredStrategy(dims []dimension.Definition, maxBitsPerDim []int, opts ...Option) (*Strategy, error) {
	maxBits := 0
	for _, b := range maxBitsPerDim {
		maxBits = max(maxBits, b)
	}
	bitsPerTier := make([][]int, len(dims))
	for d := range dims {
		bitsPerTier[d] = make([]int, maxBits+1)
		for t := 0; t <= maxBits; t++ {
			bitsPerTier[d][t] = min(t, maxBitsPerDim[d])
		}
	}
	return CreateDefinedPrecisionTieredStrategy(dims, bitsPerTier, opts...)
}

// CreateEqualIntervalPrecisionTieredStrategy builds numTiers tiers with
// per-dimension bits spread evenly from 0 to the maxima: tier t gets
// maxBits * t / (numTiers-1) bits. Dividing by numTiers-1 makes the
// finest tier land exactly on the maxima instead of one step short.
func CreateEqualIntervalPrecisionTieredStrategy(dims []dimension.Definition, maxBitsPerDim []int, numTiers int, opts ...Option) (*Strategy, error) {
	if numTiers < 1 {
		numTiers = 1
	}
	bitsPerTier := make([][]int, len(dims))
	for d := range dims {
		bitsPerTier[d] = make([]int, numTiers)
		for t := range numTiers {
			if numTiers == 1 {
				bitsPerTier[d][t] = maxBitsPerDim[d]
				continue
			}
			bitsPerTier[d][t] = maxBitsPerDim[d] * t / (numTiers - 1)
		}
	}
	return CreateDefinedPrecisionTieredStrategy(dims, bitsPerTier, opts...)
}

// CreateDefinedPrecisionTieredStrategy builds one tier per column of
// bitsPerTierPerDim, indexed [dimension][tier], tiers ordered coarsest
// to finest. Tiers whose byte (the maximum bits across dimensions)
// repeats collapse into the first occurrence.
func CreateDefinedPrecisionTieredStrategy(dims []dimension.Definition, bitsPerTierPerDim [][]int, opts ...Option) (*Strategy, error) {
	numTiers := 0
	for _, perDim := range bitsPerTierPerDim {
		numTiers = max(numTiers, len(perDim))
	}
	var (
		orderedSfcs    []sfc.SpaceFillingCurve
		sfcIndexToTier []byte
	)
	seen := make(map[byte]bool, numTiers)
	for t := range numTiers {
		bitsPerDim := make([]int, len(dims))
		tierBits := 0
		for d := range dims {
			if t < len(bitsPerTierPerDim[d]) {
				bitsPerDim[d] = bitsPerTierPerDim[d][t]
			}
			tierBits = max(tierBits, bitsPerDim[d])
		}
		tier := byte(tierBits)
		if seen[tier] {
			continue
		}
		seen[tier] = true
		curve, err := newTierCurve(dims, bitsPerDim)
		if err != nil {
			return nil, err
		}
		orderedSfcs = append(orderedSfcs, curve)
		sfcIndexToTier = append(sfcIndexToTier, tier)
	}
	return NewStrategy(dims, orderedSfcs, sfcIndexToTier, opts...)
}
