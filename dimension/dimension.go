// Package dimension defines the numeric axes an index is built over:
// bounded axes, periodic spatial axes and calendar-binned temporal axes.
//
// A dimension maps raw values into a bounded normalized space that a
// space filling curve can discretize. Binned dimensions additionally
// split the real line into labeled buckets whose byte labels prefix the
// sort key.
package dimension

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/util"
)

// Persistence type tags for the dimension definitions.
const (
	tagBasic uint16 = iota + 1
	tagLongitude
	tagLatitude
	tagTime
)

// BinRange is one bucket of a normalized datum: the bin's byte label
// (nil for unbinned dimensions) and the clamped sub-range within the
// dimension's normalized space.
type BinRange struct {
	BinID      []byte
	Min        float64
	Max        float64
	FullExtent bool
}

// Definition is a named, finite numeric axis.
//
// Range is the normalized extent discretized by a space filling curve;
// Bounds the valid raw input values. For unbinned dimensions the two
// coincide.
type Definition interface {
	persist.Persistable

	Range() numeric.Range
	Bounds() numeric.Range
	// Normalize decomposes a raw datum into one BinRange per overlapping
	// bucket. Unbinned dimensions always yield exactly one entry.
	Normalize(d numeric.Data) []BinRange
	// Denormalize maps a normalized bin sub-range back into raw value
	// space.
	Denormalize(b BinRange) (numeric.Range, error)
	// FixedBinIDSize is the byte width this dimension contributes to the
	// partition key, 0 when the axis is not binned.
	FixedBinIDSize() int
}

// Basic is a bounded numeric dimension over [Lo, Hi]. Input values are
// clamped to the bounds.
type Basic struct {
	Lo float64
	Hi float64
}

// NewBasic returns a bounded dimension over [lo, hi].
func NewBasic(lo, hi float64) *Basic {
	return &Basic{Lo: lo, Hi: hi}
}

func (b *Basic) Range() numeric.Range  { return numeric.Range{Lo: b.Lo, Hi: b.Hi} }
func (b *Basic) Bounds() numeric.Range { return numeric.Range{Lo: b.Lo, Hi: b.Hi} }
func (b *Basic) FixedBinIDSize() int   { return 0 }

func (b *Basic) clamp(v float64) float64 {
	return math.Min(math.Max(v, b.Lo), b.Hi)
}

func (b *Basic) Normalize(d numeric.Data) []BinRange {
	lo := b.clamp(d.Min())
	hi := b.clamp(d.Max())
	return []BinRange{{
		Min:        lo,
		Max:        hi,
		FullExtent: lo <= b.Lo && hi >= b.Hi,
	}}
}

func (b *Basic) Denormalize(r BinRange) (numeric.Range, error) {
	return numeric.Range{Lo: b.clamp(r.Min), Hi: b.clamp(r.Max)}, nil
}

func (b *Basic) PersistableTag() uint16 { return tagBasic }

func (b *Basic) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 16)
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(b.Lo))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(b.Hi))
	return buf, nil
}

func (b *Basic) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("%w: basic dimension needs 16 bytes, got %d", persist.ErrCorruptFormat, len(data))
	}
	b.Lo = math.Float64frombits(binary.LittleEndian.Uint64(data[:8]))
	b.Hi = math.Float64frombits(binary.LittleEndian.Uint64(data[8:16]))
	return nil
}

// BinnedRangesPerDimension returns, per dimension, the bin decomposition
// of the corresponding datum.
func BinnedRangesPerDimension(data numeric.Dataset, dims []Definition) [][]BinRange {
	out := make([][]BinRange, len(dims))
	for i, dim := range dims {
		out[i] = dim.Normalize(data.PerDimension[i])
	}
	return out
}

// BinnedDataset is a data or query tuple after binning: the concatenated
// per-dimension bin labels plus the per-dimension normalized data.
type BinnedDataset struct {
	BinID []byte
	numeric.Dataset
}

// ApplyBins decomposes a tuple into the Cartesian product of its
// per-dimension bins. Tuples that fall entirely within single bins
// (the common case) yield exactly one element.
func ApplyBins(data numeric.Dataset, dims []Definition) []BinnedDataset {
	perDim := BinnedRangesPerDimension(data, dims)
	out := []BinnedDataset{{Dataset: numeric.Dataset{PerDimension: make([]numeric.Data, len(dims))}}}
	for d, bins := range perDim {
		next := make([]BinnedDataset, 0, len(out)*len(bins))
		for _, partial := range out {
			for _, bin := range bins {
				combined := BinnedDataset{
					BinID:   util.Combine(partial.BinID, bin.BinID),
					Dataset: numeric.Dataset{PerDimension: make([]numeric.Data, len(dims))},
				}
				copy(combined.PerDimension, partial.PerDimension)
				if bin.Min == bin.Max {
					combined.PerDimension[d] = numeric.Value(bin.Min)
				} else {
					combined.PerDimension[d] = numeric.Range{Lo: bin.Min, Hi: bin.Max}
				}
				next = append(next, combined)
			}
		}
		out = next
	}
	return out
}

// BinIDSlice extracts dimension d's bin label from a composite bin id,
// assuming fixed-width labels for all preceding dimensions.
func BinIDSlice(binID []byte, dims []Definition, d int) []byte {
	offset := 0
	for i := range d {
		offset += dims[i].FixedBinIDSize()
	}
	size := dims[d].FixedBinIDSize()
	if size == 0 || offset+size > len(binID) {
		return nil
	}
	return binID[offset : offset+size]
}

func init() {
	persist.Register(tagBasic, func() persist.Persistable { return &Basic{} })
	persist.Register(tagLongitude, func() persist.Persistable { return NewLongitude() })
	persist.Register(tagLatitude, func() persist.Persistable { return NewLatitude(false) })
	persist.Register(tagTime, func() persist.Persistable { return NewTime(UnitYear) })
}
