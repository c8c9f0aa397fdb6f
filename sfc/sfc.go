// Package sfc defines the space filling curve contract: a bijection
// between N-dimensional integer coordinates and positions along a
// locality-preserving curve, plus the decomposition of query boxes into
// contiguous curve intervals.
package sfc

import (
	"fmt"
	"math/big"

	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/util"
)

const tagDimensionDefinition uint16 = 17

// RangeDecomposition is an ordered list of disjoint, inclusive curve
// intervals expressed as sort-key byte ranges.
type RangeDecomposition struct {
	Ranges []model.ByteArrayRange
}

// SpaceFillingCurve interleaves N normalized coordinates into a single
// index along a locality-preserving curve.
//
// Implementations are immutable after construction and safe for
// concurrent use.
type SpaceFillingCurve interface {
	persist.Persistable

	// Encode maps per-dimension values (in each dimension's normalized
	// space) to the curve position as a big-endian byte string of
	// ceil(totalPrecision/8) bytes. Values outside the valid range clamp;
	// positions above the curve's top saturate to all-0xFF.
	Encode(values []float64) []byte
	// Decode reports, per dimension, the value range of the cell
	// identified by id.
	Decode(id []byte) (numeric.Dataset, error)
	// Coordinates reports the per-dimension integer cell coordinates of
	// id.
	Coordinates(id []byte) ([]uint64, error)
	// DecomposeRange expresses the query box as contiguous curve
	// intervals. overInclusiveOnEdge treats cells touching the box
	// boundary as inside; maxRanges < 0 means unlimited, otherwise
	// adjacent intervals are merged, smallest gap first, until the count
	// fits.
	DecomposeRange(query numeric.Dataset, overInclusiveOnEdge bool, maxRanges int) RangeDecomposition
	// DecomposeRangeFully is DecomposeRange with no cardinality cap.
	DecomposeRangeFully(query numeric.Dataset) RangeDecomposition
	// EstimatedIDCount estimates how many cells the box covers:
	// min(product of per-dimension extents, 2^totalPrecision).
	EstimatedIDCount(data numeric.Dataset) *big.Int
	// NormalizeRange maps a value range on one dimension to inclusive
	// integer cell bounds.
	NormalizeRange(lo, hi float64, dim int) (uint64, uint64, error)
	// IDRangePerDimension reports the cell count per dimension.
	IDRangePerDimension() []float64
}

// DimensionDefinition pairs a dimension with its bit budget on a curve.
type DimensionDefinition struct {
	Dimension dimension.Definition
	Bits      int
}

// NewDimensionDefinition returns the curve-facing view of a dimension at
// the given bits of precision.
func NewDimensionDefinition(dim dimension.Definition, bits int) *DimensionDefinition {
	return &DimensionDefinition{Dimension: dim, Bits: bits}
}

func (d *DimensionDefinition) PersistableTag() uint16 { return tagDimensionDefinition }

func (d *DimensionDefinition) MarshalBinary() ([]byte, error) {
	dimBin, err := persist.ToBinary(d.Dimension)
	if err != nil {
		return nil, err
	}
	buf := util.AppendUvarint(make([]byte, 0, 2+len(dimBin)), uint64(d.Bits))
	return util.AppendBytes(buf, dimBin), nil
}

func (d *DimensionDefinition) UnmarshalBinary(data []byte) error {
	bits, rest, err := util.ConsumeUvarint(data)
	if err != nil {
		return fmt.Errorf("%w: dimension definition bits", persist.ErrCorruptFormat)
	}
	dimBin, _, err := util.ConsumeBytes(rest)
	if err != nil {
		return fmt.Errorf("%w: dimension definition payload", persist.ErrCorruptFormat)
	}
	p, err := persist.FromBinary(dimBin)
	if err != nil {
		return err
	}
	dim, ok := p.(dimension.Definition)
	if !ok {
		return fmt.Errorf("%w: embedded type is not a dimension", persist.ErrCorruptFormat)
	}
	d.Dimension = dim
	d.Bits = int(bits)
	return nil
}

func init() {
	persist.Register(tagDimensionDefinition, func() persist.Persistable { return &DimensionDefinition{} })
}
