// Package hilbert implements a compact Hilbert space filling curve:
// per-dimension bit budgets, big-endian byte-string keys and the
// decomposition of query boxes into contiguous curve ranges.
//
// Two arithmetic backends exist. The primitive backend normalizes with
// 64-bit arithmetic and is exact while every dimension stays within 48
// bits (encode/decode) and the total precision within 62 bits (range
// decomposition). The unbounded backend runs on arbitrary-precision
// arithmetic and is always valid. The constructor picks per operation;
// both agree wherever both apply.
package hilbert

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/sfc"
	"github.com/hupe1980/sfcgo/util"
)

const tagHilbertSFC uint16 = 16

const (
	// maxPrimitiveBitsPerDimension bounds float64-based normalization.
	maxPrimitiveBitsPerDimension = 48
	// maxPrimitiveTotalPrecision bounds int64-based range arithmetic.
	maxPrimitiveTotalPrecision = 62
	// maxBitsPerDimension bounds a single coordinate to one machine word.
	maxBitsPerDimension = 64
)

// ErrInvalidPrecision is returned when a curve is constructed with no
// dimensions or a dimension exceeding the per-dimension limit. A curve
// whose dimensions all have zero bits is accepted.
var ErrInvalidPrecision = errors.New("invalid bits of precision")

type ops interface {
	encode(values []float64) []byte
	decode(id []byte) (numeric.Dataset, error)
	coordinates(id []byte) ([]uint64, error)
	decomposeRange(query numeric.Dataset, overInclusive bool, maxRanges int) sfc.RangeDecomposition
	estimatedIDCount(data numeric.Dataset) *big.Int
	normalizeRange(lo, hi float64, dim int) (uint64, uint64, error)
	idRangePerDimension() []float64
}

// SFC is a compact Hilbert space filling curve over N dimensions.
// Immutable after construction and safe for concurrent use.
type SFC struct {
	dims          []*sfc.DimensionDefinition
	spec          *curveSpec
	encodeOps     ops
	decomposeOps  ops
	identity      string
	expectedBytes int
}

var _ sfc.SpaceFillingCurve = (*SFC)(nil)

// New constructs a curve over the given dimension definitions.
func New(dims ...*sfc.DimensionDefinition) (*SFC, error) {
	s := &SFC{}
	if err := s.init(dims); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SFC) init(dims []*sfc.DimensionDefinition) error {
	if len(dims) == 0 {
		return fmt.Errorf("%w: no dimensions", ErrInvalidPrecision)
	}
	bitsPerDim := make([]int, len(dims))
	primitiveForID := true
	for i, d := range dims {
		if d.Bits < 0 || d.Bits > maxBitsPerDimension {
			return fmt.Errorf("%w: dimension %d has %d bits", ErrInvalidPrecision, i, d.Bits)
		}
		bitsPerDim[i] = d.Bits
		if d.Bits > maxPrimitiveBitsPerDimension {
			primitiveForID = false
		}
	}
	s.dims = dims
	s.spec = newCurveSpec(bitsPerDim)
	s.expectedBytes = (s.spec.total + 7) / 8
	primitiveForDecompose := s.spec.total <= maxPrimitiveTotalPrecision

	var primitive, unbounded ops
	if primitiveForID || primitiveForDecompose {
		primitive = newPrimitiveOps(s.spec, dims, s.expectedBytes)
	}
	if !primitiveForID || !primitiveForDecompose {
		unbounded = newUnboundedOps(s.spec, dims, s.expectedBytes)
	}
	if primitiveForID {
		s.encodeOps = primitive
	} else {
		s.encodeOps = unbounded
	}
	if primitiveForDecompose {
		s.decomposeOps = primitive
	} else {
		s.decomposeOps = unbounded
	}

	bin, err := s.MarshalBinary()
	if err != nil {
		return err
	}
	s.identity = string(bin)
	return nil
}

// TotalPrecision returns the curve's index width in bits.
func (s *SFC) TotalPrecision() int { return s.spec.total }

// DimensionDefinitions returns the curve's dimension definitions.
func (s *SFC) DimensionDefinitions() []*sfc.DimensionDefinition { return s.dims }

// Encode maps per-dimension values to the curve position.
func (s *SFC) Encode(values []float64) []byte {
	return s.encodeOps.encode(values)
}

// Decode reports the per-dimension value ranges of the cell behind id.
func (s *SFC) Decode(id []byte) (numeric.Dataset, error) {
	return s.encodeOps.decode(id)
}

// Coordinates reports the per-dimension cell coordinates of id.
func (s *SFC) Coordinates(id []byte) ([]uint64, error) {
	return s.encodeOps.coordinates(id)
}

// DecomposeRangeFully decomposes with no cardinality cap.
func (s *SFC) DecomposeRangeFully(query numeric.Dataset) sfc.RangeDecomposition {
	return s.DecomposeRange(query, true, -1)
}

// DecomposeRange decomposes the query box into contiguous curve ranges,
// consulting the process-wide decomposition cache.
func (s *SFC) DecomposeRange(query numeric.Dataset, overInclusiveOnEdge bool, maxRanges int) sfc.RangeDecomposition {
	if maxRanges < 0 {
		maxRanges = unlimitedRanges
	}
	key := s.cacheKey(query, overInclusiveOnEdge, maxRanges)
	return cachedDecomposition(key, func() sfc.RangeDecomposition {
		return s.decomposeOps.decomposeRange(query, overInclusiveOnEdge, maxRanges)
	})
}

// EstimatedIDCount estimates the number of cells the box covers.
func (s *SFC) EstimatedIDCount(data numeric.Dataset) *big.Int {
	return s.encodeOps.estimatedIDCount(data)
}

// NormalizeRange maps a value range on one dimension to inclusive cell
// bounds.
func (s *SFC) NormalizeRange(lo, hi float64, dim int) (uint64, uint64, error) {
	return s.encodeOps.normalizeRange(lo, hi, dim)
}

// IDRangePerDimension reports the cell count per dimension.
func (s *SFC) IDRangePerDimension() []float64 {
	return s.encodeOps.idRangePerDimension()
}

func (s *SFC) cacheKey(query numeric.Dataset, overInclusiveOnEdge bool, maxRanges int) string {
	buf := make([]byte, 0, len(s.identity)+len(query.PerDimension)*20+16)
	buf = append(buf, s.identity...)
	for _, d := range query.PerDimension {
		buf = strconv.AppendFloat(buf, d.Min(), 'g', -1, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, d.Max(), 'g', -1, 64)
		buf = append(buf, ';')
	}
	if overInclusiveOnEdge {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = strconv.AppendInt(buf, int64(maxRanges), 10)
	return string(buf)
}

func (s *SFC) PersistableTag() uint16 { return tagHilbertSFC }

// MarshalBinary encodes the curve as a uvarint dimension count followed
// by each dimension definition's framed binary form.
func (s *SFC) MarshalBinary() ([]byte, error) {
	buf := util.AppendUvarint(nil, uint64(len(s.dims)))
	for _, d := range s.dims {
		dimBin, err := persist.ToBinary(d)
		if err != nil {
			return nil, err
		}
		buf = util.AppendBytes(buf, dimBin)
	}
	return buf, nil
}

func (s *SFC) UnmarshalBinary(data []byte) error {
	numDims, rest, err := util.ConsumeUvarint(data)
	if err != nil {
		return fmt.Errorf("%w: hilbert dimension count", persist.ErrCorruptFormat)
	}
	dims := make([]*sfc.DimensionDefinition, numDims)
	for i := range dims {
		var dimBin []byte
		dimBin, rest, err = util.ConsumeBytes(rest)
		if err != nil {
			return fmt.Errorf("%w: hilbert dimension %d", persist.ErrCorruptFormat, i)
		}
		p, err := persist.FromBinary(dimBin)
		if err != nil {
			return err
		}
		dim, ok := p.(*sfc.DimensionDefinition)
		if !ok {
			return fmt.Errorf("%w: embedded type is not an SFC dimension", persist.ErrCorruptFormat)
		}
		dims[i] = dim
	}
	return s.init(dims)
}

func init() {
	persist.Register(tagHilbertSFC, func() persist.Persistable { return &SFC{} })
}
