package hilbert

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/sfc"
	"github.com/hupe1980/sfcgo/util"
)

const unlimitedRanges = math.MaxInt

// exploreBudget bounds curve traversal when a cardinality cap is in
// effect: nodes beyond the budget are emitted whole (over-inclusive)
// instead of being refined, since the merge step would collapse the
// extra detail anyway.
func exploreBudget(maxRanges int) int {
	const factor = 32
	if maxRanges > (math.MaxInt-1024)/factor {
		return math.MaxInt
	}
	return maxRanges*factor + 1024
}

// base carries the curve shape and the bit-level key codec shared by
// both arithmetic backends.
type base struct {
	spec          *curveSpec
	dims          []*sfc.DimensionDefinition
	expectedBytes int
}

// hilbertIndexBytes runs the compact Hilbert index algorithm over
// integer coordinates and emits the index as a big-endian byte string of
// expectedBytes bytes.
func (b *base) hilbertIndexBytes(coords []uint64) []byte {
	out := make([]byte, b.expectedBytes)
	bitPos := 8*b.expectedBytes - b.spec.total
	state := levelState{}
	for i := b.spec.maxBits - 1; i >= 0; i-- {
		var l uint64
		for j, bits := range b.spec.bitsPerDim {
			if bits > i {
				l |= (coords[j] >> i & 1) << j
			}
		}
		r, w, nb := b.spec.rankOf(state, i, l)
		writeBits(out, &bitPos, r, nb)
		state = state.step(w, b.spec.n)
	}
	return out
}

// coordsFromBytes inverts hilbertIndexBytes. Short ids are treated as
// left-zero-padded to the full key width.
func (b *base) coordsFromBytes(id []byte) ([]uint64, error) {
	if len(id) > b.expectedBytes {
		return nil, fmt.Errorf("%w: id is %d bytes, curve emits %d", persist.ErrCorruptFormat, len(id), b.expectedBytes)
	}
	id = util.FitExpectedByteCount(b.expectedBytes, id)
	coords := make([]uint64, b.spec.n)
	bitPos := 8*b.expectedBytes - b.spec.total
	state := levelState{}
	for i := b.spec.maxBits - 1; i >= 0; i-- {
		r := readBits(id, &bitPos, b.spec.freeCount(i))
		l, w, _ := b.spec.childBits(state, i, r)
		for j, bits := range b.spec.bitsPerDim {
			if bits > i {
				coords[j] |= (l >> j & 1) << i
			}
		}
		state = state.step(w, b.spec.n)
	}
	return coords, nil
}

// cellRanges maps cell coordinates back to per-dimension value ranges.
func (b *base) cellRanges(coords []uint64) numeric.Dataset {
	out := numeric.Dataset{PerDimension: make([]numeric.Data, len(coords))}
	for j, d := range b.dims {
		r := d.Dimension.Range()
		cell := (r.Hi - r.Lo) / math.Pow(2, float64(d.Bits))
		out.PerDimension[j] = numeric.Range{
			Lo: r.Lo + float64(coords[j])*cell,
			Hi: r.Lo + float64(coords[j]+1)*cell,
		}
	}
	return out
}

func (b *base) idRangePerDimension() []float64 {
	out := make([]float64, len(b.dims))
	for j, d := range b.dims {
		out[j] = math.Pow(2, float64(d.Bits))
	}
	return out
}

func writeBits(buf []byte, bitPos *int, v uint64, n int) {
	for k := n - 1; k >= 0; k-- {
		if v>>k&1 == 1 {
			buf[*bitPos/8] |= 1 << (7 - *bitPos%8)
		}
		*bitPos++
	}
}

func readBits(buf []byte, bitPos *int, n int) uint64 {
	var v uint64
	for range n {
		v = v<<1 | uint64(buf[*bitPos/8]>>(7-*bitPos%8)&1)
		*bitPos++
	}
	return v
}

// primitiveOps is the 64-bit arithmetic backend.
type primitiveOps struct {
	base
}

var _ ops = (*primitiveOps)(nil)

func newPrimitiveOps(spec *curveSpec, dims []*sfc.DimensionDefinition, expectedBytes int) *primitiveOps {
	return &primitiveOps{base: base{spec: spec, dims: dims, expectedBytes: expectedBytes}}
}

type boundMode uint8

const (
	// boundFloor picks the cell containing the value; on a cell edge, the
	// cell above.
	boundFloor boundMode = iota
	// boundCeilMinusOne picks the cell containing the value; on a cell
	// edge, the cell below.
	boundCeilMinusOne
)

// normalizeValue maps a value into dimension d's integer cell space.
func (o *primitiveOps) normalizeValue(v float64, d int, mode boundMode) uint64 {
	r := o.dims[d].Dimension.Range()
	bits := o.dims[d].Bits
	if bits == 0 {
		return 0
	}
	maxCell := uint64(1)<<bits - 1
	if v <= r.Lo {
		return 0
	}
	if v >= r.Hi {
		return maxCell
	}
	scaled := (v - r.Lo) / (r.Hi - r.Lo) * math.Pow(2, float64(bits))
	var cell float64
	if mode == boundFloor {
		cell = math.Floor(scaled)
	} else {
		cell = math.Ceil(scaled) - 1
	}
	if cell < 0 {
		return 0
	}
	if cell > float64(maxCell) {
		return maxCell
	}
	return uint64(cell)
}

func (o *primitiveOps) encode(values []float64) []byte {
	coords := make([]uint64, o.spec.n)
	for j, v := range values {
		coords[j] = o.normalizeValue(v, j, boundFloor)
	}
	return o.hilbertIndexBytes(coords)
}

func (o *primitiveOps) decode(id []byte) (numeric.Dataset, error) {
	coords, err := o.coordsFromBytes(id)
	if err != nil {
		return numeric.Dataset{}, err
	}
	return o.cellRanges(coords), nil
}

func (o *primitiveOps) coordinates(id []byte) ([]uint64, error) {
	return o.coordsFromBytes(id)
}

func (o *primitiveOps) normalizeRange(lo, hi float64, dim int) (uint64, uint64, error) {
	if hi < lo {
		return 0, 0, fmt.Errorf("invalid range [%v, %v]", lo, hi)
	}
	clo := o.normalizeValue(lo, dim, boundFloor)
	chi := o.normalizeValue(hi, dim, boundCeilMinusOne)
	if chi < clo {
		chi = clo
	}
	return clo, chi, nil
}

// queryCells maps a query datum to inclusive cell bounds on dimension d.
// Over-inclusive rounding snaps edge-touching cells into the range.
func (o *primitiveOps) queryCells(d numeric.Data, dim int, overInclusive bool) (uint64, uint64) {
	var lo, hi uint64
	if overInclusive {
		lo = o.normalizeValue(d.Min(), dim, boundCeilMinusOne)
		hi = o.normalizeValue(d.Max(), dim, boundFloor)
	} else {
		lo = o.normalizeValue(d.Min(), dim, boundFloor)
		hi = o.normalizeValue(d.Max(), dim, boundCeilMinusOne)
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func (o *primitiveOps) estimatedIDCount(data numeric.Dataset) *big.Int {
	count := big.NewInt(1)
	for j, d := range data.PerDimension {
		lo, hi := o.queryCells(d, j, false)
		count.Mul(count, new(big.Int).SetUint64(hi-lo+1))
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(o.spec.total))
	if count.Cmp(limit) > 0 {
		return limit
	}
	return count
}

func (o *primitiveOps) decomposeRange(query numeric.Dataset, overInclusive bool, maxRanges int) sfc.RangeDecomposition {
	if o.spec.total == 0 {
		return sfc.RangeDecomposition{Ranges: []model.ByteArrayRange{{Start: []byte{}, End: []byte{}}}}
	}
	t := &primitiveTraversal{
		ops:     o,
		qlo:     make([]uint64, o.spec.n),
		qhi:     make([]uint64, o.spec.n),
		limited: maxRanges != unlimitedRanges,
	}
	if t.limited {
		t.budget = exploreBudget(maxRanges)
	}
	for j, d := range query.PerDimension {
		t.qlo[j], t.qhi[j] = o.queryCells(d, j, overInclusive)
	}
	t.visit(o.spec.maxBits-1, levelState{}, 0, make([]uint64, o.spec.n))
	merged := mergeToMaxRanges(t.ranges, maxRanges)
	out := make([]model.ByteArrayRange, len(merged))
	for i, r := range merged {
		out[i] = model.ByteArrayRange{
			Start: o.indexToBytes(r.lo),
			End:   o.indexToBytes(r.hi),
		}
	}
	return sfc.RangeDecomposition{Ranges: out}
}

func (o *primitiveOps) indexToBytes(h uint64) []byte {
	raw := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		raw[i] = byte(h)
		h >>= 8
	}
	return util.FitExpectedByteCount(o.expectedBytes, raw)
}

type u64Range struct {
	lo, hi uint64
}

type primitiveTraversal struct {
	ops     *primitiveOps
	qlo     []uint64
	qhi     []uint64
	ranges  []u64Range
	limited bool
	budget  int
}

// visit walks the curve in index order, emitting maximal contiguous runs
// of cells intersecting the query box. level is the bit level being
// refined; prefix is the index accumulated above it.
func (t *primitiveTraversal) visit(level int, state levelState, prefix uint64, mins []uint64) {
	spec := t.ops.spec
	childCount := uint64(1) << spec.freeCount(level)
	for r := uint64(0); r < childCount; r++ {
		l, w, b := spec.childBits(state, level, r)
		childMins := make([]uint64, spec.n)
		contained := true
		disjoint := false
		for j, bits := range spec.bitsPerDim {
			childMins[j] = mins[j]
			if bits > level {
				childMins[j] |= (l >> j & 1) << level
			}
			extent := uint64(1) << min(level, bits)
			clo := childMins[j]
			chi := childMins[j] + extent - 1
			if chi < t.qlo[j] || clo > t.qhi[j] {
				disjoint = true
				break
			}
			if clo < t.qlo[j] || chi > t.qhi[j] {
				contained = false
			}
		}
		if disjoint {
			continue
		}
		childPrefix := prefix<<b | r
		exhausted := false
		if t.limited {
			if t.budget <= 0 {
				exhausted = true
			} else {
				t.budget--
			}
		}
		if contained || level == 0 || exhausted {
			remaining := spec.bitsBelow[level]
			lo := childPrefix << remaining
			hi := lo + (uint64(1)<<remaining - 1)
			t.emit(u64Range{lo: lo, hi: hi})
			continue
		}
		t.visit(level-1, state.step(w, spec.n), childPrefix, childMins)
	}
}

func (t *primitiveTraversal) emit(r u64Range) {
	if n := len(t.ranges); n > 0 && t.ranges[n-1].hi+1 == r.lo {
		t.ranges[n-1].hi = r.hi
		return
	}
	t.ranges = append(t.ranges, r)
}

// mergeToMaxRanges reduces the decomposition to at most maxRanges by
// keeping split points only at the largest gaps, which merges the
// smallest bridging gaps first.
func mergeToMaxRanges(ranges []u64Range, maxRanges int) []u64Range {
	if maxRanges <= 0 || len(ranges) <= maxRanges {
		return ranges
	}
	type gap struct {
		idx  int
		size uint64
	}
	gaps := make([]gap, len(ranges)-1)
	for i := range gaps {
		gaps[i] = gap{idx: i, size: ranges[i+1].lo - ranges[i].hi}
	}
	sort.Slice(gaps, func(a, b int) bool {
		if gaps[a].size != gaps[b].size {
			return gaps[a].size > gaps[b].size
		}
		return gaps[a].idx < gaps[b].idx
	})
	keep := make(map[int]bool, maxRanges-1)
	for _, g := range gaps[:maxRanges-1] {
		keep[g.idx] = true
	}
	out := make([]u64Range, 0, maxRanges)
	cur := ranges[0]
	for i := 0; i < len(ranges)-1; i++ {
		if keep[i] {
			out = append(out, cur)
			cur = ranges[i+1]
		} else {
			cur.hi = ranges[i+1].hi
		}
	}
	out = append(out, cur)
	return out
}
