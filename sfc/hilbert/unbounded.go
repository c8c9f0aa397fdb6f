package hilbert

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/sfc"
	"github.com/hupe1980/sfcgo/util"
)

// unboundedOps is the arbitrary-precision arithmetic backend. It is
// always valid and pays for it in speed; the constructor only selects it
// when the primitive backend's bounds are exceeded.
type unboundedOps struct {
	base
}

var _ ops = (*unboundedOps)(nil)

func newUnboundedOps(spec *curveSpec, dims []*sfc.DimensionDefinition, expectedBytes int) *unboundedOps {
	return &unboundedOps{base: base{spec: spec, dims: dims, expectedBytes: expectedBytes}}
}

// normalizeValue maps a value into dimension d's integer cell space
// using big.Float arithmetic, exact at any bit width.
func (o *unboundedOps) normalizeValue(v float64, d int, mode boundMode) uint64 {
	r := o.dims[d].Dimension.Range()
	bits := o.dims[d].Bits
	if bits == 0 {
		return 0
	}
	maxCell := uint64(1)<<bits - 1
	if bits == 64 {
		maxCell = ^uint64(0)
	}
	if v <= r.Lo {
		return 0
	}
	if v >= r.Hi {
		return maxCell
	}
	prec := uint(bits + 64)
	num := new(big.Float).SetPrec(prec).SetFloat64(v)
	num.Sub(num, new(big.Float).SetPrec(prec).SetFloat64(r.Lo))
	den := new(big.Float).SetPrec(prec).SetFloat64(r.Hi)
	den.Sub(den, new(big.Float).SetPrec(prec).SetFloat64(r.Lo))
	scaled := new(big.Float).SetPrec(prec).Quo(num, den)
	scaled.SetMantExp(scaled, bits)
	cell, acc := scaled.Int(nil)
	// ceil(x)-1 equals floor(x) unless x is integral.
	if mode == boundCeilMinusOne && acc == big.Exact {
		cell.Sub(cell, big.NewInt(1))
	}
	if cell.Sign() < 0 {
		return 0
	}
	if !cell.IsUint64() || cell.Uint64() > maxCell {
		return maxCell
	}
	return cell.Uint64()
}

func (o *unboundedOps) encode(values []float64) []byte {
	coords := make([]uint64, o.spec.n)
	for j, v := range values {
		coords[j] = o.normalizeValue(v, j, boundFloor)
	}
	return o.hilbertIndexBytes(coords)
}

func (o *unboundedOps) decode(id []byte) (numeric.Dataset, error) {
	coords, err := o.coordsFromBytes(id)
	if err != nil {
		return numeric.Dataset{}, err
	}
	return o.cellRanges(coords), nil
}

func (o *unboundedOps) coordinates(id []byte) ([]uint64, error) {
	return o.coordsFromBytes(id)
}

func (o *unboundedOps) normalizeRange(lo, hi float64, dim int) (uint64, uint64, error) {
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

func (o *unboundedOps) queryCells(d numeric.Data, dim int, overInclusive bool) (uint64, uint64) {
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

func (o *unboundedOps) estimatedIDCount(data numeric.Dataset) *big.Int {
	count := big.NewInt(1)
	for j, d := range data.PerDimension {
		lo, hi := o.queryCells(d, j, false)
		extent := new(big.Int).Sub(new(big.Int).SetUint64(hi), new(big.Int).SetUint64(lo))
		count.Mul(count, extent.Add(extent, big.NewInt(1)))
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(o.spec.total))
	if count.Cmp(limit) > 0 {
		return limit
	}
	return count
}

func (o *unboundedOps) decomposeRange(query numeric.Dataset, overInclusive bool, maxRanges int) sfc.RangeDecomposition {
	if o.spec.total == 0 {
		return sfc.RangeDecomposition{Ranges: []model.ByteArrayRange{{Start: []byte{}, End: []byte{}}}}
	}
	t := &unboundedTraversal{
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
	t.visit(o.spec.maxBits-1, levelState{}, big.NewInt(0), make([]uint64, o.spec.n))
	merged := mergeToMaxRangesBig(t.ranges, maxRanges)
	out := make([]model.ByteArrayRange, len(merged))
	for i, r := range merged {
		out[i] = model.ByteArrayRange{
			Start: o.indexToBytes(r.lo),
			End:   o.indexToBytes(r.hi),
		}
	}
	return sfc.RangeDecomposition{Ranges: out}
}

func (o *unboundedOps) indexToBytes(h *big.Int) []byte {
	raw := h.Bytes()
	return util.FitExpectedByteCount(o.expectedBytes, raw)
}

type bigRange struct {
	lo, hi *big.Int
}

type unboundedTraversal struct {
	ops     *unboundedOps
	qlo     []uint64
	qhi     []uint64
	ranges  []bigRange
	limited bool
	budget  int
}

var bigOne = big.NewInt(1)

func (t *unboundedTraversal) visit(level int, state levelState, prefix *big.Int, mins []uint64) {
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
		childPrefix := new(big.Int).Lsh(prefix, uint(b))
		childPrefix.Or(childPrefix, new(big.Int).SetUint64(r))
		exhausted := false
		if t.limited {
			if t.budget <= 0 {
				exhausted = true
			} else {
				t.budget--
			}
		}
		if contained || level == 0 || exhausted {
			remaining := uint(spec.bitsBelow[level])
			lo := new(big.Int).Lsh(childPrefix, remaining)
			hi := new(big.Int).Lsh(bigOne, remaining)
			hi.Sub(hi.Add(hi, lo), bigOne)
			t.emit(bigRange{lo: lo, hi: hi})
			continue
		}
		t.visit(level-1, state.step(w, spec.n), childPrefix, childMins)
	}
}

func (t *unboundedTraversal) emit(r bigRange) {
	if n := len(t.ranges); n > 0 {
		next := new(big.Int).Add(t.ranges[n-1].hi, bigOne)
		if next.Cmp(r.lo) == 0 {
			t.ranges[n-1].hi = r.hi
			return
		}
	}
	t.ranges = append(t.ranges, r)
}

func mergeToMaxRangesBig(ranges []bigRange, maxRanges int) []bigRange {
	if maxRanges <= 0 || len(ranges) <= maxRanges {
		return ranges
	}
	type gap struct {
		idx  int
		size *big.Int
	}
	gaps := make([]gap, len(ranges)-1)
	for i := range gaps {
		gaps[i] = gap{idx: i, size: new(big.Int).Sub(ranges[i+1].lo, ranges[i].hi)}
	}
	sort.Slice(gaps, func(a, b int) bool {
		if c := gaps[a].size.Cmp(gaps[b].size); c != 0 {
			return c > 0
		}
		return gaps[a].idx < gaps[b].idx
	})
	keep := make(map[int]bool, maxRanges-1)
	for _, g := range gaps[:maxRanges-1] {
		keep[g.idx] = true
	}
	out := make([]bigRange, 0, maxRanges)
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
