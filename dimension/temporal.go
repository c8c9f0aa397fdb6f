package dimension

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
)

// Unit is the calendar granularity of a temporal binning strategy.
type Unit uint8

const (
	UnitYear Unit = iota
	UnitMonth
	UnitDay
	UnitHour
)

// String returns the unit name.
func (u Unit) String() string {
	switch u {
	case UnitYear:
		return "year"
	case UnitMonth:
		return "month"
	case UnitDay:
		return "day"
	case UnitHour:
		return "hour"
	default:
		return "unknown"
	}
}

const (
	millisPerHour = int64(time.Hour / time.Millisecond)
	millisPerDay  = 24 * millisPerHour
)

// binIndex identifies the calendar bucket of an epoch-millisecond value.
func (u Unit) binIndex(ms int64) int32 {
	switch u {
	case UnitYear:
		return int32(time.UnixMilli(ms).UTC().Year())
	case UnitMonth:
		t := time.UnixMilli(ms).UTC()
		return int32(t.Year()*12 + int(t.Month()) - 1)
	case UnitDay:
		return int32(floorDiv(ms, millisPerDay))
	default:
		return int32(floorDiv(ms, millisPerHour))
	}
}

// binStart returns the first epoch millisecond of a bucket.
func (u Unit) binStart(idx int32) int64 {
	switch u {
	case UnitYear:
		return time.Date(int(idx), time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	case UnitMonth:
		// time.Date normalizes out-of-range months, which handles
		// negative indices too.
		return time.Date(0, time.Month(idx+1), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	case UnitDay:
		return int64(idx) * millisPerDay
	default:
		return int64(idx) * millisPerHour
	}
}

// maxDuration is the widest possible bucket in milliseconds; it bounds
// the normalized extent so every bucket's offsets fit.
func (u Unit) maxDuration() int64 {
	switch u {
	case UnitYear:
		return 366 * millisPerDay
	case UnitMonth:
		return 31 * millisPerDay
	case UnitDay:
		return millisPerDay
	default:
		return millisPerHour
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Time is an unbounded temporal axis, binned by calendar unit. Values
// are epoch milliseconds; the bin label is the big-endian bucket index,
// so labels order chronologically and the normalized space is the
// millisecond offset within the bucket.
type Time struct {
	unit Unit
}

// NewTime returns a temporal dimension binned at the given unit.
func NewTime(unit Unit) *Time {
	return &Time{unit: unit}
}

// Unit returns the calendar granularity.
func (t *Time) Unit() Unit { return t.unit }

func (t *Time) Range() numeric.Range {
	return numeric.Range{Lo: 0, Hi: float64(t.unit.maxDuration())}
}

func (t *Time) Bounds() numeric.Range {
	return numeric.Range{Lo: -math.MaxFloat64, Hi: math.MaxFloat64}
}

func (t *Time) FixedBinIDSize() int { return 4 }

func (t *Time) Normalize(d numeric.Data) []BinRange {
	loMs := int64(d.Min())
	hiMs := int64(d.Max())
	startIdx := t.unit.binIndex(loMs)
	endIdx := t.unit.binIndex(hiMs)
	out := make([]BinRange, 0, endIdx-startIdx+1)
	for idx := startIdx; idx <= endIdx; idx++ {
		binStart := t.unit.binStart(idx)
		binEnd := t.unit.binStart(idx+1) - 1
		lo := max(loMs, binStart)
		hi := min(hiMs, binEnd)
		out = append(out, BinRange{
			BinID:      binID(idx),
			Min:        float64(lo - binStart),
			Max:        float64(hi - binStart),
			FullExtent: lo == binStart && hi == binEnd,
		})
	}
	return out
}

func (t *Time) Denormalize(b BinRange) (numeric.Range, error) {
	if len(b.BinID) != 4 {
		return numeric.Range{}, fmt.Errorf("temporal bin id must be 4 bytes, got %d", len(b.BinID))
	}
	start := float64(t.unit.binStart(int32(binary.BigEndian.Uint32(b.BinID))))
	return numeric.Range{Lo: start + b.Min, Hi: start + b.Max}, nil
}

func (t *Time) PersistableTag() uint16 { return tagTime }

func (t *Time) MarshalBinary() ([]byte, error) {
	return []byte{byte(t.unit)}, nil
}

func (t *Time) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("%w: time dimension needs 1 byte", persist.ErrCorruptFormat)
	}
	t.unit = Unit(data[0])
	return nil
}

// binID encodes a bucket index as 4 big-endian bytes so that byte order
// matches chronological order for non-negative indices.
func binID(idx int32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(idx))
	return out
}
