package dimension

import (
	"fmt"

	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
)

// Longitude is the periodic east-west axis over [-180, 180] degrees.
// Out-of-range values wrap around the antimeridian before clamping.
type Longitude struct {
	Basic
}

// NewLongitude returns the longitude dimension.
func NewLongitude() *Longitude {
	return &Longitude{Basic: Basic{Lo: -180, Hi: 180}}
}

func (l *Longitude) wrap(v float64) float64 {
	for v < -180 {
		v += 360
	}
	for v > 180 {
		v -= 360
	}
	return v
}

func (l *Longitude) Normalize(d numeric.Data) []BinRange {
	lo := d.Min()
	hi := d.Max()
	// A range wider than the full period covers everything; wrapping it
	// endpoint-wise would invert it.
	if hi-lo >= 360 {
		return l.Basic.Normalize(numeric.Range{Lo: -180, Hi: 180})
	}
	wlo := l.wrap(lo)
	whi := l.wrap(hi)
	if whi < wlo {
		// The range straddles the antimeridian; widest containing range.
		return l.Basic.Normalize(numeric.Range{Lo: -180, Hi: 180})
	}
	return l.Basic.Normalize(numeric.Range{Lo: wlo, Hi: whi})
}

func (l *Longitude) PersistableTag() uint16 { return tagLongitude }

func (l *Longitude) MarshalBinary() ([]byte, error) { return nil, nil }

func (l *Longitude) UnmarshalBinary(data []byte) error {
	l.Basic = Basic{Lo: -180, Hi: 180}
	return nil
}

// Latitude is the north-south axis over [-90, 90] degrees. With
// useHalfRange the normalized extent is widened to [-180, 180] so
// latitude cells match longitude cells in degree size; half the cells
// stay unoccupied.
type Latitude struct {
	Basic
	useHalfRange bool
}

// NewLatitude returns the latitude dimension. useHalfRange widens the
// normalized extent to match longitude's.
func NewLatitude(useHalfRange bool) *Latitude {
	return &Latitude{Basic: Basic{Lo: -90, Hi: 90}, useHalfRange: useHalfRange}
}

func (l *Latitude) Range() numeric.Range {
	if l.useHalfRange {
		return numeric.Range{Lo: -180, Hi: 180}
	}
	return numeric.Range{Lo: -90, Hi: 90}
}

func (l *Latitude) PersistableTag() uint16 { return tagLatitude }

func (l *Latitude) MarshalBinary() ([]byte, error) {
	if l.useHalfRange {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func (l *Latitude) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return fmt.Errorf("%w: latitude dimension needs 1 byte", persist.ErrCorruptFormat)
	}
	l.Basic = Basic{Lo: -90, Hi: 90}
	l.useHalfRange = data[0] != 0
	return nil
}
