// Package numeric defines the multi-dimensional numeric tuples consumed
// by the index: per-dimension values and ranges, grouped into datasets.
package numeric

import "math"

// Data is a one-dimensional numeric datum: either a point value or a
// closed range.
type Data interface {
	Min() float64
	Max() float64
	Centroid() float64
	IsRange() bool
}

// Value is a point datum; Min, Max and Centroid all equal the value.
type Value float64

func (v Value) Min() float64      { return float64(v) }
func (v Value) Max() float64      { return float64(v) }
func (v Value) Centroid() float64 { return float64(v) }
func (v Value) IsRange() bool     { return false }

// Range is a closed interval [Lo, Hi].
type Range struct {
	Lo float64
	Hi float64
}

// NewRange returns the closed interval [lo, hi], swapping the endpoints
// if given in reverse.
func NewRange(lo, hi float64) Range {
	if hi < lo {
		lo, hi = hi, lo
	}
	return Range{Lo: lo, Hi: hi}
}

func (r Range) Min() float64      { return r.Lo }
func (r Range) Max() float64      { return r.Hi }
func (r Range) Centroid() float64 { return (r.Lo + r.Hi) / 2 }
func (r Range) IsRange() bool     { return true }

// Dataset is an N-dimensional tuple of numeric data, one Data per
// dimension in index order.
type Dataset struct {
	PerDimension []Data
}

// NewDataset wraps per-dimension data into a Dataset.
func NewDataset(perDimension ...Data) Dataset {
	return Dataset{PerDimension: perDimension}
}

// Dimensions returns the dimensionality of the tuple.
func (d Dataset) Dimensions() int { return len(d.PerDimension) }

// IsEmpty reports whether the tuple carries no data, or any dimension is
// nil or NaN-valued.
func (d Dataset) IsEmpty() bool {
	if len(d.PerDimension) == 0 {
		return true
	}
	for _, data := range d.PerDimension {
		if data == nil || math.IsNaN(data.Min()) || math.IsNaN(data.Max()) {
			return true
		}
	}
	return false
}

// Mins returns the per-dimension minima.
func (d Dataset) Mins() []float64 {
	out := make([]float64, len(d.PerDimension))
	for i, data := range d.PerDimension {
		out[i] = data.Min()
	}
	return out
}

// Maxes returns the per-dimension maxima.
func (d Dataset) Maxes() []float64 {
	out := make([]float64, len(d.PerDimension))
	for i, data := range d.PerDimension {
		out[i] = data.Max()
	}
	return out
}

// Centroids returns the per-dimension centroids.
func (d Dataset) Centroids() []float64 {
	out := make([]float64, len(d.PerDimension))
	for i, data := range d.PerDimension {
		out[i] = data.Centroid()
	}
	return out
}
