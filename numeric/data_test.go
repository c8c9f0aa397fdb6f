package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue(t *testing.T) {
	v := Value(4.5)
	assert.Equal(t, 4.5, v.Min())
	assert.Equal(t, 4.5, v.Max())
	assert.Equal(t, 4.5, v.Centroid())
	assert.False(t, v.IsRange())
}

func TestRange(t *testing.T) {
	r := NewRange(3, 1)
	assert.Equal(t, 1.0, r.Min())
	assert.Equal(t, 3.0, r.Max())
	assert.Equal(t, 2.0, r.Centroid())
	assert.True(t, r.IsRange())
}

func TestDatasetIsEmpty(t *testing.T) {
	assert.True(t, Dataset{}.IsEmpty())
	assert.True(t, NewDataset(nil).IsEmpty())
	assert.True(t, NewDataset(Value(math.NaN())).IsEmpty())
	assert.False(t, NewDataset(Value(1), NewRange(2, 3)).IsEmpty())
}

func TestDatasetAccessors(t *testing.T) {
	d := NewDataset(Value(1), NewRange(2, 4))
	assert.Equal(t, []float64{1, 2}, d.Mins())
	assert.Equal(t, []float64{1, 4}, d.Maxes())
	assert.Equal(t, []float64{1, 3}, d.Centroids())
	assert.Equal(t, 2, d.Dimensions())
}
