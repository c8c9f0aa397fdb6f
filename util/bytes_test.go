package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitExpectedByteCount(t *testing.T) {
	// Left padding preserves the big-endian value.
	assert.Equal(t, []byte{0, 0, 0x12}, FitExpectedByteCount(3, []byte{0x12}))

	// Truncation of zero high bytes keeps the low bytes.
	assert.Equal(t, []byte{0x12, 0x34}, FitExpectedByteCount(2, []byte{0, 0x12, 0x34}))

	// Truncation of a nonzero high byte saturates to the maximal key.
	assert.Equal(t, []byte{0xFF, 0xFF}, FitExpectedByteCount(2, []byte{0x01, 0x12, 0x34}))

	// Exact fit is returned unchanged.
	b := []byte{0x01, 0x02}
	assert.Equal(t, b, FitExpectedByteCount(2, b))
}

func TestNextPrevious(t *testing.T) {
	next, ok := Next([]byte{0x00, 0xFF})
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x00}, next)

	prev, ok := Previous([]byte{0x01, 0x00})
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0xFF}, prev)

	_, ok = Next([]byte{0xFF, 0xFF})
	assert.False(t, ok)

	_, ok = Previous([]byte{0x00, 0x00})
	assert.False(t, ok)
}

func TestNextPreviousRoundTrip(t *testing.T) {
	cases := [][]byte{
		{0x00, 0x01},
		{0x7F, 0xFF},
		{0x80, 0x00},
		{0xAB, 0xCD, 0xEF},
	}
	for _, b := range cases {
		prev, ok := Previous(b)
		require.True(t, ok)
		next, ok := Next(prev)
		require.True(t, ok)
		assert.Equal(t, b, next)
	}
}

func TestIntermediaryKeys(t *testing.T) {
	keys := IntermediaryKeys([]byte{0x00, 0xFE}, []byte{0x01, 0x01})
	require.Len(t, keys, 4)
	assert.Equal(t, []byte{0x00, 0xFE}, keys[0])
	assert.Equal(t, []byte{0x00, 0xFF}, keys[1])
	assert.Equal(t, []byte{0x01, 0x00}, keys[2])
	assert.Equal(t, []byte{0x01, 0x01}, keys[3])

	// A single-value range yields exactly the value.
	keys = IntermediaryKeys([]byte{0x42}, []byte{0x42})
	require.Len(t, keys, 1)
	assert.Equal(t, []byte{0x42}, keys[0])

	// Reversed endpoints yield nothing.
	assert.Nil(t, IntermediaryKeys([]byte{0x02}, []byte{0x01}))
}

func TestCombine(t *testing.T) {
	assert.Equal(t, []byte{1, 2, 3}, Combine([]byte{1}, []byte{2, 3}))
	assert.Equal(t, []byte{1}, Combine([]byte{1}, nil))
	assert.Equal(t, []byte{2}, Combine(nil, []byte{2}))
}

func TestVarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 1 << 20, 1<<63 - 1} {
		buf := AppendUvarint(nil, v)
		assert.Equal(t, UvarintLen(v), len(buf))
		got, rest, err := ConsumeUvarint(buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Empty(t, rest)
	}
}

func TestConsumeBytes(t *testing.T) {
	buf := AppendBytes(nil, []byte("hello"))
	buf = AppendBytes(buf, nil)
	field, rest, err := ConsumeBytes(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), field)
	field, rest, err = ConsumeBytes(rest)
	require.NoError(t, err)
	assert.Empty(t, field)
	assert.Empty(t, rest)

	_, _, err = ConsumeBytes([]byte{0x05, 0x01})
	assert.ErrorIs(t, err, ErrShortBuffer)
}
