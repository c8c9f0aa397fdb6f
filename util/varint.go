package util

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a varint or length-prefixed field runs
// past the end of its buffer.
var ErrShortBuffer = errors.New("short buffer")

// AppendUvarint appends the unsigned varint encoding of v to buf.
func AppendUvarint(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

// UvarintLen returns the encoded size of v as an unsigned varint.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// ConsumeUvarint decodes an unsigned varint from the front of data and
// returns the value and the remaining bytes.
func ConsumeUvarint(data []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, ErrShortBuffer
	}
	return v, data[n:], nil
}

// ConsumeBytes reads a length-prefixed (uvarint) byte field from the
// front of data, returning a copy of the field and the remaining bytes.
func ConsumeBytes(data []byte) ([]byte, []byte, error) {
	n, rest, err := ConsumeUvarint(data)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < n {
		return nil, nil, ErrShortBuffer
	}
	field := make([]byte, n)
	copy(field, rest[:n])
	return field, rest[n:], nil
}

// AppendBytes appends b as a length-prefixed (uvarint) field to buf.
func AppendBytes(buf, b []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(b)))
	return append(buf, b...)
}
