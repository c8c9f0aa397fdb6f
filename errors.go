package sfcgo

import (
	"errors"

	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/sfc/hilbert"
)

var (
	// ErrCorruptFormat indicates malformed persisted bytes: truncation,
	// unknown type tags or inconsistent sizes.
	ErrCorruptFormat = persist.ErrCorruptFormat

	// ErrInvalidPrecision indicates a curve constructed with an invalid
	// bit budget.
	ErrInvalidPrecision = hilbert.ErrInvalidPrecision
)

// IsCorruptFormat reports whether err stems from malformed persisted
// bytes.
func IsCorruptFormat(err error) bool {
	return errors.Is(err, persist.ErrCorruptFormat)
}
