// Package persist provides the binary persistence registry for
// polymorphic index components. Dimension definitions, space filling
// curves and index strategies serialize through a type tag so they can
// be reconstructed from bytes without knowing the concrete type up
// front.
//
// Implementations register a factory from an init() function, keyed by
// their tag.
package persist

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/sfcgo/util"
)

// ErrCorruptFormat is returned when persisted bytes are truncated,
// carry an unknown type tag, or are otherwise self-inconsistent.
var ErrCorruptFormat = errors.New("corrupt binary format")

// Persistable is implemented by every index component with an
// authoritative binary form.
type Persistable interface {
	// MarshalBinary returns the component's binary payload, excluding
	// the type tag.
	MarshalBinary() ([]byte, error)
	// UnmarshalBinary reconstructs the component from its payload.
	UnmarshalBinary(data []byte) error
	// PersistableTag returns the registered type tag.
	PersistableTag() uint16
}

// Factory constructs an empty instance ready for UnmarshalBinary.
type Factory func() Persistable

var (
	registryMu sync.RWMutex
	registry   = map[uint16]Factory{}
)

// Register associates a type tag with a factory. It panics on duplicate
// tags; registration is expected from init() functions only.
func Register(tag uint16, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[tag]; ok {
		panic(fmt.Sprintf("persist: duplicate tag %d", tag))
	}
	registry[tag] = f
}

// ToBinary frames p as a self-describing byte string: a uvarint type tag
// followed by the payload.
func ToBinary(p Persistable) ([]byte, error) {
	payload, err := p.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := util.AppendUvarint(make([]byte, 0, 2+len(payload)), uint64(p.PersistableTag()))
	return append(buf, payload...), nil
}

// FromBinary reconstructs a framed Persistable.
func FromBinary(data []byte) (Persistable, error) {
	tag, payload, err := util.ConsumeUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("%w: missing type tag", ErrCorruptFormat)
	}
	registryMu.RLock()
	factory, ok := registry[uint16(tag)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown type tag %d", ErrCorruptFormat, tag)
	}
	p := factory()
	if err := p.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	return p, nil
}
