// Package indexstore persists index strategies and metadata by name.
//
// The authoritative form is the component's own binary serialization;
// this package frames it with a codec name so blobs are self-describing,
// and hands the framed bytes to a pluggable Backend (memory, local
// directory, S3, MinIO).
package indexstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/util"
)

// ErrNotFound is returned when no entry exists under a name.
var ErrNotFound = errors.New("index not found")

// Backend stores raw named blobs.
type Backend interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// Store persists Persistable index components by name.
type Store struct {
	backend Backend
	codec   Codec
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the compression codec for newly written blobs. Reads
// always dispatch on the codec name recorded in the blob.
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// New creates a store over a backend. Blobs are written uncompressed
// unless a codec option says otherwise.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, codec: Raw{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put persists p under name.
func (s *Store) Put(ctx context.Context, name string, p persist.Persistable) error {
	plain, err := persist.ToBinary(p)
	if err != nil {
		return err
	}
	packed, err := s.codec.Compress(plain)
	if err != nil {
		return err
	}
	framed := util.AppendBytes(nil, []byte(s.codec.Name()))
	framed = append(framed, packed...)
	return s.backend.Put(ctx, name, framed)
}

// Get reconstructs the component stored under name.
func (s *Store) Get(ctx context.Context, name string) (persist.Persistable, error) {
	framed, err := s.backend.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	codecName, packed, err := util.ConsumeBytes(framed)
	if err != nil {
		return nil, fmt.Errorf("%w: missing codec frame", persist.ErrCorruptFormat)
	}
	codec, ok := ByName(string(codecName))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", persist.ErrCorruptFormat, codecName)
	}
	plain, err := codec.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", persist.ErrCorruptFormat, err)
	}
	return persist.FromBinary(plain)
}

// Delete removes the entry stored under name.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.backend.Delete(ctx, name)
}

// List returns the names stored under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return s.backend.List(ctx, prefix)
}
