package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/sfcgo/model"
)

// MemoryStore is an in-memory row store ordered by composite key
// (partitionKey ‖ sortKey). It maintains the strategy's tier metadata as
// rows come and go, so query planning can skip empty tiers.
//
// Thread-safe; mutations and scans serialize on an internal lock.
type MemoryStore struct {
	mu   sync.RWMutex
	rows []memoryRow
	meta model.IndexMetaData
}

type memoryRow struct {
	key    []byte
	rowIDs *roaring64.Bitmap
}

var (
	_ RowWriter  = (*MemoryStore)(nil)
	_ RowScanner = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store. meta may be nil when tier
// metadata upkeep is not wanted.
func NewMemoryStore(meta model.IndexMetaData) *MemoryStore {
	return &MemoryStore{meta: meta}
}

// Metadata returns the maintained tier metadata, nil if none.
func (s *MemoryStore) Metadata() model.IndexMetaData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Len returns the number of distinct keys stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *MemoryStore) search(key []byte) (int, bool) {
	i := sort.Search(len(s.rows), func(i int) bool {
		return bytes.Compare(s.rows[i].key, key) >= 0
	})
	return i, i < len(s.rows) && bytes.Equal(s.rows[i].key, key)
}

// Write stores rowID under every key of ids.
func (s *MemoryStore) Write(_ context.Context, ids model.InsertionIds, rowID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range ids.Composite() {
		i, found := s.search(key)
		if !found {
			s.rows = append(s.rows, memoryRow{})
			copy(s.rows[i+1:], s.rows[i:])
			s.rows[i] = memoryRow{key: key, rowIDs: roaring64.New()}
		}
		s.rows[i].rowIDs.Add(rowID)
	}
	if s.meta != nil {
		s.meta.InsertionIdsAdded(ids)
	}
	return nil
}

// Delete removes rowID from every key of ids, dropping keys that become
// empty.
func (s *MemoryStore) Delete(_ context.Context, ids model.InsertionIds, rowID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range ids.Composite() {
		i, found := s.search(key)
		if !found {
			continue
		}
		s.rows[i].rowIDs.Remove(rowID)
		if s.rows[i].rowIDs.IsEmpty() {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
		}
	}
	if s.meta != nil {
		s.meta.InsertionIdsRemoved(ids)
	}
	return nil
}

// Scan unions the row ids of every key within the given ranges. Range
// endpoints are inclusive on both ends.
func (s *MemoryStore) Scan(_ context.Context, ranges model.QueryRanges) (*roaring64.Bitmap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := roaring64.New()
	for _, r := range ranges.Composite() {
		start := sort.Search(len(s.rows), func(i int) bool {
			return bytes.Compare(s.rows[i].key, r.Start) >= 0
		})
		for i := start; i < len(s.rows) && bytes.Compare(s.rows[i].key, r.End) <= 0; i++ {
			out.Or(s.rows[i].rowIDs)
		}
	}
	return out, nil
}
