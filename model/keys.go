// Package model defines the key-level value types shared by the index
// packages: byte ranges, insertion ids and query ranges as understood
// by a lexicographic partition/sort key store.
package model

import (
	"bytes"

	"github.com/hupe1980/sfcgo/util"
)

// ByteArrayRange is an inclusive range of sort keys. Start must compare
// lexicographically less than or equal to End.
type ByteArrayRange struct {
	Start []byte
	End   []byte
}

// IsSingleValue reports whether the range covers exactly one key.
func (r ByteArrayRange) IsSingleValue() bool {
	return bytes.Equal(r.Start, r.End)
}

// Intersects reports whether two ranges share at least one key.
func (r ByteArrayRange) Intersects(o ByteArrayRange) bool {
	return bytes.Compare(r.Start, o.End) <= 0 && bytes.Compare(o.Start, r.End) <= 0
}

// SinglePartitionInsertionIds groups the sort keys of one entry within a
// single partition.
type SinglePartitionInsertionIds struct {
	PartitionKey []byte
	SortKeys     [][]byte
}

// Composite returns the full row keys, partition key prepended to each
// sort key.
func (s SinglePartitionInsertionIds) Composite() [][]byte {
	if len(s.SortKeys) == 0 {
		if len(s.PartitionKey) == 0 {
			return nil
		}
		return [][]byte{append([]byte(nil), s.PartitionKey...)}
	}
	out := make([][]byte, 0, len(s.SortKeys))
	for _, sk := range s.SortKeys {
		out = append(out, util.Combine(s.PartitionKey, sk))
	}
	return out
}

// InsertionIds is the set of keys at which a single logical entry is
// stored. Most entries produce exactly one partition with one sort key;
// entries straddling multiple cells at the chosen tier produce more.
type InsertionIds struct {
	Partitions []SinglePartitionInsertionIds
}

// IsEmpty reports whether no keys were produced.
func (ids InsertionIds) IsEmpty() bool {
	for _, p := range ids.Partitions {
		if len(p.SortKeys) > 0 || len(p.PartitionKey) > 0 {
			return false
		}
	}
	return true
}

// Composite returns every full row key across all partitions.
func (ids InsertionIds) Composite() [][]byte {
	var out [][]byte
	for _, p := range ids.Partitions {
		out = append(out, p.Composite()...)
	}
	return out
}

// SinglePartitionQueryRanges groups the sort-key ranges of a query
// within a single partition.
type SinglePartitionQueryRanges struct {
	PartitionKey []byte
	Ranges       []ByteArrayRange
}

// QueryRanges is the result of decomposing a query box: per-partition
// lists of inclusive sort-key ranges. Partitions belonging to finer
// tiers appear before coarser ones.
type QueryRanges struct {
	Partitions []SinglePartitionQueryRanges
}

// IsEmpty reports whether the decomposition produced no ranges.
func (qr QueryRanges) IsEmpty() bool {
	for _, p := range qr.Partitions {
		if len(p.Ranges) > 0 {
			return false
		}
	}
	return true
}

// Composite flattens the per-partition ranges into full row-key ranges,
// partition key prepended to both endpoints.
func (qr QueryRanges) Composite() []ByteArrayRange {
	var out []ByteArrayRange
	for _, p := range qr.Partitions {
		for _, r := range p.Ranges {
			out = append(out, ByteArrayRange{
				Start: util.Combine(p.PartitionKey, r.Start),
				End:   util.Combine(p.PartitionKey, r.End),
			})
		}
	}
	return out
}

// Coordinates carries the per-dimension cell coordinates of a row key,
// along with the tier byte the key was found under.
type Coordinates struct {
	// TierAndBin holds the key's tier byte; bin bytes are not included.
	TierAndBin []byte
	// PerDimension holds one cell coordinate per dimension.
	PerDimension []uint64
}

// IndexMetaData is auxiliary strategy state maintained by the storage
// layer: mutated on insert/remove, consulted during query planning, and
// mergeable so it can be computed in parallel and combined.
type IndexMetaData interface {
	// InsertionIdsAdded accounts for newly written keys.
	InsertionIdsAdded(ids InsertionIds)
	// InsertionIdsRemoved accounts for deleted keys.
	InsertionIdsRemoved(ids InsertionIds)
	// Merge folds other into the receiver elementwise. Merging is
	// commutative and associative across instances of the same shape.
	Merge(other IndexMetaData)
}
