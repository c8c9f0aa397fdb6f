// Package sfcgo provides a multi-dimensional spatial/temporal index for
// Go, built on tiered compact Hilbert space filling curves.
//
// Sfcgo turns multi-dimensional numeric data (longitude, latitude,
// time, ...) into compact byte-string keys ordered along a
// locality-preserving curve, and decomposes multi-dimensional range
// queries into a small set of contiguous key ranges suitable for any
// lexicographic partition/sort key store.
//
// # Quick Start
//
// Build a spatial-temporal strategy and index a point:
//
//	strategy, _ := sfcgo.DefaultSpatialTemporalStrategy()
//	data := numeric.NewDataset(
//	    numeric.Value(-77.03),                       // longitude
//	    numeric.Value(38.89),                        // latitude
//	    numeric.Value(float64(t.UnixMilli())),       // time
//	)
//	ids := strategy.GetInsertionIds(data)
//
// Each insertion id is a (partitionKey, sortKey) pair: the partition key
// carries the precision tier and time bin, the sort key the curve
// position.
//
// Decompose a query box into key ranges:
//
//	box := numeric.NewDataset(
//	    numeric.NewRange(-77.1, -77.0),
//	    numeric.NewRange(38.8, 38.9),
//	    numeric.NewRange(t0, t1),
//	)
//	ranges := strategy.GetQueryRanges(box)
//
// Pass the strategy's tier metadata (maintained by your storage layer
// through InsertionIdsAdded/InsertionIdsRemoved) as a hint to skip
// tiers that hold no data.
//
// # Tiers and Bins
//
// A tiered strategy holds a stack of curves at increasing precision.
// Each entry lands on the finest tier whose cells keep its key
// duplication bounded; point data always lands on the finest tier as a
// single key. Unbounded axes such as time are split into calendar bins
// whose labels prefix the sort key, so keys stay finite and
// chronologically ordered.
//
// # Persistence
//
// Strategies and tier metadata round-trip through an authoritative
// binary form (MarshalBinary/UnmarshalBinary); the indexstore package
// persists them behind memory, local-directory, S3 or MinIO backends.
// The store packages translate query ranges into scans of an in-memory
// row store or a DynamoDB table.
package sfcgo
