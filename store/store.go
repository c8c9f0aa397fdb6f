// Package store defines thin row-store contracts over the index's
// (partitionKey, sortKey) shape, and an in-memory implementation for
// tests and embedded use. The index core never executes queries itself;
// these collaborators translate its key ranges into scans.
package store

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/sfcgo/model"
)

// RowWriter stores rows under index-generated keys.
type RowWriter interface {
	// Write stores rowID under every key of ids.
	Write(ctx context.Context, ids model.InsertionIds, rowID uint64) error
	// Delete removes rowID from every key of ids.
	Delete(ctx context.Context, ids model.InsertionIds, rowID uint64) error
}

// RowScanner resolves index query ranges to the stored row ids.
type RowScanner interface {
	// Scan returns the ids of every row stored under a key within the
	// given ranges. Entries stored under multiple keys are reported once.
	Scan(ctx context.Context, ranges model.QueryRanges) (*roaring64.Bitmap, error)
}
