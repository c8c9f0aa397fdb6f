package sfcgo

import (
	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/tiered"
)

// NumericIndexStrategy converts numeric data into storage keys and query
// boxes into key ranges. Implementations are immutable after
// construction and safe for concurrent use.
type NumericIndexStrategy interface {
	persist.Persistable

	// GetInsertionIds computes the keys an entry is stored at. Empty
	// data yields an empty result, never a failure.
	GetInsertionIds(data numeric.Dataset) model.InsertionIds
	// GetQueryRanges decomposes a query box into per-partition sort-key
	// ranges. Metadata hints let empty partitions be skipped.
	GetQueryRanges(query numeric.Dataset, hints ...model.IndexMetaData) model.QueryRanges
	// GetQueryRangesWithMax caps the number of ranges per partition.
	GetQueryRangesWithMax(query numeric.Dataset, maxRangeDecomposition int, hints ...model.IndexMetaData) model.QueryRanges
	// GetCoordinatesPerDimension reports the cell coordinates behind a
	// stored key; nil when the key does not belong to this strategy.
	GetCoordinatesPerDimension(partitionKey, sortKey []byte) *model.Coordinates
	// GetRangeForId reconstructs the value ranges behind a stored key.
	GetRangeForId(partitionKey, sortKey []byte) (numeric.Dataset, bool)
	// GetPartitionKeyLength is the fixed partition key width in bytes.
	GetPartitionKeyLength() int
}

// HierarchicalIndexStrategy is a NumericIndexStrategy layered over
// multiple precision tiers.
type HierarchicalIndexStrategy interface {
	NumericIndexStrategy

	// CreateMetaData returns fresh metadata for the storage layer to
	// maintain.
	CreateMetaData() model.IndexMetaData
	// SubStrategies exposes each tier as a standalone strategy.
	SubStrategies() []*tiered.SingleTierSubStrategy
}

var (
	_ HierarchicalIndexStrategy = (*tiered.Strategy)(nil)
	_ NumericIndexStrategy      = (*tiered.SingleTierSubStrategy)(nil)
)

// DefaultSpatialTemporalStrategy builds the stock longitude / latitude /
// yearly-time strategy: 20 bits per dimension at the finest of four
// equal-interval tiers.
func DefaultSpatialTemporalStrategy(opts ...tiered.Option) (*tiered.Strategy, error) {
	return tiered.CreateEqualIntervalPrecisionTieredStrategy(
		SpatialTemporalDimensions(),
		[]int{20, 20, 20},
		4,
		opts...,
	)
}

// SpatialTemporalDimensions returns the stock dimension set: periodic
// longitude, half-range latitude and time binned by year.
func SpatialTemporalDimensions() []dimension.Definition {
	return []dimension.Definition{
		dimension.NewLongitude(),
		dimension.NewLatitude(true),
		dimension.NewTime(dimension.UnitYear),
	}
}
