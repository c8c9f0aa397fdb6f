// Package binned layers dimension binning over a space filling curve:
// bin labels prefix every sort key, and query decomposition repeats once
// per bin. Bin bytes compare lexicographically before curve bytes, so
// ordering within a bin is preserved.
package binned

import (
	"bytes"
	"math/big"

	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/sfc"
	"github.com/hupe1980/sfcgo/util"
)

// partitionKey builds tierByte ‖ binID; the tier byte is absent for
// untiered curves.
func partitionKey(tier *byte, binID []byte) []byte {
	if tier == nil {
		return append([]byte(nil), binID...)
	}
	return util.Combine([]byte{*tier}, binID)
}

// QueryRanges decomposes each binned query against the curve and
// prefixes the tier and bin onto the partition key.
func QueryRanges(binnedQueries []dimension.BinnedDataset, s sfc.SpaceFillingCurve, maxRanges int, tier *byte) []model.SinglePartitionQueryRanges {
	out := make([]model.SinglePartitionQueryRanges, 0, len(binnedQueries))
	for _, q := range binnedQueries {
		decomp := s.DecomposeRange(q.Dataset, true, maxRanges)
		if len(decomp.Ranges) == 0 {
			continue
		}
		out = append(out, model.SinglePartitionQueryRanges{
			PartitionKey: partitionKey(tier, q.BinID),
			Ranges:       decomp.Ranges,
		})
	}
	return out
}

// SingleBinnedInsertionID returns the entry's single insertion id if and
// only if the whole binned dataset fits within one curve cell at this
// precision; the fit test is encode(min) == encode(max). Returns nil
// otherwise.
func SingleBinnedInsertionID(rowCount *big.Int, tier *byte, bin dimension.BinnedDataset, s sfc.SpaceFillingCurve) *model.SinglePartitionInsertionIds {
	minID := s.Encode(bin.Mins())
	if rowCount.Cmp(big.NewInt(1)) != 0 {
		maxID := s.Encode(bin.Maxes())
		if !bytes.Equal(minID, maxID) {
			return nil
		}
	}
	return &model.SinglePartitionInsertionIds{
		PartitionKey: partitionKey(tier, bin.BinID),
		SortKeys:     [][]byte{minID},
	}
}

// DecomposeRangesForEntry materializes every cell the binned dataset
// touches at this curve's precision, one sort key per cell.
func DecomposeRangesForEntry(bin dimension.BinnedDataset, tier *byte, s sfc.SpaceFillingCurve) model.SinglePartitionInsertionIds {
	decomp := s.DecomposeRange(bin.Dataset, false, -1)
	var sortKeys [][]byte
	for _, r := range decomp.Ranges {
		sortKeys = append(sortKeys, util.IntermediaryKeys(r.Start, r.End)...)
	}
	return model.SinglePartitionInsertionIds{
		PartitionKey: partitionKey(tier, bin.BinID),
		SortKeys:     sortKeys,
	}
}

// sortKeyOffset is the byte offset of the curve index within a composite
// row id.
func sortKeyOffset(dims []dimension.Definition, tierBytes int) int {
	offset := tierBytes
	for _, d := range dims {
		offset += d.FixedBinIDSize()
	}
	return offset
}

// CoordinatesForID extracts the per-dimension cell coordinates from a
// composite row id of tierBytes ‖ binID ‖ sortKey shape.
func CoordinatesForID(rowID []byte, dims []dimension.Definition, s sfc.SpaceFillingCurve, tierBytes int) ([]uint64, error) {
	return s.Coordinates(rowID[sortKeyOffset(dims, tierBytes):])
}

// RangeForID reconstructs the per-dimension value ranges of the cell a
// composite row id identifies, denormalizing binned dimensions through
// their bin label.
func RangeForID(rowID []byte, dims []dimension.Definition, s sfc.SpaceFillingCurve, tierBytes int) (numeric.Dataset, error) {
	offset := sortKeyOffset(dims, tierBytes)
	normalized, err := s.Decode(rowID[offset:])
	if err != nil {
		return numeric.Dataset{}, err
	}
	binID := rowID[tierBytes:offset]
	out := numeric.Dataset{PerDimension: make([]numeric.Data, len(dims))}
	for j, d := range dims {
		cell := normalized.PerDimension[j]
		raw, err := d.Denormalize(dimension.BinRange{
			BinID: dimension.BinIDSlice(binID, dims, j),
			Min:   cell.Min(),
			Max:   cell.Max(),
		})
		if err != nil {
			return numeric.Dataset{}, err
		}
		out.PerDimension[j] = raw
	}
	return out, nil
}
