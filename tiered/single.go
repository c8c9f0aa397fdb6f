package tiered

import (
	"fmt"

	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/logging"
	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/sfc"
	"github.com/hupe1980/sfcgo/sfc/binned"
	"github.com/hupe1980/sfcgo/util"
)

const tagSingleTierSubStrategy uint16 = 33

// SingleTierSubStrategy addresses one precision level of a tiered
// strategy as a standalone strategy with a fixed tier byte. Useful when
// a caller wants to pin a single tier.
type SingleTierSubStrategy struct {
	curve           sfc.SpaceFillingCurve
	baseDefinitions []dimension.Definition
	tier            byte
	// log is nil unless overridden; warnings then go through the
	// process-wide logging.Default at call time.
	log *logging.Logger
}

// NewSingleTierSubStrategy pins a curve to a tier byte.
func NewSingleTierSubStrategy(curve sfc.SpaceFillingCurve, baseDefinitions []dimension.Definition, tier byte) *SingleTierSubStrategy {
	return &SingleTierSubStrategy{
		curve:           curve,
		baseDefinitions: baseDefinitions,
		tier:            tier,
	}
}

// SetLogger overrides the sub-strategy's logger.
func (s *SingleTierSubStrategy) SetLogger(log *logging.Logger) {
	s.log = log
}

// logger resolves the sub-strategy's logger, tagged with its tier.
func (s *SingleTierSubStrategy) logger() *logging.Logger {
	log := s.log
	if log == nil {
		log = logging.Default()
	}
	return log.WithTier(s.tier)
}

// Tier returns the fixed tier byte.
func (s *SingleTierSubStrategy) Tier() byte { return s.tier }

// GetInsertionIds computes the entry's keys at this tier: a single key
// when the entry fits one cell, otherwise the full cell decomposition.
func (s *SingleTierSubStrategy) GetInsertionIds(data numeric.Dataset) model.InsertionIds {
	if data.IsEmpty() {
		s.logger().Warn("cannot index empty fields, skipping row")
		return model.InsertionIds{}
	}
	bins := dimension.ApplyBins(data, s.baseDefinitions)
	out := model.InsertionIds{Partitions: make([]model.SinglePartitionInsertionIds, 0, len(bins))}
	for _, bin := range bins {
		// sfcIndex 0 makes the single tier behave as the coarsest: it
		// always accepts.
		if ids := RowIdsAtTier(bin, s.tier, s.curve, nil, 0); ids != nil {
			out.Partitions = append(out.Partitions, *ids)
		}
	}
	return out
}

// GetQueryRanges decomposes a query box at this tier only. Metadata
// hints carry no information for a single tier and are ignored.
func (s *SingleTierSubStrategy) GetQueryRanges(query numeric.Dataset, _ ...model.IndexMetaData) model.QueryRanges {
	return s.GetQueryRangesWithMax(query, DefaultMaxRanges)
}

// GetQueryRangesWithMax is GetQueryRanges with a cap on the number of
// ranges per bin.
func (s *SingleTierSubStrategy) GetQueryRangesWithMax(query numeric.Dataset, maxRangeDecomposition int, _ ...model.IndexMetaData) model.QueryRanges {
	if query.IsEmpty() {
		return model.QueryRanges{}
	}
	binnedQueries := dimension.ApplyBins(query, s.baseDefinitions)
	return model.QueryRanges{
		Partitions: binned.QueryRanges(binnedQueries, s.curve, maxRangeDecomposition, &s.tier),
	}
}

// GetCoordinatesPerDimension reports the cell coordinates of a stored
// key; nil when the key's tier byte does not match.
func (s *SingleTierSubStrategy) GetCoordinatesPerDimension(partitionKey, sortKey []byte) *model.Coordinates {
	if len(partitionKey) == 0 || partitionKey[0] != s.tier {
		s.logger().Warn("row id does not belong to this tier")
		return nil
	}
	rowID := util.Combine(partitionKey, sortKey)
	coords, err := binned.CoordinatesForID(rowID, s.baseDefinitions, s.curve, 1)
	if err != nil {
		s.logger().Warn("cannot decode row id", "error", err)
		return nil
	}
	return &model.Coordinates{TierAndBin: []byte{s.tier}, PerDimension: coords}
}

// GetRangeForId reconstructs the value ranges of a stored key; ok is
// false when the key's tier byte does not match.
func (s *SingleTierSubStrategy) GetRangeForId(partitionKey, sortKey []byte) (numeric.Dataset, bool) {
	rowID := util.Combine(partitionKey, sortKey)
	if len(rowID) == 0 || rowID[0] != s.tier {
		s.logger().Warn("row id does not belong to this tier")
		return numeric.Dataset{}, false
	}
	ranges, err := binned.RangeForID(rowID, s.baseDefinitions, s.curve, 1)
	if err != nil {
		s.logger().Warn("cannot decode row id", "error", err)
		return numeric.Dataset{}, false
	}
	return ranges, true
}

// GetPartitionKeyLength is one tier byte plus every fixed-width bin
// contribution.
func (s *SingleTierSubStrategy) GetPartitionKeyLength() int {
	length := 1
	for _, d := range s.baseDefinitions {
		if size := d.FixedBinIDSize(); size > 0 {
			length += size
		}
	}
	return length
}

func (s *SingleTierSubStrategy) PersistableTag() uint16 { return tagSingleTierSubStrategy }

func (s *SingleTierSubStrategy) MarshalBinary() ([]byte, error) {
	curveBin, err := persist.ToBinary(s.curve)
	if err != nil {
		return nil, err
	}
	buf := util.AppendBytes(nil, curveBin)
	buf = util.AppendUvarint(buf, uint64(len(s.baseDefinitions)))
	for _, dim := range s.baseDefinitions {
		b, err := persist.ToBinary(dim)
		if err != nil {
			return nil, err
		}
		buf = util.AppendBytes(buf, b)
	}
	return append(buf, s.tier), nil
}

func (s *SingleTierSubStrategy) UnmarshalBinary(data []byte) error {
	curveBin, rest, err := util.ConsumeBytes(data)
	if err != nil {
		return fmt.Errorf("%w: single tier sfc", persist.ErrCorruptFormat)
	}
	p, err := persist.FromBinary(curveBin)
	if err != nil {
		return err
	}
	curve, ok := p.(sfc.SpaceFillingCurve)
	if !ok {
		return fmt.Errorf("%w: embedded type is not an sfc", persist.ErrCorruptFormat)
	}
	numDims, rest, err := util.ConsumeUvarint(rest)
	if err != nil {
		return fmt.Errorf("%w: single tier dimension count", persist.ErrCorruptFormat)
	}
	baseDefinitions := make([]dimension.Definition, numDims)
	for i := range baseDefinitions {
		var b []byte
		b, rest, err = util.ConsumeBytes(rest)
		if err != nil {
			return fmt.Errorf("%w: single tier dimension %d", persist.ErrCorruptFormat, i)
		}
		dp, err := persist.FromBinary(b)
		if err != nil {
			return err
		}
		dim, ok := dp.(dimension.Definition)
		if !ok {
			return fmt.Errorf("%w: embedded type is not a dimension", persist.ErrCorruptFormat)
		}
		baseDefinitions[i] = dim
	}
	if len(rest) < 1 {
		return fmt.Errorf("%w: single tier byte", persist.ErrCorruptFormat)
	}
	s.curve = curve
	s.baseDefinitions = baseDefinitions
	s.tier = rest[0]
	return nil
}

func init() {
	persist.Register(tagSingleTierSubStrategy, func() persist.Persistable { return &SingleTierSubStrategy{} })
}
