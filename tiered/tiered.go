// Package tiered composes multiple space filling curves of increasing
// precision into a single index strategy. Each entry is stored at the
// finest tier whose cells keep its duplication bounded; queries fan
// out across tiers, finest first, skipping tiers known to be empty.
package tiered

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/hupe1980/sfcgo/dimension"
	"github.com/hupe1980/sfcgo/logging"
	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/numeric"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/sfc"
	"github.com/hupe1980/sfcgo/sfc/binned"
	"github.com/hupe1980/sfcgo/util"
)

const tagStrategy uint16 = 32

const (
	// DefaultMaxEstimatedDuplicateIDsPerDimension caps per-dimension
	// duplication during tier selection.
	DefaultMaxEstimatedDuplicateIDsPerDimension = 2
	// DefaultMaxRanges leaves query decomposition uncapped.
	DefaultMaxRanges = -1
)

// Option configures a Strategy.
type Option func(*Strategy)

// WithMaxEstimatedDuplicateIDsPerDimension overrides the per-dimension
// duplication cap used during tier selection.
func WithMaxEstimatedDuplicateIDsPerDimension(n uint64) Option {
	return func(s *Strategy) { s.maxDupPerDim = n }
}

// WithLogger overrides the strategy's logger. Without it, warnings go
// through the process-wide logging.Default.
func WithLogger(log *logging.Logger) Option {
	return func(s *Strategy) { s.log = log }
}

// Strategy is a tiered space-filling-curve index strategy: an ordered
// stack of curves from coarsest (index 0) to finest, an injective
// sfc-index to tier-byte mapping, and the dimension definitions the
// curves discretize.
//
// Immutable after construction and safe for concurrent use.
type Strategy struct {
	baseDefinitions []dimension.Definition
	orderedSfcs     []sfc.SpaceFillingCurve
	sfcIndexToTier  []byte
	tierToSfcIndex  map[byte]int
	maxDupPerDim    uint64
	// dupLookup[d] is maxDupPerDim^d, the duplication cap for an entry
	// with d range-valued dimensions.
	dupLookup []*big.Int
	// log is nil unless overridden; warnings then go through the
	// process-wide logging.Default at call time.
	log *logging.Logger

	// mu serializes row-id computation calls on one strategy; the
	// computation itself keeps no per-strategy scratch state.
	mu sync.Mutex
}

// NewStrategy builds a tiered strategy. orderedSfcs run from coarsest to
// finest; sfcIndexToTier assigns each curve its tier byte and must be
// injective.
func NewStrategy(baseDefinitions []dimension.Definition, orderedSfcs []sfc.SpaceFillingCurve, sfcIndexToTier []byte, opts ...Option) (*Strategy, error) {
	if len(orderedSfcs) == 0 {
		return nil, fmt.Errorf("tiered: at least one sfc required")
	}
	if len(orderedSfcs) != len(sfcIndexToTier) {
		return nil, fmt.Errorf("tiered: %d sfcs but %d tier bytes", len(orderedSfcs), len(sfcIndexToTier))
	}
	s := &Strategy{
		baseDefinitions: baseDefinitions,
		orderedSfcs:     orderedSfcs,
		sfcIndexToTier:  append([]byte(nil), sfcIndexToTier...),
		maxDupPerDim:    DefaultMaxEstimatedDuplicateIDsPerDimension,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.initLookups(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Strategy) initLookups() error {
	s.tierToSfcIndex = make(map[byte]int, len(s.sfcIndexToTier))
	for i, tier := range s.sfcIndexToTier {
		if _, dup := s.tierToSfcIndex[tier]; dup {
			return fmt.Errorf("tiered: duplicate tier byte %d", tier)
		}
		s.tierToSfcIndex[tier] = i
	}
	s.dupLookup = make([]*big.Int, len(s.baseDefinitions)+1)
	for d := range s.dupLookup {
		s.dupLookup[d] = new(big.Int).Exp(
			new(big.Int).SetUint64(s.maxDupPerDim), big.NewInt(int64(d)), nil)
	}
	return nil
}

// logger resolves the strategy's logger, tagged with its identity.
func (s *Strategy) logger() *logging.Logger {
	log := s.log
	if log == nil {
		log = logging.Default()
	}
	return log.WithStrategyID(s.ID())
}

// ID is the stable textual identity of the strategy, equal across
// platforms for equal inputs. Used as a key in storage namespaces.
func (s *Strategy) ID() string {
	bin, err := s.MarshalBinary()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", xxh3.Hash(bin))
}

// OrderedDimensionDefinitions returns the strategy's dimension
// definitions in index order.
func (s *Strategy) OrderedDimensionDefinitions() []dimension.Definition {
	return s.baseDefinitions
}

// TierExists reports whether a tier byte belongs to this strategy.
func (s *Strategy) TierExists(tier byte) bool {
	_, ok := s.tierToSfcIndex[tier]
	return ok
}

// rangeDimensions counts the dimensions with a nonzero extent; a point
// has none and is never duplication-capped.
func rangeDimensions(data numeric.Dataset) int {
	ranges := 0
	for _, d := range data.PerDimension {
		if d.Min() != d.Max() {
			ranges++
		}
	}
	return ranges
}

// GetInsertionIds computes the keys the entry is stored at, using the
// default per-dimension duplication cap.
func (s *Strategy) GetInsertionIds(data numeric.Dataset) model.InsertionIds {
	return s.internalGetInsertionIds(data, s.dupLookup[rangeDimensions(data)])
}

// GetInsertionIdsWithMaxDuplicates computes the keys with an explicit
// duplication cap.
func (s *Strategy) GetInsertionIdsWithMaxDuplicates(data numeric.Dataset, maxDuplicateInsertionIds uint64) model.InsertionIds {
	return s.internalGetInsertionIds(data, new(big.Int).SetUint64(maxDuplicateInsertionIds))
}

func (s *Strategy) internalGetInsertionIds(data numeric.Dataset, maxDuplicates *big.Int) model.InsertionIds {
	if data.IsEmpty() {
		s.logger().Warn("cannot index empty fields, skipping row")
		return model.InsertionIds{}
	}
	bins := dimension.ApplyBins(data, s.baseDefinitions)
	out := model.InsertionIds{Partitions: make([]model.SinglePartitionInsertionIds, 0, len(bins))}
	for _, bin := range bins {
		out.Partitions = append(out.Partitions, s.getRowIds(bin, maxDuplicates))
	}
	return out
}

// getRowIds picks the finest tier that holds the binned entry within the
// duplication cap. The coarsest tier always accepts.
func (s *Strategy) getRowIds(bin dimension.BinnedDataset, maxDuplicates *big.Int) model.SinglePartitionInsertionIds {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sfcIndex := len(s.orderedSfcs) - 1; sfcIndex >= 0; sfcIndex-- {
		tier := s.sfcIndexToTier[sfcIndex]
		if ids := RowIdsAtTier(bin, tier, s.orderedSfcs[sfcIndex], maxDuplicates, sfcIndex); ids != nil {
			return *ids
		}
	}
	// Unreachable: the coarsest tier never rejects.
	return model.SinglePartitionInsertionIds{}
}

// RowIdsAtTier computes the insertion ids of a binned entry at one tier,
// or nil when the entry would exceed the duplication cap there. Tier 0
// (the coarsest) accepts unconditionally.
func RowIdsAtTier(bin dimension.BinnedDataset, tier byte, curve sfc.SpaceFillingCurve, maxDuplicates *big.Int, sfcIndex int) *model.SinglePartitionInsertionIds {
	rowCount := curve.EstimatedIDCount(bin.Dataset)
	if single := binned.SingleBinnedInsertionID(rowCount, &tier, bin, curve); single != nil {
		return single
	}
	if maxDuplicates == nil || rowCount.Cmp(maxDuplicates) <= 0 || sfcIndex == 0 {
		ids := binned.DecomposeRangesForEntry(bin, &tier, curve)
		return &ids
	}
	return nil
}

// GetQueryRanges decomposes a query box into per-partition sort-key
// ranges across all tiers, finest first. Tier metadata hints let empty
// tiers be skipped.
func (s *Strategy) GetQueryRanges(query numeric.Dataset, hints ...model.IndexMetaData) model.QueryRanges {
	return s.GetQueryRangesWithMax(query, DefaultMaxRanges, hints...)
}

// GetQueryRangesWithMax is GetQueryRanges with a cap on the number of
// ranges per tier and bin.
func (s *Strategy) GetQueryRangesWithMax(query numeric.Dataset, maxRangeDecomposition int, hints ...model.IndexMetaData) model.QueryRanges {
	if query.IsEmpty() {
		return model.QueryRanges{}
	}
	binnedQueries := dimension.ApplyBins(query, s.baseDefinitions)
	meta := tierMetaHint(hints)
	var partitions []model.SinglePartitionQueryRanges
	for sfcIndex := len(s.orderedSfcs) - 1; sfcIndex >= 0; sfcIndex-- {
		if meta != nil && meta.CountAtSfcIndex(sfcIndex) == 0 {
			continue
		}
		tier := s.sfcIndexToTier[sfcIndex]
		partitions = append(partitions,
			binned.QueryRanges(binnedQueries, s.orderedSfcs[sfcIndex], maxRangeDecomposition, &tier)...)
	}
	return model.QueryRanges{Partitions: partitions}
}

func tierMetaHint(hints []model.IndexMetaData) *TierMetaData {
	for _, h := range hints {
		if meta, ok := h.(*TierMetaData); ok {
			return meta
		}
	}
	return nil
}

// GetCoordinatesPerDimension reports the per-dimension cell coordinates
// of a stored key. Returns nil when the tier byte is unknown.
func (s *Strategy) GetCoordinatesPerDimension(partitionKey, sortKey []byte) *model.Coordinates {
	if len(partitionKey) == 0 {
		s.logger().Warn("partition key must at least contain a byte for the tier")
		return nil
	}
	sfcIndex, ok := s.tierToSfcIndex[partitionKey[0]]
	if !ok {
		s.logger().WithTier(partitionKey[0]).Warn("unknown tier byte")
		return nil
	}
	rowID := util.Combine(partitionKey, sortKey)
	coords, err := binned.CoordinatesForID(rowID, s.baseDefinitions, s.orderedSfcs[sfcIndex], 1)
	if err != nil {
		s.logger().Warn("cannot decode row id", "error", err)
		return nil
	}
	return &model.Coordinates{
		TierAndBin:   []byte{partitionKey[0]},
		PerDimension: coords,
	}
}

// GetRangeForId reconstructs the per-dimension value ranges of a stored
// key. ok is false when the tier byte is unknown or the key malformed.
func (s *Strategy) GetRangeForId(partitionKey, sortKey []byte) (numeric.Dataset, bool) {
	rowID := util.Combine(partitionKey, sortKey)
	if len(rowID) == 0 {
		s.logger().Warn("row must at least contain a byte for the tier")
		return numeric.Dataset{}, false
	}
	sfcIndex, ok := s.tierToSfcIndex[rowID[0]]
	if !ok {
		s.logger().WithTier(rowID[0]).Warn("unknown tier byte")
		return numeric.Dataset{}, false
	}
	ranges, err := binned.RangeForID(rowID, s.baseDefinitions, s.orderedSfcs[sfcIndex], 1)
	if err != nil {
		s.logger().Warn("cannot decode row id", "error", err)
		return numeric.Dataset{}, false
	}
	return ranges, true
}

// GetPartitionKeyLength is one tier byte plus every fixed-width bin
// contribution. Variable-width bins are excluded; a storage backend
// must then treat partition keys as variable-length.
func (s *Strategy) GetPartitionKeyLength() int {
	length := 1
	for _, d := range s.baseDefinitions {
		if size := d.FixedBinIDSize(); size > 0 {
			length += size
		}
	}
	return length
}

// HighestPrecisionIDRangePerDimension reports the per-dimension cell
// counts of the finest tier.
func (s *Strategy) HighestPrecisionIDRangePerDimension() []float64 {
	return s.orderedSfcs[len(s.orderedSfcs)-1].IDRangePerDimension()
}

// ReprojectToTier recomputes the insertion ids of an existing row key at
// the given tier. ok is false when either the row's own tier or the
// target tier is unknown.
func (s *Strategy) ReprojectToTier(rowID []byte, tier byte, maxDuplicates *big.Int) (model.InsertionIds, bool) {
	original, ok := s.GetRangeForId(rowID, nil)
	if !ok {
		return model.InsertionIds{}, false
	}
	sfcIndex, ok := s.tierToSfcIndex[tier]
	if !ok {
		s.logger().WithTier(tier).Warn("unknown reprojection tier byte")
		return model.InsertionIds{}, false
	}
	bins := dimension.ApplyBins(original, s.baseDefinitions)
	out := model.InsertionIds{Partitions: make([]model.SinglePartitionInsertionIds, 0, len(bins))}
	for _, bin := range bins {
		if ids := RowIdsAtTier(bin, tier, s.orderedSfcs[sfcIndex], maxDuplicates, sfcIndex); ids != nil {
			out.Partitions = append(out.Partitions, *ids)
		}
	}
	return out, true
}

// CreateMetaData returns fresh, zeroed tier metadata for this strategy.
func (s *Strategy) CreateMetaData() model.IndexMetaData {
	return newTierMetaData(s.sfcIndexToTier)
}

// SubStrategies exposes each tier as a standalone single-tier strategy.
func (s *Strategy) SubStrategies() []*SingleTierSubStrategy {
	out := make([]*SingleTierSubStrategy, len(s.orderedSfcs))
	for i, curve := range s.orderedSfcs {
		out[i] = NewSingleTierSubStrategy(curve, s.baseDefinitions, s.sfcIndexToTier[i])
	}
	return out
}

func (s *Strategy) PersistableTag() uint16 { return tagStrategy }

// MarshalBinary encodes the strategy: curve count, dimension count,
// mapping size and duplication cap as uvarints, the framed curves and
// dimension definitions, then the (sfcIndex, tierByte) pairs.
func (s *Strategy) MarshalBinary() ([]byte, error) {
	buf := util.AppendUvarint(nil, uint64(len(s.orderedSfcs)))
	buf = util.AppendUvarint(buf, uint64(len(s.baseDefinitions)))
	buf = util.AppendUvarint(buf, uint64(len(s.sfcIndexToTier)))
	buf = util.AppendUvarint(buf, s.maxDupPerDim)
	for _, curve := range s.orderedSfcs {
		b, err := persist.ToBinary(curve)
		if err != nil {
			return nil, err
		}
		buf = util.AppendBytes(buf, b)
	}
	for _, dim := range s.baseDefinitions {
		b, err := persist.ToBinary(dim)
		if err != nil {
			return nil, err
		}
		buf = util.AppendBytes(buf, b)
	}
	for i, tier := range s.sfcIndexToTier {
		buf = append(buf, byte(i), tier)
	}
	return buf, nil
}

func (s *Strategy) UnmarshalBinary(data []byte) error {
	numSfcs, rest, err := util.ConsumeUvarint(data)
	if err != nil {
		return fmt.Errorf("%w: strategy sfc count", persist.ErrCorruptFormat)
	}
	numDims, rest, err := util.ConsumeUvarint(rest)
	if err != nil {
		return fmt.Errorf("%w: strategy dimension count", persist.ErrCorruptFormat)
	}
	mappingSize, rest, err := util.ConsumeUvarint(rest)
	if err != nil {
		return fmt.Errorf("%w: strategy mapping size", persist.ErrCorruptFormat)
	}
	maxDup, rest, err := util.ConsumeUvarint(rest)
	if err != nil {
		return fmt.Errorf("%w: strategy duplication cap", persist.ErrCorruptFormat)
	}
	orderedSfcs := make([]sfc.SpaceFillingCurve, numSfcs)
	for i := range orderedSfcs {
		var b []byte
		b, rest, err = util.ConsumeBytes(rest)
		if err != nil {
			return fmt.Errorf("%w: strategy sfc %d", persist.ErrCorruptFormat, i)
		}
		p, err := persist.FromBinary(b)
		if err != nil {
			return err
		}
		curve, ok := p.(sfc.SpaceFillingCurve)
		if !ok {
			return fmt.Errorf("%w: embedded type is not an sfc", persist.ErrCorruptFormat)
		}
		orderedSfcs[i] = curve
	}
	baseDefinitions := make([]dimension.Definition, numDims)
	for i := range baseDefinitions {
		var b []byte
		b, rest, err = util.ConsumeBytes(rest)
		if err != nil {
			return fmt.Errorf("%w: strategy dimension %d", persist.ErrCorruptFormat, i)
		}
		p, err := persist.FromBinary(b)
		if err != nil {
			return err
		}
		dim, ok := p.(dimension.Definition)
		if !ok {
			return fmt.Errorf("%w: embedded type is not a dimension", persist.ErrCorruptFormat)
		}
		baseDefinitions[i] = dim
	}
	if uint64(len(rest)) < 2*mappingSize {
		return fmt.Errorf("%w: strategy tier mapping", persist.ErrCorruptFormat)
	}
	sfcIndexToTier := make([]byte, numSfcs)
	for i := uint64(0); i < mappingSize; i++ {
		sfcIndex := int(rest[2*i])
		tier := rest[2*i+1]
		if sfcIndex >= len(sfcIndexToTier) {
			return fmt.Errorf("%w: strategy sfc index %d out of range", persist.ErrCorruptFormat, sfcIndex)
		}
		sfcIndexToTier[sfcIndex] = tier
	}
	s.baseDefinitions = baseDefinitions
	s.orderedSfcs = orderedSfcs
	s.sfcIndexToTier = sfcIndexToTier
	s.maxDupPerDim = maxDup
	return s.initLookups()
}

func init() {
	persist.Register(tagStrategy, func() persist.Persistable { return &Strategy{} })
	persist.Register(tagTierMetaData, func() persist.Persistable { return &TierMetaData{} })
}
