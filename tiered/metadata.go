package tiered

import (
	"fmt"

	"github.com/hupe1980/sfcgo/model"
	"github.com/hupe1980/sfcgo/persist"
	"github.com/hupe1980/sfcgo/util"
)

const tagTierMetaData uint16 = 34

// TierMetaData tracks how many sort keys are stored at each tier, so
// query planning can skip empty tiers entirely.
//
// It is not internally synchronized; the storage layer owning it must
// serialize mutations. Instances over the same tier set merge by
// elementwise addition, so counts can be computed in parallel and
// combined.
type TierMetaData struct {
	tierCounts []int
	// orderedTiers holds the tier byte of each sfc index, preserving the
	// strategy's tier order for deterministic serialization.
	orderedTiers   []byte
	tierToSfcIndex map[byte]int
}

var _ model.IndexMetaData = (*TierMetaData)(nil)

func newTierMetaData(orderedTiers []byte) *TierMetaData {
	m := &TierMetaData{
		tierCounts:     make([]int, len(orderedTiers)),
		orderedTiers:   append([]byte(nil), orderedTiers...),
		tierToSfcIndex: make(map[byte]int, len(orderedTiers)),
	}
	for i, tier := range orderedTiers {
		m.tierToSfcIndex[tier] = i
	}
	return m
}

// CountAtSfcIndex returns the number of sort keys stored at the tier
// with the given sfc index.
func (m *TierMetaData) CountAtSfcIndex(sfcIndex int) int {
	return m.tierCounts[sfcIndex]
}

// InsertionIdsAdded increments the counter of every known tier by the
// number of sort keys written under it. Unknown tier bytes are ignored.
func (m *TierMetaData) InsertionIdsAdded(ids model.InsertionIds) {
	for _, p := range ids.Partitions {
		if len(p.PartitionKey) == 0 {
			continue
		}
		if idx, ok := m.tierToSfcIndex[p.PartitionKey[0]]; ok {
			m.tierCounts[idx] += len(p.SortKeys)
		}
	}
}

// InsertionIdsRemoved decrements symmetrically to InsertionIdsAdded.
func (m *TierMetaData) InsertionIdsRemoved(ids model.InsertionIds) {
	for _, p := range ids.Partitions {
		if len(p.PartitionKey) == 0 {
			continue
		}
		if idx, ok := m.tierToSfcIndex[p.PartitionKey[0]]; ok {
			m.tierCounts[idx] -= len(p.SortKeys)
		}
	}
}

// Merge adds other's counts elementwise. Non-tier metadata is ignored.
func (m *TierMetaData) Merge(other model.IndexMetaData) {
	o, ok := other.(*TierMetaData)
	if !ok {
		return
	}
	for i, c := range o.tierCounts {
		if i >= len(m.tierCounts) {
			break
		}
		m.tierCounts[i] += c
	}
}

func (m *TierMetaData) PersistableTag() uint16 { return tagTierMetaData }

func (m *TierMetaData) MarshalBinary() ([]byte, error) {
	buf := util.AppendUvarint(nil, uint64(len(m.tierCounts)))
	for _, c := range m.tierCounts {
		buf = util.AppendUvarint(buf, uint64(uint32(c)))
	}
	for i, tier := range m.orderedTiers {
		buf = append(buf, tier, byte(i))
	}
	return buf, nil
}

func (m *TierMetaData) UnmarshalBinary(data []byte) error {
	numTiers, rest, err := util.ConsumeUvarint(data)
	if err != nil {
		return fmt.Errorf("%w: tier metadata count", persist.ErrCorruptFormat)
	}
	counts := make([]int, numTiers)
	for i := range counts {
		var c uint64
		c, rest, err = util.ConsumeUvarint(rest)
		if err != nil {
			return fmt.Errorf("%w: tier metadata counter %d", persist.ErrCorruptFormat, i)
		}
		counts[i] = int(int32(uint32(c)))
	}
	if uint64(len(rest)) < 2*numTiers {
		return fmt.Errorf("%w: tier metadata mapping", persist.ErrCorruptFormat)
	}
	orderedTiers := make([]byte, numTiers)
	tierToSfcIndex := make(map[byte]int, numTiers)
	for i := range orderedTiers {
		tier := rest[2*i]
		sfcIndex := int(rest[2*i+1])
		if sfcIndex >= len(orderedTiers) {
			return fmt.Errorf("%w: tier metadata sfc index %d out of range", persist.ErrCorruptFormat, sfcIndex)
		}
		orderedTiers[sfcIndex] = tier
		tierToSfcIndex[tier] = sfcIndex
	}
	m.tierCounts = counts
	m.orderedTiers = orderedTiers
	m.tierToSfcIndex = tierToSfcIndex
	return nil
}

func (m *TierMetaData) String() string {
	return fmt.Sprintf("TierMetaData%v", m.tierCounts)
}
