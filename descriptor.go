package tikv

import (
	"encoding/binary"
	"fmt"

	"github.com/learn-decentralized-systems/toytlv"

	"github.com/nashtsai/tikv/tikv_errors"
)

// Raft bootstrap reserves log indices 1..9, so a freshly initialized region
// starts life as if its log had already been compacted through index 10.
// Both values are part of the durable format; peers of the same region must
// agree on them byte for byte.
const (
	RaftInitLogIndex uint64 = 10
	RaftInitLogTerm  uint64 = 5
)

// RegionDescriptor names one region and the data range it owns.
type RegionDescriptor struct {
	ID uint64
	// StartKey is inclusive; empty means the absolute minimum key.
	StartKey []byte
	// EndKey is exclusive; empty means the range is not yet assigned.
	EndKey []byte
}

// IsInitialized reports whether the region has a data range. Regions
// without one own no data and must never be snapshotted.
func (d RegionDescriptor) IsInitialized() bool {
	return len(d.EndKey) > 0
}

// Bytes encodes the descriptor as I(id) S(start) E(end) TLV records.
func (d RegionDescriptor) Bytes() []byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], d.ID)
	return toytlv.Concat(
		toytlv.Record('I', id[:]),
		toytlv.Record('S', d.StartKey),
		toytlv.Record('E', d.EndKey),
	)
}

func ParseRegionDescriptor(data []byte) (d RegionDescriptor, err error) {
	id, rest := toytlv.Take('I', data)
	if len(id) != 8 {
		return d, tikv_errors.ErrBadDescriptor
	}
	d.ID = binary.BigEndian.Uint64(id)
	start, rest := toytlv.Take('S', rest)
	if start == nil {
		return d, tikv_errors.ErrBadDescriptor
	}
	end, rest := toytlv.Take('E', rest)
	if end == nil || len(rest) != 0 {
		return d, tikv_errors.ErrBadDescriptor
	}
	d.StartKey = append([]byte(nil), start...)
	d.EndKey = append([]byte(nil), end...)
	return d, nil
}

func (d RegionDescriptor) String() string {
	return fmt.Sprintf("region %d [%q, %q)", d.ID, d.StartKey, d.EndKey)
}

// TruncatedState marks the highest log entry physically removed by
// compaction. Its index never decreases over a region's lifetime; the entry
// at Index+1 is the first one still retrievable.
type TruncatedState struct {
	Index uint64
	Term  uint64
}

// Bytes encodes the state as I(index) T(term) TLV records.
func (ts TruncatedState) Bytes() []byte {
	var index, term [8]byte
	binary.BigEndian.PutUint64(index[:], ts.Index)
	binary.BigEndian.PutUint64(term[:], ts.Term)
	return toytlv.Concat(
		toytlv.Record('I', index[:]),
		toytlv.Record('T', term[:]),
	)
}

func ParseTruncatedState(data []byte) (ts TruncatedState, err error) {
	index, rest := toytlv.Take('I', data)
	if len(index) != 8 {
		return ts, tikv_errors.ErrBadTruncatedState
	}
	term, rest := toytlv.Take('T', rest)
	if len(term) != 8 || len(rest) != 0 {
		return ts, tikv_errors.ErrBadTruncatedState
	}
	ts.Index = binary.BigEndian.Uint64(index)
	ts.Term = binary.BigEndian.Uint64(term)
	return ts, nil
}
