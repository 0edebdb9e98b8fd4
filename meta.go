package tikv

import (
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/nashtsai/tikv/tikv_errors"
)

// ReplicaMeta tracks one region's raft bookkeeping against the shared
// engine: which log entries compaction has removed, which index the data
// reflects, and the highest index known to the log store.
//
// Three writers advance it over a region's lifetime: the log-append path
// moves LastIndex, the apply loop moves AppliedIndex, the compaction path
// moves Truncated and deletes entries below it. Exactly one goroutine per
// region drives those paths, so ReplicaMeta does no locking of its own.
// Once all three are resolved, Truncated.Index <= AppliedIndex <= LastIndex
// holds (with the empty-log exception noted on LoadLastIndex).
type ReplicaMeta struct {
	engine *Engine

	RegionID     uint64
	Region       RegionDescriptor
	LastIndex    uint64
	AppliedIndex uint64

	// Truncated stays nil until a loaded state is installed. The Load*
	// calls never install or persist anything; the caller decides when the
	// synthesized bootstrap default becomes real.
	Truncated *TruncatedState
}

func NewReplicaMeta(engine *Engine, region RegionDescriptor) *ReplicaMeta {
	return &ReplicaMeta{engine: engine, RegionID: region.ID, Region: region}
}

func (m *ReplicaMeta) IsInitialized() bool {
	return m.Region.IsInitialized()
}

// GetTruncatedState returns the cached truncated state without touching the
// engine. It fails until a value has been installed.
func (m *ReplicaMeta) GetTruncatedState() (TruncatedState, error) {
	if m.Truncated == nil {
		return TruncatedState{}, tikv_errors.ErrUninitializedState
	}
	return *m.Truncated, nil
}

// FirstIndex is the lowest log index still retrievable from the log store.
func (m *ReplicaMeta) FirstIndex() (uint64, error) {
	state, err := m.GetTruncatedState()
	if err != nil {
		return 0, err
	}
	return state.Index + 1, nil
}

// LoadTruncatedState reads the persisted truncated state for this region.
// A region that never persisted one reports the bootstrap sentinel
// (RaftInitLogIndex, RaftInitLogTerm) if initialized, (0, 0) otherwise.
func (m *ReplicaMeta) LoadTruncatedState() (TruncatedState, error) {
	state, ok, err := GetTruncatedState(m.engine, RaftTruncatedStateKey(m.RegionID))
	if err != nil {
		return TruncatedState{}, fmt.Errorf("load truncated state: %w", err)
	}
	if ok {
		return state, nil
	}
	if m.IsInitialized() {
		return TruncatedState{Index: RaftInitLogIndex, Term: RaftInitLogTerm}, nil
	}
	return TruncatedState{}, nil
}

// LoadLastIndex reads the persisted last-index counter. An absent counter
// means the log is empty: never written to, or truncated away entirely. In
// that case the truncated index itself is reported, not index+1, which is
// the one situation where "last" may sit below FirstIndex.
func (m *ReplicaMeta) LoadLastIndex() (uint64, error) {
	n, ok, err := GetU64(m.engine, RaftLastIndexKey(m.RegionID))
	if err != nil {
		return 0, fmt.Errorf("load last index: %w", err)
	}
	if ok {
		return n, nil
	}
	state, err := m.GetTruncatedState()
	if err != nil {
		return 0, err
	}
	return state.Index, nil
}

// LoadAppliedIndex reads through the caller's view rather than the engine,
// so the apply loop can observe an index it wrote to a not-yet-committed
// batch and keep index advancement atomic with the data mutation.
func (m *ReplicaMeta) LoadAppliedIndex(r Retriever) (uint64, error) {
	n, ok, err := GetU64(r, RaftAppliedIndexKey(m.RegionID))
	if err != nil {
		return 0, fmt.Errorf("load applied index: %w", err)
	}
	if ok {
		return n, nil
	}
	if m.IsInitialized() {
		return RaftInitLogIndex, nil
	}
	return 0, nil
}

// SetLastIndex persists and caches the last-index counter. Pass a batch to
// commit it together with the appended entries.
func (m *ReplicaMeta) SetLastIndex(w pebble.Writer, index uint64) error {
	if err := PutU64(w, RaftLastIndexKey(m.RegionID), index, pebble.NoSync); err != nil {
		return fmt.Errorf("set last index: %w", err)
	}
	m.LastIndex = index
	return nil
}

// SetAppliedIndex persists and caches the applied-index counter. Pass the
// apply batch to keep the counter atomic with the applied mutation.
func (m *ReplicaMeta) SetAppliedIndex(w pebble.Writer, index uint64) error {
	if err := PutU64(w, RaftAppliedIndexKey(m.RegionID), index, pebble.NoSync); err != nil {
		return fmt.Errorf("set applied index: %w", err)
	}
	m.AppliedIndex = index
	return nil
}

// SetTruncatedState persists the truncated state and refreshes the cached
// copy; the durable and cached values must not diverge once the region is
// live. Keeping state.Index non-decreasing is the compaction path's
// contract.
func (m *ReplicaMeta) SetTruncatedState(w pebble.Writer, state TruncatedState) error {
	if err := w.Set(RaftTruncatedStateKey(m.RegionID), state.Bytes(), pebble.NoSync); err != nil {
		return fmt.Errorf("set truncated state: %w", err)
	}
	m.Truncated = &state
	return nil
}

// TruncateRaftLog records the new truncated state and deletes every log
// entry at or below its index.
func (m *ReplicaMeta) TruncateRaftLog(w pebble.Writer, state TruncatedState) error {
	if err := m.SetTruncatedState(w, state); err != nil {
		return err
	}
	err := w.DeleteRange(RaftLogKey(m.RegionID, 0), RaftLogKey(m.RegionID, state.Index+1), pebble.NoSync)
	if err != nil {
		return fmt.Errorf("truncate raft log: %w", err)
	}
	return nil
}

// KeyRange is a half-open [Start, End) interval of engine keys.
type KeyRange struct {
	Start, End []byte
}

// KeyRanges partitions everything the engine holds for this region into
// three disjoint intervals, in the order a snapshot must visit them: raft
// bookkeeping, the descriptor record, then the data itself. The fixed order
// lets a receiver rebuild region state before the bulk data arrives.
func (m *ReplicaMeta) KeyRanges() [3]KeyRange {
	// A region whose range starts at the absolute minimum must not re-scan
	// the reserved local keyspace, which also sorts below any data key.
	dataStart := m.Region.StartKey
	if len(dataStart) == 0 {
		dataStart = LocalMaxKey
	}
	return [3]KeyRange{
		{Start: RegionIDPrefix(m.RegionID), End: RegionIDPrefix(m.RegionID + 1)},
		{Start: RegionMetaPrefix(m.Region.StartKey), End: RegionMetaPrefix(m.Region.EndKey)},
		{Start: dataStart, End: m.Region.EndKey},
	}
}

// SnapScan feeds visit every key/value pair belonging to this region, in
// KeyRanges order, against the supplied point-in-time view. The first
// failing range's error propagates as is; a visitor stop ends the whole
// scan and later ranges are not visited.
func (m *ReplicaMeta) SnapScan(snap *Snap, visit VisitFunc) error {
	if !m.IsInitialized() {
		return tikv_errors.ErrRegionUninitialized
	}
	for _, r := range m.KeyRanges() {
		stopped, err := snap.Scan(r.Start, r.End, visit)
		if err != nil {
			return err
		}
		if stopped {
			return nil
		}
	}
	return nil
}
