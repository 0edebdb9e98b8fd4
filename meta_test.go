package tikv

import (
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nashtsai/tikv/tikv_errors"
)

func TestUninitializedRegionDefaults(t *testing.T) {
	engine := testEngine(t)
	meta := NewReplicaMeta(engine, RegionDescriptor{ID: 5})

	assert.False(t, meta.IsInitialized())

	state, err := meta.LoadTruncatedState()
	require.NoError(t, err)
	assert.Equal(t, TruncatedState{}, state)

	_, err = meta.GetTruncatedState()
	assert.ErrorIs(t, err, tikv_errors.ErrUninitializedState)
	_, err = meta.FirstIndex()
	assert.ErrorIs(t, err, tikv_errors.ErrUninitializedState)
	_, err = meta.LoadLastIndex()
	assert.ErrorIs(t, err, tikv_errors.ErrUninitializedState)

	meta.Truncated = &state
	first, err := meta.FirstIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first)

	applied, err := meta.LoadAppliedIndex(engine)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestInitializedRegionBootstrapDefaults(t *testing.T) {
	engine := testEngine(t)
	meta := NewReplicaMeta(engine, RegionDescriptor{ID: 5, EndKey: []byte("z")})

	assert.True(t, meta.IsInitialized())

	state, err := meta.LoadTruncatedState()
	require.NoError(t, err)
	assert.Equal(t, TruncatedState{Index: RaftInitLogIndex, Term: RaftInitLogTerm}, state)
	meta.Truncated = &state

	first, err := meta.FirstIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), first)

	// empty log: the fallback reports the truncated index itself, so
	// "last" sits below "first" until the first append
	last, err := meta.LoadLastIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), last)

	applied, err := meta.LoadAppliedIndex(engine)
	require.NoError(t, err)
	assert.Equal(t, RaftInitLogIndex, applied)
}

func TestPersistedCountersOverrideDefaults(t *testing.T) {
	engine := testEngine(t)
	meta := NewReplicaMeta(engine, RegionDescriptor{ID: 7, StartKey: []byte("a"), EndKey: []byte("m")})
	db := engine.DB()

	require.NoError(t, meta.SetTruncatedState(db, TruncatedState{Index: 100, Term: 3}))
	require.NoError(t, meta.SetLastIndex(db, 150))

	batch := db.NewIndexedBatch()
	defer func() { _ = batch.Close() }()
	require.NoError(t, meta.SetAppliedIndex(batch, 120))

	applied, err := meta.LoadAppliedIndex(BatchView{Batch: batch})
	require.NoError(t, err)
	assert.Equal(t, uint64(120), applied)

	// the batch is uncommitted, so the engine still reports the default
	applied, err = meta.LoadAppliedIndex(engine)
	require.NoError(t, err)
	assert.Equal(t, RaftInitLogIndex, applied)

	reloaded := NewReplicaMeta(engine, meta.Region)
	state, err := reloaded.LoadTruncatedState()
	require.NoError(t, err)
	assert.Equal(t, TruncatedState{Index: 100, Term: 3}, state)
	reloaded.Truncated = &state

	first, err := reloaded.FirstIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(101), first)

	last, err := reloaded.LoadLastIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(150), last)
}

func TestTruncateRaftLog(t *testing.T) {
	engine := testEngine(t)
	meta := NewReplicaMeta(engine, RegionDescriptor{ID: 3, StartKey: []byte("a"), EndKey: []byte("m")})
	db := engine.DB()

	for i := uint64(1); i <= 20; i++ {
		require.NoError(t, db.Set(RaftLogKey(3, i), []byte("entry"), pebble.NoSync))
	}
	require.NoError(t, meta.SetLastIndex(db, 20))

	require.NoError(t, meta.TruncateRaftLog(db, TruncatedState{Index: 10, Term: 2}))

	_, ok, err := engine.Get(RaftLogKey(3, 10))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = engine.Get(RaftLogKey(3, 11))
	require.NoError(t, err)
	assert.True(t, ok)

	first, err := meta.FirstIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(11), first)

	last, err := meta.LoadLastIndex()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), last)
}

func TestKeyRangesMinStartSubstitution(t *testing.T) {
	engine := testEngine(t)
	meta := NewReplicaMeta(engine, RegionDescriptor{ID: 7, EndKey: []byte("m")})

	ranges := meta.KeyRanges()
	assert.Equal(t, RegionIDPrefix(7), ranges[0].Start)
	assert.Equal(t, RegionIDPrefix(8), ranges[0].End)
	assert.Equal(t, RegionMetaPrefix(nil), ranges[1].Start)
	assert.Equal(t, RegionMetaPrefix([]byte("m")), ranges[1].End)
	// the data scan must not re-read the reserved local keyspace
	assert.Equal(t, LocalMaxKey, ranges[2].Start)
	assert.Equal(t, []byte("m"), ranges[2].End)
}

func TestKeyRangesExplicitStart(t *testing.T) {
	engine := testEngine(t)
	meta := NewReplicaMeta(engine, RegionDescriptor{ID: 7, StartKey: []byte("c"), EndKey: []byte("m")})

	ranges := meta.KeyRanges()
	assert.Equal(t, []byte("c"), ranges[2].Start)
	assert.Equal(t, RegionMetaPrefix([]byte("c")), ranges[1].Start)
}
