package tikv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nashtsai/tikv/tikv_errors"
)

func TestRegionDescriptorRoundTrip(t *testing.T) {
	desc := RegionDescriptor{ID: 7, StartKey: []byte("a"), EndKey: []byte("m")}
	parsed, err := ParseRegionDescriptor(desc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, desc, parsed)
}

func TestRegionDescriptorRoundTripEmptyBoundaries(t *testing.T) {
	desc := RegionDescriptor{ID: 5}
	parsed, err := ParseRegionDescriptor(desc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), parsed.ID)
	assert.Empty(t, parsed.StartKey)
	assert.Empty(t, parsed.EndKey)
	assert.False(t, parsed.IsInitialized())
}

func TestParseRegionDescriptorRejectsGarbage(t *testing.T) {
	_, err := ParseRegionDescriptor([]byte("junk"))
	assert.ErrorIs(t, err, tikv_errors.ErrBadDescriptor)
	_, err = ParseRegionDescriptor(nil)
	assert.ErrorIs(t, err, tikv_errors.ErrBadDescriptor)
}

func TestTruncatedStateRoundTrip(t *testing.T) {
	for _, ts := range []TruncatedState{{}, {Index: 100, Term: 3}, {Index: RaftInitLogIndex, Term: RaftInitLogTerm}} {
		parsed, err := ParseTruncatedState(ts.Bytes())
		require.NoError(t, err)
		assert.Equal(t, ts, parsed)
	}
}

func TestParseTruncatedStateRejectsGarbage(t *testing.T) {
	_, err := ParseTruncatedState([]byte{0x00})
	assert.ErrorIs(t, err, tikv_errors.ErrBadTruncatedState)
}
