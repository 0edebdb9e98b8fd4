package tikv

import (
	"bytes"
	"encoding/binary"
)

// Engine keyspace layout, lowest to highest:
//
//	0x01 0x01                          store ident
//	0x01 0x02 <be64 region id> <tag>   per-region raft bookkeeping
//	0x01 0x03 <boundary key>           region descriptors
//	0x02 and above                     region data, raw application keys
//
// The three spaces are disjoint by construction and the tag bytes below are
// part of the durable format. Region ids are fixed-width big-endian so that
// prefix(id) sorts strictly below prefix(id+1) with nothing in between,
// however many tags a region's bookkeeping uses.

const (
	localPrefix byte = 0x01

	storeIdentSuffix byte = 0x01

	raftLogSuffix            byte = 0x01
	raftLastIndexSuffix      byte = 0x02
	raftAppliedIndexSuffix   byte = 0x03
	raftTruncatedStateSuffix byte = 0x04
)

var (
	// MinKey and MaxKey bound the whole engine keyspace.
	MinKey = []byte{}
	MaxKey = []byte{0xff}

	// LocalMinKey and LocalMaxKey bound the reserved local keyspace. Every
	// application key sorts at or above LocalMaxKey.
	LocalMinKey = []byte{localPrefix}
	LocalMaxKey = []byte{localPrefix + 1}

	regionIDPrefix   = []byte{localPrefix, 0x02}
	regionMetaPrefix = []byte{localPrefix, 0x03}

	// RegionMetaMinKey and RegionMetaMaxKey bound the descriptor space.
	RegionMetaMinKey = []byte{localPrefix, 0x03}
	RegionMetaMaxKey = []byte{localPrefix, 0x04}
)

// StoreIdentKey holds the store's one-time bootstrap identity.
func StoreIdentKey() []byte {
	return []byte{localPrefix, storeIdentSuffix}
}

// RegionIDPrefix is the lower bound of the half-open interval
// [prefix(id), prefix(id+1)) holding all of one region's raft bookkeeping.
func RegionIDPrefix(regionID uint64) []byte {
	key := make([]byte, 0, len(regionIDPrefix)+9)
	key = append(key, regionIDPrefix...)
	return binary.BigEndian.AppendUint64(key, regionID)
}

func makeRegionIDKey(regionID uint64, suffix byte) []byte {
	return append(RegionIDPrefix(regionID), suffix)
}

func RaftTruncatedStateKey(regionID uint64) []byte {
	return makeRegionIDKey(regionID, raftTruncatedStateSuffix)
}

func RaftLastIndexKey(regionID uint64) []byte {
	return makeRegionIDKey(regionID, raftLastIndexSuffix)
}

func RaftAppliedIndexKey(regionID uint64) []byte {
	return makeRegionIDKey(regionID, raftAppliedIndexSuffix)
}

// RaftLogPrefix spans the region's log entries: [prefix, RaftLogKey(id, n)).
func RaftLogPrefix(regionID uint64) []byte {
	return makeRegionIDKey(regionID, raftLogSuffix)
}

// RaftLogKey addresses one log entry; entries sort by index.
func RaftLogKey(regionID, index uint64) []byte {
	return binary.BigEndian.AppendUint64(RaftLogPrefix(regionID), index)
}

// RegionMetaPrefix maps a region boundary into the descriptor space while
// preserving the boundary's relative byte order. Descriptors live at their
// region's start key, so they sort by data range.
func RegionMetaPrefix(boundary []byte) []byte {
	key := make([]byte, 0, len(regionMetaPrefix)+len(boundary))
	key = append(key, regionMetaPrefix...)
	return append(key, boundary...)
}

// ValidDataKey reports whether key may appear in the region-data namespace,
// i.e. cannot collide with the reserved local keyspace.
func ValidDataKey(key []byte) bool {
	return bytes.Compare(key, LocalMaxKey) >= 0
}
