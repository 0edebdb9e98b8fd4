package tikv

import (
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
)

// VisitFunc receives each key/value pair of a scan. Both slices are only
// valid for the duration of the call; copy them to retain. Returning false
// stops the scan.
type VisitFunc func(key, value []byte) (bool, error)

// Snap is a point-in-time immutable view of the engine. Reads against it
// are repeatable and unaffected by concurrent writers to the live engine.
type Snap struct {
	snap *pebble.Snapshot
}

func (e *Engine) NewSnap() *Snap {
	return &Snap{snap: e.db.NewSnapshot()}
}

func (s *Snap) Get(key []byte) ([]byte, bool, error) {
	return wrapGet(s.snap.Get(key))
}

func (s *Snap) Close() error { return s.snap.Close() }

// Scan visits every pair in [start, end) in key order. stopped reports
// whether the visitor cut the scan short.
func (s *Snap) Scan(start, end []byte, visit VisitFunc) (stopped bool, err error) {
	iter, err := s.snap.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: end,
	})
	if err != nil {
		return false, err
	}
	defer func() {
		cerr := iter.Close()
		if err == nil {
			err = cerr
		}
	}()
	for iter.First(); iter.Valid(); iter.Next() {
		cont, verr := visit(iter.Key(), iter.Value())
		if verr != nil {
			return false, verr
		}
		if !cont {
			return true, nil
		}
	}
	return false, iter.Error()
}

// SnapChecksum hashes every pair the region snapshot would transfer, in
// transfer order, so a sender can attach an integrity check to the stream.
func SnapChecksum(m *ReplicaMeta, snap *Snap) (uint64, error) {
	h := xxhash.New()
	err := m.SnapScan(snap, func(key, value []byte) (bool, error) {
		_, _ = h.Write(key)
		_, _ = h.Write(value)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
