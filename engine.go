package tikv

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/cockroachdb/pebble"

	"github.com/nashtsai/tikv/tikv_errors"
)

// Engine is the ordered key-value engine all replicas on a store share.
// The handle is shared by plain pointer: Store owns Open/Close, replicas
// must not outlive it, and key-range disjointness keeps replicas from ever
// touching each other's state.
type Engine struct {
	db  *pebble.DB
	dir string
}

func OpenEngine(dir string, opts *pebble.Options) (*Engine, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &Engine{db: db, dir: dir}, nil
}

func (e *Engine) DB() *pebble.DB { return e.db }
func (e *Engine) Dir() string    { return e.dir }

func (e *Engine) Close() error { return e.db.Close() }

func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	return wrapGet(e.db.Get(key))
}

// Retriever is the read capability the metadata paths consume. It is
// satisfied by the committed Engine, a point-in-time Snap, and an in-flight
// BatchView, so the apply loop may read an index it has written to a batch
// that is not committed yet.
type Retriever interface {
	Get(key []byte) (value []byte, ok bool, err error)
}

// BatchView adapts an indexed pebble batch (see pebble.DB.NewIndexedBatch).
type BatchView struct {
	Batch *pebble.Batch
}

func (v BatchView) Get(key []byte) ([]byte, bool, error) {
	return wrapGet(v.Batch.Get(key))
}

func wrapGet(value []byte, closer io.Closer, err error) ([]byte, bool, error) {
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	buf := append([]byte(nil), value...)
	if closer != nil {
		_ = closer.Close()
	}
	return buf, true, nil
}

// GetU64 reads a fixed-width big-endian counter. ok is false when the key
// is absent.
func GetU64(r Retriever, key []byte) (uint64, bool, error) {
	value, ok, err := r.Get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	if len(value) != 8 {
		return 0, false, tikv_errors.ErrBadValue
	}
	return binary.BigEndian.Uint64(value), true, nil
}

func PutU64(w pebble.Writer, key []byte, n uint64, opts *pebble.WriteOptions) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	return w.Set(key, buf[:], opts)
}

func GetTruncatedState(r Retriever, key []byte) (TruncatedState, bool, error) {
	value, ok, err := r.Get(key)
	if err != nil || !ok {
		return TruncatedState{}, ok, err
	}
	ts, err := ParseTruncatedState(value)
	if err != nil {
		return TruncatedState{}, false, err
	}
	return ts, true, nil
}

func GetRegionDescriptor(r Retriever, key []byte) (RegionDescriptor, bool, error) {
	value, ok, err := r.Get(key)
	if err != nil || !ok {
		return RegionDescriptor{}, ok, err
	}
	desc, err := ParseRegionDescriptor(value)
	if err != nil {
		return RegionDescriptor{}, false, err
	}
	return desc, true, nil
}
