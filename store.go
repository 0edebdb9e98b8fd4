package tikv

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/nashtsai/tikv/tikv_errors"
	"github.com/nashtsai/tikv/utils"
)

type Options struct {
	Logger        utils.Logger
	DescCacheSize int

	// FS overrides the filesystem the engine runs on; tests pass
	// vfs.NewMem(). Nil means the default OS filesystem.
	FS vfs.FS
}

func (o *Options) SetDefaults() {
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
	if o.DescCacheSize == 0 {
		o.DescCacheSize = 1024
	}
}

// StoreIdent identifies one physical store. Written once at Create and
// required by Open ever after.
type StoreIdent struct {
	StoreID uuid.UUID
}

// Store owns the engine and one ReplicaMeta per region replica living on
// it. Replicas for different regions never conflict: their key ranges are
// disjoint by construction.
type Store struct {
	engine *Engine
	ident  StoreIdent
	log    utils.Logger

	regions *xsync.MapOf[uint64, *ReplicaMeta]
	descs   *lru.Cache[uint64, RegionDescriptor]

	opts Options
}

// Create initializes a fresh store directory and stamps its ident.
func Create(dir string, opts Options) (*Store, error) {
	opts.SetDefaults()
	engine, err := OpenEngine(dir, &pebble.Options{ErrorIfExists: true, FS: opts.FS})
	if err != nil {
		return nil, errors.Wrap(err, "create store")
	}
	ident := StoreIdent{StoreID: uuid.New()}
	if err = engine.db.Set(StoreIdentKey(), ident.StoreID[:], pebble.Sync); err != nil {
		_ = engine.Close()
		return nil, errors.Wrap(err, "write store ident")
	}
	s, err := newStore(engine, ident, opts)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	s.log.Info("created store", "dir", dir, "store", ident.StoreID)
	return s, nil
}

// Open loads an existing store directory, its ident and every persisted
// region descriptor.
func Open(dir string, opts Options) (*Store, error) {
	opts.SetDefaults()
	engine, err := OpenEngine(dir, &pebble.Options{ErrorIfNotExists: true, FS: opts.FS})
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	value, ok, err := engine.Get(StoreIdentKey())
	if err != nil {
		_ = engine.Close()
		return nil, errors.Wrap(err, "read store ident")
	}
	if !ok {
		_ = engine.Close()
		return nil, tikv_errors.ErrNoStoreIdent
	}
	id, err := uuid.FromBytes(value)
	if err != nil {
		_ = engine.Close()
		return nil, errors.Wrap(err, "parse store ident")
	}
	s, err := newStore(engine, StoreIdent{StoreID: id}, opts)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	if err = s.LoadRegions(); err != nil {
		_ = engine.Close()
		return nil, err
	}
	return s, nil
}

func newStore(engine *Engine, ident StoreIdent, opts Options) (*Store, error) {
	descs, err := lru.New[uint64, RegionDescriptor](opts.DescCacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{
		engine:  engine,
		ident:   ident,
		log:     opts.Logger,
		regions: xsync.NewMapOf[uint64, *ReplicaMeta](),
		descs:   descs,
		opts:    opts,
	}, nil
}

func (s *Store) Engine() *Engine   { return s.engine }
func (s *Store) Ident() StoreIdent { return s.ident }
func (s *Store) Close() error      { return s.engine.Close() }

// Bootstrap persists a fresh region descriptor and registers a replica for
// it. Boundaries must stay clear of the reserved local keyspace.
func (s *Store) Bootstrap(desc RegionDescriptor) (*ReplicaMeta, error) {
	if err := validateBoundaries(desc); err != nil {
		return nil, err
	}
	meta := NewReplicaMeta(s.engine, desc)
	if _, loaded := s.regions.LoadOrStore(desc.ID, meta); loaded {
		return nil, tikv_errors.ErrRegionExists
	}
	if err := s.engine.db.Set(RegionMetaPrefix(desc.StartKey), desc.Bytes(), pebble.Sync); err != nil {
		s.regions.Delete(desc.ID)
		return nil, fmt.Errorf("persist descriptor: %w", err)
	}
	s.descs.Add(desc.ID, desc)
	s.log.Info("bootstrapped region", "region", desc.ID,
		"start", fmt.Sprintf("%q", desc.StartKey), "end", fmt.Sprintf("%q", desc.EndKey))
	return meta, nil
}

func validateBoundaries(desc RegionDescriptor) error {
	if len(desc.StartKey) > 0 && !ValidDataKey(desc.StartKey) {
		return tikv_errors.ErrBadBoundary
	}
	if len(desc.EndKey) > 0 {
		if !ValidDataKey(desc.EndKey) {
			return tikv_errors.ErrBadBoundary
		}
		if bytes.Compare(desc.StartKey, desc.EndKey) >= 0 {
			return tikv_errors.ErrBadBoundary
		}
	}
	return nil
}

// LoadRegions rebuilds the replica registry from the persisted descriptors.
// Already-registered regions keep their live ReplicaMeta.
func (s *Store) LoadRegions() error {
	snap := s.engine.NewSnap()
	defer func() { _ = snap.Close() }()
	loaded := 0
	_, err := snap.Scan(RegionMetaMinKey, RegionMetaMaxKey, func(key, value []byte) (bool, error) {
		desc, err := ParseRegionDescriptor(value)
		if err != nil {
			return false, fmt.Errorf("descriptor at %q: %w", key, err)
		}
		s.regions.LoadOrStore(desc.ID, NewReplicaMeta(s.engine, desc))
		s.descs.Add(desc.ID, desc)
		loaded++
		return true, nil
	})
	if err != nil {
		return err
	}
	s.log.Info("loaded regions", "count", loaded)
	return nil
}

func (s *Store) Replica(regionID uint64) (*ReplicaMeta, bool) {
	return s.regions.Load(regionID)
}

// Regions returns the descriptors of every registered replica, unordered.
func (s *Store) Regions() []RegionDescriptor {
	var out []RegionDescriptor
	s.regions.Range(func(_ uint64, meta *ReplicaMeta) bool {
		out = append(out, meta.Region)
		return true
	})
	return out
}

// Descriptor serves descriptor lookups without requiring a live replica,
// falling back to a meta-space scan on cache miss.
func (s *Store) Descriptor(regionID uint64) (RegionDescriptor, error) {
	if desc, ok := s.descs.Get(regionID); ok {
		return desc, nil
	}
	if meta, ok := s.regions.Load(regionID); ok {
		s.descs.Add(regionID, meta.Region)
		return meta.Region, nil
	}
	snap := s.engine.NewSnap()
	defer func() { _ = snap.Close() }()
	var found *RegionDescriptor
	_, err := snap.Scan(RegionMetaMinKey, RegionMetaMaxKey, func(_, value []byte) (bool, error) {
		desc, err := ParseRegionDescriptor(value)
		if err != nil {
			return false, err
		}
		if desc.ID == regionID {
			found = &desc
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return RegionDescriptor{}, err
	}
	if found == nil {
		return RegionDescriptor{}, tikv_errors.ErrRegionUnknown
	}
	s.descs.Add(regionID, *found)
	return *found, nil
}

// DestroyRegion removes a replica and every key it owns across all three
// namespaces, in one atomic batch. Uninitialized regions own no data range,
// so only their bookkeeping and descriptor go.
func (s *Store) DestroyRegion(regionID uint64) error {
	meta, ok := s.regions.Load(regionID)
	if !ok {
		return tikv_errors.ErrRegionUnknown
	}
	b := s.engine.db.NewBatch()
	defer func() { _ = b.Close() }()
	if err := b.DeleteRange(RegionIDPrefix(regionID), RegionIDPrefix(regionID+1), nil); err != nil {
		return fmt.Errorf("destroy region %d: %w", regionID, err)
	}
	if err := b.Delete(RegionMetaPrefix(meta.Region.StartKey), nil); err != nil {
		return fmt.Errorf("destroy region %d: %w", regionID, err)
	}
	if meta.IsInitialized() {
		dataStart := meta.Region.StartKey
		if len(dataStart) == 0 {
			dataStart = LocalMaxKey
		}
		if err := b.DeleteRange(dataStart, meta.Region.EndKey, nil); err != nil {
			return fmt.Errorf("destroy region %d: %w", regionID, err)
		}
	}
	if err := s.engine.db.Apply(b, pebble.Sync); err != nil {
		return fmt.Errorf("destroy region %d: %w", regionID, err)
	}
	s.regions.Delete(regionID)
	s.descs.Remove(regionID)
	s.log.Info("destroyed region", "region", regionID)
	return nil
}

// Collector exposes engine health for prometheus scraping.
func (s *Store) Collector() prometheus.Collector {
	return NewPebbleCollector(s.engine.db)
}
