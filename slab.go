package sharedslab

import (
	"io"
	"log/slog"
	"sync"
)

// Slab is a typed, cached view of a rope store. Values are serialized with
// the injected codec and stored as rope records; the cache keeps decoded
// values alongside the record version they were decoded from, and reloads
// transparently when another context bumps a version.
//
// A Slab constructed with NewSlab is detached: a plain in-process map from
// key to value. Attach installs a rope store over a shared buffer, after
// which reads pull through the version check and writes flush through the
// codec.
//
// All methods except Prefetch are safe for concurrent use from multiple
// goroutines; the cache and the store are guarded by one mutex per Slab
// instance. Prefetch reads and decodes records outside that mutex and must
// not run concurrently with writes through the same slab. Pointers
// returned by Get and GetMut remain valid until the entry is reloaded or
// removed.
type Slab[T any] struct {
	mu      sync.Mutex
	cache   map[int]*entry[T]
	ropes   *Ropes
	codec   Codec[T]
	nextKey int

	chunkSize int
	logger    *slog.Logger
}

type entry[T any] struct {
	ver uint32
	val T
}

// NewSlab creates a detached slab. A nil codec selects CBOR; a nil config
// selects DefaultConfig.
func NewSlab[T any](codec Codec[T], config *Config) (*Slab[T], error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if codec == nil {
		codec = CBORCodec[T]{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Slab[T]{
		cache:     make(map[int]*entry[T]),
		codec:     codec,
		chunkSize: config.ChunkSize,
		logger:    logger,
	}, nil
}

// Attach installs a rope store over buf. If the buffer's root record is
// unwritten and the cache holds a value for the root key, that value is
// flushed so the root exists; attaching further slabs to the same buffer
// leaves the existing state untouched, so attach is idempotent across
// contexts.
func (s *Slab[T]) Attach(buf Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage, err := NewChunked(buf, s.chunkSize)
	if err != nil {
		return err
	}
	s.ropes = NewRopes(storage)

	rootVer, err := s.ropes.VersionOf(RootKey)
	if err != nil {
		s.ropes = nil
		return err
	}
	s.logger.Debug("attach", "chunks", storage.NumChunks(), "rootVersion", rootVer)
	if rootVer == 0 {
		if e, ok := s.cache[RootKey]; ok {
			ver, err := s.push(RootKey, e)
			if err != nil {
				s.ropes = nil
				return err
			}
			e.ver = ver
		}
	}
	return nil
}

// Detached reports whether the slab has no backing store.
func (s *Slab[T]) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ropes == nil
}

// pull is the read path: return the cached entry while its version matches
// the record, otherwise fetch and decode the record. Returns nil when
// nothing is stored at key. Callers hold s.mu.
func (s *Slab[T]) pull(key int) (*entry[T], error) {
	if s.ropes == nil {
		return s.cache[key], nil
	}
	ver, err := s.ropes.VersionOf(key)
	if err != nil {
		return nil, err
	}
	if e, ok := s.cache[key]; ok && e.ver == ver {
		return e, nil
	}
	if ver == 0 {
		delete(s.cache, key)
		return nil, nil
	}
	data, err := s.ropes.Get(key)
	if err != nil {
		return nil, err
	}
	e := &entry[T]{ver: ver}
	if err := s.codec.Decode(data, &e.val); err != nil {
		return nil, &DecodeError{Key: key, Err: err}
	}
	s.logger.Debug("pull: cache miss", "key", key, "version", ver, "bytes", len(data))
	s.cache[key] = e
	return e, nil
}

// push is the write path: serialize the entry's value and insert it into
// the rope at key, returning the new version. Detached slabs skip the store
// and report version zero. Callers hold s.mu.
func (s *Slab[T]) push(key int, e *entry[T]) (uint32, error) {
	data, err := s.codec.Encode(&e.val)
	if err != nil {
		return 0, &EncodeError{Key: key, Err: err}
	}
	if s.ropes == nil {
		return 0, nil
	}
	ver, err := s.ropes.InsertAt(key, data)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("push", "key", key, "version", ver, "bytes", len(data))
	return ver, nil
}

// Get returns the value stored at key, or nil when there is none. The
// returned pointer aliases the cache entry and must be treated as
// read-only; use GetMut for values that will be modified.
func (s *Slab[T]) Get(key int) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.pull(key)
	if err != nil || e == nil {
		return nil, err
	}
	return &e.val, nil
}

// GetMut returns mutable access to the value stored at key, or nil when
// there is none. Changes are local to this slab's cache until Flush(key)
// publishes them.
func (s *Slab[T]) GetMut(key int) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.pull(key)
	if err != nil || e == nil {
		return nil, err
	}
	return &e.val, nil
}

// Flush serializes the cached value for key, inserts it into the store at
// the same key, and records the new version. It is an error to flush a key
// with no cached entry.
func (s *Slab[T]) Flush(key int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[key]
	if !ok {
		return ErrNoEntry
	}
	ver, err := s.push(key, e)
	if err != nil {
		return err
	}
	e.ver = ver
	return nil
}

// Insert stores val under a freshly allocated key and flushes it
// immediately, returning the key.
func (s *Slab[T]) Insert(val T) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var key int
	if s.ropes != nil {
		k, err := s.ropes.Alloc()
		if err != nil {
			return 0, err
		}
		key = k
	} else {
		key = s.nextKey
	}
	s.nextKey = key + 1
	e := &entry[T]{val: val}
	s.cache[key] = e
	ver, err := s.push(key, e)
	if err != nil {
		delete(s.cache, key)
		return 0, err
	}
	e.ver = ver
	s.logger.Debug("insert", "key", key)
	return key, nil
}

// Remove deletes the record at key from the store and the cache, returning
// the removed value. Returns ErrNoEntry when nothing is stored at key.
func (s *Slab[T]) Remove(key int) (T, error) {
	var zero T
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.pull(key)
	if err != nil {
		return zero, err
	}
	if e == nil {
		return zero, ErrNoEntry
	}
	if s.ropes != nil {
		if err := s.ropes.Remove(key); err != nil && err != ErrNoEntry {
			return zero, err
		}
	}
	delete(s.cache, key)
	s.logger.Debug("remove", "key", key)
	return e.val, nil
}

// Range calls fn for each cached entry until fn returns false. Only entries
// this slab has materialized are visited; records that exist in the arena
// but were never pulled here are not enumerated. The iteration order is
// unspecified.
func (s *Slab[T]) Range(fn func(key int, val *T) bool) {
	s.mu.Lock()
	type pair struct {
		key int
		val *T
	}
	pairs := make([]pair, 0, len(s.cache))
	for k, e := range s.cache {
		pairs = append(pairs, pair{k, &e.val})
	}
	s.mu.Unlock()
	for _, p := range pairs {
		if !fn(p.key, p.val) {
			return
		}
	}
}

// PeekNextKey returns the key the next Insert would claim. The claim is
// advisory: another context can take the key first, and a caller that needs
// it must Insert immediately.
func (s *Slab[T]) PeekNextKey() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ropes != nil {
		return s.ropes.AllocPeek()
	}
	return s.nextKey, nil
}

// Len returns the number of cached entries.
func (s *Slab[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
