package sharedslab

import (
	"errors"
	"runtime"
	"sync"
)

// PrefetchConfig controls parallel cache warming
type PrefetchConfig struct {
	// MaxWorkers is the maximum number of worker goroutines
	// If 0, defaults to runtime.NumCPU()
	MaxWorkers int

	// MinKeysForParallel is the minimum number of keys to use parallel
	// prefetching. Below this threshold, keys are pulled sequentially.
	// Defaults to 4.
	MinKeysForParallel int
}

// Validate checks if the prefetch configuration is valid
func (p *PrefetchConfig) Validate() error {
	if p.MaxWorkers < 0 {
		return errors.New("prefetch max workers cannot be negative")
	}
	if p.MaxWorkers > 1024 {
		return errors.New("prefetch max workers must not exceed 1024")
	}
	if p.MinKeysForParallel < 1 {
		return errors.New("prefetch min keys threshold must be at least 1")
	}
	return nil
}

// DefaultPrefetchConfig returns the default prefetch configuration
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		MaxWorkers:         runtime.NumCPU(),
		MinKeysForParallel: 4,
	}
}

// Prefetch warms the cache for keys, decoding records concurrently. Keys
// with nothing stored are skipped. A typical use is priming a freshly
// attached slab with a directory's worth of nodes before serving reads.
//
// Record reads and decoding run outside the cache lock; the rope store is
// only read, never written, so the workers are safe among themselves.
// Prefetch must not run concurrently with writes through the same slab.
func (s *Slab[T]) Prefetch(keys []int, config *PrefetchConfig) error {
	if len(keys) == 0 {
		return nil
	}
	cfg := DefaultPrefetchConfig()
	if config != nil {
		cfg = *config
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	ropes := s.ropes
	s.mu.Unlock()
	if ropes == nil {
		return nil
	}

	if len(keys) < cfg.MinKeysForParallel {
		for _, key := range keys {
			if err := s.prefetchOne(ropes, key); err != nil {
				return err
			}
		}
		return nil
	}

	numWorkers := cfg.MaxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(keys) {
		numWorkers = len(keys)
	}

	var wg sync.WaitGroup
	jobChan := make(chan int, len(keys))
	errChan := make(chan error, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobChan {
				if err := s.prefetchOne(ropes, key); err != nil {
					select {
					case errChan <- err:
					default:
					}
					return
				}
			}
		}()
	}

	for _, key := range keys {
		jobChan <- key
	}
	close(jobChan)

	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return err
	}
	return nil
}

// prefetchOne pulls a single key, keeping the version read, record read,
// and decode outside the cache lock.
func (s *Slab[T]) prefetchOne(ropes *Ropes, key int) error {
	ver, err := ropes.VersionOf(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	e, ok := s.cache[key]
	s.mu.Unlock()
	if ok && e.ver == ver {
		return nil
	}
	if ver == 0 {
		return nil
	}
	data, err := ropes.Get(key)
	if err != nil {
		return err
	}
	fresh := &entry[T]{ver: ver}
	if err := s.codec.Decode(data, &fresh.val); err != nil {
		return &DecodeError{Key: key, Err: err}
	}
	s.mu.Lock()
	s.cache[key] = fresh
	s.mu.Unlock()
	return nil
}
