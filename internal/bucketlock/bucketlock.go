package bucketlock

import "sync"

// Registry hands out one mutex per bucket. The backup engine holds a bucket's
// lock across its list-then-upload sequence, and dedup holds it for a whole
// reconciliation pass, so the two never interleave on the same bucket.
type Registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{locks: make(map[string]*sync.Mutex)}
}

func (r *Registry) Lock(bucket string) {
	r.get(bucket).Lock()
}

func (r *Registry) Unlock(bucket string) {
	r.get(bucket).Unlock()
}

func (r *Registry) get(bucket string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.locks[bucket]
	if !ok {
		m = &sync.Mutex{}
		r.locks[bucket] = m
	}
	return m
}
