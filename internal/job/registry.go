package job

import (
	"errors"
	"sync"
)

// ErrAlreadyActive is returned when a key already has an in-flight job.
var ErrAlreadyActive = errors.New("job: source key already has an active job")

// Registry is the active-job registry: at most one in-flight job per source
// key. All access goes through one mutex.
type Registry struct {
	mu   sync.Mutex
	jobs map[uint64]*Job
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[uint64]*Job)}
}

// Register claims key for j. Fails with ErrAlreadyActive if another job
// holds the key.
func (r *Registry) Register(key uint64, j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[key]; ok {
		return ErrAlreadyActive
	}
	r.jobs[key] = j
	return nil
}

// IsActive reports whether key has an in-flight job. Key zero means "no
// job" and is always considered active, matching the visitFile contract
// where a zero job key skips the membership check.
func (r *Registry) IsActive(key uint64) bool {
	if key == 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[key]
	return ok
}

// Get returns the job holding key, or nil.
func (r *Registry) Get(key uint64) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[key]
}

// Unregister removes and returns the job holding key, or nil. Ownership
// passes to the caller, which destroys the job or releases its claims.
func (r *Registry) Unregister(key uint64) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[key]
	delete(r.jobs, key)
	return j
}

// UnregisterIf removes the job holding key only when it is still the job
// with jobID, and reports whether it did. A finishing job must use this
// rather than Get-then-Unregister: between the two calls a reindex can
// supersede the key, and an unconditional removal would evict the
// replacement.
func (r *Registry) UnregisterIf(key, jobID uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[key]
	if !ok || j.ID != jobID {
		return false
	}
	delete(r.jobs, key)
	return true
}

// Len returns the number of in-flight jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// ForEach calls fn for every in-flight job under the registry lock. fn
// must not call back into the registry.
func (r *Registry) ForEach(fn func(key uint64, j *Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, j := range r.jobs {
		fn(key, j)
	}
}
