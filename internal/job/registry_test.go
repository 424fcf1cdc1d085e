package job

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagd-dev/tagd/internal/source"
)

func registryJob(fileID uint32) *Job {
	return New(source.List{testVariant(fileID, "/src/a.cc")}, 0, "/proj", nil, newFakeEnv())
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	j := registryJob(1)

	require.NoError(t, r.Register(j.Key(), j))
	assert.Same(t, j, r.Get(j.Key()))
	assert.True(t, r.IsActive(j.Key()))
	assert.Equal(t, 1, r.Len())
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	a := registryJob(1)
	b := registryJob(1)

	require.NoError(t, r.Register(a.Key(), a))
	err := r.Register(b.Key(), b)
	assert.ErrorIs(t, err, ErrAlreadyActive)
	assert.Same(t, a, r.Get(a.Key()))
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	j := registryJob(1)
	require.NoError(t, r.Register(j.Key(), j))

	got := r.Unregister(j.Key())
	assert.Same(t, j, got)
	assert.Nil(t, r.Get(j.Key()))
	assert.Nil(t, r.Unregister(j.Key()))
	assert.Equal(t, 0, r.Len())
}

func TestUnregisterIfChecksIdentity(t *testing.T) {
	r := NewRegistry()
	old := registryJob(1)
	require.NoError(t, r.Register(old.Key(), old))

	// A reindex takes over the key.
	r.Unregister(old.Key())
	replacement := registryJob(1)
	require.NoError(t, r.Register(replacement.Key(), replacement))

	// The superseded job must not evict its replacement.
	assert.False(t, r.UnregisterIf(old.Key(), old.ID))
	assert.Same(t, replacement, r.Get(replacement.Key()))

	assert.True(t, r.UnregisterIf(replacement.Key(), replacement.ID))
	assert.Nil(t, r.Get(replacement.Key()))
	assert.False(t, r.UnregisterIf(replacement.Key(), replacement.ID))
}

func TestIsActiveZeroKey(t *testing.T) {
	// Key zero means "no job" and always passes the membership check.
	r := NewRegistry()
	assert.True(t, r.IsActive(0))
	assert.False(t, r.IsActive(1))
}

func TestForEach(t *testing.T) {
	r := NewRegistry()
	a := registryJob(1)
	b := registryJob(2)
	require.NoError(t, r.Register(a.Key(), a))
	require.NoError(t, r.Register(b.Key(), b))

	seen := make(map[uint64]*Job)
	r.ForEach(func(key uint64, j *Job) { seen[key] = j })
	assert.Len(t, seen, 2)
	assert.Same(t, a, seen[a.Key()])
}

func TestConcurrentRegisterAtMostOneWins(t *testing.T) {
	r := NewRegistry()
	const goroutines = 32

	var wg sync.WaitGroup
	wins := make(chan *Job, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j := registryJob(5)
			if r.Register(j.Key(), j) == nil {
				wins <- j
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []*Job
	for j := range wins {
		winners = append(winners, j)
	}
	require.Len(t, winners, 1)
	assert.Same(t, winners[0], r.Get(5))
}
