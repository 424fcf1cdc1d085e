package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagd-dev/tagd/internal/source"
)

func openTestStore(t *testing.T) *ProjectStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "project.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLoadEmptyDatabase(t *testing.T) {
	store := openTestStore(t)
	snap, err := store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Files)
	assert.Empty(t, snap.Sources)
	assert.Empty(t, snap.Dependencies)
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snap := &Snapshot{
		Files: map[uint32]FileEntry{
			1: {Path: "/src/main.cc"},
			2: {Path: "/usr/include/stdio.h", IsSystem: true},
		},
		Sources: map[uint32]source.List{
			1: {
				{FileID: 1, Path: "/src/main.cc", Compiler: "clang++", Arguments: []string{"-O2"}},
				{FileID: 1, Path: "/src/main.cc", Compiler: "clang++", Arguments: []string{"-O0", "-g"}},
			},
		},
		Dependencies: map[uint32][]uint32{1: {2}},
	}
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, snap.Files, loaded.Files)
	assert.Equal(t, snap.Dependencies, loaded.Dependencies)

	require.Len(t, loaded.Sources[1], 2)
	// Variant order is preserved.
	assert.Equal(t, []string{"-O2"}, loaded.Sources[1][0].Arguments)
	assert.Equal(t, []string{"-O0", "-g"}, loaded.Sources[1][1].Arguments)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, &Snapshot{
		Files:        map[uint32]FileEntry{1: {Path: "/src/old.cc"}},
		Dependencies: map[uint32][]uint32{1: {1}},
	}))
	require.NoError(t, store.SaveSnapshot(ctx, &Snapshot{
		Files: map[uint32]FileEntry{2: {Path: "/src/new.cc"}},
	}))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[uint32]FileEntry{2: {Path: "/src/new.cc"}}, loaded.Files)
	assert.Empty(t, loaded.Dependencies)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "project.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(context.Background(), &Snapshot{
		Files: map[uint32]FileEntry{1: {Path: "/src/a.cc"}},
	}))
	require.NoError(t, store.Close())

	// Reopening runs migrations again and keeps existing data.
	store, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	loaded, err := store.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded.Files, 1)
}

func TestBuildInfoExported(t *testing.T) {
	assert.NotEmpty(t, DriverName)
	assert.NotEmpty(t, BuildMode)
}
