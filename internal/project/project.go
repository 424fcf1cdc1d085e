package project

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tagd-dev/tagd/internal/config"
	"github.com/tagd-dev/tagd/internal/filemap"
	"github.com/tagd-dev/tagd/internal/graph"
	"github.com/tagd-dev/tagd/internal/job"
	"github.com/tagd-dev/tagd/internal/source"
	"github.com/tagd-dev/tagd/internal/storage"
	"github.com/tagd-dev/tagd/pkg/types"
)

// Project owns all indexing state for one project root.
//
// One mutex guards the in-memory maps; the critical sections are pure
// check-and-set, all I/O (filemap writes, snapshot saves) happens outside
// the lock. The active-job registry and dependency graph carry their own
// locks and are only ever acquired after (never around) the project mutex.
type Project struct {
	path     string
	opts     *config.Options
	paths    *types.PathTable
	fileMaps *filemap.Store
	store    *storage.ProjectStore
	logger   *slog.Logger
	env      job.Env
	dispatch func(*job.Job)

	activeJobs *job.Registry
	deps       *graph.Graph

	mu             sync.Mutex
	onStoreChanged func()
	files          map[uint32]storage.FileEntry
	sources        map[uint32]source.List
	visited        map[uint32]string
	suspended      map[uint32]struct{}
	fixIts         map[uint32]string
	pendingDirty   map[uint32]struct{}
	dirtyTimer     *time.Timer
	jobsStarted    int
}

// New creates a Project. store may be nil (no persistence); dispatch is
// invoked for every job entering the registry and must not block.
func New(path string, opts *config.Options, paths *types.PathTable, fileMaps *filemap.Store,
	store *storage.ProjectStore, logger *slog.Logger, env job.Env, dispatch func(*job.Job)) *Project {
	if logger == nil {
		logger = slog.Default()
	}
	return &Project{
		path:         path,
		opts:         opts,
		paths:        paths,
		fileMaps:     fileMaps,
		store:        store,
		logger:       logger.With(slog.String("project", path)),
		env:          env,
		dispatch:     dispatch,
		activeJobs:   job.NewRegistry(),
		deps:         graph.New(),
		files:        make(map[uint32]storage.FileEntry),
		sources:      make(map[uint32]source.List),
		visited:      make(map[uint32]string),
		suspended:    make(map[uint32]struct{}),
		fixIts:       make(map[uint32]string),
		pendingDirty: make(map[uint32]struct{}),
	}
}

// Path returns the project root.
func (p *Project) Path() string { return p.path }

// SetOnStoreChanged registers a hook invoked after the symbol store
// changes, whether by a merged result or a removal. Callers use it to drop
// caches derived from the store. The hook runs without the project lock
// held and must be set before jobs start.
func (p *Project) SetOnStoreChanged(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onStoreChanged = fn
}

func (p *Project) notifyStoreChanged() {
	p.mu.Lock()
	fn := p.onStoreChanged
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// DependencyGraph returns the project's include graph.
func (p *Project) DependencyGraph() *graph.Graph { return p.deps }

// Registry returns the active-job registry.
func (p *Project) Registry() *job.Registry { return p.activeJobs }

// FileMaps returns the persistent symbol-map store.
func (p *Project) FileMaps() *filemap.Store { return p.fileMaps }

// Load restores persisted state: the file table, source map and dependency
// edges. File ids are re-installed into the path table so they stay stable
// across restarts.
func (p *Project) Load(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	snap, err := p.store.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load project %s: %w", p.path, err)
	}
	p.mu.Lock()
	for id, entry := range snap.Files {
		p.paths.Restore(id, entry.Path)
		p.files[id] = entry
	}
	for id, list := range snap.Sources {
		p.sources[id] = list
	}
	p.mu.Unlock()
	p.deps.AddBatch(snap.Dependencies)
	p.logger.Info("project loaded",
		slog.Int("files", len(snap.Files)),
		slog.Int("sources", len(snap.Sources)))
	return nil
}

// Save persists the current state.
func (p *Project) Save(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	p.mu.Lock()
	snap := p.snapshotLocked()
	p.mu.Unlock()
	return p.store.SaveSnapshot(ctx, snap)
}

// snapshotLocked assembles a Snapshot; caller holds p.mu.
func (p *Project) snapshotLocked() *storage.Snapshot {
	snap := &storage.Snapshot{
		Files:   make(map[uint32]storage.FileEntry, len(p.files)),
		Sources: make(map[uint32]source.List, len(p.sources)),
	}
	for id, entry := range p.files {
		snap.Files[id] = entry
	}
	for id, list := range p.sources {
		snap.Sources[id] = list
	}
	snap.Dependencies = p.deps.Edges()
	return snap
}

// Index puts j in flight. An active job under the same source key is
// superseded: aborted, its file claims released, then the new job takes the
// key. The dispatch hook runs after registration.
func (p *Project) Index(j *job.Job) {
	key := j.Key()
	if old := p.activeJobs.Unregister(key); old != nil {
		old.SetFlag(job.Aborted)
		p.ReleaseFileIDs(old.VisitedIDs())
		p.logger.Debug("superseding active job",
			slog.Uint64("old_id", old.ID),
			slog.Uint64("new_id", j.ID),
			slog.String("file", j.SourceFile))
	}
	if err := p.activeJobs.Register(key, j); err != nil {
		// Unreachable after the unregister above; bail rather than dispatch
		// a job that never entered the registry.
		p.logger.Error("job registration failed", slog.Uint64("id", j.ID))
		return
	}

	fileID := j.FileID()
	p.mu.Lock()
	p.sources[fileID] = j.Variants
	p.files[fileID] = storage.FileEntry{Path: j.SourceFile, IsSystem: types.IsSystemPath(j.SourceFile)}
	p.jobsStarted++
	p.mu.Unlock()

	if p.dispatch != nil {
		p.dispatch(j)
	}
}

// VisitFile claims fileID for the current indexing pass. The first caller
// with a given id wins and gets true; later callers see the non-empty path
// and get false. A non-zero jobKey must name an active job — anything else
// is a programming error and panics.
func (p *Project) VisitFile(fileID uint32, path string, jobKey uint64) bool {
	if fileID == 0 {
		panic("project: visitFile with zero file id")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.visited[fileID]; ok && existing != "" {
		return false
	}
	p.visited[fileID] = path
	if jobKey != 0 {
		j := p.activeJobs.Get(jobKey)
		if j == nil {
			panic(fmt.Sprintf("project: visitFile for job key %d not in active registry", jobKey))
		}
		j.AddVisited(fileID)
	}
	return true
}

// ReleaseFileIDs removes claims so a future job can reclaim the files.
// Called when a job aborts. No-op on an empty set.
func (p *Project) ReleaseFileIDs(fileIDs []uint32) {
	if len(fileIDs) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range fileIDs {
		delete(p.visited, id)
	}
}

// VisitedFiles returns a copy of the visited-file map.
func (p *Project) VisitedFiles() map[uint32]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[uint32]string, len(p.visited))
	for id, path := range p.visited {
		out[id] = path
	}
	return out
}

// OnJobFinished merges the parser result for j and removes it from the
// registry. This is the single point where in-memory state becomes durable.
// Delivery is idempotent: if j no longer holds its registry slot (already
// merged, or superseded) nothing is applied. An aborted job releases its
// claims and merges nothing.
func (p *Project) OnJobFinished(ctx context.Context, j *job.Job, data *IndexData) error {
	key := j.Key()
	if j.Flags().Has(job.Aborted) {
		if p.activeJobs.UnregisterIf(key, j.ID) {
			p.ReleaseFileIDs(j.VisitedIDs())
			p.logger.Debug("aborted job discarded", slog.Uint64("id", j.ID))
		}
		return nil
	}

	// Claim the registry slot and commit in one step. Checking identity and
	// unregistering separately leaves a window where a reindex supersedes the
	// key in between: the stale result would merge anyway and the removal
	// would evict the replacement.
	if !p.activeJobs.UnregisterIf(key, j.ID) {
		p.logger.Debug("dropping stale job result", slog.Uint64("id", j.ID))
		return nil
	}

	newFiles := p.deps.AddBatch(data.Dependencies)

	p.mu.Lock()
	for id, path := range data.Visited {
		if path == "" {
			continue
		}
		p.files[id] = storage.FileEntry{Path: path, IsSystem: types.IsSystemPath(path)}
	}
	for id, text := range data.FixIts {
		if text == "" {
			delete(p.fixIts, id)
		} else {
			p.fixIts[id] = text
		}
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	for fileID, fd := range data.Files {
		if err := p.fileMaps.Write(fileID, fd); err != nil {
			return fmt.Errorf("persist symbol maps for file %d: %w", fileID, err)
		}
	}

	j.ClearFlag(job.Running)
	j.SetFlag(job.Complete)

	if p.store != nil {
		if err := p.store.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save project snapshot: %w", err)
		}
	}
	p.notifyStoreChanged()

	p.logger.Info("job merged",
		slog.Uint64("id", j.ID),
		slog.String("file", j.SourceFile),
		slog.Int("new_files", len(newFiles)),
		slog.Int("indexed_files", len(data.Files)))
	return nil
}

// Reindex enqueues new jobs for every known source whose path matches.
// Files with an active job are left alone. Returns the number of files
// enqueued.
func (p *Project) Reindex(match Match, unsaved map[string][]byte) int {
	p.mu.Lock()
	var toIndex []uint32
	for fileID, list := range p.sources {
		if len(list) == 0 || !match.IsMatch(list[0].Path) {
			continue
		}
		if p.activeJobs.IsActive(list[0].Key()) {
			continue
		}
		toIndex = append(toIndex, fileID)
	}
	p.mu.Unlock()

	for _, fileID := range toIndex {
		p.mu.Lock()
		list := p.sources[fileID]
		p.mu.Unlock()
		if len(list) == 0 {
			continue
		}
		p.Index(job.New(list, job.Reindex, p.path, unsaved, p.env))
	}
	return len(toIndex)
}

// Remove drops every matching file from the source map, the dependency
// graph and the symbol store, releasing its file id. Active jobs for
// removed files are aborted. Returns the number of files removed.
func (p *Project) Remove(match Match) int {
	p.mu.Lock()
	var toRemove []uint32
	for fileID, list := range p.sources {
		if len(list) > 0 && match.IsMatch(list[0].Path) {
			toRemove = append(toRemove, fileID)
		}
	}
	for _, fileID := range toRemove {
		delete(p.sources, fileID)
		delete(p.files, fileID)
		delete(p.visited, fileID)
		delete(p.fixIts, fileID)
		delete(p.suspended, fileID)
	}
	p.mu.Unlock()

	for _, fileID := range toRemove {
		if old := p.activeJobs.Unregister(uint64(fileID)); old != nil {
			old.SetFlag(job.Aborted)
			p.ReleaseFileIDs(old.VisitedIDs())
		}
		p.deps.Remove(fileID)
		if err := p.fileMaps.Remove(fileID); err != nil {
			p.logger.Warn("failed to drop symbol maps",
				slog.Uint64("file", uint64(fileID)), slog.String("error", err.Error()))
		}
	}
	if len(toRemove) > 0 {
		p.notifyStoreChanged()
	}
	return len(toRemove)
}

// OnFileModifiedOrRemoved accumulates a modification notification.
// Notifications coalesce through a debounce window so an editor save burst
// becomes one job per file.
func (p *Project) OnFileModifiedOrRemoved(path string) {
	fileID := p.paths.ID(path)
	if fileID == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.suspended[fileID]; ok {
		return
	}
	p.pendingDirty[fileID] = struct{}{}
	if p.dirtyTimer != nil {
		p.dirtyTimer.Stop()
	}
	p.dirtyTimer = time.AfterFunc(p.opts.DirtyTimeout, p.onDirtyTimeout)
}

func (p *Project) onDirtyTimeout() {
	p.mu.Lock()
	pending := p.pendingDirty
	p.pendingDirty = make(map[uint32]struct{})
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}
	ids := make([]uint32, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	started := p.StartDirtyJobs(ids, nil)
	p.logger.Debug("dirty batch drained",
		slog.Int("pending", len(pending)), slog.Int("started", started))
}

// StartDirtyJobs enqueues Dirty jobs for the given files and for every
// source that transitively includes them. Suspended files and files with an
// active job are skipped. Returns the number of jobs started.
func (p *Project) StartDirtyJobs(fileIDs []uint32, unsaved map[string][]byte) int {
	dirty := make(map[uint32]struct{})
	for _, id := range fileIDs {
		for dep := range p.deps.Dependencies(id, graph.ArgDependsOn) {
			dirty[dep] = struct{}{}
		}
		dirty[id] = struct{}{}
	}

	started := 0
	for fileID := range dirty {
		p.mu.Lock()
		_, isSuspended := p.suspended[fileID]
		list := p.sources[fileID]
		p.mu.Unlock()
		if isSuspended || len(list) == 0 {
			continue
		}
		p.Index(job.New(list, job.Dirty, p.path, unsaved, p.env))
		started++
	}
	return started
}

// ToggleSuspendFile flips the suspended state and returns the new state.
func (p *Project) ToggleSuspendFile(fileID uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.suspended[fileID]; ok {
		delete(p.suspended, fileID)
		return false
	}
	p.suspended[fileID] = struct{}{}
	return true
}

// IsSuspended reports whether fileID is suspended.
func (p *Project) IsSuspended(fileID uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.suspended[fileID]
	return ok
}

// ClearSuspendedFiles resumes every suspended file.
func (p *Project) ClearSuspendedFiles() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = make(map[uint32]struct{})
}

// SuspendedFiles returns the suspended file ids in ascending order.
func (p *Project) SuspendedFiles() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, 0, len(p.suspended))
	for id := range p.suspended {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FixIts returns the fix-it text for fileID, if any.
func (p *Project) FixIts(fileID uint32) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fixIts[fileID]
}

// Sources returns the compile variants known for fileID.
func (p *Project) Sources(fileID uint32) source.List {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sources[fileID]
}

// IsIndexed reports whether fileID has been through an indexing pass.
func (p *Project) IsIndexed(fileID uint32) bool {
	p.mu.Lock()
	_, hasSource := p.sources[fileID]
	p.mu.Unlock()
	return hasSource || p.deps.Contains(fileID)
}

// IsIndexing reports whether any job is in flight.
func (p *Project) IsIndexing() bool { return p.activeJobs.Len() > 0 }

// Dependencies returns the transitive include closure of fileID.
func (p *Project) Dependencies(fileID uint32, mode graph.DependencyMode) map[uint32]struct{} {
	return p.deps.Dependencies(fileID, mode)
}

// FileIDs returns every file id the project knows about.
func (p *Project) FileIDs() []uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uint32, 0, len(p.files))
	for id := range p.files {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FindSymbol looks up the symbol at an exact location.
func (p *Project) FindSymbol(loc types.Location) (types.Symbol, bool) {
	symbols, err := p.fileMaps.OpenSymbols(loc.FileID)
	if err != nil {
		p.logger.Warn("open symbols failed",
			slog.Uint64("file", uint64(loc.FileID)), slog.String("error", err.Error()))
		return types.Symbol{}, false
	}
	return symbols.Lookup(loc)
}

// FindSymbols drives the project-wide consolidated name index: for every
// known file's symnames map, names accepted by match are merged across
// files and delivered to cb in ascending name order together with all
// contributing locations.
func (p *Project) FindSymbols(match func(name string) bool, cb func(name string, locations []types.Location)) {
	merged := make(map[string][]types.Location)
	for _, fileID := range p.FileIDs() {
		names, err := p.fileMaps.OpenSymbolNames(fileID)
		if err != nil {
			p.logger.Warn("open symnames failed",
				slog.Uint64("file", uint64(fileID)), slog.String("error", err.Error()))
			continue
		}
		for i := 0; i < names.Count(); i++ {
			name := names.KeyAt(i)
			if !match(name) {
				continue
			}
			merged[name] = append(merged[name], names.ValueAt(i)...)
		}
	}
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		locations := merged[name]
		types.SortLocations(locations)
		cb(name, locations)
	}
}

// FilePath resolves a file id through the path table.
func (p *Project) FilePath(fileID uint32) string { return p.paths.Path(fileID) }

// FileID resolves a path, returning 0 for unknown files.
func (p *Project) FileID(path string) uint32 { return p.paths.ID(path) }
