package job

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/tagd-dev/tagd/internal/config"
	"github.com/tagd-dev/tagd/internal/graph"
	"github.com/tagd-dev/tagd/internal/source"
	"github.com/tagd-dev/tagd/internal/wire"
	"github.com/tagd-dev/tagd/pkg/types"
)

// DatabaseVersion is the protocol/database version tag at the head of every
// dispatch payload. Bump whenever the payload layout or the stored map
// format changes.
const DatabaseVersion uint16 = 127

// Env is the slice of daemon state a job needs for priority scoring and
// payload encoding. The server implements it; jobs hold it as a back
// reference, never the other way around.
type Env interface {
	Options() *config.Options
	BufferState(fileID uint32) types.BufferState
	DependencyGraph(projectPath string) *graph.Graph
	CurrentProjectPath() string
	FilePath(fileID uint32) string
	// VisitedFiles returns the project's visited-file map. ok is false when
	// the project cannot be resolved.
	VisitedFiles(projectPath string) (map[uint32]string, bool)
	CompilerIncludePaths(compiler string) []string
	FixPCH(projectPath string, v *source.Variant)
}

// nextID is the process-wide job id counter. The first job gets id 1; the
// counter resets only at process start.
var nextID atomic.Uint64

// Job is one unit of indexing work. The registry owns it while in flight.
type Job struct {
	ID             uint64
	SourceFile     string
	ProjectPath    string
	Variants       source.List
	UnsavedBuffers map[string][]byte

	env Env

	score atomic.Int64 // last computed priority, readable lock-free

	mu            sync.Mutex
	flags         Flag
	crashCount    int
	visited       map[uint32]struct{}
	priorityValid bool
}

// New builds a job from a non-empty variant list, deduplicating
// argument-equivalent variants (first occurrence wins). Panics on an empty
// list: that is a programming error, not a runtime condition.
func New(variants source.List, flags Flag, projectPath string, unsaved map[string][]byte, env Env) *Job {
	if len(variants) == 0 {
		panic("job: constructed from empty variant list")
	}
	deduped := variants.Deduplicate()
	j := &Job{
		ID:             nextID.Add(1),
		SourceFile:     deduped[0].Path,
		ProjectPath:    projectPath,
		Variants:       deduped,
		UnsavedBuffers: unsaved,
		env:            env,
		flags:          flags,
		visited:        map[uint32]struct{}{deduped[0].FileID: {}},
	}
	return j
}

// Key returns the registry key: the primary variant's source key.
func (j *Job) Key() uint64 { return j.Variants[0].Key() }

// FileID returns the primary variant's file id.
func (j *Job) FileID() uint32 { return j.Variants[0].FileID }

// Flags returns the current flag set.
func (j *Job) Flags() Flag {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flags
}

// SetFlag sets bits in the flag set.
func (j *Job) SetFlag(bits Flag) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flags |= bits
}

// ClearFlag clears bits in the flag set.
func (j *Job) ClearFlag(bits Flag) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.flags &^= bits
}

// AddVisited records that the job claimed fileID.
func (j *Job) AddVisited(fileID uint32) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.visited[fileID] = struct{}{}
}

// VisitedIDs returns the file ids the job has claimed so far.
func (j *Job) VisitedIDs() []uint32 {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]uint32, 0, len(j.visited))
	for id := range j.visited {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// CrashCount returns how many times the job's parser has crashed.
func (j *Job) CrashCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.crashCount
}

// IncrementCrashCount bumps the crash counter and returns the new value.
func (j *Job) IncrementCrashCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.crashCount++
	return j.crashCount
}

// Priority returns the job's dispatch priority, higher meaning more urgent.
// The score is memoized: it reflects external state as of the last
// computation and only RecalculatePriority refreshes it.
func (j *Job) Priority() int {
	j.mu.Lock()
	valid := j.priorityValid
	j.mu.Unlock()
	if !valid {
		j.RecalculatePriority()
	}
	return int(j.score.Load())
}

// CachedPriority returns the last computed score without consulting
// external state. Queue pulls read this while holding the scheduler lock;
// the env callbacks in computePriority must never run there.
func (j *Job) CachedPriority() int { return int(j.score.Load()) }

// RecalculatePriority recomputes the score from external state and
// publishes it. Called when buffer or current-project state changes.
func (j *Job) RecalculatePriority() {
	s := j.computePriority()
	j.score.Store(int64(s))
	j.mu.Lock()
	j.priorityValid = true
	j.mu.Unlock()
}

// computePriority consults the env, which may take its own locks; the
// caller must hold neither j.mu nor any lock an env callback acquires.
func (j *Job) computePriority() int {
	ret := 0
	flags := j.Flags()
	if flags.Has(Dirty) {
		ret++
	} else if flags.Has(Reindex) {
		ret += 4
	}

	fileID := j.Variants[0].FileID
	switch j.env.BufferState(fileID) {
	case types.BufferActive:
		ret += 8
	case types.BufferOpen:
		ret += 3
	case types.BufferInactive:
		// An inactive file still jumps the queue a little when something
		// in its include closure is open in an editor. System headers are
		// reachable from everything, so they never qualify.
		if g := j.env.DependencyGraph(j.ProjectPath); g != nil {
			hit := g.WalkIncludes(fileID, func(n *graph.Node) bool {
				if types.IsSystemPath(j.env.FilePath(n.FileID)) {
					return false
				}
				return j.env.BufferState(n.FileID) != types.BufferInactive
			})
			if hit {
				ret += 2
			}
		}
	}

	if j.env.CurrentProjectPath() == j.ProjectPath {
		ret++
	}
	return ret
}

// Encode produces the self-contained dispatch payload for the external
// parser. The layout is fixed protocol; see the wire package. Panics when
// the owning project cannot be resolved — encoding a job for a project the
// daemon no longer knows is a programming error.
func (j *Job) Encode() []byte {
	opts := j.env.Options()
	visited, ok := j.env.VisitedFiles(j.ProjectPath)
	if !ok {
		panic(fmt.Sprintf("job %d: project %s cannot be resolved at encode time", j.ID, j.ProjectPath))
	}

	s := wire.NewSerializer()
	s.WriteUint16(DatabaseVersion)
	s.WriteString(opts.SandboxRoot)
	s.WriteUint64(j.ID)
	s.WriteString(opts.SocketFile)
	s.WriteString(j.ProjectPath)
	s.WriteUint32(uint32(len(j.Variants)))
	for _, v := range j.Variants {
		c := v.Clone()
		j.applyArgumentPolicy(c, opts)
		c.Encode(s)
	}
	s.WriteString(j.SourceFile)
	s.WriteUint32(uint32(j.Flags()))
	s.WriteUint32(opts.VisitFileTimeout)
	s.WriteUint32(opts.IndexDataMessageTimeout)
	s.WriteUint32(opts.ConnectTimeout)
	s.WriteUint32(opts.ConnectAttempts)
	s.WriteInt32(opts.NiceValue)
	s.WriteUint32(opts.Flags)
	s.WriteStringByteMap(j.UnsavedBuffers)
	s.WriteString(opts.DataDir)
	s.WriteStringList(opts.DebugLocations)
	s.WriteVisitedMap(visited)
	return s.Finish()
}

// applyArgumentPolicy rewrites a variant copy with the daemon-wide argument
// adjustments before it goes on the wire. Order matters and is part of the
// protocol contract.
func (j *Job) applyArgumentPolicy(v *source.Variant, opts *config.Options) {
	if !opts.HasFlag(config.AllowWErrorAndWFatalErrors) {
		v.RemoveArgument("-Werror")
		v.RemoveArgument("-Wfatal-errors")
	}
	v.Arguments = append(v.Arguments, opts.DefaultArguments...)
	if !opts.HasFlag(config.AllowPedantic) {
		v.RemoveArgument("-Wpedantic")
	}
	if opts.HasFlag(config.EnableCompilerManager) {
		v.IncludePaths = append(v.IncludePaths, j.env.CompilerIncludePaths(v.Compiler)...)
	}
	for _, blocked := range opts.BlockedArguments {
		v.RemoveArgument(blocked)
	}
	v.IncludePaths = append(slices.Clone(opts.IncludePaths), v.IncludePaths...)
	if opts.HasFlag(config.PCHEnabled) {
		j.env.FixPCH(j.ProjectPath, v)
	}
	for _, d := range opts.Defines {
		v.AddDefine(d)
	}
	if !opts.HasFlag(config.EnableNDEBUG) {
		v.RemoveDefine("NDEBUG")
	}
}
