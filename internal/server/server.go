package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tagd-dev/tagd/internal/config"
	"github.com/tagd-dev/tagd/internal/filemap"
	"github.com/tagd-dev/tagd/internal/graph"
	"github.com/tagd-dev/tagd/internal/job"
	"github.com/tagd-dev/tagd/internal/project"
	"github.com/tagd-dev/tagd/internal/query"
	"github.com/tagd-dev/tagd/internal/source"
	"github.com/tagd-dev/tagd/internal/storage"
	"github.com/tagd-dev/tagd/pkg/types"
)

// Parser is the out-of-process C/C++ parser as seen from the daemon: it
// consumes an encoded job payload and produces index data. A returned error
// counts as a crash and drives the bounded retry.
type Parser interface {
	Index(ctx context.Context, payload []byte) (*project.IndexData, error)
}

// Server is the long-lived orchestrator.
type Server struct {
	opts   *config.Options
	paths  *types.PathTable
	logger *slog.Logger
	parser Parser

	fileMaps *filemap.Store

	mu          sync.Mutex
	cond        *sync.Cond
	projects    map[string]*project.Project
	engines     map[string]*query.Engine
	current     *project.Project
	buffers     map[uint32]types.BufferState
	pending     []*job.Job
	pchPaths    map[string]string // header path -> precompiled header path
	compilerInc map[string][]string
	closed      bool
}

// New creates a Server. parser must not be nil.
func New(opts *config.Options, parser Parser, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fileMaps, err := openFileMaps(opts)
	if err != nil {
		return nil, err
	}
	s := &Server{
		opts:        opts,
		paths:       types.NewPathTable(),
		logger:      logger,
		parser:      parser,
		fileMaps:    fileMaps,
		projects:    make(map[string]*project.Project),
		engines:     make(map[string]*query.Engine),
		buffers:     make(map[uint32]types.BufferState),
		pchPaths:    make(map[string]string),
		compilerInc: make(map[string][]string),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func openFileMaps(opts *config.Options) (*filemap.Store, error) {
	if opts.DataDir == "" {
		return filemap.OpenInMemory()
	}
	dir := filepath.Join(opts.DataDir, "filemaps")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return filemap.Open(dir)
}

// Close flushes and closes all stores and wakes the dispatch workers.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	return s.fileMaps.Close()
}

// AddProject opens (or returns) the project rooted at path, restoring its
// persisted state.
func (s *Server) AddProject(ctx context.Context, path string) (*project.Project, error) {
	s.mu.Lock()
	if p, ok := s.projects[path]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	var store *storage.ProjectStore
	if s.opts.DataDir != "" {
		dir := filepath.Join(s.opts.DataDir, "projects", projectDirName(path))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create project dir: %w", err)
		}
		var err error
		store, err = storage.Open(filepath.Join(dir, "project.db"))
		if err != nil {
			return nil, err
		}
	}

	p := project.New(path, s.opts, s.paths, s.fileMaps, store, s.logger, s, s.enqueue)
	if err := p.Load(ctx); err != nil {
		return nil, err
	}

	engine := query.NewEngine(p)
	p.SetOnStoreChanged(engine.Invalidate)

	s.mu.Lock()
	s.projects[path] = p
	s.engines[path] = engine
	if s.current == nil {
		s.current = p
	}
	s.mu.Unlock()
	s.logger.Info("project added", slog.String("path", path))
	return p, nil
}

// projectDirName keeps on-disk project directories flat and collision-free.
func projectDirName(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// Project returns the project rooted at path, or nil.
func (s *Server) Project(path string) *project.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projects[path]
}

// SetCurrentProject switches the active project and refreshes the cached
// priorities of queued jobs.
func (s *Server) SetCurrentProject(path string) {
	s.mu.Lock()
	if p, ok := s.projects[path]; ok {
		s.current = p
	}
	queued := make([]*job.Job, len(s.pending))
	copy(queued, s.pending)
	s.mu.Unlock()
	for _, j := range queued {
		j.RecalculatePriority()
	}
}

// SetBufferState classifies path's editor activity and refreshes queued-job
// priorities. Demoting a previously Active buffer is done by setting it
// Open or Inactive.
func (s *Server) SetBufferState(path string, state types.BufferState) {
	fileID := s.paths.Intern(path)
	s.mu.Lock()
	if state == types.BufferInactive {
		delete(s.buffers, fileID)
	} else {
		s.buffers[fileID] = state
	}
	queued := make([]*job.Job, len(s.pending))
	copy(queued, s.pending)
	s.mu.Unlock()
	for _, j := range queued {
		j.RecalculatePriority()
	}
}

// Index builds a job for the given compile variants and hands it to the
// owning project. Paths are interned here so variants always carry file
// ids.
func (s *Server) Index(projectPath string, variants source.List, flags job.Flag, unsaved map[string][]byte) (*job.Job, error) {
	p := s.Project(projectPath)
	if p == nil {
		return nil, fmt.Errorf("unknown project %s", projectPath)
	}
	for _, v := range variants {
		if v.FileID == 0 {
			v.FileID = s.paths.Intern(v.Path)
		}
	}
	j := job.New(variants, flags, projectPath, unsaved, s)
	p.Index(j)
	return j, nil
}

// ListSymbols runs a list-symbols query against projectPath.
func (s *Server) ListSymbols(projectPath string, q query.Query, w io.Writer) int {
	s.mu.Lock()
	engine := s.engines[projectPath]
	s.mu.Unlock()
	if engine == nil {
		return 1
	}
	return engine.ListSymbols(q, w)
}

// enqueue is the dispatch hook given to projects: the job is already
// registered; here it only joins the priority queue. The priority is
// primed before taking s.mu: computing it calls back into the Env, and
// takeNext reads only the cached score under the lock.
func (s *Server) enqueue(j *job.Job) {
	j.SetFlag(job.Running)
	j.Priority()
	s.mu.Lock()
	s.pending = append(s.pending, j)
	s.cond.Signal()
	s.mu.Unlock()
}

// takeNext blocks until a job is available and returns the highest-priority
// one. Priorities are the cached snapshots; ties break toward the job
// queued first. Returns nil when the server closes or ctx is done.
func (s *Server) takeNext(ctx context.Context) *job.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closed || ctx.Err() != nil {
			return nil
		}
		if len(s.pending) > 0 {
			best := 0
			for i := 1; i < len(s.pending); i++ {
				if s.pending[i].CachedPriority() > s.pending[best].CachedPriority() {
					best = i
				}
			}
			j := s.pending[best]
			s.pending = append(s.pending[:best], s.pending[best+1:]...)
			return j
		}
		s.cond.Wait()
	}
}

// Run drives the dispatch workers until ctx is cancelled. The orchestrator
// never blocks on a single parser: JobCount workers run concurrently.
func (s *Server) Run(ctx context.Context) error {
	// Wake workers blocked in takeNext when ctx dies.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.cond.Broadcast()
		case <-done:
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.opts.JobCount; i++ {
		g.Go(func() error {
			for {
				j := s.takeNext(gctx)
				if j == nil {
					return nil
				}
				s.runJob(gctx, j)
			}
		})
	}
	return g.Wait()
}

// runJob encodes, dispatches and completes one job, retrying on crashes up
// to the configured bound.
func (s *Server) runJob(ctx context.Context, j *job.Job) {
	p := s.Project(j.ProjectPath)
	if p == nil {
		return
	}
	if j.Flags().Has(job.Aborted) {
		_ = p.OnJobFinished(ctx, j, nil)
		return
	}

	payload := j.Encode()
	data, err := s.parser.Index(ctx, payload)
	if err != nil {
		count := j.IncrementCrashCount()
		j.SetFlag(job.Crashed)
		if count < s.opts.MaxCrashCount {
			s.logger.Warn("parser crashed, retrying",
				slog.Uint64("id", j.ID),
				slog.String("file", j.SourceFile),
				slog.Int("crash_count", count))
			s.mu.Lock()
			s.pending = append(s.pending, j)
			s.cond.Signal()
			s.mu.Unlock()
			return
		}
		s.logger.Error("parser crashed too often, giving up",
			slog.Uint64("id", j.ID),
			slog.String("file", j.SourceFile),
			slog.Int("crash_count", count))
		j.SetFlag(job.Aborted)
		_ = p.OnJobFinished(ctx, j, nil)
		return
	}

	if err := p.OnJobFinished(ctx, j, data); err != nil {
		s.logger.Error("merge failed",
			slog.Uint64("id", j.ID), slog.String("error", err.Error()))
	}
}

// SetPCH registers a precompiled header substitution used when PCHEnabled
// is set.
func (s *Server) SetPCH(header, pch string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pchPaths[header] = pch
}

// SetCompilerIncludePaths records the built-in include paths of a
// compiler, applied at encode time when EnableCompilerManager is set.
func (s *Server) SetCompilerIncludePaths(compiler string, paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compilerInc[compiler] = paths
}

// PathTable exposes the shared path interner.
func (s *Server) PathTable() *types.PathTable { return s.paths }

// job.Env implementation -------------------------------------------------

// Options returns the daemon options.
func (s *Server) Options() *config.Options { return s.opts }

// BufferState returns fileID's editor-activity classification.
func (s *Server) BufferState(fileID uint32) types.BufferState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffers[fileID]
}

// DependencyGraph returns the include graph of the project at projectPath.
func (s *Server) DependencyGraph(projectPath string) *graph.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.projects[projectPath]; ok {
		return p.DependencyGraph()
	}
	return nil
}

// CurrentProjectPath returns the active project's root, or "".
func (s *Server) CurrentProjectPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.Path()
}

// FilePath resolves a file id.
func (s *Server) FilePath(fileID uint32) string { return s.paths.Path(fileID) }

// VisitedFiles returns projectPath's visited-file map; ok is false when the
// project is unknown.
func (s *Server) VisitedFiles(projectPath string) (map[uint32]string, bool) {
	p := s.Project(projectPath)
	if p == nil {
		return nil, false
	}
	return p.VisitedFiles(), true
}

// CompilerIncludePaths returns the recorded include paths for compiler.
func (s *Server) CompilerIncludePaths(compiler string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compilerInc[compiler]
}

// FixPCH rewrites "-include <header>" pairs to their precompiled form.
func (s *Server) FixPCH(projectPath string, v *source.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i+1 < len(v.Arguments); i++ {
		if v.Arguments[i] != "-include" {
			continue
		}
		if pch, ok := s.pchPaths[v.Arguments[i+1]]; ok {
			v.Arguments[i] = "-include-pch"
			v.Arguments[i+1] = pch
		}
	}
}

// OnFileModified routes a watch event to the project owning the path.
func (s *Server) OnFileModified(path string) {
	s.mu.Lock()
	var owner *project.Project
	for root, p := range s.projects {
		if strings.HasPrefix(path, root) {
			owner = p
			break
		}
	}
	s.mu.Unlock()
	if owner != nil {
		owner.OnFileModifiedOrRemoved(path)
	}
}
