package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Option bits in Options.Flags. The bitmask travels verbatim inside the job
// dispatch payload, so values are fixed.
const (
	AllowWErrorAndWFatalErrors uint32 = 1 << 0
	AllowPedantic              uint32 = 1 << 1
	EnableCompilerManager      uint32 = 1 << 2
	PCHEnabled                 uint32 = 1 << 3
	EnableNDEBUG               uint32 = 1 << 4
	NoFileSystemWatch          uint32 = 1 << 5
)

// Define is one preprocessor define merged into every variant at encode
// time.
type Define struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value,omitempty"`
}

// String renders the define the way it appears on a compiler command line,
// without the -D prefix.
func (d Define) String() string {
	if d.Value == "" {
		return d.Name
	}
	return d.Name + "=" + d.Value
}

// Options is the daemon configuration. Zero values are filled in by
// Default; Load overlays a YAML file on top of the defaults.
type Options struct {
	SandboxRoot      string   `yaml:"sandbox_root"`
	SocketFile       string   `yaml:"socket_file"`
	DataDir          string   `yaml:"data_dir"`
	DefaultArguments []string `yaml:"default_arguments"`
	IncludePaths     []string `yaml:"include_paths"`
	Defines          []Define `yaml:"defines"`
	BlockedArguments []string `yaml:"blocked_arguments"`
	DebugLocations   []string `yaml:"debug_locations"`

	Flags uint32 `yaml:"flags"`

	// Parser process policy, sent verbatim in the dispatch payload.
	VisitFileTimeout        uint32 `yaml:"visit_file_timeout_ms"`
	IndexDataMessageTimeout uint32 `yaml:"index_data_message_timeout_ms"`
	ConnectTimeout          uint32 `yaml:"connect_timeout_ms"`
	ConnectAttempts         uint32 `yaml:"connect_attempts"`
	NiceValue               int32  `yaml:"nice_value"`

	MaxCrashCount int           `yaml:"max_crash_count"`
	JobCount      int           `yaml:"job_count"`
	DirtyTimeout  time.Duration `yaml:"dirty_timeout"`
}

// Default returns the built-in options.
func Default() *Options {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".tagd")
	return &Options{
		SocketFile:              filepath.Join(dataDir, "tagd.sock"),
		DataDir:                 dataDir,
		VisitFileTimeout:        60_000,
		IndexDataMessageTimeout: 60_000,
		ConnectTimeout:          1_000,
		ConnectAttempts:         3,
		NiceValue:               0,
		MaxCrashCount:           5,
		JobCount:                4,
		DirtyTimeout:            100 * time.Millisecond,
	}
}

// Load reads a YAML options file layered over Default. A missing path is
// not an error: the defaults are returned unchanged.
func Load(path string) (*Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if opts.JobCount <= 0 {
		opts.JobCount = Default().JobCount
	}
	if opts.MaxCrashCount <= 0 {
		opts.MaxCrashCount = Default().MaxCrashCount
	}
	if opts.DirtyTimeout <= 0 {
		opts.DirtyTimeout = Default().DirtyTimeout
	}
	return opts, nil
}

// HasFlag reports whether bit is set in the option bitmask.
func (o *Options) HasFlag(bit uint32) bool { return o.Flags&bit != 0 }
