package job

import "strings"

// Flag bits describing a job's state. Values travel inside the dispatch
// payload, so they are fixed.
type Flag uint32

const (
	Dirty Flag = 1 << iota
	Reindex
	Compile
	Running
	Crashed
	Aborted
	Complete
)

// Has reports whether bit is set.
func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

var flagNames = []struct {
	bit  Flag
	name string
}{
	{Dirty, "Dirty"},
	{Reindex, "Reindex"},
	{Compile, "Compile"},
	{Running, "Running"},
	{Crashed, "Crashed"},
	{Aborted, "Aborted"},
	{Complete, "Complete"},
}

// DumpFlags renders the flag set as a comma-joined list in declaration
// order. Diagnostic only.
func DumpFlags(f Flag) string {
	var out []string
	for _, fn := range flagNames {
		if f.Has(fn.bit) {
			out = append(out, fn.name)
		}
	}
	return strings.Join(out, ", ")
}
