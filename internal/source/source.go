package source

import (
	"slices"

	"github.com/tagd-dev/tagd/internal/config"
	"github.com/tagd-dev/tagd/internal/wire"
)

// Variant describes one compiler invocation for a source file.
type Variant struct {
	FileID       uint32
	Path         string
	Compiler     string
	Arguments    []string
	Defines      []config.Define
	IncludePaths []string
	Directory    string
}

// Key returns the registry key for the variant's source file. All variants
// of the same file share the key, which is what enforces at-most-one active
// job per source.
func (v *Variant) Key() uint64 { return uint64(v.FileID) }

// CompareArguments reports whether two variants carry an identical argument
// list. This is the equivalence relation used to deduplicate variants in a
// job: same arguments means the parse result would be identical.
func (v *Variant) CompareArguments(other *Variant) bool {
	return slices.Equal(v.Arguments, other.Arguments)
}

// Clone returns a deep copy. Encode-time argument policy mutates a copy so
// the variant stored on the job stays untouched.
func (v *Variant) Clone() *Variant {
	c := *v
	c.Arguments = slices.Clone(v.Arguments)
	c.Defines = slices.Clone(v.Defines)
	c.IncludePaths = slices.Clone(v.IncludePaths)
	return &c
}

// RemoveArgument deletes every occurrence of arg from the argument list.
func (v *Variant) RemoveArgument(arg string) {
	v.Arguments = slices.DeleteFunc(v.Arguments, func(a string) bool { return a == arg })
}

// AddDefine adds d unless an identical define is already present.
func (v *Variant) AddDefine(d config.Define) {
	if !slices.Contains(v.Defines, d) {
		v.Defines = append(v.Defines, d)
	}
}

// RemoveDefine deletes every define with the given name.
func (v *Variant) RemoveDefine(name string) {
	v.Defines = slices.DeleteFunc(v.Defines, func(d config.Define) bool { return d.Name == name })
}

// Encode writes the variant into the dispatch payload.
func (v *Variant) Encode(s *wire.Serializer) {
	s.WriteUint32(v.FileID)
	s.WriteString(v.Path)
	s.WriteString(v.Compiler)
	s.WriteString(v.Directory)
	s.WriteStringList(v.Arguments)
	s.WriteUint32(uint32(len(v.Defines)))
	for _, d := range v.Defines {
		s.WriteString(d.Name)
		s.WriteString(d.Value)
	}
	s.WriteStringList(v.IncludePaths)
}

// List is an ordered sequence of variants for one source file.
type List []*Variant

// Deduplicate returns the list with argument-equivalent duplicates removed.
// The first occurrence always wins, preserving order.
func (l List) Deduplicate() List {
	if len(l) < 2 {
		return l
	}
	out := List{l[0]}
	for _, v := range l[1:] {
		found := false
		for _, kept := range out {
			if v.CompareArguments(kept) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, v)
		}
	}
	return out
}
