package project

import (
	"github.com/tagd-dev/tagd/internal/filemap"
)

// IndexData is the result delivered by the external parser for one job:
// everything needed to merge the job's output into the project.
type IndexData struct {
	JobID  uint64 `cbor:"1,keyasint"`
	FileID uint32 `cbor:"2,keyasint"` // primary source file

	// Visited maps every file id the parser touched to its path. Entries
	// with an empty path were claimed by another job and skipped.
	Visited map[uint32]string `cbor:"3,keyasint"`

	// Dependencies maps an including file to the files it includes.
	Dependencies map[uint32][]uint32 `cbor:"4,keyasint"`

	// Files carries the symbol maps to persist, keyed by file id.
	Files map[uint32]*filemap.FileData `cbor:"5,keyasint"`

	// FixIts holds per-file fix-it text, replacing any previous value.
	FixIts map[uint32]string `cbor:"6,keyasint"`
}
