package types

// BufferState classifies a file's editor-activity status. It is a scheduling
// signal only: Active buffers pull their includes up the indexing queue.
type BufferState int

const (
	// BufferInactive means no editor has the file open.
	BufferInactive BufferState = iota
	// BufferOpen means the file is open in some editor buffer.
	BufferOpen
	// BufferActive means the file is the currently focused buffer.
	BufferActive
)

func (b BufferState) String() string {
	switch b {
	case BufferActive:
		return "active"
	case BufferOpen:
		return "open"
	default:
		return "inactive"
	}
}
