package types

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// Location identifies a position in a source file. Locations are totally
// ordered (file id, then line, then column) so they can be used as sorted
// map keys.
type Location struct {
	FileID uint32 `cbor:"1,keyasint"`
	Line   uint32 `cbor:"2,keyasint"`
	Column uint32 `cbor:"3,keyasint"`
}

// Compare returns -1, 0 or 1 ordering l relative to other.
func (l Location) Compare(other Location) int {
	switch {
	case l.FileID != other.FileID:
		if l.FileID < other.FileID {
			return -1
		}
		return 1
	case l.Line != other.Line:
		if l.Line < other.Line {
			return -1
		}
		return 1
	case l.Column != other.Column:
		if l.Column < other.Column {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether l orders before other.
func (l Location) Less(other Location) bool { return l.Compare(other) < 0 }

// IsNull reports whether l is the zero location.
func (l Location) IsNull() bool { return l == Location{} }

// Key encodes the location as a 12-byte big-endian key. Byte-wise
// lexicographic order of keys equals Compare order, which is what the
// sorted persistent maps rely on.
func (l Location) Key() []byte {
	key := make([]byte, 12)
	binary.BigEndian.PutUint32(key[0:4], l.FileID)
	binary.BigEndian.PutUint32(key[4:8], l.Line)
	binary.BigEndian.PutUint32(key[8:12], l.Column)
	return key
}

// LocationFromKey decodes a key produced by Key.
func LocationFromKey(key []byte) (Location, error) {
	if len(key) != 12 {
		return Location{}, fmt.Errorf("location key must be 12 bytes, got %d", len(key))
	}
	return Location{
		FileID: binary.BigEndian.Uint32(key[0:4]),
		Line:   binary.BigEndian.Uint32(key[4:8]),
		Column: binary.BigEndian.Uint32(key[8:12]),
	}, nil
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d:%d", l.FileID, l.Line, l.Column)
}

// SortLocations sorts locations in place in ascending Compare order.
func SortLocations(locations []Location) {
	slices.SortFunc(locations, Location.Compare)
}
