package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
)

// byteOrder is the byte order of every fixed-width field in the payload.
var byteOrder = binary.LittleEndian

// ErrShortBuffer is returned by the Deserializer when the input ends before
// a complete value.
var ErrShortBuffer = errors.New("wire: short buffer")

// Serializer accumulates a payload. The first four bytes are reserved for
// the total size and patched in by Finish.
type Serializer struct {
	buf bytes.Buffer
}

// NewSerializer returns a Serializer with the 4-byte size placeholder
// already written.
func NewSerializer() *Serializer {
	s := &Serializer{}
	s.buf.Write([]byte{0, 0, 0, 0})
	return s
}

func (s *Serializer) WriteUint16(v uint16) {
	var b [2]byte
	byteOrder.PutUint16(b[:], v)
	s.buf.Write(b[:])
}

func (s *Serializer) WriteUint32(v uint32) {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	s.buf.Write(b[:])
}

func (s *Serializer) WriteInt32(v int32) {
	s.WriteUint32(uint32(v))
}

func (s *Serializer) WriteUint64(v uint64) {
	var b [8]byte
	byteOrder.PutUint64(b[:], v)
	s.buf.Write(b[:])
}

// WriteString writes a uint32 length followed by the raw bytes.
func (s *Serializer) WriteString(v string) {
	s.WriteUint32(uint32(len(v)))
	s.buf.WriteString(v)
}

// WriteBytes writes a uint32 length followed by the raw bytes.
func (s *Serializer) WriteBytes(v []byte) {
	s.WriteUint32(uint32(len(v)))
	s.buf.Write(v)
}

// WriteStringList writes a uint32 count followed by each string.
func (s *Serializer) WriteStringList(v []string) {
	s.WriteUint32(uint32(len(v)))
	for _, e := range v {
		s.WriteString(e)
	}
}

// WriteStringByteMap writes a uint32 count followed by sorted key/value
// pairs. Sorting keeps the encoding deterministic for identical maps.
func (s *Serializer) WriteStringByteMap(m map[string][]byte) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s.WriteUint32(uint32(len(keys)))
	for _, k := range keys {
		s.WriteString(k)
		s.WriteBytes(m[k])
	}
}

// WriteVisitedMap writes a uint32 count followed by sorted id/path pairs.
func (s *Serializer) WriteVisitedMap(m map[uint32]string) {
	ids := make([]uint32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s.WriteUint32(uint32(len(ids)))
	for _, id := range ids {
		s.WriteUint32(id)
		s.WriteString(m[id])
	}
}

// Finish patches the size placeholder with len(payload)-4 and returns the
// completed payload. The Serializer must not be reused afterwards.
func (s *Serializer) Finish() []byte {
	out := s.buf.Bytes()
	byteOrder.PutUint32(out[0:4], uint32(len(out)-4))
	return out
}

// Len returns the current payload length including the size prefix.
func (s *Serializer) Len() int { return s.buf.Len() }

// Deserializer reads values in the order they were written. Used by tests
// and by any in-process parser stub.
type Deserializer struct {
	buf []byte
	off int
}

// NewDeserializer wraps payload, which must include the 4-byte size prefix.
// The prefix is validated and skipped.
func NewDeserializer(payload []byte) (*Deserializer, error) {
	if len(payload) < 4 {
		return nil, ErrShortBuffer
	}
	if int(byteOrder.Uint32(payload[0:4])) != len(payload)-4 {
		return nil, errors.New("wire: size prefix does not match payload length")
	}
	return &Deserializer{buf: payload, off: 4}, nil
}

func (d *Deserializer) take(n int) ([]byte, error) {
	if d.off+n > len(d.buf) {
		return nil, ErrShortBuffer
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Deserializer) ReadUint16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint16(b), nil
}

func (d *Deserializer) ReadUint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b), nil
}

func (d *Deserializer) ReadInt32() (int32, error) {
	v, err := d.ReadUint32()
	return int32(v), err
}

func (d *Deserializer) ReadUint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b), nil
}

func (d *Deserializer) ReadString() (string, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Deserializer) ReadBytes() ([]byte, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (d *Deserializer) ReadStringList() ([]string, error) {
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Remaining returns the number of unread bytes.
func (d *Deserializer) Remaining() int { return len(d.buf) - d.off }
