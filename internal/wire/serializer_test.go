package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	s := NewSerializer()
	s.WriteUint16(127)
	s.WriteUint32(42)
	s.WriteInt32(-19)
	s.WriteUint64(1 << 40)
	s.WriteString("hello")
	s.WriteString("")
	s.WriteBytes([]byte{1, 2, 3})
	s.WriteStringList([]string{"a", "b"})
	payload := s.Finish()

	d, err := NewDeserializer(payload)
	require.NoError(t, err)

	v16, err := d.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(127), v16)

	v32, err := d.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), v32)

	i32, err := d.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-19), i32)

	v64, err := d.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	str, err := d.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", str)

	empty, err := d.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", empty)

	b, err := d.ReadBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)

	list, err := d.ReadStringList()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list)

	assert.Equal(t, 0, d.Remaining())
}

func TestSizePrefix(t *testing.T) {
	s := NewSerializer()
	s.WriteString("payload")
	payload := s.Finish()

	// First four bytes are the little-endian length of everything after
	// them.
	require.GreaterOrEqual(t, len(payload), 4)
	size := binary.LittleEndian.Uint32(payload[0:4])
	assert.Equal(t, uint32(len(payload)-4), size)
}

func TestEmptyPayload(t *testing.T) {
	payload := NewSerializer().Finish()
	require.Len(t, payload, 4)

	d, err := NewDeserializer(payload)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Remaining())
}

func TestDeserializerRejectsBadPrefix(t *testing.T) {
	_, err := NewDeserializer([]byte{1, 2})
	assert.ErrorIs(t, err, ErrShortBuffer)

	// Prefix claims more than the buffer holds.
	bad := []byte{9, 0, 0, 0, 1}
	_, err = NewDeserializer(bad)
	assert.Error(t, err)
}

func TestDeserializerShortReads(t *testing.T) {
	s := NewSerializer()
	s.WriteUint16(1)
	payload := s.Finish()

	d, err := NewDeserializer(payload)
	require.NoError(t, err)
	_, err = d.ReadUint64()
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestWriteStringByteMapIsSorted(t *testing.T) {
	m := map[string][]byte{
		"zeta.cc":  []byte("z"),
		"alpha.cc": []byte("a"),
	}
	s := NewSerializer()
	s.WriteStringByteMap(m)
	d, err := NewDeserializer(s.Finish())
	require.NoError(t, err)

	count, err := d.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(2), count)

	first, err := d.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "alpha.cc", first)
	_, err = d.ReadBytes()
	require.NoError(t, err)

	second, err := d.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "zeta.cc", second)
}

func TestWriteVisitedMapIsSorted(t *testing.T) {
	m := map[uint32]string{3: "/c.h", 1: "/a.h", 2: ""}
	s := NewSerializer()
	s.WriteVisitedMap(m)
	d, err := NewDeserializer(s.Finish())
	require.NoError(t, err)

	count, err := d.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(3), count)

	var ids []uint32
	var paths []string
	for i := 0; i < 3; i++ {
		id, err := d.ReadUint32()
		require.NoError(t, err)
		path, err := d.ReadString()
		require.NoError(t, err)
		ids = append(ids, id)
		paths = append(paths, path)
	}
	assert.Equal(t, []uint32{1, 2, 3}, ids)
	assert.Equal(t, []string{"/a.h", "", "/c.h"}, paths)
}
