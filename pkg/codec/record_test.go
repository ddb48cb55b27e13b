package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		timestamp int64
		tag       uint8
		payload   []byte
	}{
		{
			name:      "simple string payload",
			timestamp: 1700000000000,
			tag:       0,
			payload:   []byte("hello"),
		},
		{
			name:      "empty payload",
			timestamp: 42,
			tag:       7,
			payload:   []byte{},
		},
		{
			name:      "negative timestamp",
			timestamp: -5,
			tag:       1,
			payload:   []byte("before epoch"),
		},
		{
			name:      "max tag",
			timestamp: 10,
			tag:       255,
			payload:   []byte{0x00, 0xFF},
		},
		{
			name:      "large payload",
			timestamp: 99,
			tag:       3,
			payload:   bytes.Repeat([]byte("v"), 10240),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Encode(tc.timestamp, tc.tag, tc.payload)
			assert.Len(t, encoded, HeaderSize+len(tc.payload))

			rec, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.timestamp, rec.Timestamp)
			assert.Equal(t, tc.tag, rec.Tag)
			assert.True(t, bytes.Equal(tc.payload, rec.Payload))
			assert.Equal(t, encoded, rec.Encode())
		})
	}
}

func TestEncodeLayoutIsBigEndian(t *testing.T) {
	encoded := Encode(0x0102030405060708, 0xAB, []byte("x"))

	assert.Equal(t, uint64(0x0102030405060708), binary.BigEndian.Uint64(encoded[0:8]))
	assert.Equal(t, byte(0x01), encoded[0])
	assert.Equal(t, byte(0xAB), encoded[8])
	assert.Equal(t, byte('x'), encoded[9])
}

func TestDecodeHeader(t *testing.T) {
	encoded := Encode(1234, 9, []byte("payload"))

	ts, tag, err := DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), ts)
	assert.Equal(t, uint8(9), tag)

	payload, err := DecodePayload(encoded)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), payload)
}

func TestDecodeShortRecord(t *testing.T) {
	for _, n := range []int{0, 1, 8} {
		_, _, err := DecodeHeader(make([]byte, n))
		assert.True(t, errors.Is(err, ErrShortRecord), "len %d", n)

		_, err = DecodePayload(make([]byte, n))
		assert.True(t, errors.Is(err, ErrShortRecord), "len %d", n)

		_, err = Decode(make([]byte, n))
		assert.Error(t, err)
	}

	// Header only is a valid record with an empty payload
	rec, err := Decode(make([]byte, HeaderSize))
	require.NoError(t, err)
	assert.Empty(t, rec.Payload)
}

func TestEntrySize(t *testing.T) {
	assert.Equal(t, 13, EntryOverhead)
	assert.Equal(t, 13, EntrySize(0))
	assert.Equal(t, 113, EntrySize(100))

	rec := &Record{Payload: make([]byte, 20)}
	assert.Equal(t, 29, rec.Size())
}
