package codec

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	// TimestampSize is the size of the timestamp field in bytes.
	TimestampSize = 8
	// TagSize is the size of the type tag field in bytes.
	TagSize = 1
	// HeaderSize is the size of the fixed record header.
	HeaderSize = TimestampSize + TagSize
	// LengthFieldSize is the room reserved for the append log's length prefix.
	LengthFieldSize = 4
	// EntryOverhead is the non-payload size of one entry.
	EntryOverhead = HeaderSize + LengthFieldSize
)

// ErrShortRecord is returned when a raw record is smaller than the header.
var ErrShortRecord = errors.New("record shorter than header")

// Record is one decoded event record
type Record struct {
	Timestamp int64  // Milliseconds since epoch
	Tag       uint8  // Type tag from the registry
	Payload   []byte // Serialized object
}

// Encode frames a timestamp, type tag and payload into one record
func Encode(timestamp int64, tag uint8, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint64(buf[0:], uint64(timestamp))
	buf[TimestampSize] = tag
	copy(buf[HeaderSize:], payload)
	return buf
}

// DecodeHeader reads the timestamp and type tag of a raw record
func DecodeHeader(data []byte) (int64, uint8, error) {
	if len(data) < HeaderSize {
		return 0, 0, errors.Wrapf(ErrShortRecord, "got %d bytes, need %d", len(data), HeaderSize)
	}
	ts := int64(binary.BigEndian.Uint64(data[0:TimestampSize]))
	return ts, data[TimestampSize], nil
}

// DecodePayload returns the payload portion of a raw record
func DecodePayload(data []byte) ([]byte, error) {
	if len(data) < HeaderSize {
		return nil, errors.Wrapf(ErrShortRecord, "got %d bytes, need %d", len(data), HeaderSize)
	}
	return data[HeaderSize:], nil
}

// Decode splits a raw record into its fields. The payload aliases data.
func Decode(data []byte) (*Record, error) {
	ts, tag, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	return &Record{Timestamp: ts, Tag: tag, Payload: data[HeaderSize:]}, nil
}

// Encode serializes the record
func (r *Record) Encode() []byte {
	return Encode(r.Timestamp, r.Tag, r.Payload)
}

// Size returns the encoded size of the record without append log overhead
func (r *Record) Size() int {
	return HeaderSize + len(r.Payload)
}

// EntrySize returns the space an entry with the given payload length needs
// in an append log block, including the reserved length field.
func EntrySize(payloadLen int) int {
	return EntryOverhead + payloadLen
}
