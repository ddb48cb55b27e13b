// Package appendlog defines the contract of the durable append-only record
// log that backs the event store.
//
// A Log stores opaque byte records ("excerpts") in append order. One writer
// may append while any number of independent readers walk the log. A record
// becomes visible to readers as a whole once Append returns; readers never
// observe a partially written record.
//
// Two implementations live in sub-packages:
//   - filelog: CRC-framed records in a single file or in time-cycled segments
//   - pebblelog: records keyed by sequence number in a Pebble database
package appendlog

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrClosed is returned by operations on a closed log or reader.
	ErrClosed = errors.New("append log is closed")
	// ErrRecordTooLarge is returned when a record exceeds MaxRecordSize.
	ErrRecordTooLarge = errors.New("record exceeds maximum record size")
	// ErrReadOnly is returned by mutating operations on a log opened read-only.
	ErrReadOnly = errors.New("append log is read-only")
	// ErrCorrupt is returned when stored data fails validation.
	ErrCorrupt = errors.New("append log data corruption detected")
)

// Log is an append-only sequence of opaque records.
type Log interface {
	// Append writes one record. It is visible to readers once Append returns.
	Append(data []byte) error

	// NewReader returns an independent cursor positioned before the first record.
	NewReader() (Reader, error)

	// Size returns the number of records in the log.
	Size() uint64

	// Clear removes every record.
	Clear() error

	// Close releases the underlying storage.
	Close() error

	// Config describes the log's limits.
	Config() Config
}

// Tailer is implemented by logs that can return their newest record
// without a full read.
type Tailer interface {
	// Last returns the newest record. ok is false when the log is empty.
	Last() (data []byte, ok bool, err error)
}

// Reader is a sequential cursor over a Log.
type Reader interface {
	// Advance moves to the next record. It returns false when no further
	// record is currently available or an error occurred (see Err).
	Advance() bool

	// Current returns the bytes of the current record. The slice is owned by
	// the caller.
	Current() []byte

	// Err returns the first error encountered by Advance.
	Err() error

	// Close releases the reader.
	Close() error
}

// Config describes the limits of a Log.
type Config struct {
	// MaxRecord is the largest record, in bytes, the log accepts.
	MaxRecord int
}

// MaxRecordSize returns the largest record the log accepts.
func (c Config) MaxRecordSize() int {
	return c.MaxRecord
}
