package eventstore

import (
	"github.com/cockroachdb/errors"

	"github.com/itm/eventstore/pkg/registry"
	"github.com/itm/eventstore/pkg/serde"
)

var (
	// ErrReadOnly is returned by writes to a store opened read-only.
	ErrReadOnly = errors.New("event store is read-only")
	// ErrEntryTooLarge is returned when a framed entry exceeds the data block size.
	ErrEntryTooLarge = errors.New("entry exceeds data block size")
	// ErrExhausted is returned by Next when an iterator has no more events.
	ErrExhausted = errors.New("iterator exhausted")
	// ErrClosed is returned once the underlying log has been closed.
	ErrClosed = errors.New("event store is closed")
)

// Errors raised by the registry and serializer packages.
var (
	ErrNoSerializer   = serde.ErrNoSerializer
	ErrNoDeserializer = serde.ErrNoDeserializer
	ErrInvalidRecord  = serde.ErrInvalidRecord
	ErrUnresolvedType = registry.ErrUnresolvedType
	ErrRegistryFull   = registry.ErrRegistryFull
)

// write error reasons reported to MetricsHook.ObserveWriteError
const (
	reasonReadOnly  = "read_only"
	reasonClosed    = "closed"
	reasonSerialize = "serialize"
	reasonTooLarge  = "too_large"
	reasonRegistry  = "registry"
	reasonAppend    = "append"
)
