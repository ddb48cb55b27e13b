package eventstore

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/itm/eventstore/pkg/appendlog/filelog"
	"github.com/itm/eventstore/pkg/codec"
	"github.com/itm/eventstore/pkg/registry"
	"github.com/itm/eventstore/pkg/serde"
)

// Backend selects the Append Log implementation
type Backend string

const (
	// BackendFile stores records in CRC-framed files.
	BackendFile Backend = "file"
	// BackendPebble stores records in a Pebble database.
	BackendPebble Backend = "pebble"
)

// TagAssignment controls when registered types receive their tags
type TagAssignment string

const (
	// TagAssignmentEager assigns a tag to every registered type at Open.
	TagAssignmentEager TagAssignment = "eager"
	// TagAssignmentLazy assigns a tag the first time a type is written.
	TagAssignmentLazy TagAssignment = "lazy"
)

const (
	// DefaultDataBlockSize is the largest framed entry accepted by default.
	DefaultDataBlockSize = 64 * 1024
	// MaxTypes is the number of distinct payload types a store can hold.
	MaxTypes = registry.MaxTypes
)

// Config holds configuration for an event store. It must not be modified
// after it has been passed to Open.
type Config struct {
	BasePath      string // Path prefix of the log and its sidecar files
	ReadOnly      bool   // Reject writes and never modify files
	Monotonic     bool   // Caller promises non-decreasing timestamps
	DataBlockSize int    // Largest framed entry, overhead included
	Serializers   *serde.Set

	Backend       Backend       // file (default) or pebble
	Cycling       bool          // file backend: one segment per CycleLength
	CycleLength   time.Duration // file backend: segment window
	CycleFormat   string        // file backend: Go time layout of segment names
	FsyncInterval time.Duration // 0 syncs on every append

	TagAssignment TagAssignment
	Logger        *slog.Logger
	Metrics       MetricsHook
}

// DefaultConfig returns a writable, monotonic, file backed configuration
// with an empty serializer set
func DefaultConfig() Config {
	return Config{
		Monotonic:     true,
		DataBlockSize: DefaultDataBlockSize,
		Serializers:   serde.NewSet(),
		Backend:       BackendFile,
		CycleLength:   filelog.DefaultCycleLength,
		CycleFormat:   filelog.DefaultCycleFormat,
		TagAssignment: TagAssignmentEager,
	}
}

// ConfigError lists every problem found by Validate
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid event store configuration: " + strings.Join(e.Problems, "; ")
}

// Validate reports all configuration problems at once. It returns nil or a
// *ConfigError.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.BasePath == "" {
		add("base path is required")
	}

	if c.Serializers == nil {
		add("serializer set is required")
	} else {
		enc, dec := c.Serializers.Encoders(), c.Serializers.Decoders()
		if enc != dec {
			add("%d serializers but %d deserializers", enc, dec)
		}
		if unpaired := c.Serializers.Unpaired(); len(unpaired) > 0 {
			add("types without both a serializer and a deserializer: %s", strings.Join(unpaired, ", "))
		}
		if n := len(c.Serializers.Names()); n > MaxTypes {
			add("%d types registered, at most %d are supported", n, MaxTypes)
		}
	}

	if c.DataBlockSize != 0 && c.DataBlockSize <= codec.EntryOverhead {
		add("data block size %d must exceed the entry overhead of %d bytes", c.DataBlockSize, codec.EntryOverhead)
	}
	if c.FsyncInterval < 0 {
		add("fsync interval %s is negative", c.FsyncInterval)
	}

	switch c.backend() {
	case BackendFile:
		if c.Cycling && c.CycleLength <= 0 {
			add("cycle length %s must be positive", c.CycleLength)
		}
		if c.Cycling && c.CycleLength > 0 && c.CycleLength < time.Millisecond {
			add("cycle length %s is below one millisecond", c.CycleLength)
		}
	case BackendPebble:
		if c.Cycling {
			add("cycling is not supported by the pebble backend")
		}
	default:
		add("unknown backend %q", c.Backend)
	}

	switch c.tagAssignment() {
	case TagAssignmentEager, TagAssignmentLazy:
	default:
		add("unknown tag assignment %q", c.TagAssignment)
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

func (c Config) backend() Backend {
	if c.Backend == "" {
		return BackendFile
	}
	return c.Backend
}

func (c Config) tagAssignment() TagAssignment {
	if c.TagAssignment == "" {
		return TagAssignmentEager
	}
	return c.TagAssignment
}

func (c Config) dataBlockSize() int {
	if c.DataBlockSize == 0 {
		return DefaultDataBlockSize
	}
	return c.DataBlockSize
}

// MappingPath returns the path of the sidecar type mapping file
func (c Config) MappingPath() string {
	return c.BasePath + registry.FileExtension
}

// PebbleDir returns the database directory used by the pebble backend
func (c Config) PebbleDir() string {
	return c.BasePath + ".pebble"
}
