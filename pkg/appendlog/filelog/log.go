// Package filelog implements appendlog.Log on plain files.
//
// Records are written as CRC-framed entries either into a single data file
// (BasePath + ".log") or, when cycling is enabled, into one segment file per
// cycle inside the directory BasePath + ".d". Segment names are the cycle
// start formatted with CycleFormat, so readers can walk segments in time
// order and pick up new segments as the writer rolls over.
//
// Open validates every segment and truncates a torn or corrupt tail left by
// a crash, the same way a Bitcask data file is recovered.
package filelog

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/itm/eventstore/pkg/appendlog"
)

const (
	// DefaultCycleLength is the segment length used when cycling is enabled.
	DefaultCycleLength = 24 * time.Hour
	// DefaultCycleFormat names daily segments.
	DefaultCycleFormat = "20060102"
	// DefaultBufferSize is the size of the write buffer.
	DefaultBufferSize = 64 * 1024
)

// Options holds configuration for a file log
type Options struct {
	BasePath      string        // Path prefix for data files
	MaxRecordSize int           // Largest accepted record
	ReadOnly      bool          // Never create, write or truncate files
	Cycling       bool          // Roll to a new segment every CycleLength
	CycleLength   time.Duration // Length of one segment window
	CycleFormat   string        // Go time layout naming segment files
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
	Logger        *slog.Logger
	Now           func() time.Time // Clock used to pick segments
}

// RecoveryResult describes what Open found while validating the data files
type RecoveryResult struct {
	Segments         int
	RecordsValidated uint64
	BytesTruncated   int64
	Duration         time.Duration
}

// Log is an appendlog.Log stored in plain files
type Log struct {
	opts     Options
	layout   layout
	writer   *writer
	logger   *slog.Logger
	recovery RecoveryResult

	mutex  sync.Mutex
	count  uint64
	closed bool

	// scan position used to refresh count in read-only mode
	scanSeg    segment
	scanOffset int64
	scanned    bool
}

var (
	_ appendlog.Log    = (*Log)(nil)
	_ appendlog.Tailer = (*Log)(nil)
)

// Open opens or creates the log described by opts
func Open(opts Options) (*Log, error) {
	if opts.BasePath == "" {
		return nil, errors.New("filelog: Options.BasePath is required")
	}
	if opts.MaxRecordSize <= 0 {
		return nil, errors.New("filelog: Options.MaxRecordSize must be positive")
	}
	if opts.Cycling {
		if opts.CycleLength <= 0 {
			opts.CycleLength = DefaultCycleLength
		}
		if opts.CycleFormat == "" {
			opts.CycleFormat = DefaultCycleFormat
		}
		if opts.CycleLength < time.Millisecond {
			return nil, errors.Newf("filelog: cycle length %s is below one millisecond", opts.CycleLength)
		}
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &Log{
		opts: opts,
		layout: layout{
			basePath:    opts.BasePath,
			cycling:     opts.Cycling,
			cycleLength: opts.CycleLength,
			cycleFormat: opts.CycleFormat,
		},
		logger: opts.Logger.With("component", "filelog"),
	}

	if err := l.recover(); err != nil {
		return nil, err
	}

	if !opts.ReadOnly {
		l.writer = newWriter(l.layout, opts.BufferSize, opts.FsyncInterval)
		segments, err := l.layout.list()
		if err != nil {
			return nil, err
		}
		seg := l.layout.segmentFor(opts.Now())
		if n := len(segments); n > 0 && segments[n-1].start.After(seg.start) {
			seg = segments[n-1]
		}
		if err := l.writer.open(seg); err != nil {
			_ = l.writer.close()
			return nil, err
		}
	}

	return l, nil
}

// recover validates all segments, counts records and truncates a damaged tail
func (l *Log) recover() error {
	start := time.Now()
	segments, err := l.layout.list()
	if err != nil {
		return err
	}

	result := RecoveryResult{Segments: len(segments)}
	for _, seg := range segments {
		records, truncated, end, err := l.validateSegment(seg)
		if err != nil {
			return err
		}
		result.RecordsValidated += records
		result.BytesTruncated += truncated
		l.scanSeg, l.scanOffset, l.scanned = seg, end, true
	}
	result.Duration = time.Since(start)

	l.count = result.RecordsValidated
	l.recovery = result
	if result.BytesTruncated > 0 {
		l.logger.Warn("recovered from damaged log tail",
			"records", result.RecordsValidated,
			"bytes_truncated", result.BytesTruncated,
			"read_only", l.opts.ReadOnly)
	}
	return nil
}

// validateSegment reads every frame of seg and truncates it after the last
// valid one. It returns the record count, truncated bytes and the end offset.
func (l *Log) validateSegment(seg segment) (uint64, int64, int64, error) {
	file, err := os.Open(seg.path)
	if err != nil {
		return 0, 0, 0, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return 0, 0, 0, err
	}

	var records uint64
	var offset int64
	for {
		_, next, err := readFrame(file, offset)
		if err != nil {
			if err != io.EOF && !errors.Is(err, appendlog.ErrCorrupt) {
				file.Close()
				return 0, 0, 0, err
			}
			break
		}
		records++
		offset = next
	}
	file.Close()

	damaged := stat.Size() - offset
	if damaged == 0 || l.opts.ReadOnly {
		return records, damaged, offset, nil
	}

	if err := os.Truncate(seg.path, offset); err != nil {
		return 0, 0, 0, errors.Wrapf(err, "truncate %s", seg.path)
	}
	return records, damaged, offset, nil
}

// Append writes one record to the active segment
func (l *Log) Append(data []byte) error {
	if l.opts.ReadOnly {
		return appendlog.ErrReadOnly
	}
	if len(data) > l.opts.MaxRecordSize {
		return errors.Wrapf(appendlog.ErrRecordTooLarge, "%d > %d bytes", len(data), l.opts.MaxRecordSize)
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return appendlog.ErrClosed
	}

	if err := l.writer.write(encodeFrame(data), l.opts.Now()); err != nil {
		return errors.Wrap(err, "append record")
	}
	l.count++
	return nil
}

// NewReader returns an independent reader positioned before the first record
func (l *Log) NewReader() (appendlog.Reader, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return nil, appendlog.ErrClosed
	}
	return newReader(l.layout), nil
}

// Size returns the number of records. In read-only mode the count is
// refreshed from the files so records written by another process show up.
func (l *Log) Size() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.opts.ReadOnly && !l.closed {
		l.refreshCount()
	}
	return l.count
}

// refreshCount scans frames written since the last scan
func (l *Log) refreshCount() {
	segments, err := l.layout.list()
	if err != nil {
		return
	}
	for _, seg := range segments {
		offset := int64(0)
		if l.scanned {
			if seg.start.Before(l.scanSeg.start) {
				continue
			}
			if seg.path == l.scanSeg.path {
				offset = l.scanOffset
			}
		}

		file, err := os.Open(seg.path)
		if err != nil {
			return
		}
		for {
			_, next, err := readFrame(file, offset)
			if err != nil {
				break
			}
			l.count++
			offset = next
		}
		file.Close()
		l.scanSeg, l.scanOffset, l.scanned = seg, offset, true
	}
}

// Clear removes every record by deleting the data files
func (l *Log) Clear() error {
	if l.opts.ReadOnly {
		return appendlog.ErrReadOnly
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return appendlog.ErrClosed
	}

	l.writer.mutex.Lock()
	defer l.writer.mutex.Unlock()
	if err := l.writer.closeFile(); err != nil {
		return err
	}

	segments, err := l.layout.list()
	if err != nil {
		return err
	}
	for _, seg := range segments {
		if err := os.Remove(seg.path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", seg.path)
		}
	}
	l.count = 0
	l.scanned = false
	return l.writer.open(l.layout.segmentFor(l.opts.Now()))
}

// Last returns the newest record by scanning the newest non-empty segment
func (l *Log) Last() ([]byte, bool, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return nil, false, appendlog.ErrClosed
	}

	segments, err := l.layout.list()
	if err != nil {
		return nil, false, err
	}
	for i := len(segments) - 1; i >= 0; i-- {
		data, ok, err := lastFrame(segments[i].path)
		if err != nil || ok {
			return data, ok, err
		}
	}
	return nil, false, nil
}

// Close flushes pending writes and closes the active segment
func (l *Log) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.writer == nil {
		return nil
	}
	return l.writer.close()
}

// Config returns the log's limits
func (l *Log) Config() appendlog.Config {
	return appendlog.Config{MaxRecord: l.opts.MaxRecordSize}
}

// Recovery returns the result of the validation pass run by Open
func (l *Log) Recovery() RecoveryResult {
	return l.recovery
}
