// Package pebblelog implements appendlog.Log on top of a Pebble database.
//
// Keys are lexicographically ordered so a range covers all entries:
//   - m           (metadata: last assigned sequence, 8 bytes big-endian)
//   - e/{seq_be8} (one entry per record, sequence starts at 1)
//
// Each record and the metadata update are committed in one batch, so a
// record is visible exactly when its sequence is.
package pebblelog

import (
	"encoding/binary"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/itm/eventstore/pkg/appendlog"
)

// FsyncMode defines durability behavior for appends.
type FsyncMode int

const (
	// FsyncModeAlways requests a WAL fsync on every append.
	FsyncModeAlways FsyncMode = iota
	// FsyncModeInterval lets Pebble coalesce WAL syncs within FsyncInterval.
	FsyncModeInterval
	// FsyncModeNever leaves syncing to Pebble's own policies.
	FsyncModeNever
)

var (
	metaKey     = []byte("m")
	entryPrefix = []byte("e/")
)

// Options configures the Pebble log.
type Options struct {
	// Dir is the Pebble database directory.
	Dir string
	// MaxRecordSize is the largest accepted record.
	MaxRecordSize int
	// ReadOnly opens the database without write access.
	ReadOnly bool
	// Fsync determines when to sync the WAL.
	Fsync FsyncMode
	// FsyncInterval controls group-commit when Fsync=FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions allows advanced tuning. If nil, defaults are used.
	PebbleOptions *pebble.Options
	Logger        *slog.Logger
}

// Log is an appendlog.Log stored in Pebble.
type Log struct {
	db      *pebble.DB
	opts    Options
	logger  *slog.Logger
	sync    bool
	mu      sync.Mutex
	lastSeq atomic.Uint64
	closed  atomic.Bool
}

var (
	_ appendlog.Log    = (*Log)(nil)
	_ appendlog.Tailer = (*Log)(nil)
)

// Open creates or opens a Pebble-backed log.
func Open(opts Options) (*Log, error) {
	if opts.Dir == "" {
		return nil, errors.New("pebblelog: Options.Dir is required")
	}
	if opts.MaxRecordSize <= 0 {
		return nil, errors.New("pebblelog: Options.MaxRecordSize must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	po.ReadOnly = opts.ReadOnly
	if opts.Fsync == FsyncModeInterval {
		interval := opts.FsyncInterval
		if interval <= 0 {
			interval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	}

	db, err := pebble.Open(opts.Dir, po)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", opts.Dir)
	}

	l := &Log{
		db:     db,
		opts:   opts,
		logger: opts.Logger.With("component", "pebblelog"),
		sync:   opts.Fsync != FsyncModeNever,
	}

	last, err := l.loadLastSeq()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.lastSeq.Store(last)
	l.logger.Debug("opened pebble log", "dir", opts.Dir, "records", last)
	return l, nil
}

func (l *Log) loadLastSeq() (uint64, error) {
	val, closer, err := l.db.Get(metaKey)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	defer closer.Close()
	if len(val) < 8 {
		return 0, errors.Wrapf(appendlog.ErrCorrupt, "metadata holds %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val[:8]), nil
}

// entryKey builds the entry key with a big-endian sequence for proper ordering.
func entryKey(seq uint64) []byte {
	k := make([]byte, 0, len(entryPrefix)+8)
	k = append(k, entryPrefix...)
	return binary.BigEndian.AppendUint64(k, seq)
}

func (l *Log) writeOptions() *pebble.WriteOptions {
	if l.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// Append stores the record under the next sequence number.
func (l *Log) Append(data []byte) error {
	if l.opts.ReadOnly {
		return appendlog.ErrReadOnly
	}
	if len(data) > l.opts.MaxRecordSize {
		return errors.Wrapf(appendlog.ErrRecordTooLarge, "%d > %d bytes", len(data), l.opts.MaxRecordSize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return appendlog.ErrClosed
	}

	seq := l.lastSeq.Load() + 1
	b := l.db.NewBatch()
	defer b.Close()
	if err := b.Set(entryKey(seq), data, nil); err != nil {
		return err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], seq)
	if err := b.Set(metaKey, meta[:], nil); err != nil {
		return err
	}
	if err := b.Commit(l.writeOptions()); err != nil {
		return errors.Wrap(err, "commit append")
	}
	l.lastSeq.Store(seq)
	return nil
}

// NewReader returns a reader starting at the first sequence.
func (l *Log) NewReader() (appendlog.Reader, error) {
	if l.closed.Load() {
		return nil, appendlog.ErrClosed
	}
	return &reader{log: l, next: 1}, nil
}

// Size returns the number of records.
func (l *Log) Size() uint64 {
	if l.opts.ReadOnly && !l.closed.Load() {
		// another process may own the writer; metadata is authoritative
		if last, err := l.loadLastSeq(); err == nil {
			l.lastSeq.Store(last)
		}
	}
	return l.lastSeq.Load()
}

// Clear deletes every entry and resets the sequence.
func (l *Log) Clear() error {
	if l.opts.ReadOnly {
		return appendlog.ErrReadOnly
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return appendlog.ErrClosed
	}

	b := l.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(entryKey(0), entryKey(^uint64(0)), nil); err != nil {
		return err
	}
	if err := b.Delete(entryKey(^uint64(0)), nil); err != nil {
		return err
	}
	if err := b.Delete(metaKey, nil); err != nil {
		return err
	}
	if err := b.Commit(l.writeOptions()); err != nil {
		return errors.Wrap(err, "commit clear")
	}
	l.lastSeq.Store(0)
	return nil
}

// Last returns the entry at the last published sequence.
func (l *Log) Last() ([]byte, bool, error) {
	if l.closed.Load() {
		return nil, false, appendlog.ErrClosed
	}
	seq := l.Size()
	if seq == 0 {
		return nil, false, nil
	}
	val, closer, err := l.db.Get(entryKey(seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "get entry %d", seq)
	}
	defer closer.Close()
	return append([]byte(nil), val...), true, nil
}

// Close closes the Pebble database.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Swap(true) {
		return nil
	}
	return l.db.Close()
}

// Config returns the log's limits.
func (l *Log) Config() appendlog.Config {
	return appendlog.Config{MaxRecord: l.opts.MaxRecordSize}
}

// reader walks entries by point lookups so records appended after the reader
// was created become visible.
type reader struct {
	log     *Log
	next    uint64
	current []byte
	err     error
	closed  bool
}

func (r *reader) Advance() bool {
	if r.closed || r.err != nil {
		return false
	}
	if r.log.closed.Load() {
		r.err = appendlog.ErrClosed
		return false
	}
	if r.next > r.log.Size() {
		return false
	}

	val, closer, err := r.log.db.Get(entryKey(r.next))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			// sequence published but entry gone: cleared underneath us
			return false
		}
		r.err = err
		return false
	}
	r.current = append([]byte(nil), val...)
	_ = closer.Close()
	r.next++
	return true
}

func (r *reader) Current() []byte {
	return r.current
}

func (r *reader) Err() error {
	return r.err
}

func (r *reader) Close() error {
	r.closed = true
	r.current = nil
	return nil
}
