// Package eventstore is an embedded, append-only log of timestamped,
// typed events.
//
// Values are serialized by caller supplied codecs, tagged with a one byte
// type id from a persisted registry and appended to an Append Log. Events
// are replayed in write order, optionally restricted to a time range.
//
//	set := serde.NewSet()
//	serde.Register(set, serde.StringCodec())
//
//	cfg := eventstore.DefaultConfig()
//	cfg.BasePath = "/var/lib/app/events"
//	cfg.Serializers = set
//
//	store, err := eventstore.Open(cfg)
//	...
//	err = store.StoreAt("order placed", time.Now().UnixMilli())
//	it, err := store.ReadRange(from, to)
//	defer it.Close()
//	for it.HasNext() {
//		ev, err := it.Next()
//		...
//	}
//
// The store and every iterator share one reference counted log. The log is
// closed when the last reference is released.
package eventstore

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"

	"github.com/itm/eventstore/pkg/appendlog"
	"github.com/itm/eventstore/pkg/appendlog/filelog"
	"github.com/itm/eventstore/pkg/appendlog/pebblelog"
	"github.com/itm/eventstore/pkg/codec"
	"github.com/itm/eventstore/pkg/registry"
	"github.com/itm/eventstore/pkg/serde"
)

// Store is an event store handle. It is safe for concurrent use.
type Store struct {
	cfg      Config
	log      appendlog.Log
	registry *registry.Registry
	serde    *serde.Set
	logger   *slog.Logger
	metrics  MetricsHook
	session  ksuid.KSUID

	// write path
	writeMu         sync.Mutex
	lastTimestamp   int64
	hasLast         bool
	warnedMonotonic bool

	// lifecycle
	refMu     sync.Mutex
	refs      int
	closed    bool
	logClosed bool
	closeErr  error
}

// Open validates cfg, opens the configured backend and loads the type
// registry from the sidecar file
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	log, err := openBackend(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s log at %s", cfg.backend(), cfg.BasePath)
	}

	s, err := newStore(cfg, log)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	return s, nil
}

func openBackend(cfg Config) (appendlog.Log, error) {
	maxRecord := cfg.dataBlockSize() - codec.LengthFieldSize

	switch cfg.backend() {
	case BackendPebble:
		mode := pebblelog.FsyncModeAlways
		if cfg.FsyncInterval > 0 {
			mode = pebblelog.FsyncModeInterval
		}
		return pebblelog.Open(pebblelog.Options{
			Dir:           cfg.PebbleDir(),
			MaxRecordSize: maxRecord,
			ReadOnly:      cfg.ReadOnly,
			Fsync:         mode,
			FsyncInterval: cfg.FsyncInterval,
			Logger:        cfg.Logger,
		})
	default:
		return filelog.Open(filelog.Options{
			BasePath:      cfg.BasePath,
			MaxRecordSize: maxRecord,
			ReadOnly:      cfg.ReadOnly,
			Cycling:       cfg.Cycling,
			CycleLength:   cfg.CycleLength,
			CycleFormat:   cfg.CycleFormat,
			FsyncInterval: cfg.FsyncInterval,
			Logger:        cfg.Logger,
		})
	}
}

// newStore wires an already opened log into a store
func newStore(cfg Config, log appendlog.Log) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}
	cfg.Backend = cfg.backend()
	cfg.TagAssignment = cfg.tagAssignment()
	cfg.DataBlockSize = cfg.dataBlockSize()
	set := cfg.Serializers.Clone()

	reg, err := registry.Load(cfg.MappingPath(), set.HasDecoder, cfg.Logger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		cfg:      cfg,
		log:      log,
		registry: reg,
		serde:    set,
		logger:   cfg.Logger.With("component", "eventstore"),
		metrics:  cfg.Metrics,
		session:  ksuid.New(),
	}
	if !cfg.ReadOnly {
		s.refs = 1
	}

	if !cfg.ReadOnly && cfg.tagAssignment() == TagAssignmentEager {
		if err := s.assignAll(); err != nil {
			return nil, err
		}
	}
	if !cfg.ReadOnly && cfg.Monotonic {
		if err := s.loadLastTimestamp(); err != nil {
			return nil, err
		}
	}

	runtime.SetFinalizer(s, (*Store).finalize)

	s.logger.Info("opened event store",
		"session", s.session.String(),
		"base_path", cfg.BasePath,
		"backend", string(cfg.backend()),
		"read_only", cfg.ReadOnly,
		"monotonic", cfg.Monotonic,
		"records", log.Size(),
		"types", reg.Len())
	return s, nil
}

// assignAll gives every registered type a tag and persists the sidecar once
func (s *Store) assignAll() error {
	for _, name := range s.serde.Names() {
		if _, _, err := s.registry.Assign(name); err != nil {
			return err
		}
	}
	return s.registry.Persist()
}

// loadLastTimestamp seeds the monotonic check with the newest record's
// timestamp, when the log can return it.
func (s *Store) loadLastTimestamp() error {
	tailer, ok := s.log.(appendlog.Tailer)
	if !ok {
		return nil
	}
	data, ok, err := tailer.Last()
	if err != nil {
		return errors.Wrap(err, "read last record")
	}
	if !ok {
		return nil
	}
	ts, _, err := codec.DecodeHeader(data)
	if err != nil {
		// iterators report the record; the check starts with the next write
		s.logger.Warn("cannot read timestamp of last record", "error", err)
		return nil
	}
	s.lastTimestamp = ts
	s.hasLast = true
	return nil
}

// Store appends v with the current wall clock time
func (s *Store) Store(v any) error {
	return s.StoreAsAt(v, serde.TypeNameOf(v), time.Now().UnixMilli())
}

// StoreAt appends v with timestamp ts in milliseconds since the epoch
func (s *Store) StoreAt(v any, ts int64) error {
	return s.StoreAsAt(v, serde.TypeNameOf(v), ts)
}

// StoreAs appends v under an explicit type name with the current time
func (s *Store) StoreAs(v any, typeName string) error {
	return s.StoreAsAt(v, typeName, time.Now().UnixMilli())
}

// StoreAsAt appends v under typeName with timestamp ts. A failed write
// leaves the log unchanged.
func (s *Store) StoreAsAt(v any, typeName string, ts int64) error {
	if s.cfg.ReadOnly {
		s.metrics.ObserveWriteError(reasonReadOnly)
		return ErrReadOnly
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		s.metrics.ObserveWriteError(reasonClosed)
		return ErrClosed
	}

	payload, err := s.serde.Serialize(v, typeName)
	if err != nil {
		s.metrics.ObserveWriteError(reasonSerialize)
		return err
	}

	size := codec.EntrySize(len(payload))
	if limit := s.cfg.dataBlockSize(); size > limit {
		s.metrics.ObserveWriteError(reasonTooLarge)
		return errors.Wrapf(ErrEntryTooLarge, "%s entry of %d bytes, limit %d", typeName, size, limit)
	}

	tag, err := s.registry.Ensure(typeName)
	if err != nil {
		s.metrics.ObserveWriteError(reasonRegistry)
		return err
	}

	s.checkMonotonic(ts)

	start := time.Now()
	if err := s.log.Append(codec.Encode(ts, tag, payload)); err != nil {
		s.metrics.ObserveWriteError(reasonAppend)
		if errors.Is(err, appendlog.ErrClosed) {
			return ErrClosed
		}
		return errors.Wrap(err, "append event")
	}
	s.metrics.ObserveAppend(size, time.Since(start))

	s.lastTimestamp = ts
	s.hasLast = true
	return nil
}

// checkMonotonic reports timestamps that go backwards on a monotonic store.
// The previous timestamp is the newest record in the log when the backend
// can return it at open, then the last write of this store.
// Must be called with writeMu held.
func (s *Store) checkMonotonic(ts int64) {
	if !s.cfg.Monotonic || !s.hasLast || ts >= s.lastTimestamp {
		return
	}
	s.metrics.ObserveMonotonicViolation()
	if !s.warnedMonotonic {
		s.warnedMonotonic = true
		s.logger.Warn("timestamp lower than previous write on monotonic store, range reads may miss events",
			"session", s.session.String(),
			"timestamp", ts,
			"previous", s.lastTimestamp)
	}
}

// ReadRange returns an iterator over events with from <= ts <= to
func (s *Store) ReadRange(from, to int64) (*Iterator, error) {
	return s.newIterator(from, to, true)
}

// ReadFrom returns an iterator over events with ts >= from
func (s *Store) ReadFrom(from int64) (*Iterator, error) {
	return s.newIterator(from, 0, false)
}

// ReadAll returns an iterator over every event
func (s *Store) ReadAll() (*Iterator, error) {
	return s.newIterator(minTimestamp, 0, false)
}

// Size returns the number of records in the log
func (s *Store) Size() uint64 {
	return s.log.Size()
}

// IsEmpty reports whether the log holds no records
func (s *Store) IsEmpty() bool {
	return s.Size() == 0
}

// PayloadByteSize sums the payload bytes of every record, excluding framing
func (s *Store) PayloadByteSize() (uint64, error) {
	if err := s.pin(); err != nil {
		return 0, err
	}
	defer s.unpin()

	r, err := s.log.NewReader()
	if err != nil {
		return 0, errors.Wrap(err, "open reader")
	}
	defer r.Close()

	var total uint64
	for r.Advance() {
		payload, err := codec.DecodePayload(r.Current())
		if err != nil {
			return 0, errors.Mark(err, ErrInvalidRecord)
		}
		total += uint64(len(payload))
	}
	if err := r.Err(); err != nil {
		return 0, errors.Wrap(err, "scan log")
	}
	return total, nil
}

// Clear removes every record. Type mappings are kept.
func (s *Store) Clear() error {
	if s.cfg.ReadOnly {
		return ErrReadOnly
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}
	if err := s.log.Clear(); err != nil {
		return errors.Wrap(err, "clear log")
	}
	s.hasLast = false
	s.logger.Info("cleared event store", "session", s.session.String())
	return nil
}

// Types returns the current type mapping ordered by tag
func (s *Store) Types() []registry.Entry {
	return s.registry.Entries()
}

// SessionID identifies this open store in logs
func (s *Store) SessionID() ksuid.KSUID {
	return s.session
}

// Config returns the configuration the store was opened with, defaults
// filled in
func (s *Store) Config() Config {
	return s.cfg
}

// Close releases the store's own reference. The log stays open until every
// iterator is closed too. Calling Close more than once is a no-op.
func (s *Store) Close() error {
	s.refMu.Lock()
	defer s.refMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.cfg.ReadOnly {
		// A read-only store holds no reference of its own
		if s.refs == 0 {
			s.closeLogLocked()
		}
		return s.closeErr
	}
	s.releaseLocked()
	return s.closeErr
}

// acquire takes a reference for a reader
func (s *Store) acquire() error {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if s.closed || s.logClosed {
		return ErrClosed
	}
	s.refs++
	return nil
}

// release drops a reference taken by acquire
func (s *Store) release() error {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	s.releaseLocked()
	return s.closeErr
}

// pin keeps the log open for an internal scan. Unlike acquire it is not a
// reader reference: unpin closes the log only if the store was closed
// meanwhile, so a read-only store stays usable after the scan.
func (s *Store) pin() error {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if s.closed || s.logClosed {
		return ErrClosed
	}
	s.refs++
	return nil
}

func (s *Store) unpin() {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if s.refs > 0 {
		s.refs--
	}
	if s.refs == 0 && s.closed {
		s.closeLogLocked()
	}
}

func (s *Store) releaseLocked() {
	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs == 0 {
		s.closeLogLocked()
	}
}

// closeLogLocked closes the log exactly once. Must be called with refMu held.
func (s *Store) closeLogLocked() {
	if s.logClosed {
		return
	}
	s.logClosed = true
	runtime.SetFinalizer(s, nil)

	if err := s.log.Close(); err != nil {
		s.closeErr = errors.Wrap(err, "close log")
		s.logger.Error("failed to close log", "session", s.session.String(), "error", err)
		return
	}
	s.logger.Debug("closed event store", "session", s.session.String())
}

// isClosed reports whether the store was closed or its log released
func (s *Store) isClosed() bool {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	return s.closed || s.logClosed
}

// finalize closes a log that was never released
func (s *Store) finalize() {
	s.refMu.Lock()
	defer s.refMu.Unlock()
	if s.logClosed {
		return
	}
	s.logger.Error("event store garbage collected without being closed",
		"session", s.session.String(),
		"base_path", s.cfg.BasePath,
		"open_references", s.refs)
	s.closeLogLocked()
}
