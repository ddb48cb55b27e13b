package eventstore

import (
	"math"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/itm/eventstore/pkg/appendlog"
	"github.com/itm/eventstore/pkg/codec"
)

const minTimestamp = math.MinInt64

// Event is one decoded record
type Event struct {
	Timestamp int64 // milliseconds since the epoch
	Type      string
	Value     any
}

// Time returns the timestamp as a time.Time
func (e Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

type iterState int

const (
	stateSeeking iterState = iota
	statePositioned
	stateExhausted
)

// Iterator walks the events of a store in log order. It holds a reference
// on the store's log until Close is called. An Iterator is not safe for
// concurrent use.
type Iterator struct {
	store   *Store
	reader  appendlog.Reader
	from    int64
	to      int64
	bounded bool

	state   iterState
	pending *Event
	err     error

	closeOnce sync.Once
	closeErr  error
}

func (s *Store) newIterator(from, to int64, bounded bool) (*Iterator, error) {
	if err := s.acquire(); err != nil {
		return nil, err
	}

	reader, err := s.log.NewReader()
	if err != nil {
		_ = s.release()
		if errors.Is(err, appendlog.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, errors.Wrap(err, "open reader")
	}
	s.metrics.IteratorOpened()

	it := &Iterator{
		store:   s,
		reader:  reader,
		from:    from,
		to:      to,
		bounded: bounded,
	}
	if bounded && to < from {
		it.state = stateExhausted
		return it, nil
	}
	if from <= 0 {
		// no lower bound: the first record in the log is the start
		it.from = minTimestamp
	}
	it.seek()
	return it, nil
}

// seek positions the iterator on the first event with ts >= from. For
// bounded iterators that event must also satisfy ts <= to.
func (it *Iterator) seek() {
	for {
		ts, data, ok := it.advanceRaw()
		if !ok {
			return
		}
		if ts < it.from {
			continue
		}
		if it.bounded && ts > it.to {
			if it.store.cfg.Monotonic {
				it.state = stateExhausted
				return
			}
			continue
		}
		it.position(ts, data)
		return
	}
}

// advance loads the event following the current one
func (it *Iterator) advance() {
	for {
		ts, data, ok := it.advanceRaw()
		if !ok {
			return
		}
		if it.store.cfg.Monotonic {
			// Log order is timestamp order, so only the upper bound matters
			if it.bounded && ts > it.to {
				it.state = stateExhausted
				return
			}
		} else if ts < it.from || (it.bounded && ts > it.to) {
			continue
		}
		it.position(ts, data)
		return
	}
}

// advanceRaw moves the reader to the next record and decodes its timestamp.
// It marks the iterator exhausted when the log ends or fails.
func (it *Iterator) advanceRaw() (int64, []byte, bool) {
	if !it.reader.Advance() {
		if err := it.reader.Err(); err != nil {
			it.fail(errors.Wrap(err, "read log"))
		} else {
			it.state = stateExhausted
		}
		return 0, nil, false
	}
	data := it.reader.Current()
	ts, _, err := codec.DecodeHeader(data)
	if err != nil {
		it.fail(errors.Mark(err, ErrInvalidRecord))
		return 0, nil, false
	}
	return ts, data, true
}

func (it *Iterator) position(ts int64, data []byte) {
	ev, err := it.store.decode(data)
	if err != nil {
		it.fail(err)
		return
	}
	it.pending = &ev
	it.state = statePositioned
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.pending = nil
	it.state = stateExhausted
}

// HasNext reports whether Next will return an event
func (it *Iterator) HasNext() bool {
	if it.state == stateSeeking && it.pending == nil {
		it.advance()
	}
	return it.state == statePositioned
}

// Next returns the next event. It returns ErrExhausted when no event is
// left, or the error that stopped iteration.
func (it *Iterator) Next() (Event, error) {
	if !it.HasNext() {
		if it.err != nil {
			return Event{}, it.err
		}
		return Event{}, ErrExhausted
	}
	ev := *it.pending
	it.pending = nil
	it.state = stateSeeking
	return ev, nil
}

// Err returns the first decode or I/O error encountered
func (it *Iterator) Err() error {
	return it.err
}

// Close releases the reader and the iterator's reference on the log.
// Calling Close more than once is a no-op.
func (it *Iterator) Close() error {
	it.closeOnce.Do(func() {
		it.state = stateExhausted
		it.pending = nil
		if err := it.reader.Close(); err != nil {
			it.closeErr = errors.Wrap(err, "close reader")
		}
		it.store.metrics.IteratorClosed()
		if err := it.store.release(); err != nil && it.closeErr == nil {
			it.closeErr = err
		}
	})
	return it.closeErr
}

// decode turns a raw record into an event
func (s *Store) decode(data []byte) (Event, error) {
	rec, err := codec.Decode(data)
	if err != nil {
		return Event{}, errors.Mark(err, ErrInvalidRecord)
	}
	name, ok := s.registry.NameOf(rec.Tag)
	if !ok {
		return Event{}, errors.Wrapf(ErrNoDeserializer, "unknown type tag %d at timestamp %d", rec.Tag, rec.Timestamp)
	}
	v, err := s.serde.Deserialize(name, rec.Payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Timestamp: rec.Timestamp, Type: name, Value: v}, nil
}

// Collect drains it into a slice and closes it
func Collect(it *Iterator) ([]Event, error) {
	defer it.Close()

	var events []Event
	for it.HasNext() {
		ev, err := it.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	if err := it.Err(); err != nil {
		return events, err
	}
	return events, it.Close()
}
