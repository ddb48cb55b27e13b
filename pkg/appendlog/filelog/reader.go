package filelog

import (
	"io"
	"os"
)

// reader provides sequential access to the records of a log. It keeps its
// own file handle so readers never share positions with each other or with
// the writer.
type reader struct {
	layout  layout
	file    *os.File
	seg     segment
	started bool
	offset  int64
	current []byte
	err     error
	closed  bool
}

func newReader(l layout) *reader {
	return &reader{layout: l}
}

// Advance moves to the next complete record, crossing segment boundaries
func (r *reader) Advance() bool {
	if r.closed || r.err != nil {
		return false
	}

	for {
		if r.file == nil && !r.openNext() {
			return false
		}

		data, next, err := readFrame(r.file, r.offset)
		if err == nil {
			r.current = data
			r.offset = next
			return true
		}
		if err != io.EOF {
			r.err = err
			return false
		}

		// End of this segment; move on only if a later one exists
		later, ok, err := r.layout.after(r.seg)
		if err != nil {
			r.err = err
			return false
		}
		if !ok {
			return false
		}
		_ = r.file.Close()
		r.file = nil
		r.seg = later
		r.offset = 0
		if !r.openSegment(later) {
			return false
		}
	}
}

// openNext opens the first segment, or retries the current one after it was
// missing on an earlier call
func (r *reader) openNext() bool {
	if r.started {
		return r.openSegment(r.seg)
	}
	segments, err := r.layout.list()
	if err != nil {
		r.err = err
		return false
	}
	if len(segments) == 0 {
		return false
	}
	r.started = true
	r.seg = segments[0]
	return r.openSegment(r.seg)
}

func (r *reader) openSegment(seg segment) bool {
	file, err := os.Open(seg.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		r.err = err
		return false
	}
	r.file = file
	return true
}

// Current returns the current record. Each record is read into a fresh slice.
func (r *reader) Current() []byte {
	return r.current
}

// Err returns the first error hit by Advance
func (r *reader) Err() error {
	return r.err
}

// Close closes the reader's file handle
func (r *reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
