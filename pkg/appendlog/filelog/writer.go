package filelog

import (
	"bufio"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// writer handles append-only writes to the active segment
type writer struct {
	layout     layout
	file       *os.File
	buf        *bufio.Writer
	active     segment
	fsyncTimer *time.Timer
	interval   time.Duration
	bufSize    int
	mutex      sync.Mutex
}

func newWriter(l layout, bufSize int, interval time.Duration) *writer {
	w := &writer{
		layout:   l,
		bufSize:  bufSize,
		interval: interval,
	}

	// Set up fsync timer if interval is configured
	if interval > 0 {
		w.fsyncTimer = time.AfterFunc(interval, func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()
			_ = w.sync() // Ignore error in timer callback
		})
	}
	return w
}

// open switches the writer to seg, creating the file when needed
func (w *writer) open(seg segment) error {
	if w.file != nil && w.active.path == seg.path {
		return nil
	}
	if w.file != nil {
		if err := w.closeFile(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(seg.path), 0750); err != nil {
		return err
	}

	file, err := os.OpenFile(seg.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}

	w.file = file
	w.buf = bufio.NewWriterSize(file, w.bufSize)
	w.active = seg
	return nil
}

// write appends one encoded frame into the segment for now. Writes never go
// to a segment older than the active one, even if the clock moves backwards.
func (w *writer) write(frame []byte, now time.Time) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	seg := w.layout.segmentFor(now)
	if w.file != nil && seg.start.Before(w.active.start) {
		seg = w.active
	}
	if err := w.open(seg); err != nil {
		return err
	}

	if _, err := w.buf.Write(frame); err != nil {
		return err
	}

	// Flush so readers see the whole frame
	if err := w.buf.Flush(); err != nil {
		return err
	}

	if w.interval == 0 {
		return w.file.Sync()
	}
	if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.interval)
	}
	return nil
}

// sync performs the actual fsync operation (internal method)
func (w *writer) sync() error {
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *writer) closeFile() error {
	if w.file == nil {
		return nil
	}
	err := w.sync()
	if closeErr := w.file.Close(); err == nil {
		err = closeErr
	}
	w.file = nil
	w.buf = nil
	w.active = segment{}
	return err
}

// close stops the fsync timer and closes the active segment
func (w *writer) close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}
	return w.closeFile()
}
