package filelog

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const segmentExt = ".log"

// segment is one data file of the log
type segment struct {
	path  string
	start time.Time // start of the cycle; zero for the fixed layout
}

// layout resolves segment file names for one log
type layout struct {
	basePath    string
	cycling     bool
	cycleLength time.Duration
	cycleFormat string
}

func (l layout) dir() string {
	if l.cycling {
		return l.basePath + ".d"
	}
	return filepath.Dir(l.basePath)
}

// segmentFor returns the segment that receives writes made at t
func (l layout) segmentFor(t time.Time) segment {
	if !l.cycling {
		return segment{path: l.basePath + segmentExt}
	}
	cycle := l.cycleLength.Milliseconds()
	start := time.UnixMilli(t.UnixMilli() / cycle * cycle).UTC()
	return segment{
		path:  filepath.Join(l.dir(), start.Format(l.cycleFormat)+segmentExt),
		start: start,
	}
}

// list returns the existing segments in write order
func (l layout) list() ([]segment, error) {
	if !l.cycling {
		path := l.basePath + segmentExt
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		return []segment{{path: path}}, nil
	}

	entries, err := os.ReadDir(l.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	segments := make([]segment, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, segmentExt) {
			continue
		}
		start, err := time.Parse(l.cycleFormat, strings.TrimSuffix(name, segmentExt))
		if err != nil {
			continue // not one of ours
		}
		segments = append(segments, segment{path: filepath.Join(l.dir(), name), start: start})
	}
	sort.Slice(segments, func(i, j int) bool {
		return segments[i].start.Before(segments[j].start)
	})
	return segments, nil
}

// after returns the first segment that follows cur, if any
func (l layout) after(cur segment) (segment, bool, error) {
	if !l.cycling {
		return segment{}, false, nil
	}
	segments, err := l.list()
	if err != nil {
		return segment{}, false, err
	}
	for _, s := range segments {
		if s.start.After(cur.start) {
			return s, true, nil
		}
	}
	return segment{}, false, nil
}
