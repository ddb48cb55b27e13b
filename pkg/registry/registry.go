// Package registry maps payload type names to one-byte tags and persists the
// mapping in a sidecar file next to the log.
//
// The sidecar is UTF-8 text with one "name,tag" pair per line and no header:
//
//	string,0
//	github.com/acme/orders.Placed,1
//
// Storing the mapping out of band keeps the per-record overhead at one byte
// no matter how long the type names are.
package registry

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// FileExtension is appended to a store's base path to name its sidecar file.
const FileExtension = ".mapping"

// MaxTypes is the number of distinct tags a registry can hold.
const MaxTypes = 256

var (
	// ErrRegistryFull is returned when every tag is taken.
	ErrRegistryFull = errors.New("type registry is full")
	// ErrUnresolvedType is returned when the sidecar names a type that has no
	// handler registered in this process.
	ErrUnresolvedType = errors.New("unresolved type in mapping file")
)

// Entry is one name to tag assignment
type Entry struct {
	Name string
	Tag  uint8
}

// Registry is a bidirectional name/tag map backed by a sidecar file.
// It is safe for concurrent use.
type Registry struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	byName map[string]uint8
	byTag  map[uint8]string
}

// New returns an empty registry persisted at path
func New(path string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		path:   path,
		logger: logger.With("component", "registry"),
		byName: make(map[string]uint8),
		byTag:  make(map[uint8]string),
	}
}

// Load reads the sidecar file at path. A missing file yields an empty
// registry. Malformed lines are logged and skipped. Every persisted name must
// satisfy known, otherwise Load fails with ErrUnresolvedType naming all of
// them. A nil known accepts every name.
func Load(path string, known func(name string) bool, logger *slog.Logger) (*Registry, error) {
	r := New(path, logger)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, errors.Wrapf(err, "open mapping file %s", path)
	}
	defer file.Close()

	var unresolved []string
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		name, tag, ok := r.parseLine(line, lineNo)
		if !ok {
			continue
		}
		if known != nil && !known(name) {
			unresolved = append(unresolved, name)
			continue
		}
		r.byName[name] = tag
		r.byTag[tag] = name
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read mapping file %s", path)
	}

	if len(unresolved) > 0 {
		return nil, errors.Wrapf(ErrUnresolvedType,
			"%s names types without a registered handler: %s", path, strings.Join(unresolved, ", "))
	}
	return r, nil
}

// parseLine splits one "name,tag" line, logging why a line is rejected
func (r *Registry) parseLine(line string, lineNo int) (string, uint8, bool) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 || parts[0] == "" {
		r.logger.Warn("invalid line in mapping file", "path", r.path, "line", lineNo, "content", line)
		return "", 0, false
	}

	tag, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 8)
	if err != nil {
		r.logger.Warn("invalid tag in mapping file", "path", r.path, "line", lineNo, "content", line)
		return "", 0, false
	}

	name := parts[0]
	if prev, ok := r.byTag[uint8(tag)]; ok && prev != name {
		r.logger.Warn("duplicate tag in mapping file", "path", r.path, "line", lineNo, "tag", tag, "first", prev)
		return "", 0, false
	}
	if prev, ok := r.byName[name]; ok && prev != uint8(tag) {
		r.logger.Warn("duplicate type in mapping file", "path", r.path, "line", lineNo, "type", name, "first", prev)
		return "", 0, false
	}
	return name, uint8(tag), true
}

// Assign returns the tag of name, assigning max(tag)+1 if it has none yet.
// The second return value reports whether a new tag was assigned.
func (r *Registry) Assign(name string) (uint8, bool, error) {
	if name == "" || strings.ContainsAny(name, ",\r\n") {
		return 0, false, errors.Newf("invalid type name %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if tag, ok := r.byName[name]; ok {
		return tag, false, nil
	}

	next := 0
	for tag := range r.byTag {
		if int(tag)+1 > next {
			next = int(tag) + 1
		}
	}
	if next >= MaxTypes {
		return 0, false, errors.Wrapf(ErrRegistryFull, "cannot assign a tag to %s", name)
	}

	tag := uint8(next)
	r.byName[name] = tag
	r.byTag[tag] = name
	return tag, true, nil
}

// TagOf returns the tag assigned to name
func (r *Registry) TagOf(name string) (uint8, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.byName[name]
	return tag, ok
}

// NameOf returns the name assigned to tag
func (r *Registry) NameOf(tag uint8) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byTag[tag]
	return name, ok
}

// Len returns the number of assigned tags
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTag)
}

// Entries returns all assignments ordered by tag
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entriesLocked()
}

func (r *Registry) entriesLocked() []Entry {
	entries := make([]Entry, 0, len(r.byTag))
	for tag, name := range r.byTag {
		entries = append(entries, Entry{Name: name, Tag: tag})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Tag < entries[j].Tag })
	return entries
}

// Path returns the sidecar file path
func (r *Registry) Path() string {
	return r.path
}

// Persist rewrites the sidecar file. The new content goes to a temporary
// file in the same directory which then replaces the old file, so a crash
// never leaves a truncated mapping behind.
func (r *Registry) Persist() error {
	r.mu.RLock()
	entries := r.entriesLocked()
	r.mu.RUnlock()
	return r.write(entries)
}

// Ensure assigns a tag to name like Assign and persists the sidecar when the
// tag is new. If persisting fails the assignment is rolled back.
func (r *Registry) Ensure(name string) (uint8, error) {
	tag, created, err := r.Assign(name)
	if err != nil || !created {
		return tag, err
	}

	if err := r.Persist(); err != nil {
		r.mu.Lock()
		delete(r.byName, name)
		delete(r.byTag, tag)
		r.mu.Unlock()
		return 0, err
	}
	r.logger.Debug("assigned type tag", "type", name, "tag", tag)
	return tag, nil
}

func (r *Registry) write(entries []Entry) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.Wrapf(err, "create mapping directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temporary mapping file")
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s,%d\n", e.Name, e.Tag); err != nil {
			cleanup()
			return errors.Wrap(err, "write mapping file")
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return errors.Wrap(err, "flush mapping file")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrap(err, "sync mapping file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "close mapping file")
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "replace mapping file %s", r.path)
	}
	return nil
}
