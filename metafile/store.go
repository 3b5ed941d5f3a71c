package metafile

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store holds the metadata record of one directory: the compacted view
// of everything already on disk plus batches added but not yet written.
type Store struct {
	// Path is the record file. The file may not exist yet; it is only
	// created by the first Write with pending batches.
	Path string

	// current value per (object, key), compacted from the whole history
	entries map[string]map[string]DatedValue
	// object names in order of first appearance
	objects []string
	// batches added but not yet written to disk
	pending []*Batch
}

// OpenStore loads the record at s.Path into memory. A missing file is
// not an error: the store starts empty and no file is created.
// Loading never mutates the file.
func OpenStore(s *Store) error {
	if s.Path == "" {
		return fmt.Errorf("record file path is not set")
	}
	var err error
	s.Path, err = filepath.Abs(s.Path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for record file: %w", err)
	}
	s.entries = map[string]map[string]DatedValue{}
	s.objects = nil
	s.pending = nil

	file, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	batches, err := ParseRecord(bufio.NewScanner(file))
	if err != nil {
		return fmt.Errorf("failed to read record file %s: %w", s.Path, err)
	}
	for _, b := range batches {
		s.apply(b)
	}
	return nil
}

// merge a batch into entries. A value wins if its time is not before
// the incumbent's, so replaying a file in order and layering pending
// batches on top resolve the same way.
func (s *Store) apply(b *Batch) {
	m := s.entries[b.Object]
	if m == nil {
		m = map[string]DatedValue{}
		s.entries[b.Object] = m
		s.objects = append(s.objects, b.Object)
	}
	for k, v := range b.Properties {
		if old, ok := m[k]; ok && b.Time.Before(old.Time) {
			continue
		}
		m[k] = DatedValue{Value: v, Time: b.Time}
	}
}

// Add records a batch for the next Write and merges it into the
// in-memory state so reads see it immediately.
// If b.Time is zero it is set to the current time.
func (s *Store) Add(b *Batch) {
	if b.Time.IsZero() {
		b.Time = time.Now()
	}
	s.pending = append(s.pending, b)
	s.apply(b)
}

// appendToFileRobust appends data to the file at path, creating it if
// needed, and syncs before closing. Existing bytes are never touched.
func appendToFileRobust(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return err
	}
	_, err = file.Write(data)
	if err != nil {
		file.Close()
		return err
	}
	err = file.Sync()
	if err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Write appends all pending batches to the record file, in the order
// they were added, then clears them. With nothing pending the file is
// left untouched (and not created). On failure pending batches are
// kept so the caller may retry.
//
// Write is append-only at the byte level. There is no locking: two
// processes appending to the same record at the same time can
// interleave and corrupt the line structure.
func (s *Store) Write() error {
	if len(s.pending) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, b := range s.pending {
		marshalBatch(&buf, b)
	}
	if err := appendToFileRobust(s.Path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append to record file %s: %w", s.Path, err)
	}
	s.pending = nil
	return nil
}

// Get returns the current value for (object, key).
func (s *Store) Get(object, key string) (DatedValue, bool) {
	m := s.entries[object]
	if m == nil {
		return DatedValue{}, false
	}
	dv, ok := m[key]
	return dv, ok
}

// Objects returns the tracked object names in the order they were
// first introduced.
// no direct access to the slice so callers can't reorder it
func (s *Store) Objects() []string {
	return append([]string{}, s.objects...)
}

// Properties returns a copy of the property map for one object.
// Returns nil for unknown objects.
func (s *Store) Properties(object string) map[string]DatedValue {
	m := s.entries[object]
	if m == nil {
		return nil
	}
	res := make(map[string]DatedValue, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}

// Pending returns a copy of the batches not yet written to disk.
func (s *Store) Pending() []*Batch {
	return append([]*Batch{}, s.pending...)
}
