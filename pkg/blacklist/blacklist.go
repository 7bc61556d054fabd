// Package blacklist persists the set of tweet IDs excluded from future
// processing. The file format is line oriented and human editable: one ID
// per line, optionally followed by " # reason". Lines starting with '#'
// and blank lines are ignored.
package blacklist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"twdl/pkg/errors"
	"twdl/pkg/logger"
)

const fileHeader = "# Blacklisted tweet IDs, one per line. Text after '#' is kept as a note."

// Store is the exclusion-set contract consulted by the pipeline
type Store interface {
	Contains(id string) bool
	Add(id, reason string)
	Remove(id string)
	Len() int
	IDs() []string
}

// FileStore is a Store backed by a line-oriented text file. It holds the
// whole set in memory between Load and Save; persistence happens once per
// batch, not per item, so a crash loses at most the current run's additions.
// Single-process usage is assumed, there is no concurrent-writer protection.
type FileStore struct {
	path    string
	entries map[string]string // id -> optional reason
	logger  logger.Logger
}

// NewFileStore creates a file-backed blacklist store
func NewFileStore(path string, log logger.Logger) *FileStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FileStore{
		path:    path,
		entries: make(map[string]string),
		logger:  log,
	}
}

// Load reads the blacklist file. A missing file is treated as an empty set
// and a default file is created in its place.
func (s *FileStore) Load() error {
	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.logger.InfoWithFields("creating default blacklist file", map[string]interface{}{
			"path": s.path,
		})
		return s.Save()
	}
	if err != nil {
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to open blacklist file %s: %v", s.path, err)
	}
	defer file.Close()

	s.entries = make(map[string]string)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		id := line
		reason := ""
		if idx := strings.Index(line, "#"); idx >= 0 {
			id = strings.TrimSpace(line[:idx])
			reason = strings.TrimSpace(line[idx+1:])
		}
		if id != "" {
			s.entries[id] = reason
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to read blacklist file %s: %v", s.path, err)
	}

	s.logger.DebugWithFields("blacklist loaded", map[string]interface{}{
		"path":    s.path,
		"entries": len(s.entries),
	})
	return nil
}

// Save writes the set back to disk. The write goes to a temporary file
// first and is moved into place with an atomic rename.
func (s *FileStore) Save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.New(errors.ErrorTypeLocalIO, 0, "failed to create blacklist directory: %v", err)
		}
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to create temporary blacklist file: %v", err)
	}

	w := bufio.NewWriter(file)
	fmt.Fprintln(w, fileHeader)
	for _, id := range s.IDs() {
		if reason := s.entries[id]; reason != "" {
			fmt.Fprintf(w, "%s # %s\n", id, reason)
		} else {
			fmt.Fprintln(w, id)
		}
	}

	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to write blacklist file: %v", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to close blacklist file: %v", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return errors.New(errors.ErrorTypeLocalIO, 0, "failed to replace blacklist file: %v", err)
	}

	s.logger.DebugWithFields("blacklist saved", map[string]interface{}{
		"path":    s.path,
		"entries": len(s.entries),
	})
	return nil
}

// Contains reports whether the ID is blacklisted
func (s *FileStore) Contains(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// Add inserts an ID with an optional reason. Adding an existing ID
// overwrites its reason.
func (s *FileStore) Add(id, reason string) {
	s.entries[id] = reason
}

// Remove drops an ID from the set
func (s *FileStore) Remove(id string) {
	delete(s.entries, id)
}

// Len returns the number of blacklisted IDs
func (s *FileStore) Len() int {
	return len(s.entries)
}

// IDs returns the blacklisted IDs in stable sorted order
func (s *FileStore) IDs() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Prune removes IDs that are no longer present in the service's likes
// window, returning the number removed. Those tweets can never be listed
// again, so keeping them only grows the file.
func (s *FileStore) Prune(live map[string]struct{}) int {
	removed := 0
	for id := range s.entries {
		if _, ok := live[id]; !ok {
			delete(s.entries, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.InfoWithFields("pruned expired IDs from blacklist", map[string]interface{}{
			"removed": removed,
		})
	}
	return removed
}

// MemoryStore is an in-memory Store for tests and blacklist-free runs
type MemoryStore struct {
	entries map[string]string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

func (m *MemoryStore) Contains(id string) bool {
	_, ok := m.entries[id]
	return ok
}

func (m *MemoryStore) Add(id, reason string) {
	m.entries[id] = reason
}

func (m *MemoryStore) Remove(id string) {
	delete(m.entries, id)
}

func (m *MemoryStore) Len() int {
	return len(m.entries)
}

func (m *MemoryStore) IDs() []string {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
