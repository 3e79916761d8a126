// Package artifacts provides ephemeral storage for diagnostic snapshots
// (screenshots captured around failures). Every saved artifact is tracked
// in the store registry so bulk cleanup works even when individual call
// sites forget to clean up after themselves.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type entry struct {
	size    int64
	created time.Time
}

// Store writes artifacts under a single directory and tracks them.
type Store struct {
	dir string
	log *zap.Logger

	mu       sync.Mutex
	registry map[string]entry
}

// Stats summarizes the live registry.
type Stats struct {
	Count          int
	TotalSizeBytes int64
}

// NewStore creates the artifact directory if needed and adopts any
// artifacts already present, so cleanup also covers files left behind by
// prior runs.
func NewStore(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	registry := make(map[string]entry)
	existing, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan artifact directory: %w", err)
	}
	for _, de := range existing {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		registry[filepath.Join(dir, de.Name())] = entry{size: info.Size(), created: info.ModTime()}
	}
	if len(registry) > 0 {
		log.Debug("adopted artifacts from prior runs", zap.Int("count", len(registry)))
	}

	return &Store{
		dir:      dir,
		log:      log,
		registry: registry,
	}, nil
}

// Save decodes the payload and writes it to a fresh file, returning the path.
func (s *Store) Save(p Payload) (string, error) {
	data, err := p.Decode()
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, uuid.NewString()+".png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	s.mu.Lock()
	s.registry[path] = entry{size: int64(len(data)), created: time.Now()}
	s.mu.Unlock()

	s.log.Debug("artifact saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// Cleanup removes one artifact. Returns false if the path is untracked
// or removal failed.
func (s *Store) Cleanup(path string) bool {
	s.mu.Lock()
	_, tracked := s.registry[path]
	delete(s.registry, path)
	s.mu.Unlock()

	if !tracked {
		return false
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("artifact cleanup failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}

// CleanupAll removes every tracked artifact and returns how many were removed.
func (s *Store) CleanupAll() int {
	return s.cleanupWhere(func(entry) bool { return true })
}

// CleanupOlderThan removes tracked artifacts older than maxAge.
func (s *Store) CleanupOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	return s.cleanupWhere(func(e entry) bool { return e.created.Before(cutoff) })
}

func (s *Store) cleanupWhere(match func(entry) bool) int {
	s.mu.Lock()
	victims := make([]string, 0, len(s.registry))
	for path, e := range s.registry {
		if match(e) {
			victims = append(victims, path)
			delete(s.registry, path)
		}
	}
	s.mu.Unlock()

	removed := 0
	for _, path := range victims {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("artifact cleanup failed", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// Stats returns registry counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Count: len(s.registry)}
	for _, e := range s.registry {
		st.TotalSizeBytes += e.size
	}
	return st
}
