package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Store reads and writes checkpoint files, one per partition.
// Writes are atomic (temp file + rename) so a reader never observes a
// half-written checkpoint.
type Store struct {
	dir string
	log *zap.Logger
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) path(partitionID string) string {
	return filepath.Join(s.dir, partitionID+".json")
}

// Exists reports whether a checkpoint file is present for the partition.
func (s *Store) Exists(partitionID string) bool {
	_, err := os.Stat(s.path(partitionID))
	return err == nil
}

// Load returns the checkpoint for a partition, or nil when none exists.
func (s *Store) Load(partitionID string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.path(partitionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint %s: %w", partitionID, err)
	}
	if cp.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("checkpoint %s: unsupported schema version %d", partitionID, cp.SchemaVersion)
	}
	cp.ensureIndex()
	// Repair the count if a hand-edited file broke the invariant.
	cp.ProcessedCount = len(cp.ProcessedItemIDs)
	return &cp, nil
}

// Save writes the checkpoint atomically.
func (s *Store) Save(cp *Checkpoint) error {
	cp.Timestamp = time.Now().UTC()
	cp.SchemaVersion = SchemaVersion
	cp.sortIDs()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, cp.PartitionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(cp.PartitionID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace checkpoint: %w", err)
	}

	s.log.Debug("checkpoint saved",
		zap.String("partition", cp.PartitionID),
		zap.Int("processed", cp.ProcessedCount),
		zap.Int("page", cp.CurrentPage))
	return nil
}

// Delete removes the partition's checkpoint. Missing files are not an error.
func (s *Store) Delete(partitionID string) error {
	if err := os.Remove(s.path(partitionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
