package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileRecordWriter persists records as JSON files, one per item, grouped
// by partition label.
type FileRecordWriter struct{}

// NewFileRecordWriter returns a writer.
func NewFileRecordWriter() *FileRecordWriter { return &FileRecordWriter{} }

// WriteRecord writes outputDir/<partitionLabel>/<id>.json and returns the path.
func (w *FileRecordWriter) WriteRecord(ctx context.Context, rec *Record, partitionLabel, outputDir string) (string, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("record has no id")
	}

	dir := filepath.Join(outputDir, sanitize(partitionLabel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create record directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	path := filepath.Join(dir, sanitize(rec.ID)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return path, nil
}
