// Package extract defines the content-extraction collaborator contracts
// consumed by the orchestrator, plus reference implementations that parse
// the item detail view's HTML.
package extract

import "context"

// Page is the minimal surface extractors need from a detail view.
type Page interface {
	HTML(ctx context.Context) (string, error)
}

// Asset is one extracted media artifact (figure, table, related text).
type Asset struct {
	Category string `json:"category"`
	Path     string `json:"path"`
}

// Record is the structured result of extracting one catalog item.
type Record struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	PartitionLabel string            `json:"partitionLabel"`
	Fields         map[string]string `json:"fields,omitempty"`
	Assets         []Asset           `json:"assets,omitempty"`
}

// RecordParser turns a detail view into a structured record.
type RecordParser interface {
	ParseRecord(ctx context.Context, page Page, partitionLabel string) (*Record, error)
}

// AssetExtractor extracts one category of media assets from a detail view.
type AssetExtractor interface {
	Category() string
	ExtractRecordAssets(ctx context.Context, page Page, itemID, partitionLabel, outputDir string) ([]Asset, error)
}

// RecordWriter persists a finished record and returns the written path.
type RecordWriter interface {
	WriteRecord(ctx context.Context, rec *Record, partitionLabel, outputDir string) (string, error)
}
