// Package checkpoint persists per-partition extraction progress so a run
// can resume after a crash or forced stop without re-processing items.
package checkpoint

import (
	"sort"
	"time"
)

// SchemaVersion is bumped when the on-disk layout changes.
const SchemaVersion = 1

// Checkpoint is the durable progress record for one partition.
// ProcessedItemIDs only grows, and ProcessedCount always equals its size.
type Checkpoint struct {
	PartitionID      string    `json:"partitionId"`
	PartitionLabel   string    `json:"partitionLabel"`
	CurrentPage      int       `json:"currentPage"`
	ProcessedCount   int       `json:"processedCount"`
	LastItemID       string    `json:"lastItemId"`
	ProcessedItemIDs []string  `json:"processedItemIds"`
	Timestamp        time.Time `json:"timestamp"`
	SchemaVersion    int       `json:"schemaVersion"`

	processed map[string]struct{}
}

// New returns an empty checkpoint for a partition.
func New(partitionID, label string) *Checkpoint {
	return &Checkpoint{
		PartitionID:    partitionID,
		PartitionLabel: label,
		CurrentPage:    1,
		SchemaVersion:  SchemaVersion,
		processed:      make(map[string]struct{}),
	}
}

func (c *Checkpoint) ensureIndex() {
	if c.processed == nil {
		c.processed = make(map[string]struct{}, len(c.ProcessedItemIDs))
		for _, id := range c.ProcessedItemIDs {
			c.processed[id] = struct{}{}
		}
	}
}

// Processed reports whether the item id has already been handled.
func (c *Checkpoint) Processed(id string) bool {
	c.ensureIndex()
	_, ok := c.processed[id]
	return ok
}

// MarkProcessed records an item id. Returns false if it was already present.
// The count invariant (ProcessedCount == len(ProcessedItemIDs)) is maintained
// here and nowhere else.
func (c *Checkpoint) MarkProcessed(id string) bool {
	c.ensureIndex()
	if _, ok := c.processed[id]; ok {
		return false
	}
	c.processed[id] = struct{}{}
	c.ProcessedItemIDs = append(c.ProcessedItemIDs, id)
	c.ProcessedCount = len(c.ProcessedItemIDs)
	c.LastItemID = id
	return true
}

// sortIDs normalizes the serialized set so checkpoint files are stable.
func (c *Checkpoint) sortIDs() {
	sort.Strings(c.ProcessedItemIDs)
}
