package orchestrator

import (
	"context"
	"fmt"

	"harvester/internal/checkpoint"
	"harvester/internal/oracle"
	"harvester/internal/retry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// extractState runs the paginated per-item extraction loop with
// fine-grained checkpointing. Per-item failures are contained at item
// granularity; only the fatal usage-limit signal aborts the partition,
// and it does so through an emergency checkpoint first.
type extractState struct{ o *Orchestrator }

func (s *extractState) Execute(ctx context.Context, rc *RunContext) (StateID, error) {
	deps := s.o.deps
	cfg := deps.Config

	cp, err := deps.Checkpoints.Load(rc.Partition.ID)
	if err != nil {
		return StateExit, err
	}
	if cp != nil {
		rc.Result.Resumed = true
		s.o.log.Info("resuming from checkpoint",
			zap.Int("processed", cp.ProcessedCount),
			zap.String("last_item", cp.LastItemID),
			zap.Int("last_page", cp.CurrentPage))
	} else {
		cp = checkpoint.New(rc.Partition.ID, rc.Partition.Label)
	}

	freq := cfg.CheckpointFrequency
	if freq <= 0 {
		freq = 10
	}

	for {
		rc.Result.Pages++

		items, err := rc.Catalog.Items(ctx)
		if err != nil {
			return StateExit, fmt.Errorf("enumerate page %d: %w", rc.Result.Pages, err)
		}

		for _, item := range items {
			if err := s.processItem(ctx, rc, cp, item, freq); err != nil {
				if oracle.IsUsageLimit(err) {
					s.emergencyCheckpoint(cp)
					return StateExit, err
				}
				// Single-item failure never aborts the partition.
				s.o.log.Warn("item failed, continuing",
					zap.String("item", item.ID()),
					zap.Int("page", rc.Result.Pages),
					zap.Error(err))
			}
		}

		advanced, err := rc.Catalog.NextPage(ctx)
		if err != nil {
			return StateExit, fmt.Errorf("advance past page %d: %w", rc.Result.Pages, err)
		}
		if !advanced {
			break
		}
		cp.CurrentPage = rc.Result.Pages + 1
	}

	// Full completion: no resume state is needed anymore.
	if err := deps.Checkpoints.Delete(rc.Partition.ID); err != nil {
		return StateExit, err
	}
	return StateExit, nil
}

// processItem runs one item as a single unit through the smart retry
// wrapper: open detail, extract, skip-or-persist, close, checkpoint on
// cadence.
func (s *extractState) processItem(ctx context.Context, rc *RunContext, cp *checkpoint.Checkpoint, item ItemHandle, freq int) error {
	deps := s.o.deps
	cfg := deps.Config

	opts := retry.Options{
		Operation:      fmt.Sprintf("extract item %q", item.ID()),
		PartitionLabel: rc.Partition.Label,
		MaxRetries:     cfg.MaxRetries,
		Snapshot:       rc.Session.Screenshot,
	}

	return deps.Retry.Do(ctx, opts, func(ctx context.Context) error {
		detail, err := item.OpenDetail(ctx)
		if err != nil {
			return fmt.Errorf("open detail: %w", err)
		}

		rec, err := deps.Parser.ParseRecord(ctx, detail, rc.Partition.Label)
		if err != nil {
			s.closeDetail(ctx, detail)
			return err
		}
		if rec.ID == "" {
			rec.ID = item.ID()
		}
		if rec.ID == "" {
			// No extractable identifier: assign a placeholder so the item
			// still lands in the processed set and is not retried forever.
			rec.ID = "item-" + uuid.NewString()
			s.o.log.Warn("item has no identifier, assigned placeholder", zap.String("id", rec.ID))
		}

		if cp.Processed(rec.ID) {
			rc.Result.Skipped++
			s.closeDetail(ctx, detail)
			return nil
		}

		for _, ax := range deps.AssetExtractors {
			assets, err := ax.ExtractRecordAssets(ctx, detail, rec.ID, rc.Partition.Label, cfg.OutputDir)
			if err != nil {
				s.closeDetail(ctx, detail)
				return fmt.Errorf("extract %s assets: %w", ax.Category(), err)
			}
			rec.Assets = append(rec.Assets, assets...)
		}

		if _, err := deps.Writer.WriteRecord(ctx, rec, rc.Partition.Label, cfg.OutputDir); err != nil {
			s.closeDetail(ctx, detail)
			return err
		}

		cp.MarkProcessed(rec.ID)
		rc.Result.Processed++
		s.closeDetail(ctx, detail)

		if cp.ProcessedCount%freq == 0 {
			if err := deps.Checkpoints.Save(cp); err != nil {
				// The in-memory set is intact; the next cadence write
				// retries. Losing one snapshot is not worth failing the item.
				s.o.log.Error("checkpoint save failed", zap.Error(err))
			}
		}
		return nil
	})
}

func (s *extractState) closeDetail(ctx context.Context, detail DetailView) {
	if err := detail.Close(ctx); err != nil {
		s.o.log.Debug("detail view close failed", zap.Error(err))
	}
}

// emergencyCheckpoint persists whatever has been processed so far before
// the fatal signal unwinds, so a forced stop loses no progress.
func (s *extractState) emergencyCheckpoint(cp *checkpoint.Checkpoint) {
	if err := s.o.deps.Checkpoints.Save(cp); err != nil {
		s.o.log.Error("emergency checkpoint failed", zap.Error(err))
		return
	}
	s.o.log.Warn("emergency checkpoint written",
		zap.Int("processed", cp.ProcessedCount),
		zap.String("last_item", cp.LastItemID))
}
