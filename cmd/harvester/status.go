package main

import (
	"fmt"

	"harvester/internal/checkpoint"
	"harvester/internal/logging"

	"github.com/spf13/cobra"
)

// statusCmd reports per-partition resume state from the checkpoint store.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint status for each configured partition",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := checkpoint.NewStore(cfg.CheckpointDir, logging.Named(logger, logging.CategoryCheckpoint))
		if err != nil {
			return err
		}

		for _, part := range cfg.Partitions {
			cp, err := store.Load(part.ID)
			if err != nil {
				fmt.Printf("%-16s unreadable checkpoint: %v\n", part.ID, err)
				continue
			}
			if cp == nil {
				fmt.Printf("%-16s no checkpoint (fresh or completed)\n", part.ID)
				continue
			}
			fmt.Printf("%-16s %d processed, page %d, last item %q, saved %s\n",
				part.ID, cp.ProcessedCount, cp.CurrentPage, cp.LastItemID,
				cp.Timestamp.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}
