package main

import (
	"fmt"
	"time"

	"harvester/internal/artifacts"
	"harvester/internal/checkpoint"
	"harvester/internal/logging"

	"github.com/spf13/cobra"
)

var (
	cleanCheckpoints bool
	cleanOlderThan   time.Duration
)

// cleanCmd removes diagnostic artifacts and, on request, checkpoints.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove temporary diagnostic artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := artifacts.NewStore(cfg.ArtifactDir, logging.Named(logger, logging.CategoryArtifacts))
		if err != nil {
			return err
		}

		var removed int
		if cleanOlderThan > 0 {
			removed = store.CleanupOlderThan(cleanOlderThan)
		} else {
			removed = store.CleanupAll()
		}
		fmt.Printf("removed %d artifact(s)\n", removed)

		if cleanCheckpoints {
			cps, err := checkpoint.NewStore(cfg.CheckpointDir, logging.Named(logger, logging.CategoryCheckpoint))
			if err != nil {
				return err
			}
			for _, part := range cfg.Partitions {
				if err := cps.Delete(part.ID); err != nil {
					return fmt.Errorf("delete checkpoint %s: %w", part.ID, err)
				}
			}
			fmt.Println("checkpoints cleared; the next run starts from scratch")
		}
		return nil
	},
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanCheckpoints, "checkpoints", false, "Also delete all partition checkpoints")
	cleanCmd.Flags().DurationVar(&cleanOlderThan, "older-than", 0, "Only remove artifacts older than this duration")
}
