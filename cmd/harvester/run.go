package main

import (
	"context"
	"os/signal"
	"syscall"

	"harvester/internal/artifacts"
	"harvester/internal/browser"
	"harvester/internal/checkpoint"
	"harvester/internal/config"
	"harvester/internal/extract"
	"harvester/internal/health"
	"harvester/internal/logging"
	"harvester/internal/oracle"
	"harvester/internal/orchestrator"
	"harvester/internal/retry"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	runPartitions []string
)

// runCmd executes the extraction run across the configured partitions.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run extraction for all (or selected) partitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runExtraction(ctx, cfg, logger)
	},
}

func init() {
	runCmd.Flags().StringSliceVarP(&runPartitions, "partition", "p", nil, "Partition IDs to run (default: all configured)")
}

func runExtraction(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	parts, err := selectPartitions(cfg, runPartitions)
	if err != nil {
		return err
	}

	artifactStore, err := artifacts.NewStore(cfg.ArtifactDir, logging.Named(log, logging.CategoryArtifacts))
	if err != nil {
		return err
	}
	checkpoints, err := checkpoint.NewStore(cfg.CheckpointDir, logging.Named(log, logging.CategoryCheckpoint))
	if err != nil {
		return err
	}

	oracleClient, err := oracle.NewGeminiClient(ctx, oracle.GeminiConfig{
		APIKey:  cfg.Oracle.APIKey,
		Model:   cfg.Oracle.Model,
		Timeout: cfg.Oracle.OracleTimeout(),
	}, logging.Named(log, logging.CategoryOracle))
	if err != nil {
		return err
	}
	if !oracleClient.IsAvailable() {
		log.Warn("diagnostic oracle unavailable, using deterministic fallbacks (set HARVESTER_ORACLE_API_KEY to enable)")
	}

	retryRunner := retry.NewRunner(oracleClient, artifactStore, logging.Named(log, logging.CategoryRetry))
	healthChecker := health.NewChecker(oracleClient, artifactStore, logging.Named(log, logging.CategoryHealth))

	manager := browser.NewManager(cfg.Browser, cfg.Selectors, cfg.NavWait(), logging.Named(log, logging.CategoryBrowser))
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Warn("browser shutdown failed", zap.Error(err))
		}
	}()

	parser := extract.NewHTMLRecordParser(cfg.Selectors)
	writer := extract.NewFileRecordWriter()
	extractors := []extract.AssetExtractor{
		extract.NewHTMLAssetExtractor("figures", cfg.Selectors.Figures),
		extract.NewHTMLAssetExtractor("tables", cfg.Selectors.Tables),
		extract.NewHTMLAssetExtractor("related-text", cfg.Selectors.RelatedText),
	}

	limit := cfg.MaxParallelPartitions
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, part := range parts {
		g.Go(func() error {
			orch, err := orchestrator.New(orchestrator.Deps{
				Config:          cfg,
				Partition:       part,
				Driver:          manager,
				Checkpoints:     checkpoints,
				Oracle:          oracleClient,
				Retry:           retryRunner,
				Health:          healthChecker,
				Parser:          parser,
				AssetExtractors: extractors,
				Writer:          writer,
				Log:             logging.Named(log, logging.CategoryOrchestrator),
			})
			if err != nil {
				return err
			}

			result, runErr := orch.Run(gctx)
			if runErr != nil {
				log.Error("partition run failed",
					zap.String("partition", part.ID),
					zap.Int("processed", result.Processed),
					zap.Error(runErr))
				return runErr
			}
			log.Info("partition complete",
				zap.String("partition", part.ID),
				zap.Int("processed", result.Processed),
				zap.Int("skipped", result.Skipped),
				zap.Int("pages", result.Pages),
				zap.Bool("resumed", result.Resumed),
				zap.Duration("duration", result.Duration))
			return nil
		})
	}

	err = g.Wait()
	if status := oracleClient.LimitStatus(); status.LimitReached {
		log.Error("run halted by oracle usage limit; re-run after quota reset to resume from checkpoints",
			zap.String("detail", status.Detail))
	}
	return err
}

func selectPartitions(cfg *config.Config, ids []string) ([]config.PartitionConfig, error) {
	if len(ids) == 0 {
		return cfg.Partitions, nil
	}

	byID := make(map[string]config.PartitionConfig, len(cfg.Partitions))
	for _, p := range cfg.Partitions {
		byID[p.ID] = p
	}

	parts := make([]config.PartitionConfig, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, &unknownPartitionError{ID: id}
		}
		parts = append(parts, p)
	}
	return parts, nil
}

type unknownPartitionError struct{ ID string }

func (e *unknownPartitionError) Error() string {
	return "unknown partition: " + e.ID
}
