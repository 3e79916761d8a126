package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// navigateState walks the strictly ordered UI sequence from the
// application root to the partition's item list. Every step is bounded
// and raises immediately; re-running login/navigate from scratch is the
// recovery strategy at this granularity.
type navigateState struct{ o *Orchestrator }

func (s *navigateState) Execute(ctx context.Context, rc *RunContext) (StateID, error) {
	cfg := s.o.deps.Config
	sel := cfg.Selectors
	partitionLink := fmt.Sprintf(sel.PartitionLink, rc.Partition.ID)

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"open catalog", func(ctx context.Context) error {
			return rc.Session.Click(ctx, sel.CatalogLink, cfg.NavWait())
		}},
		{"open partition", func(ctx context.Context) error {
			return rc.Session.Click(ctx, partitionLink, cfg.NavWait())
		}},
		{"await item list", func(ctx context.Context) error {
			return rc.Session.WaitVisible(ctx, sel.ItemList, cfg.NavWait())
		}},
	}

	for _, step := range steps {
		s.o.log.Debug("navigation step", zap.String("step", step.name))
		if err := step.run(ctx); err != nil {
			return StateExit, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	rc.Catalog = rc.Session.Catalog()
	return StateExtract, nil
}
