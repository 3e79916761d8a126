// Package orchestrator drives one partition's extraction run through a
// small finite-state machine: init -> login -> navigate -> extract ->
// exit. The orchestrator itself only dispatches states and fails fast;
// all recovery happens inside states or in the smart retry wrapper.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"harvester/internal/checkpoint"
	"harvester/internal/config"
	"harvester/internal/extract"
	"harvester/internal/health"
	"harvester/internal/oracle"
	"harvester/internal/retry"

	"go.uber.org/zap"
)

// Deps carries everything an orchestrator needs. All fields except the
// asset extractors are required.
type Deps struct {
	Config    *config.Config
	Partition config.PartitionConfig

	Driver      Driver
	Checkpoints *checkpoint.Store
	Oracle      oracle.Client
	Retry       *retry.Runner
	Health      *health.Checker

	Parser          extract.RecordParser
	AssetExtractors []extract.AssetExtractor
	Writer          extract.RecordWriter

	Log *zap.Logger
}

// Orchestrator owns one partition's run.
type Orchestrator struct {
	deps   Deps
	log    *zap.Logger
	states map[StateID]State
}

// New validates deps and builds the dispatch table.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Config == nil:
		return nil, fmt.Errorf("orchestrator: config is required")
	case deps.Partition.ID == "":
		return nil, fmt.Errorf("orchestrator: partition id is required")
	case deps.Driver == nil:
		return nil, fmt.Errorf("orchestrator: driver is required")
	case deps.Checkpoints == nil:
		return nil, fmt.Errorf("orchestrator: checkpoint store is required")
	case deps.Oracle == nil:
		return nil, fmt.Errorf("orchestrator: oracle client is required")
	case deps.Retry == nil:
		return nil, fmt.Errorf("orchestrator: retry runner is required")
	case deps.Parser == nil || deps.Writer == nil:
		return nil, fmt.Errorf("orchestrator: extraction collaborators are required")
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	o := &Orchestrator{
		deps: deps,
		log:  deps.Log.With(zap.String("partition", deps.Partition.ID)),
	}
	o.states = map[StateID]State{
		StateInit:     &initState{o},
		StateLogin:    &loginState{o},
		StateNavigate: &navigateState{o},
		StateExtract:  &extractState{o},
	}
	return o, nil
}

// Run executes the state machine to completion for the partition.
// The returned RunResult is valid even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	rc := &RunContext{
		Partition:     o.deps.Partition,
		AuthStatePath: o.deps.Config.AuthStatePath(o.deps.Partition.ID),
	}
	rc.Result.PartitionID = o.deps.Partition.ID
	rc.Result.PartitionLabel = o.deps.Partition.Label

	defer func() {
		rc.Result.Duration = time.Since(start)
		if rc.Session != nil {
			if err := rc.Session.Close(); err != nil {
				o.log.Warn("session close failed", zap.Error(err))
			}
		}
	}()

	current := StateInit
	for current != StateExit {
		st, ok := o.states[current]
		if !ok {
			return &rc.Result, fmt.Errorf("no state registered for %s", current)
		}
		o.log.Info("entering state", zap.Stringer("state", current))

		next, err := st.Execute(ctx, rc)
		if err != nil {
			rc.Result.Duration = time.Since(start)
			return &rc.Result, fmt.Errorf("state %s: %w", current, err)
		}
		current = next
	}

	rc.Result.Duration = time.Since(start)
	o.log.Info("run complete",
		zap.Int("processed", rc.Result.Processed),
		zap.Int("skipped", rc.Result.Skipped),
		zap.Int("pages", rc.Result.Pages),
		zap.Bool("resumed", rc.Result.Resumed),
		zap.Duration("duration", rc.Result.Duration))
	return &rc.Result, nil
}

// initState acquires an isolated session context and page handle.
// It assumes no shared global session.
type initState struct{ o *Orchestrator }

func (s *initState) Execute(ctx context.Context, rc *RunContext) (StateID, error) {
	session, err := s.o.deps.Driver.NewSession(ctx)
	if err != nil {
		return StateExit, fmt.Errorf("acquire session: %w", err)
	}
	rc.Session = session
	return StateLogin, nil
}
