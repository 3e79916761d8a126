// Package retry executes fallible operations under an oracle-advised,
// bounded retry budget. The continue/stop/delay decision for each failure
// is delegated to the diagnostic oracle instead of a fixed policy.
package retry

import (
	"context"
	"time"

	"harvester/internal/artifacts"
	"harvester/internal/oracle"

	"go.uber.org/zap"
)

// Options configures one guarded operation.
type Options struct {
	// Operation names the unit of work for logs and diagnosis prompts.
	Operation string
	// PartitionLabel scopes the diagnosis prompt.
	PartitionLabel string
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// Snapshot captures a diagnostic screenshot. Best-effort; may be nil.
	Snapshot func() ([]byte, error)
}

// Runner wires the retry loop to the oracle and artifact store.
type Runner struct {
	oracle    oracle.Client
	artifacts *artifacts.Store
	log       *zap.Logger
}

// NewRunner builds a Runner. The artifact store may be nil.
func NewRunner(client oracle.Client, store *artifacts.Store, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{oracle: client, artifacts: store, log: log}
}

// Do runs op, consulting the oracle on each failure.
//
// Invariants:
//   - a process-wide usage limit short-circuits immediately, without
//     consuming a retry;
//   - a usage-limit error from op or from the diagnosis itself propagates
//     unchanged;
//   - a shouldRetry=false diagnosis re-raises the original error with no
//     further attempts;
//   - at most opts.MaxRetries additional attempts happen; exhausting the
//     budget re-raises the last error without another oracle call.
func (r *Runner) Do(ctx context.Context, opts Options, op func(context.Context) error) error {
	attempt := 0
	for {
		err := op(ctx)
		if err == nil {
			return nil
		}

		if st := r.oracle.LimitStatus(); st.LimitReached {
			return &oracle.UsageLimitError{Detail: st.Detail}
		}
		if oracle.IsUsageLimit(err) {
			return err
		}

		// An exhausted budget re-raises without consulting the oracle;
		// advice that cannot be acted on is not worth a quota-bound call.
		if attempt >= opts.MaxRetries {
			r.log.Warn("retry budget exhausted",
				zap.String("operation", opts.Operation),
				zap.Int("attempts", attempt+1),
				zap.Error(err))
			return err
		}

		diag, fatal := r.diagnose(ctx, opts, err)
		if fatal != nil {
			return fatal
		}

		r.log.Warn("operation failed",
			zap.String("operation", opts.Operation),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
			zap.String("diagnosis", diag.Diagnosis),
			zap.String("suggested_fix", diag.SuggestedFix),
			zap.Bool("should_retry", diag.ShouldRetry))

		if !diag.ShouldRetry {
			return err
		}
		attempt++

		delay := diag.RetryDelay
		if delay < 0 {
			delay = 0
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(delay) * time.Millisecond):
			}
		}
	}
}

// diagnose captures a snapshot and asks the oracle about the failure.
// The returned error is non-nil only for the fatal usage-limit signal,
// which must propagate unchanged.
func (r *Runner) diagnose(ctx context.Context, opts Options, cause error) (*oracle.DiagnosisResult, error) {
	var shot []byte
	if opts.Snapshot != nil {
		b, serr := opts.Snapshot()
		if serr != nil {
			r.log.Debug("diagnostic snapshot failed", zap.Error(serr))
		} else {
			shot = b
			if r.artifacts != nil {
				if path, aerr := r.artifacts.Save(artifacts.Bytes(b)); aerr == nil {
					r.log.Debug("diagnostic snapshot saved", zap.String("path", path))
				}
			}
		}
	}

	if !r.oracle.IsAvailable() {
		return oracle.FallbackDiagnosis(cause), nil
	}

	diag, err := oracle.DiagnoseError(ctx, r.oracle, oracle.ErrorContext{
		Operation:      opts.Operation,
		PartitionLabel: opts.PartitionLabel,
		Err:            cause,
		Screenshot:     shot,
	})
	if err != nil {
		if oracle.IsUsageLimit(err) {
			return nil, err
		}
		r.log.Warn("diagnosis failed, using fallback", zap.Error(err))
		return oracle.FallbackDiagnosis(cause), nil
	}
	return diag, nil
}
