package retry

import (
	"context"
	"errors"
	"testing"

	"harvester/internal/oracle"

	"github.com/stretchr/testify/require"
)

// advisingOracle scripts the diagnosis the retry loop receives.
type advisingOracle struct {
	diagnosis map[string]any
	err       error
	limit     oracle.UsageLimitStatus
	available bool
	calls     int
}

func (a *advisingOracle) Analyze(ctx context.Context, req oracle.Request) (map[string]any, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.diagnosis, nil
}

func (a *advisingOracle) IsAvailable() bool                    { return a.available }
func (a *advisingOracle) LimitStatus() oracle.UsageLimitStatus { return a.limit }

func retryDiagnosis(shouldRetry bool, delayMs float64) map[string]any {
	return map[string]any{
		"diagnosis":           "transient failure",
		"likelyRootCause":     "timing",
		"confidence":          0.8,
		"suggestedFix":        "retry",
		"shouldRetry":         shouldRetry,
		"suggestedRetryDelay": delayMs,
		"reasoning":           "scripted",
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	orc := &advisingOracle{available: true}
	r := NewRunner(orc, nil, nil)

	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Zero(t, orc.calls, "no diagnosis without a failure")
}

func TestDoExhaustsBudgetThenReRaises(t *testing.T) {
	orc := &advisingOracle{available: true, diagnosis: retryDiagnosis(true, 0)}
	r := NewRunner(orc, nil, nil)

	boom := errors.New("click failed")
	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 4, calls, "maxRetries=3 means 4 total attempts")
	require.Equal(t, 3, orc.calls, "the final failure is not diagnosed")
}

func TestDoSkipsDiagnosisWhenBudgetExhausted(t *testing.T) {
	orc := &advisingOracle{available: true, diagnosis: retryDiagnosis(true, 0)}
	r := NewRunner(orc, nil, nil)

	boom := errors.New("hard failure")
	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 0}, func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
	require.Zero(t, orc.calls, "a zero budget never consults the oracle")
}

func TestDoStopsWhenOracleSaysNoRetry(t *testing.T) {
	orc := &advisingOracle{available: true, diagnosis: retryDiagnosis(false, 0)}
	r := NewRunner(orc, nil, nil)

	boom := errors.New("permanent failure")
	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls, "shouldRetry=false stops after the first attempt")
}

func TestDoShortCircuitsOnRaisedLimitFlag(t *testing.T) {
	orc := &advisingOracle{
		available: false,
		limit:     oracle.UsageLimitStatus{LimitReached: true, Detail: "quota"},
	}
	r := NewRunner(orc, nil, nil)

	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return errors.New("anything")
	})
	require.True(t, oracle.IsUsageLimit(err))
	require.Equal(t, 1, calls, "limit flag must not consume the retry budget")
	require.Zero(t, orc.calls, "no diagnosis once the limit is raised")
}

func TestDoPropagatesUsageLimitFromOperation(t *testing.T) {
	orc := &advisingOracle{available: true, diagnosis: retryDiagnosis(true, 0)}
	r := NewRunner(orc, nil, nil)

	ule := &oracle.UsageLimitError{Detail: "exhausted mid-operation"}
	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return ule
	})
	var got *oracle.UsageLimitError
	require.ErrorAs(t, err, &got)
	require.Equal(t, "exhausted mid-operation", got.Detail)
	require.Equal(t, 1, calls)
}

func TestDoPropagatesUsageLimitFromDiagnosis(t *testing.T) {
	orc := &advisingOracle{
		available: true,
		err:       &oracle.UsageLimitError{Detail: "quota hit during diagnosis"},
	}
	r := NewRunner(orc, nil, nil)

	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return errors.New("original failure")
	})
	require.True(t, oracle.IsUsageLimit(err))
	require.Equal(t, 1, calls)
}

func TestDoUsesFallbackWhenOracleUnavailable(t *testing.T) {
	orc := &advisingOracle{available: false}
	r := NewRunner(orc, nil, nil)

	boom := errors.New("timeout")
	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return boom
	})
	// The fallback never recommends a retry, so exactly one attempt runs.
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
	require.Zero(t, orc.calls)
}

func TestDoRecoversAfterTransientFailures(t *testing.T) {
	orc := &advisingOracle{available: true, diagnosis: retryDiagnosis(true, 0)}
	r := NewRunner(orc, nil, nil)

	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDoClampsNegativeDelay(t *testing.T) {
	orc := &advisingOracle{available: true, diagnosis: retryDiagnosis(true, -500)}
	r := NewRunner(orc, nil, nil)

	calls := 0
	err := r.Do(context.Background(), Options{Operation: "op", MaxRetries: 1}, func(ctx context.Context) error {
		calls++
		return errors.New("flaky")
	})
	require.Error(t, err)
	require.Equal(t, 2, calls, "negative delay must not block the retry")
}

func TestDoSnapshotFailureIsNonFatal(t *testing.T) {
	orc := &advisingOracle{available: false}
	r := NewRunner(orc, nil, nil)

	boom := errors.New("op failed")
	err := r.Do(context.Background(), Options{
		Operation:  "op",
		MaxRetries: 1,
		Snapshot:   func() ([]byte, error) { return nil, errors.New("screenshot failed") },
	}, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}
