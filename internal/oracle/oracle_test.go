package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseResponseStripsMarkdownFences(t *testing.T) {
	schema := Schema{Required: []string{"diagnosis"}}

	for _, text := range []string{
		`{"diagnosis": "stale element"}`,
		"```json\n{\"diagnosis\": \"stale element\"}\n```",
		"```\n{\"diagnosis\": \"stale element\"}\n```",
	} {
		parsed, err := parseResponse(text, schema)
		require.NoError(t, err, "input: %s", text)
		require.Equal(t, "stale element", parsed["diagnosis"])
	}
}

func TestParseResponseRejectsMissingRequiredField(t *testing.T) {
	schema := Schema{Required: []string{"diagnosis", "shouldRetry"}}
	_, err := parseResponse(`{"diagnosis": "x"}`, schema)
	require.Error(t, err)
	require.Contains(t, err.Error(), "shouldRetry")
}

func TestParseResponseRejectsInvalidJSON(t *testing.T) {
	_, err := parseResponse("the page looks fine to me", Schema{})
	require.Error(t, err)
}

func TestParseResponseNormalizesConfidence(t *testing.T) {
	cases := map[string]float64{
		`{"confidence": 85}`:   0.85,
		`{"confidence": 0.85}`: 0.85,
		`{"confidence": 150}`:  1.0,
		`{"confidence": -3}`:   0.0,
		`{"confidence": 1}`:    1.0,
	}
	for text, want := range cases {
		parsed, err := parseResponse(text, Schema{})
		require.NoError(t, err)
		require.InDelta(t, want, parsed["confidence"], 1e-9, "input: %s", text)
	}
}

func TestUsageLimitErrorRecognition(t *testing.T) {
	base := &UsageLimitError{Detail: "quota exceeded"}
	require.True(t, IsUsageLimit(base))
	require.True(t, IsUsageLimit(fmt.Errorf("state extract: %w", base)), "recognized through wrapping")
	require.False(t, IsUsageLimit(errors.New("quota exceeded")), "string match must not trigger the signal")
	require.False(t, IsUsageLimit(nil))
}

func TestLimitFlagIsMonotonic(t *testing.T) {
	f := &limitFlag{}
	require.False(t, f.status().LimitReached)

	f.set("first")
	f.set("second")

	st := f.status()
	require.True(t, st.LimitReached)
	require.Equal(t, "first", st.Detail, "first detail wins, flag never resets")
}

func TestClientWithoutKeyIsUnavailableNotAnError(t *testing.T) {
	c, err := NewGeminiClient(context.Background(), GeminiConfig{}, nil)
	require.NoError(t, err)
	require.False(t, c.IsAvailable())
	require.False(t, c.LimitStatus().LimitReached)

	_, err = c.Analyze(context.Background(), Request{Task: TaskDiagnoseError, Prompt: "x"})
	require.Error(t, err)
	require.False(t, IsUsageLimit(err))
}

func TestFallbackDiagnosisNeverRetries(t *testing.T) {
	d := FallbackDiagnosis(errors.New("click failed"))
	require.False(t, d.ShouldRetry)
	require.Contains(t, d.Diagnosis, "click failed")
	require.LessOrEqual(t, d.Confidence, 0.5)
}

func TestFallbackAuthAnalysisIsUnknown(t *testing.T) {
	a := FallbackAuthAnalysis(errors.New("indicator timeout"))
	require.Equal(t, AuthUnknown, a.State)
	require.False(t, a.CanAutoResolve)
	require.Contains(t, a.Diagnosis, "indicator timeout")
}

func TestFallbacksWithoutCauseStayReadable(t *testing.T) {
	a := FallbackAuthAnalysis(nil)
	require.NotContains(t, a.Diagnosis, "<nil>")
	require.Equal(t, AuthUnknown, a.State)

	d := FallbackDiagnosis(nil)
	require.NotContains(t, d.Diagnosis, "<nil>")
	require.False(t, d.ShouldRetry)
}

func TestParseAuthState(t *testing.T) {
	require.Equal(t, AuthLoggedIn, parseAuthState("loggedIn"))
	require.Equal(t, AuthSessionExpired, parseAuthState("sessionExpired"))
	require.Equal(t, AuthChallengePresent, parseAuthState("challengePresent"))
	require.Equal(t, AuthUnknown, parseAuthState("somethingElse"))
	require.Equal(t, AuthUnknown, parseAuthState(""))
}

// fakeClient drives DiagnoseError / AnalyzeAuth without a live backend.
type fakeClient struct {
	response  map[string]any
	err       error
	available bool
	limit     UsageLimitStatus
	lastReq   Request
}

func (f *fakeClient) Analyze(ctx context.Context, req Request) (map[string]any, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeClient) IsAvailable() bool             { return f.available }
func (f *fakeClient) LimitStatus() UsageLimitStatus { return f.limit }

func TestDiagnoseErrorMapsFields(t *testing.T) {
	fc := &fakeClient{
		available: true,
		response: map[string]any{
			"diagnosis":           "transient render delay",
			"likelyRootCause":     "slow XHR",
			"confidence":          0.9,
			"suggestedFix":        "wait and retry",
			"shouldRetry":         true,
			"suggestedRetryDelay": float64(1500),
			"reasoning":           "spinner visible in screenshot",
		},
	}

	d, err := DiagnoseError(context.Background(), fc, ErrorContext{
		Operation:      "extract item \"a1\"",
		PartitionLabel: "Mathematics",
		Err:            errors.New("element not found"),
	})
	require.NoError(t, err)
	require.True(t, d.ShouldRetry)
	require.Equal(t, 1500, d.RetryDelay)
	require.InDelta(t, 0.9, d.Confidence, 1e-9)
	require.Equal(t, "transient render delay", d.Diagnosis)

	require.Equal(t, TaskDiagnoseError, fc.lastReq.Task)
	require.Contains(t, fc.lastReq.Prompt, "Mathematics")
	require.Contains(t, fc.lastReq.Prompt, "element not found")
}

func TestAnalyzeAuthMapsFields(t *testing.T) {
	fc := &fakeClient{
		available: true,
		response: map[string]any{
			"diagnosis":          "login form shown",
			"authState":          "sessionExpired",
			"confidence":         float64(75),
			"detectedChallenges": []any{"captcha"},
			"suggestedAction":    "re-login",
			"canAutoResolve":     false,
			"reasoning":          "session cookie expired",
			"instructions":       "",
		},
	}

	a, err := AnalyzeAuth(context.Background(), fc, AuthContext{
		URL:       "https://app.example/login",
		Indicator: "[data-testid='user-menu']",
	})
	require.NoError(t, err)
	require.Equal(t, AuthSessionExpired, a.State)
	require.Equal(t, []string{"captcha"}, a.DetectedChallenges)
	require.Equal(t, TaskAnalyzeAuth, fc.lastReq.Task)
	require.Contains(t, fc.lastReq.Prompt, "user-menu")
}
