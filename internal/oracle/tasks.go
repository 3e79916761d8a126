package oracle

import (
	"context"
	"fmt"
	"strings"
)

var diagnoseSchema = Schema{Required: []string{
	"diagnosis", "likelyRootCause", "confidence", "suggestedFix",
	"shouldRetry", "suggestedRetryDelay", "reasoning",
}}

var authSchema = Schema{Required: []string{
	"diagnosis", "authState", "confidence", "detectedChallenges",
	"suggestedAction", "canAutoResolve", "reasoning", "instructions",
}}

// ErrorContext describes a failed operation for diagnosis.
type ErrorContext struct {
	Operation      string
	PartitionLabel string
	Err            error
	Screenshot     []byte
}

// DiagnoseError asks the oracle whether and how to retry a failed
// operation. Callers are expected to have checked IsAvailable first and
// to use FallbackDiagnosis when the call errors non-fatally.
func DiagnoseError(ctx context.Context, c Client, ec ErrorContext) (*DiagnosisResult, error) {
	var b strings.Builder
	b.WriteString("You are diagnosing a failure in a browser-based catalog extraction run.\n")
	fmt.Fprintf(&b, "Operation: %s\n", ec.Operation)
	if ec.PartitionLabel != "" {
		fmt.Fprintf(&b, "Catalog partition: %s\n", ec.PartitionLabel)
	}
	fmt.Fprintf(&b, "Error: %v\n", ec.Err)
	if len(ec.Screenshot) > 0 {
		b.WriteString("A screenshot of the page at failure time is attached.\n")
	}
	b.WriteString(`Respond with a JSON object with exactly these fields:
{"diagnosis": string, "likelyRootCause": string, "confidence": number 0-100,
"suggestedFix": string, "shouldRetry": boolean,
"suggestedRetryDelay": number (milliseconds), "reasoning": string}`)

	parsed, err := c.Analyze(ctx, Request{
		Task:       TaskDiagnoseError,
		Prompt:     b.String(),
		Screenshot: ec.Screenshot,
		Schema:     diagnoseSchema,
	})
	if err != nil {
		return nil, err
	}

	return &DiagnosisResult{
		Diagnosis:       getString(parsed, "diagnosis"),
		LikelyRootCause: getString(parsed, "likelyRootCause"),
		Confidence:      toFloat(parsed["confidence"]),
		SuggestedFix:    getString(parsed, "suggestedFix"),
		ShouldRetry:     getBool(parsed, "shouldRetry"),
		RetryDelay:      int(toFloat(parsed["suggestedRetryDelay"])),
		Reasoning:       getString(parsed, "reasoning"),
	}, nil
}

// AuthContext describes an ambiguous authentication state for analysis.
type AuthContext struct {
	URL        string
	Indicator  string // the logged-in indicator selector that was probed
	Screenshot []byte
}

// AnalyzeAuth asks the oracle to classify the session's auth state from a
// page snapshot.
func AnalyzeAuth(ctx context.Context, c Client, ac AuthContext) (*AuthAnalysis, error) {
	var b strings.Builder
	b.WriteString("You are analyzing the authentication state of a web application session.\n")
	fmt.Fprintf(&b, "Current URL: %s\n", ac.URL)
	fmt.Fprintf(&b, "The logged-in indicator %q was not found on the page.\n", ac.Indicator)
	if len(ac.Screenshot) > 0 {
		b.WriteString("A screenshot of the current page is attached.\n")
	}
	b.WriteString(`Respond with a JSON object with exactly these fields:
{"diagnosis": string, "authState": one of "loggedIn"|"sessionExpired"|"requiresRelogin"|"challengePresent"|"unknown",
"confidence": number 0-100, "detectedChallenges": array of strings,
"suggestedAction": string, "canAutoResolve": boolean, "reasoning": string,
"instructions": string}`)

	parsed, err := c.Analyze(ctx, Request{
		Task:       TaskAnalyzeAuth,
		Prompt:     b.String(),
		Screenshot: ac.Screenshot,
		Schema:     authSchema,
	})
	if err != nil {
		return nil, err
	}

	return &AuthAnalysis{
		Diagnosis:          getString(parsed, "diagnosis"),
		State:              parseAuthState(getString(parsed, "authState")),
		Confidence:         toFloat(parsed["confidence"]),
		DetectedChallenges: getStringSlice(parsed, "detectedChallenges"),
		SuggestedAction:    getString(parsed, "suggestedAction"),
		CanAutoResolve:     getBool(parsed, "canAutoResolve"),
		Reasoning:          getString(parsed, "reasoning"),
	}, nil
}

// FallbackDiagnosis is the deterministic result used when the oracle is
// unavailable or errored non-fatally. It never recommends a retry: without
// advice the safe default is to surface the original error.
func FallbackDiagnosis(cause error) *DiagnosisResult {
	diagnosis := "oracle unavailable, no diagnosis performed"
	if cause != nil {
		diagnosis = fmt.Sprintf("oracle unavailable, no diagnosis for: %v", cause)
	}
	return &DiagnosisResult{
		Diagnosis:       diagnosis,
		LikelyRootCause: "unknown",
		Confidence:      0.1,
		SuggestedFix:    "inspect logs and re-run the partition",
		ShouldRetry:     false,
		RetryDelay:      0,
		Reasoning:       "fallback result, the diagnostic oracle could not be consulted",
	}
}

// FallbackAuthAnalysis is the deterministic auth result when the oracle
// cannot be consulted.
func FallbackAuthAnalysis(cause error) *AuthAnalysis {
	diagnosis := "oracle unavailable, no auth analysis performed"
	if cause != nil {
		diagnosis = fmt.Sprintf("oracle unavailable, no auth analysis for: %v", cause)
	}
	return &AuthAnalysis{
		Diagnosis:       diagnosis,
		State:           AuthUnknown,
		Confidence:      0.1,
		SuggestedAction: "re-run login manually",
		CanAutoResolve:  false,
		Reasoning:       "fallback result, the diagnostic oracle could not be consulted",
	}
}

func parseAuthState(s string) AuthState {
	switch AuthState(s) {
	case AuthLoggedIn, AuthSessionExpired, AuthRequiresRelogin, AuthChallengePresent:
		return AuthState(s)
	default:
		return AuthUnknown
	}
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func getStringSlice(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
