// Package oracle implements the diagnostic oracle client: a Gemini-backed
// advisory service consulted for root-cause diagnosis of extraction
// failures and for authentication-state analysis. The oracle is advisory
// only; when it is unavailable callers fall back to deterministic
// low-confidence results instead of blocking.
package oracle

import "context"

// Task names understood by the oracle.
const (
	TaskAnalyzeAuth   = "analyze-authentication"
	TaskDiagnoseError = "diagnose-error"
)

// Schema describes the shape a response must satisfy.
type Schema struct {
	Required []string
}

// Request is one structured advisory call.
type Request struct {
	Task       string
	Prompt     string
	Screenshot []byte // optional PNG, already decoded
	Schema     Schema
}

// Client is the advisory boundary. Implementations must report their own
// availability and carry the process-lifetime usage-limit flag.
type Client interface {
	// Analyze sends the request and returns the parsed response object.
	// Every field named in req.Schema.Required is guaranteed present.
	Analyze(ctx context.Context, req Request) (map[string]any, error)

	// IsAvailable reports whether the oracle can be consulted at all.
	IsAvailable() bool

	// LimitStatus returns the monotonic usage-limit flag.
	LimitStatus() UsageLimitStatus
}

// DiagnosisResult is the oracle's verdict on one failed attempt.
// Produced fresh per failure; never persisted.
type DiagnosisResult struct {
	Diagnosis       string
	LikelyRootCause string
	Confidence      float64 // 0..1
	SuggestedFix    string
	ShouldRetry     bool
	RetryDelay      int // milliseconds, clamped >= 0 by consumers
	Reasoning       string
}

// AuthState classifies the session's authentication condition.
type AuthState string

const (
	AuthLoggedIn         AuthState = "loggedIn"
	AuthSessionExpired   AuthState = "sessionExpired"
	AuthRequiresRelogin  AuthState = "requiresRelogin"
	AuthChallengePresent AuthState = "challengePresent"
	AuthUnknown          AuthState = "unknown"
)

// AuthAnalysis is the oracle's read of a login page snapshot.
type AuthAnalysis struct {
	Diagnosis          string
	State              AuthState
	Confidence         float64 // 0..1
	DetectedChallenges []string
	SuggestedAction    string
	CanAutoResolve     bool
	Reasoning          string
}
