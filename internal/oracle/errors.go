package oracle

import (
	"errors"
	"fmt"
	"sync"
)

// UsageLimitError is the distinguished fatal signal raised when the oracle
// (or any quota-bound dependency) is exhausted for the process lifetime.
// It is recognized structurally at every propagation layer and is never
// retried.
type UsageLimitError struct {
	Detail string
}

func (e *UsageLimitError) Error() string {
	if e.Detail == "" {
		return "oracle usage limit reached"
	}
	return fmt.Sprintf("oracle usage limit reached: %s", e.Detail)
}

// IsUsageLimit reports whether err carries the fatal usage-limit signal.
func IsUsageLimit(err error) bool {
	var ule *UsageLimitError
	return errors.As(err, &ule)
}

// UsageLimitStatus is a snapshot of the limit flag.
type UsageLimitStatus struct {
	LimitReached bool
	Detail       string
}

// limitFlag is monotonic: once set it stays set until process restart.
// It is owned by the client instance rather than being module state, so
// tests can run with isolated fakes.
type limitFlag struct {
	mu      sync.RWMutex
	reached bool
	detail  string
}

func (f *limitFlag) set(detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reached {
		return
	}
	f.reached = true
	f.detail = detail
}

func (f *limitFlag) status() UsageLimitStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return UsageLimitStatus{LimitReached: f.reached, Detail: f.detail}
}
