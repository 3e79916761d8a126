package orchestrator

import (
	"context"
	"errors"
	"time"

	"harvester/internal/config"
)

// Sentinel errors for the distinguishable login failure modes.
var (
	// ErrLoginTimeout is returned when the interactive login wait expires.
	ErrLoginTimeout = errors.New("login timed out")
	// ErrChallengeDetected is returned when an interactive challenge
	// (e.g. a CAPTCHA) blocks login. It is an explicit error condition,
	// never a retryable one.
	ErrChallengeDetected = errors.New("interactive challenge detected")
)

// Driver is the browser-automation boundary. The rod implementation
// lives in internal/browser; tests use fakes.
type Driver interface {
	// NewSession opens an isolated session context for one partition.
	NewSession(ctx context.Context) (Session, error)
}

// Session is one isolated browser context with a page handle.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Has(selector string) (bool, error)
	Screenshot() ([]byte, error)
	URL() string

	// RestoreAuthState recreates the session from a persisted auth
	// artifact. Returns false when no artifact exists at path.
	RestoreAuthState(path string) (bool, error)
	// SaveAuthState persists the session's auth state, creating parent
	// directories as needed.
	SaveAuthState(path string) error

	// Catalog exposes the item-list surface once navigation completed.
	Catalog() CatalogPage

	Close() error
}

// CatalogPage is the paginated item-list surface.
type CatalogPage interface {
	// Items enumerates the items on the current page, in list order.
	Items(ctx context.Context) ([]ItemHandle, error)
	// NextPage advances when the pagination control is present and
	// enabled; returns false when the last page has been reached.
	NextPage(ctx context.Context) (bool, error)
}

// ItemHandle is one catalog row.
type ItemHandle interface {
	// ID returns the item identifier from the list row, or "" when the
	// row carries none.
	ID() string
	OpenDetail(ctx context.Context) (DetailView, error)
}

// DetailView is an opened item detail pane. It satisfies extract.Page.
type DetailView interface {
	HTML(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// RunContext is the mutable state of one partition's run. It is owned
// exclusively by a single Orchestrator for the lifetime of that run.
type RunContext struct {
	Partition     config.PartitionConfig
	AuthStatePath string

	Session Session
	Catalog CatalogPage

	Result RunResult
}

// RunResult summarizes a completed (or aborted) partition run.
type RunResult struct {
	PartitionID    string
	PartitionLabel string
	Processed      int
	Skipped        int
	Pages          int
	Resumed        bool
	Duration       time.Duration
}
