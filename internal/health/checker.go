// Package health inspects the authentication state of a live session.
// The cheap path is a DOM indicator probe; the oracle is only consulted
// when the probe is inconclusive.
package health

import (
	"context"

	"harvester/internal/artifacts"
	"harvester/internal/oracle"

	"go.uber.org/zap"
)

// Page is the minimal browser surface the checker needs.
type Page interface {
	Has(selector string) (bool, error)
	Screenshot() ([]byte, error)
	URL() string
}

// Options configures one health check.
type Options struct {
	LoggedInIndicator string
}

// Status is the outcome of a health check.
type Status struct {
	IsHealthy      bool
	SessionExpired bool
	Analysis       *oracle.AuthAnalysis // nil on the cheap path
}

// Checker combines the indicator probe with oracle-backed analysis.
type Checker struct {
	oracle    oracle.Client
	artifacts *artifacts.Store
	log       *zap.Logger
}

// NewChecker builds a checker. The artifact store may be nil; snapshots
// are then attached to the oracle request but not kept on disk.
func NewChecker(client oracle.Client, store *artifacts.Store, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{oracle: client, artifacts: store, log: log}
}

// Check probes the logged-in indicator and, when it is absent or the probe
// errors, escalates to a screenshot + oracle analysis. Oracle usage-limit
// errors propagate unchanged; any other oracle failure degrades to the
// deterministic fallback analysis.
func (c *Checker) Check(ctx context.Context, page Page, opts Options) (*Status, error) {
	present, err := page.Has(opts.LoggedInIndicator)
	if err == nil && present {
		return &Status{IsHealthy: true}, nil
	}
	if err != nil {
		c.log.Debug("indicator probe inconclusive", zap.Error(err))
	}

	analysis, aerr := c.analyze(ctx, page, opts)
	if aerr != nil {
		return nil, aerr
	}

	st := &Status{Analysis: analysis}
	switch analysis.State {
	case oracle.AuthLoggedIn:
		st.IsHealthy = true
	case oracle.AuthSessionExpired, oracle.AuthRequiresRelogin:
		st.SessionExpired = true
	}

	c.log.Info("session health analyzed",
		zap.String("state", string(analysis.State)),
		zap.Float64("confidence", analysis.Confidence),
		zap.Strings("challenges", analysis.DetectedChallenges))
	return st, nil
}

func (c *Checker) analyze(ctx context.Context, page Page, opts Options) (*oracle.AuthAnalysis, error) {
	var shot []byte
	if b, err := page.Screenshot(); err == nil {
		shot = b
		if c.artifacts != nil {
			if path, err := c.artifacts.Save(artifacts.Bytes(b)); err == nil {
				c.log.Debug("auth snapshot saved", zap.String("path", path))
			}
		}
	} else {
		c.log.Warn("auth snapshot capture failed", zap.Error(err))
	}

	if !c.oracle.IsAvailable() {
		return oracle.FallbackAuthAnalysis(nil), nil
	}

	analysis, err := oracle.AnalyzeAuth(ctx, c.oracle, oracle.AuthContext{
		URL:        page.URL(),
		Indicator:  opts.LoggedInIndicator,
		Screenshot: shot,
	})
	if err != nil {
		if oracle.IsUsageLimit(err) {
			return nil, err
		}
		c.log.Warn("auth analysis failed, using fallback", zap.Error(err))
		return oracle.FallbackAuthAnalysis(err), nil
	}
	return analysis, nil
}
