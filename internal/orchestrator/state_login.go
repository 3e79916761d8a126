package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"harvester/internal/health"
	"harvester/internal/oracle"

	"go.uber.org/zap"
)

const loginPollInterval = 2 * time.Second

// loginState establishes an authenticated session, preferring a persisted
// auth artifact over interactive login.
type loginState struct{ o *Orchestrator }

func (s *loginState) Execute(ctx context.Context, rc *RunContext) (StateID, error) {
	if ok := s.tryRestore(ctx, rc); ok {
		return StateNavigate, nil
	}
	return s.interactive(ctx, rc)
}

// tryRestore recreates the session from the persisted artifact and probes
// the logged-in indicator within the short timeout.
func (s *loginState) tryRestore(ctx context.Context, rc *RunContext) bool {
	cfg := s.o.deps.Config

	restored, err := rc.Session.RestoreAuthState(rc.AuthStatePath)
	if err != nil {
		s.o.log.Warn("auth artifact restore failed", zap.Error(err))
		return false
	}
	if !restored {
		return false
	}

	if err := rc.Session.Navigate(ctx, cfg.BaseURL, cfg.NavWait()); err != nil {
		s.o.log.Warn("post-restore navigation failed", zap.Error(err))
		return false
	}
	if err := rc.Session.WaitVisible(ctx, cfg.Selectors.LoggedInIndicator, cfg.IndicatorWait()); err != nil {
		s.o.log.Info("restored session is not logged in, falling back to interactive login")
		return false
	}

	s.o.log.Info("session restored from auth artifact")
	return true
}

// interactive navigates to the login entry point and polls for the
// logged-in indicator for the bounded wait. On success it persists a
// fresh auth artifact; on timeout it captures a diagnosis (best-effort)
// and fails with a distinguishable error.
func (s *loginState) interactive(ctx context.Context, rc *RunContext) (StateID, error) {
	cfg := s.o.deps.Config

	if err := rc.Session.Navigate(ctx, cfg.LoginURL, cfg.NavWait()); err != nil {
		return StateExit, fmt.Errorf("open login page: %w", err)
	}
	s.o.log.Info("waiting for interactive login", zap.Duration("timeout", cfg.LoginWait()))

	deadline := time.Now().Add(cfg.LoginWait())
	for time.Now().Before(deadline) {
		present, err := rc.Session.Has(cfg.Selectors.LoggedInIndicator)
		if err == nil && present {
			s.persistAuthState(rc)
			return StateNavigate, nil
		}

		select {
		case <-ctx.Done():
			return StateExit, ctx.Err()
		case <-time.After(loginPollInterval):
		}
	}

	// The diagnosis is best-effort and must not mask the timeout itself.
	if s.o.deps.Health != nil {
		st, err := s.o.deps.Health.Check(ctx, rc.Session, health.Options{
			LoggedInIndicator: cfg.Selectors.LoggedInIndicator,
		})
		switch {
		case err != nil:
			s.o.log.Warn("login timeout diagnosis failed", zap.Error(err))
		case st.Analysis != nil:
			if st.Analysis.State == oracle.AuthChallengePresent {
				return StateExit, fmt.Errorf("%w: %s", ErrChallengeDetected, st.Analysis.Diagnosis)
			}
			s.o.log.Warn("login timeout diagnosis",
				zap.String("state", string(st.Analysis.State)),
				zap.String("diagnosis", st.Analysis.Diagnosis),
				zap.String("suggested_action", st.Analysis.SuggestedAction))
		}
	}

	return StateExit, fmt.Errorf("%w after %s", ErrLoginTimeout, cfg.LoginWait())
}

func (s *loginState) persistAuthState(rc *RunContext) {
	if err := os.MkdirAll(filepath.Dir(rc.AuthStatePath), 0o755); err != nil {
		s.o.log.Warn("auth artifact directory create failed", zap.Error(err))
		return
	}
	if err := rc.Session.SaveAuthState(rc.AuthStatePath); err != nil {
		s.o.log.Warn("auth artifact persist failed", zap.Error(err))
		return
	}
	s.o.log.Info("auth artifact persisted", zap.String("path", rc.AuthStatePath))
}
