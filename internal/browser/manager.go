// Package browser provides the rod-backed implementation of the
// orchestrator's browser-automation boundary: one detached Chrome
// instance, isolated incognito sessions per partition, and auth-state
// persistence.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"harvester/internal/config"
	"harvester/internal/orchestrator"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager owns the Chrome instance and hands out isolated sessions.
type Manager struct {
	cfg        config.BrowserConfig
	selectors  config.SelectorConfig
	navTimeout time.Duration
	log        *zap.Logger

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
}

// NewManager builds a manager; Start (or the first NewSession) connects.
func NewManager(cfg config.BrowserConfig, selectors config.SelectorConfig, navTimeout time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return &Manager{cfg: cfg, selectors: selectors, navTimeout: navTimeout, log: log}
}

// Start connects to an existing Chrome or launches a new one.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.log.Warn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.controlURL = ""
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(m.cfg.Headless)
		if m.cfg.Bin != "" {
			launch = launch.Bin(m.cfg.Bin)
		}
		launch = launch.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		url, err := launch.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	m.log.Info("browser connected", zap.Bool("headless", m.cfg.Headless))
	return nil
}

func (m *Manager) ensureStarted(ctx context.Context) error {
	m.mu.Lock()
	started := m.browser != nil
	m.mu.Unlock()
	if started {
		return nil
	}
	return m.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (m *Manager) ControlURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.controlURL
}

// NewSession opens an isolated incognito context with its own page.
func (m *Manager) NewSession(ctx context.Context) (orchestrator.Session, error) {
	if err := m.ensureStarted(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	browser := m.browser
	m.mu.Unlock()

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.viewportWidth(),
		Height:            m.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.log.Warn("failed to set viewport", zap.Error(err))
	}

	id := uuid.NewString()
	s := &Session{
		id:         id,
		page:       page,
		selectors:  m.selectors,
		navTimeout: m.navTimeout,
		log:        m.log.With(zap.String("session", id[:8])),
	}
	m.log.Debug("session created", zap.String("id", s.id))
	return s, nil
}

// Shutdown closes the browser.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.controlURL = ""
	return err
}

func (m *Manager) viewportWidth() int {
	if m.cfg.ViewportWidth == 0 {
		return 1920
	}
	return m.cfg.ViewportWidth
}

func (m *Manager) viewportHeight() int {
	if m.cfg.ViewportHeight == 0 {
		return 1080
	}
	return m.cfg.ViewportHeight
}
