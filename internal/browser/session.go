package browser

import (
	"context"
	"fmt"
	"time"

	"harvester/internal/config"
	"harvester/internal/orchestrator"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Session is one isolated incognito context with a single page handle.
// It implements orchestrator.Session.
type Session struct {
	id         string
	page       *rod.Page
	selectors  config.SelectorConfig
	navTimeout time.Duration
	log        *zap.Logger
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Navigate loads the URL within the timeout.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := s.page.Context(ctx).Timeout(timeout).Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until the selector is present and visible.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("element %s not visible: %w", selector, err)
	}
	return nil
}

// Click waits for the selector and clicks it.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Has reports whether the selector currently matches, without waiting.
func (s *Session) Has(selector string) (bool, error) {
	has, _, err := s.page.Has(selector)
	return has, err
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot() ([]byte, error) {
	return s.page.Screenshot(false, nil)
}

// URL returns the page's current URL, or "" when it cannot be read.
func (s *Session) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Catalog exposes the item-list surface of this session's page.
func (s *Session) Catalog() orchestrator.CatalogPage {
	return &catalogPage{s: s}
}

// Close releases the page.
func (s *Session) Close() error {
	s.log.Debug("closing session")
	return s.page.Close()
}
