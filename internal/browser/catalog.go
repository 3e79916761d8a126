package browser

import (
	"context"
	"fmt"

	"harvester/internal/orchestrator"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// catalogPage implements orchestrator.CatalogPage over the session page.
type catalogPage struct {
	s *Session
}

// Items enumerates the rows on the current page, in DOM order.
func (c *catalogPage) Items(ctx context.Context) ([]orchestrator.ItemHandle, error) {
	els, err := c.s.page.Context(ctx).Elements(c.s.selectors.Item)
	if err != nil {
		return nil, fmt.Errorf("enumerate items: %w", err)
	}

	handles := make([]orchestrator.ItemHandle, 0, len(els))
	for _, el := range els {
		id := ""
		if attr, err := el.Attribute(c.s.selectors.ItemIDAttr); err == nil && attr != nil {
			id = *attr
		}
		handles = append(handles, &itemHandle{s: c.s, el: el, id: id})
	}
	return handles, nil
}

// NextPage clicks the pagination control when it is present and enabled,
// then waits for the item list to settle.
func (c *catalogPage) NextPage(ctx context.Context) (bool, error) {
	has, el, err := c.s.page.Has(c.s.selectors.NextPage)
	if err != nil {
		return false, fmt.Errorf("probe pagination control: %w", err)
	}
	if !has || !isEnabled(el) {
		return false, nil
	}

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("advance page: %w", err)
	}
	if err := c.s.WaitVisible(ctx, c.s.selectors.ItemList, c.s.navTimeout); err != nil {
		return false, fmt.Errorf("item list after page advance: %w", err)
	}
	return true, nil
}

func isEnabled(el *rod.Element) bool {
	if attr, err := el.Attribute("disabled"); err == nil && attr != nil {
		return false
	}
	if attr, err := el.Attribute("aria-disabled"); err == nil && attr != nil && *attr == "true" {
		return false
	}
	return true
}

// itemHandle is one catalog row.
type itemHandle struct {
	s  *Session
	el *rod.Element
	id string
}

func (h *itemHandle) ID() string { return h.id }

// OpenDetail clicks the row and waits for the detail pane.
func (h *itemHandle) OpenDetail(ctx context.Context) (orchestrator.DetailView, error) {
	if err := h.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("open item %q: %w", h.id, err)
	}
	pane, err := h.s.page.Context(ctx).Timeout(h.s.navTimeout).Element(h.s.selectors.DetailPane)
	if err != nil {
		return nil, fmt.Errorf("detail pane for item %q: %w", h.id, err)
	}
	if err := pane.WaitVisible(); err != nil {
		return nil, fmt.Errorf("detail pane for item %q: %w", h.id, err)
	}
	return &detailView{s: h.s, pane: pane}, nil
}

// detailView is an opened detail pane.
type detailView struct {
	s    *Session
	pane *rod.Element
}

// HTML returns the pane's outer HTML for the extraction collaborators.
func (d *detailView) HTML(ctx context.Context) (string, error) {
	return d.pane.HTML()
}

// Close dismisses the pane via its close control when one exists.
func (d *detailView) Close(ctx context.Context) error {
	has, el, err := d.s.page.Has(d.s.selectors.DetailClose)
	if err != nil || !has {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}
