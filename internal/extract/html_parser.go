package extract

import (
	"context"
	"fmt"
	"strings"

	"harvester/internal/config"

	"github.com/PuerkitoBio/goquery"
)

// HTMLRecordParser parses the detail pane's HTML into a Record using the
// configured selectors.
type HTMLRecordParser struct {
	sel config.SelectorConfig
}

// NewHTMLRecordParser builds a parser for the given selector contract.
func NewHTMLRecordParser(sel config.SelectorConfig) *HTMLRecordParser {
	return &HTMLRecordParser{sel: sel}
}

// ParseRecord extracts the item id, title, and definition-list fields.
// An item with no extractable id is returned with ID == ""; the caller
// assigns a placeholder so the item is still tracked.
func (p *HTMLRecordParser) ParseRecord(ctx context.Context, page Page, partitionLabel string) (*Record, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read detail view: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail view: %w", err)
	}

	pane := doc.Find(p.sel.DetailPane).First()
	if pane.Length() == 0 {
		// Detail markup may be the pane itself rather than a wrapper.
		pane = doc.Selection
	}

	rec := &Record{
		PartitionLabel: partitionLabel,
		Fields:         make(map[string]string),
	}
	if id, ok := pane.Attr(p.sel.ItemIDAttr); ok {
		rec.ID = strings.TrimSpace(id)
	} else if id, ok := pane.Find("[" + p.sel.ItemIDAttr + "]").First().Attr(p.sel.ItemIDAttr); ok {
		rec.ID = strings.TrimSpace(id)
	}
	rec.Title = strings.TrimSpace(pane.Find(p.sel.RecordTitle).First().Text())

	pane.Find(p.sel.RecordField).Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find("dt").First().Text())
		val := strings.TrimSpace(row.Find("dd").First().Text())
		if key != "" {
			rec.Fields[key] = val
		}
	})

	return rec, nil
}
