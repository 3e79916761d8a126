package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLAssetExtractor extracts one category of assets by selector and
// writes each matched fragment to the output directory.
type HTMLAssetExtractor struct {
	category string
	selector string
}

// NewHTMLAssetExtractor builds an extractor for one asset category.
func NewHTMLAssetExtractor(category, selector string) *HTMLAssetExtractor {
	return &HTMLAssetExtractor{category: category, selector: selector}
}

// Category returns the asset category this extractor handles.
func (e *HTMLAssetExtractor) Category() string { return e.category }

// ExtractRecordAssets writes each matched fragment under
// outputDir/<partitionLabel>/<itemID>/ and returns the asset list.
// Zero matches is a successful empty result, not an error.
func (e *HTMLAssetExtractor) ExtractRecordAssets(ctx context.Context, page Page, itemID, partitionLabel, outputDir string) ([]Asset, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read detail view: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail view: %w", err)
	}

	matches := doc.Find(e.selector)
	if matches.Length() == 0 {
		return nil, nil
	}

	dir := filepath.Join(outputDir, sanitize(partitionLabel), sanitize(itemID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}

	var assets []Asset
	var ferr error
	matches.EachWithBreak(func(i int, sel *goquery.Selection) bool {
		fragment, err := goquery.OuterHtml(sel)
		if err != nil {
			ferr = fmt.Errorf("render %s asset: %w", e.category, err)
			return false
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-%d.html", e.category, i))
		if err := os.WriteFile(path, []byte(fragment), 0o644); err != nil {
			ferr = fmt.Errorf("write %s asset: %w", e.category, err)
			return false
		}
		assets = append(assets, Asset{Category: e.category, Path: path})
		return true
	})
	if ferr != nil {
		return nil, ferr
	}
	return assets, nil
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	r := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_")
	return r.Replace(s)
}
