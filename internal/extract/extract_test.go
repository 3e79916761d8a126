package extract

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"harvester/internal/config"

	"github.com/stretchr/testify/require"
)

type staticPage struct {
	html string
	err  error
}

func (p *staticPage) HTML(ctx context.Context) (string, error) {
	return p.html, p.err
}

const detailHTML = `
<div data-testid="item-detail" data-item-id="alg-042">
  <h1>Quadratic Equations</h1>
  <dl>
    <div><dt>Grade</dt><dd>9</dd></div>
    <div><dt>Unit</dt><dd>Algebra II</dd></div>
    <div><dt></dt><dd>ignored, empty key</dd></div>
  </dl>
  <figure><img src="plot.png"></figure>
  <figure><img src="graph.png"></figure>
  <table><tr><td>x</td></tr></table>
</div>`

func testSelectors() config.SelectorConfig {
	return config.Default().Selectors
}

func TestParseRecord(t *testing.T) {
	p := NewHTMLRecordParser(testSelectors())

	rec, err := p.ParseRecord(context.Background(), &staticPage{html: detailHTML}, "Mathematics")
	require.NoError(t, err)
	require.Equal(t, "alg-042", rec.ID)
	require.Equal(t, "Quadratic Equations", rec.Title)
	require.Equal(t, "Mathematics", rec.PartitionLabel)
	require.Equal(t, map[string]string{"Grade": "9", "Unit": "Algebra II"}, rec.Fields)
}

func TestParseRecordWithoutIDReturnsEmptyID(t *testing.T) {
	p := NewHTMLRecordParser(testSelectors())

	rec, err := p.ParseRecord(context.Background(), &staticPage{
		html: `<div data-testid="item-detail"><h1>Untitled</h1></div>`,
	}, "Mathematics")
	require.NoError(t, err)
	require.Empty(t, rec.ID)
	require.Equal(t, "Untitled", rec.Title)
}

func TestParseRecordPropagatesPageError(t *testing.T) {
	p := NewHTMLRecordParser(testSelectors())
	_, err := p.ParseRecord(context.Background(), &staticPage{err: os.ErrDeadlineExceeded}, "x")
	require.Error(t, err)
}

func TestExtractAssetsWritesFragments(t *testing.T) {
	dir := t.TempDir()
	e := NewHTMLAssetExtractor("figures", "figure")

	assets, err := e.ExtractRecordAssets(context.Background(), &staticPage{html: detailHTML}, "alg-042", "Mathematics", dir)
	require.NoError(t, err)
	require.Len(t, assets, 2)

	for i, a := range assets {
		require.Equal(t, "figures", a.Category)
		require.FileExists(t, a.Path)
		require.Contains(t, a.Path, filepath.Join("Mathematics", "alg-042"))
		data, err := os.ReadFile(a.Path)
		require.NoError(t, err)
		require.Contains(t, string(data), "<figure>", "fragment %d", i)
	}
}

func TestExtractAssetsZeroMatchesIsNotAnError(t *testing.T) {
	e := NewHTMLAssetExtractor("tables", "table")
	assets, err := e.ExtractRecordAssets(context.Background(), &staticPage{html: "<div>no tables</div>"}, "id", "Label", t.TempDir())
	require.NoError(t, err)
	require.Empty(t, assets)
}

func TestExtractAssetsSanitizesPathComponents(t *testing.T) {
	dir := t.TempDir()
	e := NewHTMLAssetExtractor("tables", "table")

	assets, err := e.ExtractRecordAssets(context.Background(), &staticPage{html: "<table></table>"}, "a/b:c", "Social Studies", dir)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	require.Contains(t, assets[0].Path, filepath.Join("Social_Studies", "a_b_c"))
}

func TestWriteRecord(t *testing.T) {
	dir := t.TempDir()
	w := NewFileRecordWriter()

	rec := &Record{
		ID:             "alg-042",
		Title:          "Quadratic Equations",
		PartitionLabel: "Mathematics",
		Fields:         map[string]string{"Grade": "9"},
		Assets:         []Asset{{Category: "figures", Path: "/tmp/f.html"}},
	}

	path, err := w.WriteRecord(context.Background(), rec, "Mathematics", dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Mathematics", "alg-042.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.Fields, got.Fields)
	require.Len(t, got.Assets, 1)
}

func TestWriteRecordRejectsEmptyID(t *testing.T) {
	w := NewFileRecordWriter()
	_, err := w.WriteRecord(context.Background(), &Record{}, "Label", t.TempDir())
	require.Error(t, err)
}
