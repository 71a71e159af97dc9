// Package textify turns device PDFs into plain text through competing
// engines: direct content-stream extraction, an OCR fallback for scanned
// documents, and a page renderer feeding the vision extraction adapter.
// Extracted text is cached one file per (device, engine) so reruns skip
// completed work.
package textify

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/model"
)

// Extraction is the output of one engine over one PDF.
type Extraction struct {
	Text  string
	Pages int
}

// Engine extracts plain text from a PDF file.
type Engine interface {
	// Source tags the text provenance this engine produces.
	Source() model.TextSource
	// Extract returns the document text and page count.
	Extract(ctx context.Context, pdfPath string) (Extraction, error)
}

// Cache stores extracted text one file per (device, source) pair.
type Cache struct {
	dir string
}

// NewCache creates a text cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Path returns the cache file for a device/source pair.
func (c *Cache) Path(deviceID string, source model.TextSource) string {
	return filepath.Join(c.dir, string(source), deviceID+".txt")
}

// Has reports whether cached text exists.
func (c *Cache) Has(deviceID string, source model.TextSource) bool {
	_, err := os.Stat(c.Path(deviceID, source))
	return err == nil
}

// Get returns cached text.
func (c *Cache) Get(deviceID string, source model.TextSource) (string, error) {
	data, err := os.ReadFile(c.Path(deviceID, source))
	if err != nil {
		return "", eris.Wrapf(err, "textify: read cached text for %s", deviceID)
	}
	return string(data), nil
}

// Put stores text for a device/source pair.
func (c *Cache) Put(deviceID string, source model.TextSource, text string) error {
	path := c.Path(deviceID, source)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "textify: create cache dir")
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return eris.Wrapf(err, "textify: write cached text for %s", deviceID)
	}
	return nil
}

// ExtractCached runs the engine unless the cache already holds its output.
// The returned Extraction always carries the text; Pages is zero on a
// cache hit (page count lives in the device record from the first run).
func ExtractCached(ctx context.Context, cache *Cache, eng Engine, deviceID, pdfPath string) (Extraction, bool, error) {
	if cache.Has(deviceID, eng.Source()) {
		text, err := cache.Get(deviceID, eng.Source())
		if err != nil {
			return Extraction{}, false, err
		}
		return Extraction{Text: text}, true, nil
	}

	ext, err := eng.Extract(ctx, pdfPath)
	if err != nil {
		return Extraction{}, false, err
	}
	if err := cache.Put(deviceID, eng.Source(), ext.Text); err != nil {
		return Extraction{}, false, err
	}
	return ext, false, nil
}
