// Package extract holds the predicate extraction adapters. Each adapter
// reads one text rendition of a device summary and emits an
// ExtractionResult tagged with its method. Adapters are isolated: a
// failing adapter produces an error result, never a panic or a partial
// write, so one method's outage cannot block the others.
package extract

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/model"
)

// Source is one rendition of a device summary: extracted text for the
// text adapters, or the PDF path for the vision adapter.
type Source struct {
	Kind model.TextSource
	Text string
	Path string
}

// Adapter extracts predicate identifiers from a source.
type Adapter interface {
	// Extractor identifies the method family for tagging and caching.
	Extractor() model.Extractor
	// Extract returns a result; failures are carried in the result's Err.
	Extract(ctx context.Context, deviceID string, src Source) model.ExtractionResult
}

// Cache persists successful extraction results one JSON file per
// (device, extractor, source) triple so reruns skip paid API calls.
type Cache struct {
	dir string
}

// NewCache creates an extraction cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) path(deviceID string, tag model.MethodTag) string {
	return filepath.Join(c.dir, tag.String(), deviceID+".json")
}

type cachedResult struct {
	Predicates []string `json:"predicates"`
	Malformed  []string `json:"malformed,omitempty"`
}

// Get returns a previously cached result, or ok=false.
func (c *Cache) Get(deviceID string, tag model.MethodTag) (model.ExtractionResult, bool) {
	data, err := os.ReadFile(c.path(deviceID, tag))
	if err != nil {
		return model.ExtractionResult{}, false
	}
	var cr cachedResult
	if err := json.Unmarshal(data, &cr); err != nil {
		return model.ExtractionResult{}, false
	}
	return model.ExtractionResult{
		DeviceID:   deviceID,
		Tag:        tag,
		Predicates: cr.Predicates,
		Malformed:  cr.Malformed,
	}, true
}

// Put stores a successful result. Error results are never cached; the
// next run should retry them.
func (c *Cache) Put(res model.ExtractionResult) error {
	if res.Failed() {
		return nil
	}
	path := c.path(res.DeviceID, res.Tag)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "extract: create cache dir")
	}
	data, err := json.Marshal(cachedResult{Predicates: res.Predicates, Malformed: res.Malformed})
	if err != nil {
		return eris.Wrap(err, "extract: marshal cached result")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "extract: write cache for %s", res.DeviceID)
	}
	return nil
}

// Results returns every cached result for a device across all automated
// method tags. No confidence ordering is implied; callers rank them
// through the priority table.
func (c *Cache) Results(deviceID string) []model.ExtractionResult {
	var results []model.ExtractionResult
	for _, tag := range []model.MethodTag{
		model.TagLLMPDFText, model.TagLLMOCR, model.TagVisionScan,
		model.TagPatternPDFText, model.TagPatternOCR, model.TagPatternScan,
	} {
		if res, ok := c.Get(deviceID, tag); ok {
			results = append(results, res)
		}
	}
	return results
}

// Cached wraps an adapter call with cache lookup and write-through.
func Cached(ctx context.Context, cache *Cache, a Adapter, deviceID string, src Source) model.ExtractionResult {
	tag := model.MethodTag{Extractor: a.Extractor(), Source: src.Kind}
	if cache != nil {
		if res, ok := cache.Get(deviceID, tag); ok {
			return res
		}
	}
	res := a.Extract(ctx, deviceID, src)
	if cache != nil {
		if err := cache.Put(res); err != nil {
			// A cache write failure degrades to an uncached run.
			return res
		}
	}
	return res
}
