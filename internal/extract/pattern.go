package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/knum"
	"github.com/devtree-data/devtree/internal/model"
)

// PatternAdapter extracts predicates by scanning source text for the
// identifier grammar. It is free and deterministic, so it runs on every
// rendition; the aggregator ranks its answers below the model-based ones.
type PatternAdapter struct{}

// NewPatternAdapter creates a pattern adapter.
func NewPatternAdapter() *PatternAdapter {
	return &PatternAdapter{}
}

func (a *PatternAdapter) Extractor() model.Extractor {
	return model.ExtractorPattern
}

// Extract scans src.Text. It fails only on an unreadable source; an
// empty match list is a legitimate answer for devices that cite no
// predicates in text.
func (a *PatternAdapter) Extract(ctx context.Context, deviceID string, src Source) model.ExtractionResult {
	tag := model.MethodTag{Extractor: model.ExtractorPattern, Source: src.Kind}
	if src.Text == "" {
		return model.ErrResult(deviceID, tag, eris.New("empty source text"))
	}

	valid, malformed := knum.FindIdentifiers(src.Text)
	res := model.NewResult(deviceID, tag, valid)
	res.Malformed = malformed
	return res
}
