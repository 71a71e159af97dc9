package extract

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/llm"
	"github.com/devtree-data/devtree/internal/model"
	"github.com/devtree-data/devtree/internal/textify"
)

const visionPrompt = `This is a page from an FDA 510(k) premarket notification summary.
List the predicate device identifiers cited on this page as a JSON array.`

// VisionAdapter extracts predicates from scanned documents by rendering
// the leading pages to images and asking a vision model to read each
// one. Predicates appear early in 510(k) summaries, so a bounded page
// window covers the documents text extraction cannot.
type VisionAdapter struct {
	client    llm.Client
	renderer  *textify.PageRenderer
	model     string
	maxTokens int64
	maxPages  int
}

// NewVisionAdapter creates a vision adapter reading at most maxPages
// pages per document.
func NewVisionAdapter(client llm.Client, renderer *textify.PageRenderer, modelID string, maxTokens int64, maxPages int) *VisionAdapter {
	if maxTokens < 1 {
		maxTokens = 1024
	}
	if maxPages < 1 {
		maxPages = 6
	}
	return &VisionAdapter{
		client:    client,
		renderer:  renderer,
		model:     modelID,
		maxTokens: maxTokens,
		maxPages:  maxPages,
	}
}

func (a *VisionAdapter) Extractor() model.Extractor {
	return model.ExtractorVision
}

// Extract renders the document and sends one vision message per page,
// unioning per-page identifier lists in first-seen order. The source
// carries the PDF path for this adapter; src.Text is ignored.
func (a *VisionAdapter) Extract(ctx context.Context, deviceID string, src Source) model.ExtractionResult {
	tag := model.MethodTag{Extractor: model.ExtractorVision, Source: model.SourceScan}
	if src.Path == "" {
		return model.ErrResult(deviceID, tag, eris.New("missing pdf path"))
	}

	pages, err := a.renderer.Render(ctx, src.Path, a.maxPages)
	if err != nil {
		return model.ErrResult(deviceID, tag, eris.Wrap(err, "render pages"))
	}

	var union []string
	seen := make(map[string]struct{})
	for _, page := range pages {
		resp, err := a.client.CompleteVision(ctx, llm.VisionRequest{
			Model:     a.model,
			MaxTokens: a.maxTokens,
			System:    systemPrompt,
			Prompt:    visionPrompt,
			PNG:       page.PNG,
		})
		if err != nil {
			return model.ErrResult(deviceID, tag, eris.Wrapf(err, "vision extraction page %d", page.Number))
		}
		resp.Usage.LogCost(a.model, "extract/"+tag.String())

		ids, err := parseIdentifierArray(resp.Text)
		if err != nil {
			return model.ErrResult(deviceID, tag, eris.Wrapf(err, "page %d", page.Number))
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			union = append(union, id)
		}
	}

	return model.NewResult(deviceID, tag, union)
}
