package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/llm"
	"github.com/devtree-data/devtree/internal/model"
)

// systemPrompt is the fixed instruction shared by the text and vision
// adapters. Holding it constant across a run keeps the prompt cache warm.
const systemPrompt = `You are reading an FDA 510(k) premarket notification summary.
Identify the predicate devices this submission claims substantial equivalence to.
Predicate identifiers look like K123456 or DEN123456.
Report only identifiers cited AS PREDICATES, not the submission's own number
and not incidental references.
Respond with a JSON array of identifier strings and nothing else.
If no predicates are cited, respond with [].`

const llmPrompt = `Document text:

%s

List the predicate device identifiers as a JSON array.`

// maxPromptChars bounds the document text sent per request. FDA
// summaries fit comfortably; the truncation only guards pathological
// OCR output.
const maxPromptChars = 180_000

// LLMAdapter extracts predicates by sending the source text to a
// language model under a strict JSON contract. Any deviation from the
// contract is an error result, never a guessed list.
type LLMAdapter struct {
	client    llm.Client
	model     string
	maxTokens int64
}

// NewLLMAdapter creates a text-model adapter.
func NewLLMAdapter(client llm.Client, modelID string, maxTokens int64) *LLMAdapter {
	if maxTokens < 1 {
		maxTokens = 1024
	}
	return &LLMAdapter{client: client, model: modelID, maxTokens: maxTokens}
}

func (a *LLMAdapter) Extractor() model.Extractor {
	return model.ExtractorLLM
}

func (a *LLMAdapter) Extract(ctx context.Context, deviceID string, src Source) model.ExtractionResult {
	tag := model.MethodTag{Extractor: model.ExtractorLLM, Source: src.Kind}
	if src.Text == "" {
		return model.ErrResult(deviceID, tag, eris.New("empty source text"))
	}

	text := src.Text
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	resp, err := a.client.CompleteText(ctx, llm.TextRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    systemPrompt,
		Prompt:    fmt.Sprintf(llmPrompt, text),
	})
	if err != nil {
		return model.ErrResult(deviceID, tag, eris.Wrap(err, "llm extraction"))
	}
	resp.Usage.LogCost(a.model, "extract/"+tag.String())

	ids, err := parseIdentifierArray(resp.Text)
	if err != nil {
		return model.ErrResult(deviceID, tag, err)
	}
	return model.NewResult(deviceID, tag, ids)
}

// parseIdentifierArray decodes the model's response under the strict
// array-of-strings contract. Markdown fences and surrounding prose are
// tolerated; anything that does not decode to []string is rejected.
func parseIdentifierArray(text string) ([]string, error) {
	cleaned := cleanJSONArray(text)
	var ids []string
	if err := json.Unmarshal([]byte(cleaned), &ids); err != nil {
		return nil, eris.Wrapf(err, "response violates array-of-strings contract: %.80s", text)
	}
	return ids, nil
}

// cleanJSONArray strips markdown fences and extracts the JSON array.
func cleanJSONArray(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
