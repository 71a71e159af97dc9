package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 100_000}
	// 1M input at $0.80 + 100K output at $4.00
	assert.InDelta(t, 1.20, usage.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
}

func TestEstimateCostCacheRates(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000, // billed at 1.25x input
		CacheReadInputTokens:     1_000_000, // billed at 0.1x input
	}
	assert.InDelta(t, 0.80*1.25+0.80*0.1, usage.EstimateCost("claude-haiku-4-5-20251001"), 1e-9)
}

func TestEstimateCostUnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000}
	assert.Zero(t, usage.EstimateCost("claude-unknown"))
}
