package aggregate

import (
	"math/rand"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtree-data/devtree/internal/model"
)

func TestDefaultPriorityOrdering(t *testing.T) {
	table := DefaultPriority()
	require.Len(t, table, 8)

	assert.Less(t, table.Rank(model.TagHuman), table.Rank(model.TagManualVerified))
	assert.Less(t, table.Rank(model.TagManualVerified), table.Rank(model.TagLLMPDFText))
	assert.Less(t, table.Rank(model.TagLLMPDFText), table.Rank(model.TagLLMOCR))
	assert.Less(t, table.Rank(model.TagLLMOCR), table.Rank(model.TagVisionScan))
	assert.Less(t, table.Rank(model.TagVisionScan), table.Rank(model.TagPatternPDFText))
	assert.Less(t, table.Rank(model.TagPatternPDFText), table.Rank(model.TagPatternOCR))
	assert.Less(t, table.Rank(model.TagPatternOCR), table.Rank(model.TagPatternScan))
}

func TestRankUnknownTagLast(t *testing.T) {
	table := DefaultPriority()
	unknown := model.MethodTag{Extractor: "oracle", Source: "bones"}
	assert.Equal(t, len(table), table.Rank(unknown))
}

func TestAggregateSingleResultWins(t *testing.T) {
	results := []model.ExtractionResult{
		{DeviceID: "K100001", Tag: model.TagPatternScan, Predicates: []string{"K200002"}},
	}

	winners := Aggregate(results, DefaultPriority())
	require.Contains(t, winners, "K100001")
	assert.Equal(t, []string{"K200002"}, winners["K100001"].Predicates)
	assert.Equal(t, model.TagPatternScan, winners["K100001"].Tag)
}

func TestAggregateHigherConfidenceWins(t *testing.T) {
	results := []model.ExtractionResult{
		{DeviceID: "K100001", Tag: model.TagPatternPDFText, Predicates: []string{"K111111"}},
		{DeviceID: "K100001", Tag: model.TagLLMOCR, Predicates: []string{"K222222"}},
		{DeviceID: "K100001", Tag: model.TagPatternOCR, Predicates: []string{"K333333"}},
	}

	winners := Aggregate(results, DefaultPriority())
	assert.Equal(t, []string{"K222222"}, winners["K100001"].Predicates)
	assert.Equal(t, model.TagLLMOCR, winners["K100001"].Tag)
}

func TestAggregateOrderIndependent(t *testing.T) {
	results := []model.ExtractionResult{
		{DeviceID: "K100001", Tag: model.TagPatternScan, Predicates: []string{"K111111"}},
		{DeviceID: "K100001", Tag: model.TagLLMPDFText, Predicates: []string{"K222222"}},
		{DeviceID: "K100001", Tag: model.TagVisionScan, Predicates: []string{"K333333"}},
		{DeviceID: "K200002", Tag: model.TagPatternOCR, Predicates: []string{"K444444"}},
	}

	want := Aggregate(results, DefaultPriority())

	rng := rand.New(rand.NewSource(42))
	for range 10 {
		shuffled := append([]model.ExtractionResult(nil), results...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, Aggregate(shuffled, DefaultPriority()))
	}
}

func TestAggregateErrorResultsIgnored(t *testing.T) {
	results := []model.ExtractionResult{
		model.ErrResult("K100001", model.TagLLMPDFText, eris.New("api timeout")),
		{DeviceID: "K100001", Tag: model.TagPatternOCR, Predicates: []string{"K222222"}},
	}

	winners := Aggregate(results, DefaultPriority())
	assert.Equal(t, model.TagPatternOCR, winners["K100001"].Tag,
		"failed high-priority method never outranks a successful lower one")
}

func TestAggregateAllFailedOmitsDevice(t *testing.T) {
	results := []model.ExtractionResult{
		model.ErrResult("K100001", model.TagLLMPDFText, eris.New("timeout")),
		model.ErrResult("K100001", model.TagPatternOCR, eris.New("empty source text")),
	}

	winners := Aggregate(results, DefaultPriority())
	assert.NotContains(t, winners, "K100001")
}

func TestAggregateEmptyListIsLegitimate(t *testing.T) {
	results := []model.ExtractionResult{
		{DeviceID: "K100001", Tag: model.TagLLMPDFText, Predicates: nil},
		{DeviceID: "K100001", Tag: model.TagPatternPDFText, Predicates: []string{"K222222"}},
	}

	winners := Aggregate(results, DefaultPriority())
	require.Contains(t, winners, "K100001")
	assert.Empty(t, winners["K100001"].Predicates,
		"an empty answer from a higher-confidence method beats a non-empty lower one")
	assert.Equal(t, model.TagLLMPDFText, winners["K100001"].Tag)
}

func TestSameTagDuplicateKeepsFirst(t *testing.T) {
	first := model.NewResult("K100001", model.TagPatternPDFText, []string{"K900001"})
	dup := model.NewResult("K100001", model.TagPatternPDFText, []string{"K900002"})

	winners := Aggregate([]model.ExtractionResult{first, dup}, DefaultPriority())
	require.Contains(t, winners, "K100001")
	assert.Equal(t, []string{"K900001"}, winners["K100001"].Predicates,
		"an equal-rank duplicate never displaces the chosen answer")
}
