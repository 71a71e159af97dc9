// Package aggregate reconciles competing extraction results into one
// predicate list per device using a fixed method confidence ordering.
package aggregate

import (
	"go.uber.org/zap"

	"github.com/devtree-data/devtree/internal/model"
)

// PriorityTable ranks method tags by confidence. Lower index wins.
type PriorityTable []model.MethodTag

// DefaultPriority is the canonical confidence ordering: human review
// beats any automated method, model-read text beats pattern-matched
// text, and cleaner text sources beat noisier ones within a method.
func DefaultPriority() PriorityTable {
	return PriorityTable{
		model.TagHuman,
		model.TagManualVerified,
		model.TagLLMPDFText,
		model.TagLLMOCR,
		model.TagVisionScan,
		model.TagPatternPDFText,
		model.TagPatternOCR,
		model.TagPatternScan,
	}
}

// Rank returns the tag's priority index, or len(table) for unknown tags
// so they rank below every listed method.
func (t PriorityTable) Rank(tag model.MethodTag) int {
	for i, known := range t {
		if known == tag {
			return i
		}
	}
	return len(t)
}

// Aggregate picks, for each device, the error-free result from the
// highest-confidence method. Pure and order-independent: the winner
// depends only on the table, never on input ordering. Devices whose
// results all failed are omitted; an empty winning list is a legitimate
// answer ("no predicates cited").
func Aggregate(results []model.ExtractionResult, table PriorityTable) map[string]model.AggregatedPredicate {
	winners := make(map[string]model.AggregatedPredicate)
	ranks := make(map[string]int)

	for _, res := range results {
		if res.Failed() {
			continue
		}
		rank := table.Rank(res.Tag)
		prev, seen := ranks[res.DeviceID]
		// The table holds each tag once, so an equal rank can only be
		// the same tag appearing twice. The incumbent stays: a duplicate
		// can never flip an already-chosen answer.
		if seen && rank >= prev {
			continue
		}
		ranks[res.DeviceID] = rank
		winners[res.DeviceID] = model.AggregatedPredicate{
			DeviceID:   res.DeviceID,
			Predicates: res.Predicates,
			Tag:        res.Tag,
		}
	}

	zap.L().Info("aggregation complete",
		zap.Int("results", len(results)),
		zap.Int("devices", len(winners)),
	)
	return winners
}
