package model

import (
	"github.com/rotisserie/eris"

	"github.com/devtree-data/devtree/internal/knum"
)

// ExtractionResult is the output of one extraction method for one device.
// Either Predicates holds validated identifiers or Err explains why the
// method produced nothing; a result never carries a silently trimmed list.
type ExtractionResult struct {
	DeviceID   string    `json:"device_id"`
	Tag        MethodTag `json:"tag"`
	Predicates []string  `json:"predicates"`
	Malformed  []string  `json:"malformed,omitempty"`
	Err        string    `json:"error,omitempty"`
}

// Failed reports whether the method failed for this device.
func (r ExtractionResult) Failed() bool { return r.Err != "" }

// NewResult builds a successful result after validating every identifier
// against the accepted grammar. A single invalid identifier turns the
// whole result into an error result.
func NewResult(deviceID string, tag MethodTag, predicates []string) ExtractionResult {
	normalized := make([]string, 0, len(predicates))
	seen := make(map[string]struct{}, len(predicates))
	for _, p := range predicates {
		id := knum.Normalize(p)
		if !knum.Valid(id) {
			return ErrResult(deviceID, tag, eris.Errorf("invalid identifier %q", p))
		}
		if id == deviceID {
			continue // a device never cites itself
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}
	return ExtractionResult{DeviceID: deviceID, Tag: tag, Predicates: normalized}
}

// ErrResult builds a failed result carrying the error text.
func ErrResult(deviceID string, tag MethodTag, err error) ExtractionResult {
	return ExtractionResult{DeviceID: deviceID, Tag: tag, Err: err.Error()}
}

// AggregatedPredicate is the reconciled answer for one device: the winning
// predicate list and the method that produced it.
type AggregatedPredicate struct {
	DeviceID   string    `json:"device_id"`
	Predicates []string  `json:"predicates"`
	Tag        MethodTag `json:"tag"`
}
