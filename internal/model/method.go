package model

import "github.com/rotisserie/eris"

// Extractor identifies an extraction technique. The set is closed: adding
// a technique is a compile-time change, not a runtime registry entry.
type Extractor string

const (
	// ExtractorHuman marks predicates entered by a human reviewer.
	ExtractorHuman Extractor = "human"
	// ExtractorManual marks predicates from a previously verified manual pass.
	ExtractorManual Extractor = "manual"
	// ExtractorLLM marks predicates produced by a language model over text.
	ExtractorLLM Extractor = "llm"
	// ExtractorVision marks predicates produced by a vision model over
	// rendered page images.
	ExtractorVision Extractor = "vision"
	// ExtractorPattern marks predicates produced by regex pattern matching.
	ExtractorPattern Extractor = "pattern"
)

// TextSource identifies the provenance of the text an extractor consumed.
type TextSource string

const (
	// SourceNone is used by methods that do not read extracted text
	// (human overrides, prior manual passes).
	SourceNone TextSource = "raw"
	// SourcePDFText is text pulled directly out of the PDF content stream.
	SourcePDFText TextSource = "pdftext"
	// SourceOCR is text produced by the OCR engine.
	SourceOCR TextSource = "ocr"
	// SourceScan means the method consumed rendered page images, not text.
	SourceScan TextSource = "scan"
)

// MethodTag is the (extractor, source) pair identifying one extraction
// method instance, e.g. "pattern+pdftext" or "vision+scan".
type MethodTag struct {
	Extractor Extractor  `json:"extractor"`
	Source    TextSource `json:"source"`
}

func (t MethodTag) String() string {
	return string(t.Extractor) + "+" + string(t.Source)
}

// Known method tags, in no particular order. The Aggregator's priority
// table defines confidence ordering.
var (
	TagHuman          = MethodTag{ExtractorHuman, SourceNone}
	TagManualVerified = MethodTag{ExtractorManual, SourceNone}
	TagLLMPDFText     = MethodTag{ExtractorLLM, SourcePDFText}
	TagLLMOCR         = MethodTag{ExtractorLLM, SourceOCR}
	TagVisionScan     = MethodTag{ExtractorVision, SourceScan}
	TagPatternPDFText = MethodTag{ExtractorPattern, SourcePDFText}
	TagPatternOCR     = MethodTag{ExtractorPattern, SourceOCR}
	TagPatternScan    = MethodTag{ExtractorPattern, SourceScan}
)

// ParseMethodTag parses a "extractor+source" string back into a MethodTag.
func ParseMethodTag(s string) (MethodTag, error) {
	for _, t := range []MethodTag{
		TagHuman, TagManualVerified, TagLLMPDFText, TagLLMOCR,
		TagVisionScan, TagPatternPDFText, TagPatternOCR, TagPatternScan,
	} {
		if t.String() == s {
			return t, nil
		}
	}
	return MethodTag{}, eris.Errorf("model: unknown method tag %q", s)
}
