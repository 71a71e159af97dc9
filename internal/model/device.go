package model

// DocStatus tracks whether the FDA publishes a summary PDF for a device
// and whether we have fetched it locally.
type DocStatus string

const (
	// DocUnknown means no download has been attempted yet.
	DocUnknown DocStatus = "unknown"
	// DocMissing means the FDA confirmed (404 on both URL patterns) that
	// no document is published. Terminal: never retried.
	DocMissing DocStatus = "missing"
	// DocPresent means the document exists upstream but is not downloaded.
	DocPresent DocStatus = "present"
	// DocDownloaded means the document is stored locally.
	DocDownloaded DocStatus = "downloaded"
)

// TextQuality buckets a document by character density.
type TextQuality string

const (
	QualityRich    TextQuality = "rich"   // >= 500 chars/page
	QualitySparse  TextQuality = "sparse" // 50-500 chars/page
	QualityEmpty   TextQuality = "empty"  // < 50 chars/page
	QualityUnknown TextQuality = "unknown"
)

// QualityForDensity returns the quality tier for a chars/page density.
func QualityForDensity(density float64) TextQuality {
	switch {
	case density >= 500:
		return QualityRich
	case density >= 50:
		return QualitySparse
	default:
		return QualityEmpty
	}
}

// DocState is the document field group of a DeviceRecord.
type DocState struct {
	Status DocStatus `json:"status"`
	Size   int64     `json:"size,omitempty"`
	Path   string    `json:"path,omitempty"`
}

// TextState is the text-extraction field group of a DeviceRecord.
type TextState struct {
	Extracted bool        `json:"extracted"`
	Source    TextSource  `json:"source,omitempty"`
	Chars     int         `json:"chars,omitempty"`
	Pages     int         `json:"pages,omitempty"`
	Density   float64     `json:"density,omitempty"`
	Quality   TextQuality `json:"quality,omitempty"`
}

// PredicateState is the predicate-extraction field group of a DeviceRecord.
// Once Verified is set the Values list is frozen against automatic
// overwrite; only another human verification may change it.
type PredicateState struct {
	Extracted bool      `json:"extracted"`
	Values    []string  `json:"values,omitempty"`
	Malformed []string  `json:"malformed,omitempty"`
	Method    MethodTag `json:"method,omitzero"`
	Verified  bool      `json:"verified,omitempty"`
}

// StageErrors holds per-stage error strings. Each stage records its own
// failure independently so one stage's error never erases another stage's
// successfully produced data.
type StageErrors struct {
	Download  string `json:"download,omitempty"`
	Text      string `json:"text,omitempty"`
	Predicate string `json:"predicate,omitempty"`
}

// DeviceRecord is the persisted processing state for one device. Records
// are created when a device first appears in a dataset snapshot or is
// first cited as a predicate, and are never deleted.
type DeviceRecord struct {
	ID     string         `json:"id"`
	Doc    DocState       `json:"doc"`
	Text   TextState      `json:"text"`
	Preds  PredicateState `json:"preds"`
	Errors StageErrors    `json:"errors,omitzero"`
}

// NewDeviceRecord returns a fresh record for id with all stages pending.
func NewDeviceRecord(id string) *DeviceRecord {
	return &DeviceRecord{
		ID:   id,
		Doc:  DocState{Status: DocUnknown},
		Text: TextState{Quality: QualityUnknown},
	}
}
