// Package store persists per-device processing state as a single JSON
// file keyed by device identifier. Writes are atomic (temp file + rename)
// and keys are sorted for diff-friendliness. The store is the pipeline's
// only shared mutable state: stages collect results concurrently, then a
// single coordinating goroutine applies them here.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/devtree-data/devtree/internal/knum"
	"github.com/devtree-data/devtree/internal/model"
)

const schemaVersion = "2.0"

// Stats are derived counts recomputed on every save.
type Stats struct {
	TotalDevices        int `json:"total_devices"`
	WithPredicates      int `json:"with_predicates"`
	WithoutPredicates   int `json:"without_predicates"`
	DocsDownloaded      int `json:"docs_downloaded"`
	HumanVerified       int `json:"human_verified"`
	PredicateReferences int `json:"predicate_references"`
}

// Store is the in-memory device database.
type Store struct {
	SchemaVersion string                         `json:"schema_version"`
	LastUpdated   string                         `json:"last_updated"`
	Stats         Stats                          `json:"stats"`
	Devices       map[string]*model.DeviceRecord `json:"devices"`

	// Quarantined holds raw entries that failed schema validation on load.
	// They are written back untouched so a bad record is never lost, but
	// the pipeline does not process them.
	Quarantined map[string]json.RawMessage `json:"quarantined,omitempty"`
}

// New returns an empty store.
func New() *Store {
	return &Store{
		SchemaVersion: schemaVersion,
		Devices:       make(map[string]*model.DeviceRecord),
	}
}

// storeFile mirrors Store with raw device entries so one unparseable
// record does not lose the whole file.
type storeFile struct {
	SchemaVersion string                     `json:"schema_version"`
	LastUpdated   string                     `json:"last_updated"`
	Stats         Stats                      `json:"stats"`
	Devices       map[string]json.RawMessage `json:"devices"`
	Quarantined   map[string]json.RawMessage `json:"quarantined,omitempty"`
}

// Load reads the store from path. A missing file yields an empty store.
// Records that fail validation are quarantined rather than dropped.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: read %s", path)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "store: parse %s", path)
	}

	s := New()
	s.LastUpdated = file.LastUpdated
	s.Stats = file.Stats
	for id, raw := range file.Quarantined {
		if s.Quarantined == nil {
			s.Quarantined = make(map[string]json.RawMessage)
		}
		s.Quarantined[id] = raw
	}

	for id, raw := range file.Devices {
		var rec model.DeviceRecord
		if err := json.Unmarshal(raw, &rec); err != nil || !knum.Valid(id) {
			zap.L().Warn("store: quarantining unparseable record",
				zap.String("device", id),
				zap.Error(err),
			)
			if s.Quarantined == nil {
				s.Quarantined = make(map[string]json.RawMessage)
			}
			s.Quarantined[id] = raw
			continue
		}
		rec.ID = id
		s.Devices[id] = &rec
	}

	return s, nil
}

// Save writes the store atomically: marshal to a temp file in the target
// directory, then rename into place. A crash mid-write leaves the previous
// snapshot intact. Device keys are sorted.
func (s *Store) Save(path string) error {
	s.recomputeStats()
	s.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	s.SchemaVersion = schemaVersion

	data, err := s.marshalSorted()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "store: create data dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".devices-*.json")
	if err != nil {
		return eris.Wrap(err, "store: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "store: write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "store: close temp file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "store: rename into %s", path)
	}

	return nil
}

// marshalSorted produces the store JSON with device keys in ascending
// order. encoding/json sorts map keys itself, but building the output
// explicitly keeps the ordering contract independent of that detail.
func (s *Store) marshalSorted() ([]byte, error) {
	out := storeFile{
		SchemaVersion: s.SchemaVersion,
		LastUpdated:   s.LastUpdated,
		Stats:         s.Stats,
		Devices:       make(map[string]json.RawMessage, len(s.Devices)),
		Quarantined:   s.Quarantined,
	}

	for _, id := range s.SortedIDs() {
		raw, err := json.Marshal(s.Devices[id])
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal record %s", id)
		}
		out.Devices[id] = raw
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal")
	}
	return data, nil
}

// SortedIDs returns all device identifiers in ascending order.
func (s *Store) SortedIDs() []string {
	ids := make([]string, 0, len(s.Devices))
	for id := range s.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the record for id, or nil.
func (s *Store) Get(id string) *model.DeviceRecord {
	return s.Devices[id]
}

// Ensure returns the record for id, creating a fresh one if absent.
// Records are never deleted, only superseded field group by field group.
func (s *Store) Ensure(id string) *model.DeviceRecord {
	if rec, ok := s.Devices[id]; ok {
		return rec
	}
	rec := model.NewDeviceRecord(id)
	s.Devices[id] = rec
	return rec
}

// SetDownloaded records a successful document download. Clears any prior
// download error; other field groups are untouched.
func (s *Store) SetDownloaded(id, path string, size int64) {
	rec := s.Ensure(id)
	rec.Doc = model.DocState{Status: model.DocDownloaded, Path: path, Size: size}
	rec.Errors.Download = ""
}

// SetNotFound records that the FDA confirmed no document is published.
// Terminal: the download stage skips these on later runs.
func (s *Store) SetNotFound(id string) {
	rec := s.Ensure(id)
	rec.Doc = model.DocState{Status: model.DocMissing}
	rec.Errors.Download = ""
}

// SetDownloadError records a transient download failure without touching
// the document state, so a retry on the next run is possible.
func (s *Store) SetDownloadError(id string, err error) {
	rec := s.Ensure(id)
	rec.Errors.Download = err.Error()
}

// SetText records a completed text extraction.
func (s *Store) SetText(id string, source model.TextSource, chars, pages int) {
	rec := s.Ensure(id)
	density := 0.0
	if pages > 0 {
		density = float64(chars) / float64(pages)
	}
	rec.Text = model.TextState{
		Extracted: true,
		Source:    source,
		Chars:     chars,
		Pages:     pages,
		Density:   density,
		Quality:   model.QualityForDensity(density),
	}
	rec.Errors.Text = ""
}

// SetTextError records a text extraction failure. Document and predicate
// state are untouched.
func (s *Store) SetTextError(id string, err error) {
	rec := s.Ensure(id)
	rec.Errors.Text = err.Error()
}

// SetPredicates records an aggregated predicate result. It is a no-op on
// human-verified records: verification freezes the predicate list against
// automatic overwrite.
func (s *Store) SetPredicates(id string, tag model.MethodTag, values, malformed []string) {
	rec := s.Ensure(id)
	if rec.Preds.Verified {
		zap.L().Debug("store: skipping predicate update on verified record",
			zap.String("device", id),
		)
		return
	}
	rec.Preds = model.PredicateState{
		Extracted: true,
		Values:    values,
		Malformed: malformed,
		Method:    tag,
	}
	rec.Errors.Predicate = ""
}

// SetPredicateError records a predicate extraction failure. Document and
// text state are untouched.
func (s *Store) SetPredicateError(id string, err error) {
	rec := s.Ensure(id)
	rec.Errors.Predicate = err.Error()
}

// Verify marks a record human-verified, optionally replacing its
// predicates. Returns false if the device is unknown.
func (s *Store) Verify(id string, predicates []string) bool {
	rec, ok := s.Devices[id]
	if !ok {
		return false
	}
	if predicates != nil {
		rec.Preds.Values = predicates
		rec.Preds.Method = model.TagHuman
	}
	rec.Preds.Extracted = true
	rec.Preds.Verified = true
	return true
}

func (s *Store) recomputeStats() {
	st := Stats{TotalDevices: len(s.Devices)}
	for _, rec := range s.Devices {
		if len(rec.Preds.Values) > 0 {
			st.WithPredicates++
			st.PredicateReferences += len(rec.Preds.Values)
		}
		if rec.Doc.Status == model.DocDownloaded {
			st.DocsDownloaded++
		}
		if rec.Preds.Verified {
			st.HumanVerified++
		}
	}
	st.WithoutPredicates = st.TotalDevices - st.WithPredicates
	s.Stats = st
}
