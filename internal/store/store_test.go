package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devtree-data/devtree/internal/model"
)

func storePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "devices.json")
}

func TestLoadMissingFileYieldsEmptyStore(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Empty(t, s.Devices)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := storePath(t)

	s := New()
	s.SetDownloaded("K100001", "/pdfs/K100001.pdf", 12345)
	s.SetText("K100001", model.SourcePDFText, 5000, 10)
	s.SetPredicates("K100001", model.TagLLMPDFText, []string{"K200002"}, nil)
	s.SetNotFound("K300003")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	rec := loaded.Get("K100001")
	require.NotNil(t, rec)
	assert.Equal(t, model.DocDownloaded, rec.Doc.Status)
	assert.Equal(t, int64(12345), rec.Doc.Size)
	assert.Equal(t, model.SourcePDFText, rec.Text.Source)
	assert.Equal(t, model.QualityRich, rec.Text.Quality)
	assert.Equal(t, []string{"K200002"}, rec.Preds.Values)
	assert.Equal(t, model.TagLLMPDFText, rec.Preds.Method)

	missing := loaded.Get("K300003")
	require.NotNil(t, missing)
	assert.Equal(t, model.DocMissing, missing.Doc.Status)
}

func TestSaveSortsDeviceKeys(t *testing.T) {
	path := storePath(t)

	s := New()
	for _, id := range []string{"K900009", "K100001", "K500005"} {
		s.Ensure(id)
	}
	require.NoError(t, s.Save(path))

	assert.Equal(t, []string{"K100001", "K500005", "K900009"}, s.SortedIDs())
}

func TestLoadQuarantinesBadRecords(t *testing.T) {
	path := storePath(t)
	raw := `{
		"schema_version": "2.0",
		"devices": {
			"K100001": {"id": "K100001", "doc": {"status": "downloaded"}, "text": {"extracted": false}, "preds": {"extracted": false}},
			"not-a-knumber": {"id": "not-a-knumber", "doc": {"status": "unknown"}, "text": {"extracted": false}, "preds": {"extracted": false}},
			"K200002": "this is not an object"
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, s.Devices, 1)
	assert.NotNil(t, s.Get("K100001"))
	assert.Len(t, s.Quarantined, 2)
	assert.Contains(t, s.Quarantined, "not-a-knumber")
	assert.Contains(t, s.Quarantined, "K200002")
}

func TestQuarantinedRecordsSurviveSave(t *testing.T) {
	path := storePath(t)

	s := New()
	s.Quarantined = map[string]json.RawMessage{"junk": json.RawMessage(`{"x":1}`)}
	s.Ensure("K100001")
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, loaded.Quarantined, "junk")
}

func TestVerifiedPredicatesAreFrozen(t *testing.T) {
	s := New()
	s.SetPredicates("K100001", model.TagPatternOCR, []string{"K200002"}, nil)
	require.True(t, s.Verify("K100001", []string{"K300003"}))

	s.SetPredicates("K100001", model.TagLLMPDFText, []string{"K999999"}, nil)

	rec := s.Get("K100001")
	assert.Equal(t, []string{"K300003"}, rec.Preds.Values, "verification freezes the list")
	assert.True(t, rec.Preds.Verified)
	assert.Equal(t, model.TagHuman, rec.Preds.Method)
}

func TestVerifyWithoutPredicatesKeepsValues(t *testing.T) {
	s := New()
	s.SetPredicates("K100001", model.TagLLMPDFText, []string{"K200002"}, nil)
	require.True(t, s.Verify("K100001", nil))

	rec := s.Get("K100001")
	assert.Equal(t, []string{"K200002"}, rec.Preds.Values)
	assert.True(t, rec.Preds.Verified)
	assert.Equal(t, model.TagLLMPDFText, rec.Preds.Method, "method untouched when values kept")
}

func TestVerifyUnknownDevice(t *testing.T) {
	s := New()
	assert.False(t, s.Verify("K100001", nil))
}

func TestErrorFieldsAreIndependent(t *testing.T) {
	s := New()
	s.SetDownloadError("K100001", eris.New("http 503"))
	s.SetText("K100001", model.SourceOCR, 100, 4)

	rec := s.Get("K100001")
	assert.Equal(t, "http 503", rec.Errors.Download, "text success leaves download error alone")
	assert.Empty(t, rec.Errors.Text)

	s.SetDownloaded("K100001", "/pdfs/K100001.pdf", 1)
	assert.Empty(t, rec.Errors.Download, "download success clears its own error")
}

func TestStatsRecomputedOnSave(t *testing.T) {
	path := storePath(t)

	s := New()
	s.SetPredicates("K100001", model.TagPatternPDFText, []string{"K200002", "K300003"}, nil)
	s.SetDownloaded("K100001", "/pdfs/K100001.pdf", 1)
	s.Ensure("K400004")
	require.NoError(t, s.Save(path))

	assert.Equal(t, 2, s.Stats.TotalDevices)
	assert.Equal(t, 1, s.Stats.WithPredicates)
	assert.Equal(t, 1, s.Stats.WithoutPredicates)
	assert.Equal(t, 2, s.Stats.PredicateReferences)
	assert.Equal(t, 1, s.Stats.DocsDownloaded)
}
