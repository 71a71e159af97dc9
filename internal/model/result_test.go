package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestNewResultValidates(t *testing.T) {
	res := NewResult("K100001", TagPatternPDFText, []string{"k200002", "K300003"})
	assert.False(t, res.Failed())
	assert.Equal(t, []string{"K200002", "K300003"}, res.Predicates)
}

func TestNewResultRejectsInvalidIdentifier(t *testing.T) {
	res := NewResult("K100001", TagLLMPDFText, []string{"K200002", "K12"})
	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "K12")
	assert.Empty(t, res.Predicates, "a partial list is never returned")
}

func TestNewResultDropsSelfCitation(t *testing.T) {
	res := NewResult("K100001", TagPatternPDFText, []string{"K100001", "K200002"})
	assert.False(t, res.Failed())
	assert.Equal(t, []string{"K200002"}, res.Predicates)
}

func TestNewResultDedupes(t *testing.T) {
	res := NewResult("K100001", TagPatternPDFText, []string{"K200002", "k200002"})
	assert.Equal(t, []string{"K200002"}, res.Predicates)
}

func TestNewResultEmptyListIsSuccess(t *testing.T) {
	res := NewResult("K100001", TagPatternPDFText, nil)
	assert.False(t, res.Failed())
	assert.Empty(t, res.Predicates)
}

func TestErrResult(t *testing.T) {
	res := ErrResult("K100001", TagLLMOCR, eris.New("api timeout"))
	assert.True(t, res.Failed())
	assert.Equal(t, "K100001", res.DeviceID)
	assert.Contains(t, res.Err, "api timeout")
}

func TestMethodTagRoundTrip(t *testing.T) {
	for _, tag := range []MethodTag{
		TagHuman, TagManualVerified, TagLLMPDFText, TagLLMOCR,
		TagVisionScan, TagPatternPDFText, TagPatternOCR, TagPatternScan,
	} {
		parsed, err := ParseMethodTag(tag.String())
		assert.NoError(t, err)
		assert.Equal(t, tag, parsed)
	}

	_, err := ParseMethodTag("sorcery+tea-leaves")
	assert.Error(t, err)
}

func TestQualityForDensity(t *testing.T) {
	assert.Equal(t, QualityRich, QualityForDensity(500))
	assert.Equal(t, QualitySparse, QualityForDensity(499.9))
	assert.Equal(t, QualitySparse, QualityForDensity(50))
	assert.Equal(t, QualityEmpty, QualityForDensity(49.9))
	assert.Equal(t, QualityEmpty, QualityForDensity(0))
}
