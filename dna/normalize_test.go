package dna

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLocusName_TableCorrections(t *testing.T) {
	cases := map[string]string{
		"CSF1P0":   "CSF1PO",
		"CSFIPO":   "CSF1PO",
		"csf1p0":   "CSF1PO",
		"D2IS11":   "D21S11",
		"D21SI1":   "D21S11",
		"DIOS1248": "D10S1248",
		"D5S8L8":   "D5S818",
		"D5S8I8":   "D5S818",
		"DSS818":   "D5S818",
		"D8SI179":  "D8S1179",
		"D6S1O43":  "D6S1043",
		"VWA":      "vWA",
		"vwa":      "vWA",
		"WWA":      "vWA",
		"PENTA D":  "Penta D",
		"penta e":  "Penta E",
		"PENTAD":   "Penta D",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeLocusName(raw), "input %q", raw)
	}
}

func TestNormalizeLocusName_GlyphPattern(t *testing.T) {
	// Garblings absent from the correction table but recoverable from the
	// D<digits>S<digits> shape.
	cases := map[string]string{
		"D1OS1248": "D10S1248",
		"D18S5l":   "D18S51",
		"D13S3I7":  "D13S317",
		"D16S539":  "D16S539",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeLocusName(raw), "input %q", raw)
	}
}

func TestNormalizeLocusName_UnknownPassesThrough(t *testing.T) {
	for _, raw := range []string{"", "NOTALOCUS", "D99S999", "Amelogenin", "X123"} {
		assert.Equal(t, raw, NormalizeLocusName(raw), "input %q", raw)
	}
}

func TestNormalizeLocusName_CanonicalNamesUnchanged(t *testing.T) {
	for _, name := range ValidLoci {
		assert.Equal(t, name, NormalizeLocusName(name))
	}
}

func TestNormalizeLocusName_Idempotent(t *testing.T) {
	inputs := []string{"CSF1P0", "D5S8L8", "vwa", "PENTA D", "garbage", "", "D2IS11"}
	for _, raw := range inputs {
		once := NormalizeLocusName(raw)
		require.Equal(t, once, NormalizeLocusName(once), "input %q", raw)
	}
}

func TestVocabulary(t *testing.T) {
	assert.Len(t, ValidLoci, 23)
	assert.Len(t, CriticalLoci, 7)
	for _, name := range CriticalLoci {
		assert.True(t, IsValidLocus(name), "critical locus %s must be in the vocabulary", name)
	}
	assert.True(t, IsGenderMarker("Amelogenin"))
	assert.True(t, IsGenderMarker("Y indel"))
	assert.True(t, IsGenderMarker("y-indel"))
	assert.False(t, IsGenderMarker("vWA"))
	assert.False(t, IsValidLocus("amelogenin"))
}
