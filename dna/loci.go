package dna

import "strings"

// ValidLoci is the canonical vocabulary of STR marker names a lab report may
// contribute. Anything outside this list is rejected after normalization.
var ValidLoci = []string{
	"D1S1656", "D2S441", "D2S1338", "D3S1358", "D5S818",
	"D6S1043", "D7S820", "D8S1179", "D10S1248", "D12S391",
	"D13S317", "D16S539", "D18S51", "D19S433", "D21S11",
	"D22S1045", "CSF1PO", "FGA", "TH01", "TPOX", "vWA",
	"Penta D", "Penta E",
}

// CriticalLoci are the most discriminating markers, used to bound fingerprint
// comparison cost and keep the duplicate-detection thresholds stable.
var CriticalLoci = []string{
	"D8S1179", "D21S11", "D7S820", "D3S1358",
	"FGA", "D13S317", "D16S539",
}

// genderMarkers are recognized during extraction to disambiguate role but are
// never persisted as loci.
var genderMarkers = map[string]bool{
	"amelogenin": true,
	"y indel":    true,
	"y-indel":    true,
}

var validLociSet = func() map[string]bool {
	m := make(map[string]bool, len(ValidLoci))
	for _, name := range ValidLoci {
		m[name] = true
	}
	return m
}()

var criticalLociSet = func() map[string]bool {
	m := make(map[string]bool, len(CriticalLoci))
	for _, name := range CriticalLoci {
		m[name] = true
	}
	return m
}()

// IsValidLocus reports whether name is in the canonical vocabulary.
// The check is case-sensitive; run NormalizeLocusName first.
func IsValidLocus(name string) bool {
	return validLociSet[name]
}

// IsCriticalLocus reports whether name belongs to the critical subset.
func IsCriticalLocus(name string) bool {
	return criticalLociSet[name]
}

// IsGenderMarker reports whether name is Amelogenin or a Y-indel variant,
// case-insensitively.
func IsGenderMarker(name string) bool {
	return genderMarkers[strings.ToLower(strings.TrimSpace(name))]
}
