package dna

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultMinConfidence is the per-allele confidence floor below which a
// reading blocks the save. Empirically chosen; do not tune without domain
// sign-off.
const DefaultMinConfidence = 0.8

// DefaultMinValidLoci is the minimum count of valid loci a person record must
// carry to be persisted.
const DefaultMinValidLoci = 10

// CountValidLoci counts loci whose name is canonical, is not a gender marker,
// and has both alleles non-empty. It never exceeds len(loci).
func CountValidLoci(loci []LocusReading) int {
	count := 0
	for _, locus := range loci {
		if IsGenderMarker(locus.LocusName) {
			continue
		}
		if locus.Allele1 == "" || locus.Allele2 == "" {
			continue
		}
		if IsValidLocus(locus.LocusName) {
			count++
		}
	}
	return count
}

// confidenceOrDefault treats missing confidence as fully trustworthy; absent
// metadata never blocks a save. Values are clamped to [0,1].
func confidenceOrDefault(c *float64) float64 {
	if c == nil {
		return 1.0
	}
	if *c < 0 {
		return 0
	}
	if *c > 1 {
		return 1
	}
	return *c
}

// ValidateLociConfidence collects the names of non-empty, non-gender-marker
// loci whose minimum allele confidence falls below minConfidence, and reports
// them as a single blocking failure. Low-confidence alleles risk false
// paternity exclusions, so the whole upload fails rather than the locus being
// silently dropped.
func ValidateLociConfidence(loci []LocusReading, minConfidence float64, personLabel string) []string {
	var lowConfidence []string
	for _, locus := range loci {
		if IsGenderMarker(locus.LocusName) {
			continue
		}
		if locus.Allele1 == "" || locus.Allele2 == "" {
			continue
		}
		c1 := confidenceOrDefault(locus.Confidence1)
		c2 := confidenceOrDefault(locus.Confidence2)
		if min(c1, c2) < minConfidence {
			lowConfidence = append(lowConfidence, locus.LocusName)
		}
	}

	if len(lowConfidence) == 0 {
		return nil
	}
	sort.Strings(lowConfidence)
	return []string{fmt.Sprintf(
		"could not read %s data clearly: %s; please re-upload a better quality scan",
		personLabel, strings.Join(lowConfidence, ", "),
	)}
}

// ValidateRecordCounts checks the minimum-data rule for a person record.
func ValidateRecordCounts(loci []LocusReading, minValidLoci int, personLabel string) []string {
	valid := CountValidLoci(loci)
	if valid >= minValidLoci {
		return nil
	}
	return []string{fmt.Sprintf(
		"insufficient %s data (%d loci, need at least %d)",
		personLabel, valid, minValidLoci,
	)}
}

// ValidateOverallQuality checks the aggregate extraction quality score.
// A missing score is treated as 1.0. Reported separately from per-locus
// confidence so callers can tell a globally poor extraction from a few bad
// readings.
func ValidateOverallQuality(quality *float64, minQuality float64) []string {
	if quality == nil || *quality >= minQuality {
		return nil
	}
	return []string{fmt.Sprintf(
		"poor scan quality detected (score: %.2f); please re-upload a clearer document",
		*quality,
	)}
}
