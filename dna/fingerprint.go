package dna

import "strings"

// AllelePair is a sorted pair of allele values. Sorting makes the pair
// canonical so allele order in the source report is irrelevant.
type AllelePair struct {
	A string
	B string
}

// NewAllelePair returns the canonical sorted form of two allele readings.
func NewAllelePair(a1, a2 string) AllelePair {
	a1 = strings.TrimSpace(a1)
	a2 = strings.TrimSpace(a2)
	if a2 < a1 {
		a1, a2 = a2, a1
	}
	return AllelePair{A: a1, B: a2}
}

// sharesAllele reports whether the two pairs intersect in at least one value.
// A child inherits exactly one allele from each biological parent, so any
// shared allele is consistent with parentage.
func (p AllelePair) sharesAllele(o AllelePair) bool {
	return p.A == o.A || p.A == o.B || p.B == o.A || p.B == o.B
}

// Fingerprint maps locus names to canonical allele pairs. Two fingerprints
// are comparable only on the locus names present in both.
type Fingerprint map[string]AllelePair

// BuildFingerprint builds a fingerprint from loci restricted to the given
// locus names. Gender markers and loci with an empty allele are always
// excluded. Pass ValidLoci to fingerprint every usable locus.
func BuildFingerprint(loci []LocusReading, lociNames []string) Fingerprint {
	include := make(map[string]bool, len(lociNames))
	for _, name := range lociNames {
		include[name] = true
	}

	fp := make(Fingerprint)
	for _, locus := range loci {
		if IsGenderMarker(locus.LocusName) || !include[locus.LocusName] {
			continue
		}
		a1 := strings.TrimSpace(locus.Allele1)
		a2 := strings.TrimSpace(locus.Allele2)
		if a1 == "" || a2 == "" {
			continue
		}
		fp[locus.LocusName] = NewAllelePair(a1, a2)
	}
	return fp
}

// CompareExact counts loci present in both fingerprints whose sorted pairs
// are identical. Used for person-identity checks (parent-vs-parent,
// child-vs-child), where both alleles must agree.
func CompareExact(fp1, fp2 Fingerprint) (matches, totalCompared int) {
	for name, pair1 := range fp1 {
		pair2, ok := fp2[name]
		if !ok {
			continue
		}
		totalCompared++
		if pair1 == pair2 {
			matches++
		}
	}
	return matches, totalCompared
}

// CompareInheritance counts loci present in both fingerprints whose allele
// sets intersect in at least one value. Intentionally more permissive than
// CompareExact; used for parent-vs-child checks.
func CompareInheritance(fp1, fp2 Fingerprint) (matches, totalCompared int) {
	for name, pair1 := range fp1 {
		pair2, ok := fp2[name]
		if !ok {
			continue
		}
		totalCompared++
		if pair1.sharesAllele(pair2) {
			matches++
		}
	}
	return matches, totalCompared
}

// MatchPercent derives the match percentage, reporting 0 when nothing was
// comparable rather than dividing by zero.
func MatchPercent(matches, totalCompared int) float64 {
	if totalCompared == 0 {
		return 0
	}
	return float64(matches) / float64(totalCompared) * 100
}
