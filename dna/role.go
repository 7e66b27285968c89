package dna

import "strings"

// Parent role inference is an ordered strategy chain. Each step returns
// ("", false) when it has no opinion rather than guessing, so every step is
// testable in isolation. The chain ends with a hard default of "father".

var motherKeywords = []string{"mother", "мати", "мать"}
var fatherKeywords = []string{"father", "батько", "отец"}

// roleFromLabel matches localized role keywords in the extracted role label.
func roleFromLabel(roleLabel string) (string, bool) {
	label := strings.ToLower(roleLabel)
	if label == "" {
		return "", false
	}
	for _, kw := range motherKeywords {
		if strings.Contains(label, kw) {
			return "mother", true
		}
	}
	for _, kw := range fatherKeywords {
		if strings.Contains(label, kw) {
			return "father", true
		}
	}
	return "", false
}

// roleFromAmelogenin reads the gender marker: a Y allele means male (XY),
// otherwise female (XX). No marker means no opinion.
func roleFromAmelogenin(loci []LocusReading) (string, bool) {
	for _, locus := range loci {
		if strings.ToLower(strings.TrimSpace(locus.LocusName)) != "amelogenin" {
			continue
		}
		a1 := strings.ToUpper(strings.TrimSpace(locus.Allele1))
		a2 := strings.ToUpper(strings.TrimSpace(locus.Allele2))
		if a1 == "Y" || a2 == "Y" {
			return "father", true
		}
		return "mother", true
	}
	return "", false
}

// InferParentRole resolves an unknown parent role by priority: explicit
// declared role, localized role-label keyword, Amelogenin heuristic, and
// finally the "father" default.
func InferParentRole(declaredRole string, record *PersonRecord) string {
	if declaredRole == "father" || declaredRole == "mother" {
		return declaredRole
	}
	if record != nil {
		if role, ok := roleFromLabel(record.RoleLabel); ok {
			return role
		}
		if role, ok := roleFromAmelogenin(record.Loci); ok {
			return role
		}
	}
	return "father"
}
