package dna

import (
	"log"
	"strings"
)

// ocrCorrections maps known OCR garblings (uppercased) to canonical names.
// Zero vs letter O, one vs I/l, and B vs 8 account for nearly all of them.
var ocrCorrections = map[string]string{
	// CSF1PO variations
	"CSF1P0":  "CSF1PO",
	"CSFIPO":  "CSF1PO",
	"CSF1 PO": "CSF1PO",
	"CSFI PO": "CSF1PO",
	"CSFLPO":  "CSF1PO",

	// D21S11 variations
	"D2IS11": "D21S11",
	"D2ISI1": "D21S11",
	"D21SI1": "D21S11",
	"D2LSI1": "D21S11",
	"D2ISII": "D21S11",

	// D10S1248 variations
	"DIOS1248": "D10S1248",
	"DLOS1248": "D10S1248",
	"D1OS1248": "D10S1248",
	"DI0S1248": "D10S1248",

	// D5S818 variations, the most frequently garbled locus
	"D5S8L8": "D5S818",
	"D5S8I8": "D5S818",
	"D5S81B": "D5S818",
	"D5SB18": "D5S818",
	"DSS818": "D5S818",
	"D5SB1B": "D5S818",
	"D5S8IB": "D5S818",

	// D8S1179 variations
	"D8SI179": "D8S1179",
	"D8S1I79": "D8S1179",
	"D8SII79": "D8S1179",
	"D8SL179": "D8S1179",
	"D8S1L79": "D8S1179",

	// D6S1043 variations
	"D6S1O43": "D6S1043",
	"D6SL043": "D6S1043",
	"D6S1O4B": "D6S1043",

	// vWA variations
	"VWA":  "vWA",
	"VVA":  "vWA",
	"VVVA": "vWA",
	"WWA":  "vWA",

	// D16S539 variations
	"D16S5539": "D16S539",
	"D16S53G":  "D16S539",

	// Penta variations
	"PENTA D": "Penta D",
	"PENTA E": "Penta E",
	"PENTAD":  "Penta D",
	"PENTAE":  "Penta E",
}

// NormalizeLocusName corrects OCR-garbled locus identifiers to the canonical
// vocabulary. It is total and idempotent: unknown names pass through unchanged
// and downstream validation rejects them.
func NormalizeLocusName(raw string) string {
	if raw == "" {
		return raw
	}

	upper := strings.ToUpper(strings.TrimSpace(raw))

	if corrected, ok := ocrCorrections[upper]; ok {
		if corrected != raw {
			log.Printf("dna: auto-corrected locus %q -> %q", raw, corrected)
		}
		return corrected
	}

	// Pattern pass for D<digits>S<digits> names: rewrite ambiguous glyphs and
	// accept the rewrite only when the result is a known locus.
	if strings.HasPrefix(raw, "D") && strings.Contains(raw, "S") {
		if corrected, ok := fixDLocusGlyphs(raw); ok {
			log.Printf("dna: pattern-corrected locus %q -> %q", raw, corrected)
			return corrected
		}
	}

	// Case fixes the table cannot cover generically.
	if upper == "VWA" {
		return "vWA"
	}
	if strings.HasPrefix(upper, "PENTA ") {
		parts := strings.Fields(raw)
		if len(parts) == 2 {
			corrected := "Penta " + strings.ToUpper(parts[1])
			if corrected != raw {
				log.Printf("dna: auto-corrected locus %q -> %q", raw, corrected)
			}
			return corrected
		}
	}

	return raw
}

// fixDLocusGlyphs rewrites l/I to 1 and O/o to 0 throughout a D...S... name,
// plus B to 8 in the numeric suffix only, and reports whether the rewrite
// landed on a valid locus.
func fixDLocusGlyphs(name string) (string, bool) {
	prefix, suffix, found := strings.Cut(name, "S")
	if !found {
		return "", false
	}

	var b strings.Builder
	b.WriteByte('D')
	for _, ch := range prefix[1:] {
		switch ch {
		case 'l', 'I':
			b.WriteByte('1')
		case 'O', 'o':
			b.WriteByte('0')
		default:
			b.WriteRune(ch)
		}
	}
	b.WriteByte('S')
	for _, ch := range suffix {
		switch ch {
		case 'l', 'I':
			b.WriteByte('1')
		case 'O', 'o':
			b.WriteByte('0')
		case 'B':
			b.WriteByte('8')
		default:
			b.WriteRune(ch)
		}
	}

	corrected := b.String()
	if corrected == name || !IsValidLocus(corrected) {
		return "", false
	}
	return corrected, true
}
