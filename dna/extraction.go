package dna

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LocusReading is one extracted STR reading with optional per-allele
// confidence. Alleles stay strings so microvariants like "9.3" are preserved.
type LocusReading struct {
	LocusName   string   `json:"locus_name"`
	Allele1     string   `json:"allele_1"`
	Allele2     string   `json:"allele_2"`
	Confidence1 *float64 `json:"allele_1_confidence,omitempty"`
	Confidence2 *float64 `json:"allele_2_confidence,omitempty"`
}

// PersonRecord is one extracted person (parent or child) as returned by the
// extraction collaborator.
type PersonRecord struct {
	Name      string         `json:"name"`
	RoleLabel string         `json:"role_label,omitempty"`
	Loci      []LocusReading `json:"loci"`
}

// ExtractionResult is the sole input contract between the extraction
// collaborator and the core. It is transient and never persisted.
type ExtractionResult struct {
	Parent         *PersonRecord  `json:"parent,omitempty"`
	Children       []PersonRecord `json:"children,omitempty"`
	ParentRole     string         `json:"parent_role,omitempty"` // father, mother or unknown
	OverallQuality *float64       `json:"overall_quality,omitempty"`
}

// rawExtraction carries the legacy single-child field alongside the current
// shape so older collaborator payloads still parse.
type rawExtraction struct {
	Parent         *PersonRecord  `json:"parent"`
	Father         *PersonRecord  `json:"father"`
	Child          *PersonRecord  `json:"child"`
	Children       []PersonRecord `json:"children"`
	ParentRole     string         `json:"parent_role"`
	OverallQuality *float64       `json:"overall_quality"`
}

// ParseExtractionResult is the single deserialization boundary between the
// loosely shaped collaborator payload and the typed core. Anything that does
// not parse into the contract is rejected here, before any business logic.
func ParseExtractionResult(data []byte) (*ExtractionResult, error) {
	var raw rawExtraction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed extraction payload: %w", err)
	}

	result := &ExtractionResult{
		Parent:         raw.Parent,
		Children:       raw.Children,
		ParentRole:     raw.ParentRole,
		OverallQuality: raw.OverallQuality,
	}
	if result.Parent == nil {
		result.Parent = raw.Father
	}
	if len(result.Children) == 0 && raw.Child != nil && len(raw.Child.Loci) > 0 {
		result.Children = []PersonRecord{*raw.Child}
	}
	if result.ParentRole == "" {
		result.ParentRole = "unknown"
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// Validate enforces the structural contract: at least one person with loci
// and well-formed readings throughout.
func (r *ExtractionResult) Validate() error {
	if !r.HasParent() && len(r.Children) == 0 {
		return fmt.Errorf("extraction contains no persons")
	}
	if r.Parent != nil {
		if err := validateRecord(r.Parent, "parent"); err != nil {
			return err
		}
	}
	for i := range r.Children {
		if err := validateRecord(&r.Children[i], fmt.Sprintf("child %d", i+1)); err != nil {
			return err
		}
	}
	switch r.ParentRole {
	case "father", "mother", "unknown":
	default:
		return fmt.Errorf("invalid parent_role %q", r.ParentRole)
	}
	return nil
}

func validateRecord(rec *PersonRecord, label string) error {
	for _, locus := range rec.Loci {
		if strings.TrimSpace(locus.LocusName) == "" && (locus.Allele1 != "" || locus.Allele2 != "") {
			return fmt.Errorf("%s has a locus reading without a locus name", label)
		}
		for _, c := range []*float64{locus.Confidence1, locus.Confidence2} {
			if c != nil && (*c < 0 || *c > 1) {
				return fmt.Errorf("%s locus %s has confidence outside [0,1]", label, locus.LocusName)
			}
		}
	}
	return nil
}

// HasParent reports whether the extraction carries a parent with any loci.
func (r *ExtractionResult) HasParent() bool {
	return r.Parent != nil && len(r.Parent.Loci) > 0
}

// Normalize rewrites every locus name in place through NormalizeLocusName.
// It runs once, right after parsing, so everything downstream sees canonical
// names only.
func (r *ExtractionResult) Normalize() {
	if r.Parent != nil {
		normalizeLoci(r.Parent.Loci)
	}
	for i := range r.Children {
		normalizeLoci(r.Children[i].Loci)
	}
}

func normalizeLoci(loci []LocusReading) {
	for i := range loci {
		loci[i].LocusName = NormalizeLocusName(loci[i].LocusName)
	}
}
