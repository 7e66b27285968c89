package services

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/repository"
)

// MatchResult is one ranked candidate from the matching service.
type MatchResult struct {
	PersonID        uint    `json:"person_id"`
	Name            string  `json:"name"`
	Role            string  `json:"role"`
	MatchPercentage float64 `json:"match_percentage"`
	MatchingLoci    int     `json:"matching_loci"`
	TotalLoci       int     `json:"total_loci"`
}

// Matcher ranks stored persons against a freshly extracted record by
// inheritance-match percentage. It is a read-only consumer of the fingerprint
// engine, invoked outside the save path.
type Matcher struct {
	persons repository.PersonRepositoryInterface
}

// NewMatcher creates a new matching service
func NewMatcher(persons repository.PersonRepositoryInterface) *Matcher {
	return &Matcher{persons: persons}
}

// FindMatches inheritance-mode-compares the uploaded record, using all loci
// rather than just the critical subset, against every stored candidate of the
// target roles, and returns the topN ranked results. Candidates with zero
// overlapping loci rank at 0% instead of being excluded, so callers always
// get min(topN, candidateCount) results. Ties keep insertion order.
func (m *Matcher) FindMatches(record *dna.PersonRecord, searchRoles []string, topN int) ([]MatchResult, error) {
	if record == nil || len(record.Loci) == 0 {
		log.Printf("matcher: no loci data to match")
		return []MatchResult{}, nil
	}

	uploadedFingerprint := dna.BuildFingerprint(record.Loci, dna.ValidLoci)

	candidates, err := m.persons.ListByRoles(searchRoles)
	if err != nil {
		return nil, fmt.Errorf("failed to load match candidates: %w", err)
	}

	log.Printf("matcher: comparing %s against %d persons with roles %v",
		record.Name, len(candidates), searchRoles)

	matches := make([]MatchResult, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		candidateFingerprint := fingerprintFromStored(candidate.Loci, dna.ValidLoci)

		matching, total := dna.CompareInheritance(uploadedFingerprint, candidateFingerprint)
		percentage := math.Round(dna.MatchPercent(matching, total)*100) / 100

		matches = append(matches, MatchResult{
			PersonID:        candidate.ID,
			Name:            candidate.Name,
			Role:            candidate.Role,
			MatchPercentage: percentage,
			MatchingLoci:    matching,
			TotalLoci:       total,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchPercentage > matches[j].MatchPercentage
	})

	if len(matches) > topN {
		matches = matches[:topN]
	}

	for idx, match := range matches {
		log.Printf("matcher:   match #%d: %s (%s) - %.2f%% (%d/%d loci)",
			idx+1, match.Name, match.Role, match.MatchPercentage, match.MatchingLoci, match.TotalLoci)
	}

	return matches, nil
}

// SearchRolesFor maps the uploaded role to the complementary target roles:
// an uploaded parent searches children, an uploaded child searches parents.
func SearchRolesFor(uploadedRole string) []string {
	if uploadedRole == "child" {
		return []string{"father", "mother"}
	}
	return []string{"child"}
}
