package services

import (
	"fmt"
	"log"

	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/models"
	"github.com/genomatch/dnalabbackend/repository"
)

// ResolverThresholds are the duplicate-detection decision constants.
// Empirically chosen; never tighten or loosen without domain sign-off.
type ResolverThresholds struct {
	MatchThresholdPercent float64 // identity declared at >= this exact-match percentage
	MinComparedLoci       int     // a comparison is decisive only at >= this overlap
}

// DuplicateChild records an incoming child classified as a duplicate of an
// existing record.
type DuplicateChild struct {
	Name           string
	ExistingPerson models.Person
}

// Resolution is the resolver's verdict for one upload.
type Resolution struct {
	ParentExists      bool
	ExistingParent    *models.Person
	NewChildren       []dna.PersonRecord
	DuplicateChildren []DuplicateChild
}

// Resolver classifies an incoming parent and each incoming child as new,
// duplicate, or enrichment candidate against the persisted population.
type Resolver struct {
	persons    repository.PersonRepositoryInterface
	thresholds ResolverThresholds
}

// NewResolver creates a new duplicate/enrichment resolver
func NewResolver(persons repository.PersonRepositoryInterface, thresholds ResolverThresholds) *Resolver {
	return &Resolver{persons: persons, thresholds: thresholds}
}

// WithPersons returns a resolver with the same thresholds reading through the
// given repository. The persister uses it to resolve against transaction-bound
// repositories.
func (r *Resolver) WithPersons(persons repository.PersonRepositoryInterface) *Resolver {
	return &Resolver{persons: persons, thresholds: r.thresholds}
}

// Resolve runs duplicate detection for one normalized upload.
//
// Identity checks are exact-mode on critical loci: misclassifying two
// different people as the same individual is a worse failure than treating a
// genuine resubmission as new, which self-corrects on the next enrichment
// check. Too few critical loci means insufficient signal, and everything is
// treated as new rather than risking a false duplicate.
func (r *Resolver) Resolve(result *dna.ExtractionResult) (*Resolution, error) {
	resolution := &Resolution{}

	var parentLoci []dna.LocusReading
	parentName := "Unknown"
	if result.Parent != nil {
		parentLoci = result.Parent.Loci
		if result.Parent.Name != "" {
			parentName = result.Parent.Name
		}
	}

	uploadedFingerprint := dna.BuildFingerprint(parentLoci, dna.CriticalLoci)
	if len(uploadedFingerprint) < r.thresholds.MinComparedLoci {
		log.Printf("resolver: not enough critical loci for duplicate detection (%d), treating as new", len(uploadedFingerprint))
		resolution.NewChildren = result.Children
		return resolution, nil
	}

	existingParent, err := r.findMatchingParent(parentName, result.ParentRole, uploadedFingerprint)
	if err != nil {
		return nil, err
	}

	if existingParent == nil {
		log.Printf("resolver: %s (%s) is new", parentName, result.ParentRole)
		resolution.NewChildren = result.Children
		return resolution, nil
	}

	resolution.ParentExists = true
	resolution.ExistingParent = existingParent

	if len(result.Children) > 0 {
		newChildren, duplicates, err := r.checkChildrenDuplicates(existingParent, result.Children)
		if err != nil {
			return nil, err
		}
		resolution.NewChildren = newChildren
		resolution.DuplicateChildren = duplicates
	} else {
		log.Printf("resolver: no children in upload, candidate parent loci enrichment")
	}

	return resolution, nil
}

// findMatchingParent searches stored parents of the matching role for the
// best decisive exact match. Ties keep the first candidate found.
func (r *Resolver) findMatchingParent(parentName, parentRole string, uploadedFingerprint dna.Fingerprint) (*models.Person, error) {
	var roles []string
	switch parentRole {
	case models.RoleFather:
		roles = []string{models.RoleFather}
	case models.RoleMother:
		roles = []string{models.RoleMother}
	default:
		roles = models.ParentRoles
	}

	candidates, err := r.persons.ListByRoles(roles)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate parents: %w", err)
	}

	log.Printf("resolver: checking %s (%s) with %d critical loci against %d existing candidates",
		parentName, parentRole, len(uploadedFingerprint), len(candidates))

	var existingParent *models.Person
	bestMatchScore := 0.0

	for i := range candidates {
		candidate := &candidates[i]
		candidateFingerprint := fingerprintFromStored(candidate.Loci, dna.CriticalLoci)

		matches, totalCompared := dna.CompareExact(uploadedFingerprint, candidateFingerprint)
		if totalCompared == 0 {
			continue
		}

		matchPercentage := dna.MatchPercent(matches, totalCompared)
		log.Printf("resolver:   comparing with %s: %d/%d loci match exactly (%.1f%%)",
			candidate.Name, matches, totalCompared, matchPercentage)

		if totalCompared >= r.thresholds.MinComparedLoci &&
			matchPercentage >= r.thresholds.MatchThresholdPercent &&
			matchPercentage > bestMatchScore {
			bestMatchScore = matchPercentage
			existingParent = candidate
		}
	}

	if existingParent != nil {
		log.Printf("resolver: found matching parent %s (ID: %d, %.1f%% match)",
			existingParent.Name, existingParent.ID, bestMatchScore)
	}
	return existingParent, nil
}

// checkChildrenDuplicates exact-compares each incoming child against the
// children already linked to the matched parent through any shared file.
// Child identity uses exact mode, not inheritance.
func (r *Resolver) checkChildrenDuplicates(existingParent *models.Person, children []dna.PersonRecord) ([]dna.PersonRecord, []DuplicateChild, error) {
	existingChildren, err := r.persons.ListChildrenViaFiles(existingParent.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load children of parent %d: %w", existingParent.ID, err)
	}

	log.Printf("resolver: parent has %d existing children, checking %d uploaded children",
		len(existingChildren), len(children))

	var newChildren []dna.PersonRecord
	var duplicates []DuplicateChild

	for _, child := range children {
		childName := child.Name
		if childName == "" {
			childName = "Unknown"
		}

		childFingerprint := dna.BuildFingerprint(child.Loci, dna.CriticalLoci)
		if len(childFingerprint) < r.thresholds.MinComparedLoci {
			log.Printf("resolver:   child %s: not enough loci, accepting as new", childName)
			newChildren = append(newChildren, child)
			continue
		}

		isDuplicate := false
		for i := range existingChildren {
			existingChild := &existingChildren[i]
			existingFingerprint := fingerprintFromStored(existingChild.Loci, dna.CriticalLoci)

			matches, totalCompared := dna.CompareExact(childFingerprint, existingFingerprint)
			if totalCompared < r.thresholds.MinComparedLoci {
				continue
			}

			matchPercentage := dna.MatchPercent(matches, totalCompared)
			log.Printf("resolver:   child %s vs %s: %d/%d exact match (%.1f%%)",
				childName, existingChild.Name, matches, totalCompared, matchPercentage)

			if matchPercentage >= r.thresholds.MatchThresholdPercent {
				isDuplicate = true
				duplicates = append(duplicates, DuplicateChild{
					Name:           childName,
					ExistingPerson: *existingChild,
				})
				break
			}
		}

		if !isDuplicate {
			newChildren = append(newChildren, child)
			log.Printf("resolver:   child %s is new", childName)
		}
	}

	return newChildren, duplicates, nil
}

// fingerprintFromStored builds a fingerprint from persisted loci rows.
func fingerprintFromStored(loci []models.DNALocus, lociNames []string) dna.Fingerprint {
	readings := make([]dna.LocusReading, 0, len(loci))
	for _, locus := range loci {
		readings = append(readings, dna.LocusReading{
			LocusName: locus.LocusName,
			Allele1:   locus.Allele1,
			Allele2:   locus.Allele2,
		})
	}
	return dna.BuildFingerprint(readings, lociNames)
}
