package dna

// StoredLocus is the persisted view of a locus reading used by the pure merge
// and preparation functions, keeping them independent of the database layer.
type StoredLocus struct {
	LocusName string
	Allele1   string
	Allele2   string
}

// LocusConflict records an allele mismatch between an already-stored reading
// and an incoming one. The stored reading always wins; conflicts are logged
// by the caller, never fatal.
type LocusConflict struct {
	LocusName string
	Existing  AllelePair
	Incoming  AllelePair
}

// PrepareLoci normalizes and filters incoming readings for persistence.
// Gender markers and empty cells are skipped silently (not every lab tests
// all 23 loci); names still unknown after normalization are returned in
// unknown and must abort the caller's transaction.
func PrepareLoci(incoming []LocusReading) (prepared []StoredLocus, skipped, unknown []string) {
	for _, locus := range incoming {
		name := locus.LocusName
		if name == "" || IsGenderMarker(name) {
			continue
		}
		name = NormalizeLocusName(name)
		if locus.Allele1 == "" || locus.Allele2 == "" {
			skipped = append(skipped, name)
			continue
		}
		if !IsValidLocus(name) {
			unknown = append(unknown, name)
			continue
		}
		prepared = append(prepared, StoredLocus{
			LocusName: name,
			Allele1:   locus.Allele1,
			Allele2:   locus.Allele2,
		})
	}
	return prepared, skipped, unknown
}

// MergeLoci computes the additions needed to enrich an existing person with
// incoming readings. It never mutates its inputs:
//   - a locus the person lacks becomes an addition
//   - a locus the person has with matching alleles is discarded
//   - a locus the person has with different alleles becomes a conflict and
//     the existing value is kept
//
// Unknown-after-normalization names are returned separately and must abort
// the caller's transaction.
func MergeLoci(existing []StoredLocus, incoming []LocusReading) (added []StoredLocus, conflicts []LocusConflict, unknown []string) {
	current := make(map[string]AllelePair, len(existing))
	for _, locus := range existing {
		current[locus.LocusName] = NewAllelePair(locus.Allele1, locus.Allele2)
	}

	prepared, _, unknown := PrepareLoci(incoming)
	seen := make(map[string]bool, len(prepared))

	for _, locus := range prepared {
		if seen[locus.LocusName] {
			continue
		}
		seen[locus.LocusName] = true

		incomingPair := NewAllelePair(locus.Allele1, locus.Allele2)
		existingPair, ok := current[locus.LocusName]
		if !ok {
			added = append(added, locus)
			continue
		}
		if existingPair != incomingPair {
			conflicts = append(conflicts, LocusConflict{
				LocusName: locus.LocusName,
				Existing:  existingPair,
				Incoming:  incomingPair,
			})
		}
	}

	return added, conflicts, unknown
}
