package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/models"
	"github.com/genomatch/dnalabbackend/repository"
)

func newTestResolver(t *testing.T) (*Resolver, *repository.PersonRepository) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewPersonRepository(db)
	resolver := NewResolver(repo, ResolverThresholds{MatchThresholdPercent: 80.0, MinComparedLoci: 4})
	return resolver, repo
}

func TestResolve_NewParent(t *testing.T) {
	resolver, _ := newTestResolver(t)

	result := &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "John", Loci: readings(fatherLoci)},
		ParentRole: "father",
	}

	resolution, err := resolver.Resolve(result)
	require.NoError(t, err)
	assert.False(t, resolution.ParentExists)
	assert.Nil(t, resolution.ExistingParent)
	assert.Empty(t, resolution.DuplicateChildren)
}

func TestResolve_MatchesExistingParent(t *testing.T) {
	resolver, repo := newTestResolver(t)
	seeded := seedPerson(t, repo.DB, models.RoleFather, "John", fatherLoci)

	result := &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "John D.", Loci: readings(fatherLoci)},
		ParentRole: "father",
	}

	resolution, err := resolver.Resolve(result)
	require.NoError(t, err)
	require.True(t, resolution.ParentExists)
	assert.Equal(t, seeded.ID, resolution.ExistingParent.ID)
}

func TestResolve_BelowThresholdIsNew(t *testing.T) {
	resolver, repo := newTestResolver(t)
	seedPerson(t, repo.DB, models.RoleFather, "John", fatherLoci)

	// 4 of 7 critical loci agree: 57.1%, under the 80% threshold
	altered := withLoci(fatherLoci, map[string][2]string{
		"D8S1179": {"11", "12"},
		"D21S11":  {"27", "28"},
		"D7S820":  {"8", "9"},
	})
	result := &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "Other John", Loci: readings(altered)},
		ParentRole: "father",
	}

	resolution, err := resolver.Resolve(result)
	require.NoError(t, err)
	assert.False(t, resolution.ParentExists)
}

func TestResolve_TooFewCriticalLociIsNew(t *testing.T) {
	resolver, repo := newTestResolver(t)
	seedPerson(t, repo.DB, models.RoleFather, "John", fatherLoci)

	// only 3 critical loci: below the decisive-overlap minimum
	sparse := map[string][2]string{
		"D8S1179": {"13", "14"},
		"D21S11":  {"29", "30"},
		"D7S820":  {"10", "11"},
	}
	children := []dna.PersonRecord{{Name: "Kid", Loci: readings(childLoci)}}
	result := &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "John", Loci: readings(sparse)},
		ParentRole: "father",
		Children:   children,
	}

	resolution, err := resolver.Resolve(result)
	require.NoError(t, err)
	assert.False(t, resolution.ParentExists)
	assert.Equal(t, children, resolution.NewChildren)
}

func TestResolve_SparseChildIsNewDespiteIdenticalStored(t *testing.T) {
	resolver, repo := newTestResolver(t)
	father := seedPerson(t, repo.DB, models.RoleFather, "John", fatherLoci)
	existingChild := seedPerson(t, repo.DB, models.RoleChild, "Kid", childLoci)
	seedSharedFile(t, repo.DB, father.ID, existingChild.ID)

	// 3 critical loci, all agreeing with the stored child: too little signal
	// for a duplicate verdict, the child is accepted as new
	sparse := withLoci(childLoci, map[string][2]string{
		"D7S820":  {"", ""},
		"FGA":     {"", ""},
		"D13S317": {"", ""},
		"D16S539": {"", ""},
	})
	result := &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "John", Loci: readings(fatherLoci)},
		ParentRole: "father",
		Children:   []dna.PersonRecord{{Name: "Kid", Loci: readings(sparse)}},
	}

	resolution, err := resolver.Resolve(result)
	require.NoError(t, err)
	require.True(t, resolution.ParentExists)
	assert.Empty(t, resolution.DuplicateChildren)
	require.Len(t, resolution.NewChildren, 1)
	assert.Equal(t, "Kid", resolution.NewChildren[0].Name)
}

func TestResolve_RoleFiltersCandidates(t *testing.T) {
	resolver, repo := newTestResolver(t)
	seedPerson(t, repo.DB, models.RoleMother, "Jane", fatherLoci)

	result := &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "John", Loci: readings(fatherLoci)},
		ParentRole: "father",
	}

	resolution, err := resolver.Resolve(result)
	require.NoError(t, err)
	assert.False(t, resolution.ParentExists, "a mother must not match a declared father")

	// unknown role searches both parent roles
	result.ParentRole = "unknown"
	resolution, err = resolver.Resolve(result)
	require.NoError(t, err)
	assert.True(t, resolution.ParentExists)
}

func TestResolve_ChildDuplicates(t *testing.T) {
	resolver, repo := newTestResolver(t)
	father := seedPerson(t, repo.DB, models.RoleFather, "John", fatherLoci)
	existingChild := seedPerson(t, repo.DB, models.RoleChild, "Kid", childLoci)
	seedSharedFile(t, repo.DB, father.ID, existingChild.ID)

	newChildLoci := withLoci(childLoci, map[string][2]string{
		"D8S1179": {"14", "16"},
		"D21S11":  {"29", "32"},
		"D7S820":  {"10", "13"},
		"D3S1358": {"15", "18"},
		"FGA":     {"21", "24"},
	})

	result := &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "John", Loci: readings(fatherLoci)},
		ParentRole: "father",
		Children: []dna.PersonRecord{
			{Name: "Kid", Loci: readings(childLoci)},
			{Name: "New Kid", Loci: readings(newChildLoci)},
		},
	}

	resolution, err := resolver.Resolve(result)
	require.NoError(t, err)
	require.True(t, resolution.ParentExists)

	require.Len(t, resolution.DuplicateChildren, 1)
	assert.Equal(t, "Kid", resolution.DuplicateChildren[0].Name)
	assert.Equal(t, existingChild.ID, resolution.DuplicateChildren[0].ExistingPerson.ID)

	require.Len(t, resolution.NewChildren, 1)
	assert.Equal(t, "New Kid", resolution.NewChildren[0].Name)
}

func TestResolve_UnlinkedChildIsNotADuplicate(t *testing.T) {
	resolver, repo := newTestResolver(t)
	father := seedPerson(t, repo.DB, models.RoleFather, "John", fatherLoci)
	// same child genotype exists but shares no file with this parent
	seedPerson(t, repo.DB, models.RoleChild, "Kid", childLoci)
	seedSharedFile(t, repo.DB, father.ID)

	result := &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "John", Loci: readings(fatherLoci)},
		ParentRole: "father",
		Children:   []dna.PersonRecord{{Name: "Kid", Loci: readings(childLoci)}},
	}

	resolution, err := resolver.Resolve(result)
	require.NoError(t, err)
	require.True(t, resolution.ParentExists)
	assert.Empty(t, resolution.DuplicateChildren)
	require.Len(t, resolution.NewChildren, 1)
}
