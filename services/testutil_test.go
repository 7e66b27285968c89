package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/genomatch/dnalabbackend/database"
	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/models"
)

// fatherLoci covers all seven critical markers. Child loci below share one
// allele per locus with it, as a biological child would.
var fatherLoci = map[string][2]string{
	"D8S1179": {"13", "14"},
	"D21S11":  {"29", "30"},
	"D7S820":  {"10", "11"},
	"D3S1358": {"15", "16"},
	"FGA":     {"21", "22"},
	"D13S317": {"11", "12"},
	"D16S539": {"9", "10"},
}

var childLoci = map[string][2]string{
	"D8S1179": {"13", "15"},
	"D21S11":  {"30", "31"},
	"D7S820":  {"11", "12"},
	"D3S1358": {"16", "17"},
	"FGA":     {"22", "23"},
	"D13S317": {"12", "13"},
	"D16S539": {"10", "11"},
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	return db
}

func seedPerson(t *testing.T, db *gorm.DB, role, name string, loci map[string][2]string) *models.Person {
	t.Helper()
	now := time.Now().Unix()
	person := models.Person{Role: role, Name: name, LociCount: len(loci), CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&person).Error)
	for locusName, alleles := range loci {
		row := models.DNALocus{
			PersonID:  person.ID,
			LocusName: locusName,
			Allele1:   alleles[0],
			Allele2:   alleles[1],
		}
		require.NoError(t, db.Create(&row).Error)
	}
	return &person
}

// seedSharedFile links the given persons through one uploaded file record.
func seedSharedFile(t *testing.T, db *gorm.DB, personIDs ...uint) uint {
	t.Helper()
	file := models.UploadedFile{
		FilePath:     fmt.Sprintf("uploads/seed-%d.pdf", time.Now().UnixNano()),
		OriginalName: "seed.pdf",
		UploadedAt:   time.Now().Unix(),
	}
	require.NoError(t, db.Create(&file).Error)
	for _, personID := range personIDs {
		link := models.PersonFile{PersonID: personID, UploadedFileID: file.ID}
		require.NoError(t, db.Create(&link).Error)
	}
	return file.ID
}

func readings(loci map[string][2]string) []dna.LocusReading {
	out := make([]dna.LocusReading, 0, len(loci))
	for name, alleles := range loci {
		out = append(out, dna.LocusReading{LocusName: name, Allele1: alleles[0], Allele2: alleles[1]})
	}
	return out
}

// withLoci copies a locus map with overrides applied; an override with empty
// alleles removes the locus.
func withLoci(base map[string][2]string, overrides map[string][2]string) map[string][2]string {
	out := make(map[string][2]string, len(base)+len(overrides))
	for name, alleles := range base {
		out[name] = alleles
	}
	for name, alleles := range overrides {
		if alleles[0] == "" && alleles[1] == "" {
			delete(out, name)
			continue
		}
		out[name] = alleles
	}
	return out
}

// memStore is an in-memory storage.Store for orchestrator tests.
type memStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{saved: map[string][]byte{}}
}

func (m *memStore) Save(data io.Reader, filenameHint string) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	path := fmt.Sprintf("uploads/%d-%s", len(m.saved)+1, filenameHint)
	m.saved[path] = content
	return path, nil
}

func (m *memStore) Get(relativePath string) (io.ReadCloser, os.FileInfo, error) {
	return nil, nil, fmt.Errorf("file not found at '%s'", relativePath)
}

func (m *memStore) Delete(relativePath string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, relativePath)
	_, existed := m.saved[relativePath]
	delete(m.saved, relativePath)
	return existed, nil
}

func (m *memStore) URL(relativePath string, ttl time.Duration) (string, error) {
	return "http://localhost/files/" + relativePath, nil
}
