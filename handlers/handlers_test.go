package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/genomatch/dnalabbackend/config"
	"github.com/genomatch/dnalabbackend/database"
	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/models"
	"github.com/genomatch/dnalabbackend/repository"
	"github.com/genomatch/dnalabbackend/services"
	"github.com/genomatch/dnalabbackend/storage"
)

var testFatherLoci = map[string][2]string{
	"D8S1179": {"13", "14"},
	"D21S11":  {"29", "30"},
	"D7S820":  {"10", "11"},
	"D3S1358": {"15", "16"},
	"FGA":     {"21", "22"},
	"D13S317": {"11", "12"},
	"D16S539": {"9", "10"},
}

const testSigningKey = "test-signing-key"

var testChildLoci = map[string][2]string{
	"D8S1179": {"13", "15"},
	"D21S11":  {"30", "31"},
	"D7S820":  {"11", "12"},
	"D3S1358": {"16", "17"},
	"FGA":     {"22", "23"},
	"D13S317": {"12", "13"},
	"D16S539": {"10", "11"},
}

// stubExtractor returns a canned extraction without touching any service.
type stubExtractor struct {
	result func() *dna.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, document []byte, filename string) (*dna.ExtractionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result(), nil
}

type testEnv struct {
	db         *gorm.DB
	store      storage.Store
	router     chi.Router
	personRepo *repository.PersonRepository
	fileRepo   *repository.UploadedFileRepository
}

func newTestEnv(t *testing.T, extractor services.Extractor) *testEnv {
	t.Helper()

	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)

	store, err := storage.NewLocalStorage(t.TempDir(), "uploads", "http://localhost:8080", testSigningKey)
	require.NoError(t, err)

	cfg := config.Config{
		MatchThresholdPercent: 80.0,
		MinComparedLoci:       4,
		MinValidLoci:          5,
		MinConfidence:         0.8,
		TopMatches:            3,
		ScanMaxSize:           2200,
	}

	personRepo := repository.NewPersonRepository(db)
	locusRepo := repository.NewLocusRepository(db)
	fileRepo := repository.NewUploadedFileRepository(db)

	resolver := services.NewResolver(personRepo, services.ResolverThresholds{
		MatchThresholdPercent: cfg.MatchThresholdPercent,
		MinComparedLoci:       cfg.MinComparedLoci,
	})
	matcher := services.NewMatcher(personRepo)
	persister := services.NewPersister(db, store, resolver, services.PersisterConfig{
		MinValidLoci:  cfg.MinValidLoci,
		MinConfidence: cfg.MinConfidence,
	})

	uploadHandler := &UploadHandler{Cfg: cfg, Extractor: extractor, Persister: persister, Matcher: matcher}
	personHandler := &PersonHandler{PersonRepo: personRepo, LocusRepo: locusRepo, FileRepo: fileRepo, Store: store}
	fileHandler := &FileHandler{
		FileRepo:   fileRepo,
		PersonRepo: personRepo,
		Store:      store,
		URLTTL:     time.Hour,
		SigningKey: []byte(testSigningKey),
	}
	listHandler := &ListHandler{DB: sqlDB}

	r := chi.NewRouter()
	r.Route("/api/dna", func(r chi.Router) {
		r.Post("/upload", uploadHandler.UploadFile)
		r.Post("/match", uploadHandler.MatchFile)
		r.Get("/list", listHandler.ListFamilies)
		r.Route("/people", func(r chi.Router) {
			r.Delete("/", personHandler.DeletePersons)
			r.Route("/{person_id}", func(r chi.Router) {
				r.Get("/", personHandler.GetPerson)
				r.Patch("/", personHandler.UpdatePerson)
			})
		})
		r.Route("/files/{file_id}", func(r chi.Router) {
			r.Get("/url", fileHandler.GetFileURL)
			r.Delete("/", fileHandler.DeleteFile)
		})
	})
	r.Get("/files/*", fileHandler.ServeFile)

	return &testEnv{db: db, store: store, router: r, personRepo: personRepo, fileRepo: fileRepo}
}

func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

// multipartRequest builds a POST with one file part plus optional form values.
func multipartRequest(t *testing.T, url, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func lociReadings(loci map[string][2]string) []dna.LocusReading {
	out := make([]dna.LocusReading, 0, len(loci))
	for name, alleles := range loci {
		out = append(out, dna.LocusReading{LocusName: name, Allele1: alleles[0], Allele2: alleles[1]})
	}
	return out
}

func familyExtraction() *dna.ExtractionResult {
	return &dna.ExtractionResult{
		Parent:     &dna.PersonRecord{Name: "John", Loci: lociReadings(testFatherLoci)},
		Children:   []dna.PersonRecord{{Name: "Kid", Loci: lociReadings(testChildLoci)}},
		ParentRole: "father",
	}
}

func seedTestPerson(t *testing.T, db *gorm.DB, role, name string, loci map[string][2]string) *models.Person {
	t.Helper()
	person := models.Person{Role: role, Name: name, LociCount: len(loci)}
	require.NoError(t, db.Create(&person).Error)
	for locusName, alleles := range loci {
		require.NoError(t, db.Create(&models.DNALocus{
			PersonID: person.ID, LocusName: locusName, Allele1: alleles[0], Allele2: alleles[1],
		}).Error)
	}
	return &person
}
