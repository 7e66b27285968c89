package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/models"
)

func TestUploadFile_NewFamily(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{result: familyExtraction})

	req := multipartRequest(t, "/api/dna/upload", "report.pdf", []byte("fake pdf"), nil)
	rec := env.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp UploadResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "new", resp.Status)
	require.Len(t, resp.Links, 2)
	assert.Equal(t, "John", resp.Links[0].Name)
	assert.Equal(t, "Kid", resp.Links[1].Name)
}

func TestUploadFile_DuplicateConflict(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{result: familyExtraction})

	rec := env.do(t, multipartRequest(t, "/api/dna/upload", "report.pdf", []byte("fake"), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, multipartRequest(t, "/api/dna/upload", "again.pdf", []byte("fake"), nil))
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	var resp UploadResponse
	decodeBody(t, rec, &resp)
	assert.False(t, resp.Success)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], "duplicate")
	require.Len(t, resp.Links, 2, "conflict response routes to the existing records")
}

func TestUploadFile_ValidationRejected(t *testing.T) {
	sparse := func() *dna.ExtractionResult {
		return &dna.ExtractionResult{
			Parent: &dna.PersonRecord{Name: "John", Loci: []dna.LocusReading{
				{LocusName: "FGA", Allele1: "21", Allele2: "22"},
			}},
			ParentRole: "father",
		}
	}
	env := newTestEnv(t, &stubExtractor{result: sparse})

	rec := env.do(t, multipartRequest(t, "/api/dna/upload", "sparse.pdf", []byte("fake"), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp UploadResponse
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Errors)
	assert.Contains(t, resp.Errors[0], "insufficient parent data")

	var count int64
	require.NoError(t, env.db.Model(&models.Person{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUploadFile_ExtractionFailure(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{err: errors.New("service down")})

	rec := env.do(t, multipartRequest(t, "/api/dna/upload", "report.pdf", []byte("fake"), nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUploadFile_MissingFileField(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{result: familyExtraction})

	req, err := http.NewRequest(http.MethodPost, "/api/dna/upload", nil)
	require.NoError(t, err)
	rec := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchFile(t *testing.T) {
	parentOnly := func() *dna.ExtractionResult {
		return &dna.ExtractionResult{
			Parent:     &dna.PersonRecord{Name: "John", Loci: lociReadings(testFatherLoci)},
			ParentRole: "father",
		}
	}
	env := newTestEnv(t, &stubExtractor{result: parentOnly})
	seedTestPerson(t, env.db, models.RoleChild, "Likely Kid", testChildLoci)
	seedTestPerson(t, env.db, models.RoleFather, "Other Father", testFatherLoci)

	t.Run("parent search ranks children", func(t *testing.T) {
		req := multipartRequest(t, "/api/dna/match", "report.pdf", []byte("fake"), map[string]string{"role": "parent"})
		rec := env.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp UploadResponse
		decodeBody(t, rec, &resp)
		assert.True(t, resp.Success)
		require.Len(t, resp.Matches, 1, "parents never appear in a children search")
		assert.Equal(t, "Likely Kid", resp.Matches[0].Name)
		assert.Equal(t, 100.0, resp.Matches[0].MatchPercentage)
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		req := multipartRequest(t, "/api/dna/match", "report.pdf", []byte("fake"), map[string]string{"role": "uncle"})
		rec := env.do(t, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("nothing persisted", func(t *testing.T) {
		var count int64
		require.NoError(t, env.db.Model(&models.UploadedFile{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}
