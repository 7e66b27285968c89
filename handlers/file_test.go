package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomatch/dnalabbackend/models"
)

func TestDeleteFile(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{result: familyExtraction})

	rec := env.do(t, multipartRequest(t, "/api/dna/upload", "report.pdf", []byte("fake"), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var files []models.UploadedFile
	require.NoError(t, env.db.Find(&files).Error)
	require.Len(t, files, 1)
	firstFileID := files[0].ID

	// deleting the only file removes both persons: it was their sole
	// attestation
	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/dna/files/%d/", firstFileID), nil)
	delRec := env.do(t, req)
	require.Equal(t, http.StatusOK, delRec.Code, delRec.Body.String())

	var resp struct {
		Success           bool   `json:"success"`
		DeletedPersonIDs  []uint `json:"deleted_person_ids"`
		UnlinkedPersonIDs []uint `json:"unlinked_person_ids"`
	}
	decodeBody(t, delRec, &resp)
	assert.True(t, resp.Success)
	assert.Len(t, resp.DeletedPersonIDs, 2)
	assert.Empty(t, resp.UnlinkedPersonIDs)

	var people, fileCount int64
	require.NoError(t, env.db.Model(&models.Person{}).Count(&people).Error)
	require.NoError(t, env.db.Model(&models.UploadedFile{}).Count(&fileCount).Error)
	assert.Zero(t, people)
	assert.Zero(t, fileCount)
}

func TestDeleteFile_UnlinksMultiplyAttestedPersons(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{result: familyExtraction})

	person := seedTestPerson(t, env.db, models.RoleFather, "John", testFatherLoci)
	fileA := models.UploadedFile{FilePath: "uploads/a.pdf", OriginalName: "a.pdf", UploadedAt: 100}
	fileB := models.UploadedFile{FilePath: "uploads/b.pdf", OriginalName: "b.pdf", UploadedAt: 200}
	require.NoError(t, env.db.Create(&fileA).Error)
	require.NoError(t, env.db.Create(&fileB).Error)
	require.NoError(t, env.db.Create(&models.PersonFile{PersonID: person.ID, UploadedFileID: fileA.ID}).Error)
	require.NoError(t, env.db.Create(&models.PersonFile{PersonID: person.ID, UploadedFileID: fileB.ID}).Error)

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/dna/files/%d/", fileA.ID), nil)
	rec := env.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		DeletedPersonIDs  []uint `json:"deleted_person_ids"`
		UnlinkedPersonIDs []uint `json:"unlinked_person_ids"`
	}
	decodeBody(t, rec, &resp)
	assert.Empty(t, resp.DeletedPersonIDs)
	assert.Equal(t, []uint{person.ID}, resp.UnlinkedPersonIDs)

	// the person survives with its other attestation intact
	var surviving models.Person
	require.NoError(t, env.db.First(&surviving, person.ID).Error)
	var links int64
	require.NoError(t, env.db.Model(&models.PersonFile{}).Where("person_id = ?", person.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)
}

func TestDeleteFile_NotFound(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{result: familyExtraction})

	rec := env.do(t, httptest.NewRequest(http.MethodDelete, "/api/dna/files/999/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFileURLAndServe(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{result: familyExtraction})

	rec := env.do(t, multipartRequest(t, "/api/dna/upload", "report.pdf", []byte("fake content"), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var files []models.UploadedFile
	require.NoError(t, env.db.Find(&files).Error)
	require.Len(t, files, 1)

	urlRec := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/dna/files/%d/url", files[0].ID), nil))
	require.Equal(t, http.StatusOK, urlRec.Code, urlRec.Body.String())

	var urlResp struct {
		URL      string `json:"url"`
		FileName string `json:"file_name"`
	}
	decodeBody(t, urlRec, &urlResp)
	assert.Equal(t, "report.pdf", urlResp.FileName)
	require.Contains(t, urlResp.URL, "expires=")

	// the generated link serves the stored bytes
	servePath := strings.TrimPrefix(urlResp.URL, "http://localhost:8080")
	serveRec := env.do(t, httptest.NewRequest(http.MethodGet, servePath, nil))
	require.Equal(t, http.StatusOK, serveRec.Code, serveRec.Body.String())
	assert.Equal(t, "fake content", serveRec.Body.String())

	// an expired or unsigned link is refused
	expired := strings.Split(servePath, "?")[0] + "?expires=1"
	assert.Equal(t, http.StatusForbidden, env.do(t, httptest.NewRequest(http.MethodGet, expired, nil)).Code)
	unsigned := strings.Split(servePath, "?")[0]
	assert.Equal(t, http.StatusForbidden, env.do(t, httptest.NewRequest(http.MethodGet, unsigned, nil)).Code)

	// a client cannot mint its own expiry: the signature binds it to the path
	forged := strings.Split(servePath, "?")[0] + "?expires=9999999999&sig=deadbeef"
	assert.Equal(t, http.StatusForbidden, env.do(t, httptest.NewRequest(http.MethodGet, forged, nil)).Code)
}

func TestListFamiliesEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubExtractor{result: familyExtraction})

	rec := env.do(t, multipartRequest(t, "/api/dna/upload", "report.pdf", []byte("fake"), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	listRec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/dna/list?page=1&page_size=10", nil))
	require.Equal(t, http.StatusOK, listRec.Code, listRec.Body.String())

	var page struct {
		Data []struct {
			Parent *struct {
				Name string `json:"name"`
			} `json:"parent"`
			Children []struct {
				Name string `json:"name"`
			} `json:"children"`
		} `json:"data"`
		Total    int `json:"total"`
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	decodeBody(t, listRec, &page)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Data, 1)
	require.NotNil(t, page.Data[0].Parent)
	assert.Equal(t, "John", page.Data[0].Parent.Name)
	require.Len(t, page.Data[0].Children, 1)
	assert.Equal(t, "Kid", page.Data[0].Children[0].Name)
}
