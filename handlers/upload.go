package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/genomatch/dnalabbackend/config"
	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/scan"
	"github.com/genomatch/dnalabbackend/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

// UploadHandler runs the full save pipeline and the save-free match pipeline
type UploadHandler struct {
	Cfg       config.Config
	Extractor services.Extractor
	Persister *services.Persister
	Matcher   *services.Matcher
}

// UploadResponse mirrors the upload endpoints' response contract
type UploadResponse struct {
	Success bool                   `json:"success"`
	Status  string                 `json:"status,omitempty"`
	Errors  []string               `json:"errors,omitempty"`
	Links   []services.CrossRef    `json:"links,omitempty"`
	Matches []services.MatchResult `json:"top_matches,omitempty"`
}

const maxUploadBytes = 50 << 20 // 50 MiB

// readUploadedFile pulls the multipart "file" part, preprocesses raster
// scans, and returns the document bytes plus the scan timestamp if the file
// carried one.
func (uh *UploadHandler) readUploadedFile(r *http.Request) ([]byte, string, *int64, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, "", nil, errors.New("invalid multipart request")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", nil, errors.New("missing file field")
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return nil, "", nil, errors.New("failed to read uploaded file")
	}
	if len(raw) > maxUploadBytes {
		return nil, "", nil, errors.New("file too large")
	}

	scannedAt := scan.ScannedAt(raw, header.Filename)

	document, err := scan.Preprocess(raw, header.Filename, uh.Cfg.ScanMaxSize)
	if err != nil {
		// an undecodable scan still goes to the extractor as-is
		log.Printf("upload: scan preprocessing failed for %s: %v", header.Filename, err)
		document = raw
	}

	return document, header.Filename, scannedAt, nil
}

// UploadFile handles POST /api/dna/upload: extract, resolve, persist.
func (uh *UploadHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	document, filename, scannedAt, err := uh.readUploadedFile(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Errors: []string{err.Error()}})
		return
	}
	log.Printf("upload: received file %s (%d bytes)", filename, len(document))

	extraction, err := uh.Extractor.Extract(r.Context(), document, filename)
	if err != nil {
		log.Printf("upload: extraction failed for %s: %v", filename, err)
		writeJSON(w, http.StatusBadGateway, UploadResponse{Success: false, Errors: []string{"extraction failed"}})
		return
	}
	if err := extraction.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Errors: []string{err.Error()}})
		return
	}

	result, err := uh.Persister.ResolveAndPersist(extraction, filename, document, scannedAt)
	if err != nil {
		uh.writeSaveError(w, filename, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		Success: true,
		Status:  string(result.Status),
		Links:   result.Links,
	})
}

func (uh *UploadHandler) writeSaveError(w http.ResponseWriter, filename string, err error) {
	var validationErr *services.ValidationError
	var duplicateErr *services.DuplicateError
	var fault *services.PersistenceFault

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Errors: validationErr.Reasons})
	case errors.As(err, &duplicateErr):
		writeJSON(w, http.StatusConflict, UploadResponse{
			Success: false,
			Errors:  []string{duplicateErr.Message},
			Links:   duplicateErr.Links,
		})
	case errors.As(err, &fault):
		log.Printf("upload: persistence fault for %s: %v", filename, fault.Unwrap())
		writeJSON(w, http.StatusInternalServerError, UploadResponse{Success: false, Errors: []string{fault.Error()}})
	default:
		log.Printf("upload: unexpected error for %s: %v", filename, err)
		writeJSON(w, http.StatusInternalServerError, UploadResponse{Success: false, Errors: []string{"server error occurred"}})
	}
}

// MatchFile handles POST /api/dna/match: extract and rank likely relatives,
// saving nothing.
func (uh *UploadHandler) MatchFile(w http.ResponseWriter, r *http.Request) {
	document, filename, _, err := uh.readUploadedFile(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Errors: []string{err.Error()}})
		return
	}

	role := r.FormValue("role")
	if role != "parent" && role != "child" {
		writeJSON(w, http.StatusBadRequest, UploadResponse{
			Success: false,
			Errors:  []string{"invalid role, must be 'parent' or 'child'"},
		})
		return
	}

	extraction, err := uh.Extractor.Extract(r.Context(), document, filename)
	if err != nil {
		log.Printf("match: extraction failed for %s: %v", filename, err)
		writeJSON(w, http.StatusBadGateway, UploadResponse{Success: false, Errors: []string{"extraction failed"}})
		return
	}
	extraction.Normalize()

	// an uploaded parent matches against children; an uploaded child against
	// parents; the child record is preferred when the file carries both
	var record *dna.PersonRecord
	if role == "child" && len(extraction.Children) > 0 {
		record = &extraction.Children[0]
	} else {
		record = extraction.Parent
	}
	if record == nil {
		writeJSON(w, http.StatusBadRequest, UploadResponse{Success: false, Errors: []string{"no persons found in file"}})
		return
	}

	matches, err := uh.Matcher.FindMatches(record, services.SearchRolesFor(role), uh.Cfg.TopMatches)
	if err != nil {
		log.Printf("match: failed for %s: %v", filename, err)
		writeJSON(w, http.StatusInternalServerError, UploadResponse{Success: false, Errors: []string{"server error occurred"}})
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{Success: true, Matches: matches})
}
