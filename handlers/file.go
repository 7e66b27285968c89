package handlers

import (
	"crypto/hmac"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/genomatch/dnalabbackend/repository"
	"github.com/genomatch/dnalabbackend/storage"
)

type FileHandler struct {
	FileRepo   repository.UploadedFileRepositoryInterface
	PersonRepo repository.PersonRepositoryInterface
	Store      storage.Store
	URLTTL     time.Duration
	SigningKey []byte
}

func parseFileID(r *http.Request) (uint, error) {
	idStr := chi.URLParam(r, "file_id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// DeleteFile removes an uploaded file: persons whose only attestation was
// this file are deleted, persons still attested elsewhere are unlinked, and
// the stored object is removed
func (fh *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, err := parseFileID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid file ID format"})
		return
	}

	file, err := fh.FileRepo.GetByID(fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		} else {
			log.Printf("Error getting file %d: %v", fileID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete file"})
		}
		return
	}

	linkedPersons, err := fh.FileRepo.ListPersons(fileID)
	if err != nil {
		log.Printf("Error listing persons for file %d: %v", fileID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete file"})
		return
	}

	var deletedPersonIDs []uint
	var unlinkedPersonIDs []uint

	for _, person := range linkedPersons {
		otherFiles, err := fh.FileRepo.CountOtherFiles(person.ID, fileID)
		if err != nil {
			log.Printf("Error counting files for person %d: %v", person.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete file"})
			return
		}
		if otherFiles == 0 {
			if err := fh.PersonRepo.Delete(person.ID); err != nil {
				log.Printf("Error deleting person %d: %v", person.ID, err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete file"})
				return
			}
			deletedPersonIDs = append(deletedPersonIDs, person.ID)
		} else {
			unlinkedPersonIDs = append(unlinkedPersonIDs, person.ID)
		}
	}

	if err := fh.FileRepo.Unlink(fileID, unlinkedPersonIDs); err != nil {
		log.Printf("Error unlinking persons from file %d: %v", fileID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete file"})
		return
	}

	if _, err := fh.Store.Delete(file.FilePath); err != nil {
		log.Printf("Warning: failed to delete stored file %s: %v", file.FilePath, err)
	}

	if err := fh.FileRepo.Delete(fileID); err != nil {
		log.Printf("Error deleting file record %d: %v", fileID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete file"})
		return
	}

	log.Printf("Deleted file %d: removed %v, unlinked %v", fileID, deletedPersonIDs, unlinkedPersonIDs)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":             true,
		"deleted_person_ids":  idsOrEmpty(deletedPersonIDs),
		"unlinked_person_ids": idsOrEmpty(unlinkedPersonIDs),
	})
}

func idsOrEmpty(ids []uint) []uint {
	if ids == nil {
		return []uint{}
	}
	return ids
}

// GetFileURL returns a time-limited download link for a stored report
func (fh *FileHandler) GetFileURL(w http.ResponseWriter, r *http.Request) {
	fileID, err := parseFileID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid file ID format"})
		return
	}

	file, err := fh.FileRepo.GetByID(fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "File not found"})
		} else {
			log.Printf("Error getting file %d: %v", fileID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate URL"})
		}
		return
	}

	url, err := fh.Store.URL(file.FilePath, fh.URLTTL)
	if err != nil {
		log.Printf("Error generating URL for file %d: %v", fileID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate URL"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url, "file_name": file.OriginalName})
}

// ServeFile streams a stored report to clients holding an unexpired, signed
// link
func (fh *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	relativePath, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil || relativePath == "" {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	expiresStr := r.URL.Query().Get("expires")
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || time.Now().Unix() > expires {
		http.Error(w, "Link expired", http.StatusForbidden)
		return
	}

	// the signature binds path and expiry, so a client cannot mint or
	// extend links
	expected := storage.Sign(fh.SigningKey, relativePath, expires)
	if !hmac.Equal([]byte(r.URL.Query().Get("sig")), []byte(expected)) {
		http.Error(w, "Invalid link signature", http.StatusForbidden)
		return
	}

	reader, info, err := fh.Store.Get(relativePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("Error streaming file %s: %v", relativePath, err)
	}
}
