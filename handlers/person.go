package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/facette/natsort"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/models"
	"github.com/genomatch/dnalabbackend/repository"
	"github.com/genomatch/dnalabbackend/storage"
)

type PersonHandler struct {
	PersonRepo repository.PersonRepositoryInterface
	LocusRepo  repository.LocusRepositoryInterface
	FileRepo   repository.UploadedFileRepositoryInterface
	Store      storage.Store
}

func parsePersonID(r *http.Request) (uint, error) {
	idStr := chi.URLParam(r, "person_id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// GetPerson returns one person with loci in natural locus order
func (ph *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	personID, err := parsePersonID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid person ID format"})
		return
	}

	person, err := ph.PersonRepo.GetByID(personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Person not found"})
		} else {
			log.Printf("Error getting person %d: %v", personID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve person"})
		}
		return
	}

	sortLociNaturally(person.Loci)
	writeJSON(w, http.StatusOK, person)
}

// sortLociNaturally orders loci the way reports print them, so D3S1358 comes
// before D10S1248 despite lexicographic order saying otherwise
func sortLociNaturally(loci []models.DNALocus) {
	names := make([]string, len(loci))
	byName := make(map[string][]models.DNALocus, len(loci))
	for i, locus := range loci {
		names[i] = locus.LocusName
		byName[locus.LocusName] = append(byName[locus.LocusName], locus)
	}
	natsort.Sort(names)

	out := loci[:0]
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, byName[name]...)
	}
}

// UpdatePerson handles PATCH updates of name, role, and loci corrections
func (ph *PersonHandler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	personID, err := parsePersonID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid person ID format"})
		return
	}

	var req struct {
		Name *string `json:"name"`
		Role *string `json:"role"`
		Loci []struct {
			LocusName string `json:"locus_name"`
			Allele1   string `json:"allele_1"`
			Allele2   string `json:"allele_2"`
		} `json:"loci"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}

	person, err := ph.PersonRepo.GetByID(personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Person not found"})
		} else {
			log.Printf("Error getting person %d: %v", personID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve person"})
		}
		return
	}

	updated := false

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		person.Name = strings.TrimSpace(*req.Name)
		updated = true
	}
	if req.Role != nil {
		if !models.IsValidRole(*req.Role) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Invalid role: " + *req.Role})
			return
		}
		person.Role = *req.Role
		updated = true
	}

	for _, locus := range req.Loci {
		name := dna.NormalizeLocusName(locus.LocusName)
		if locus.Allele1 == "" && locus.Allele2 == "" {
			// clearing both alleles removes the reading
			if err := ph.LocusRepo.DeleteByName(personID, name); err != nil {
				log.Printf("Error deleting locus %s for person %d: %v", name, personID, err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update person"})
				return
			}
			updated = true
			continue
		}
		if !dna.IsValidLocus(name) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "Invalid locus name: " + locus.LocusName})
			return
		}
		if err := ph.LocusRepo.UpsertByName(personID, name, locus.Allele1, locus.Allele2); err != nil {
			log.Printf("Error upserting locus %s for person %d: %v", name, personID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update person"})
			return
		}
		updated = true
	}

	if !updated {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No fields to update"})
		return
	}

	if err := ph.PersonRepo.Update(person); err != nil {
		log.Printf("Error updating person %d: %v", personID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update person"})
		return
	}
	if _, err := ph.PersonRepo.RecountLoci(personID); err != nil {
		log.Printf("Error recounting loci for person %d: %v", personID, err)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeletePersons removes one or more parents with their children and files.
// Only parent IDs are accepted; children go away with their parents.
func (ph *PersonHandler) DeletePersons(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query().Get("person_ids")
	if idsParam == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No person_ids provided"})
		return
	}

	var personIDs []uint
	for _, part := range strings.Split(idsParam, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid person_ids format"})
			return
		}
		personIDs = append(personIDs, uint(id))
	}
	if len(personIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No valid person_ids provided"})
		return
	}

	persons := make([]*models.Person, 0, len(personIDs))
	for _, id := range personIDs {
		person, err := ph.PersonRepo.GetByID(id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "One or more persons not found"})
			} else {
				log.Printf("Error getting person %d: %v", id, err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete persons"})
			}
			return
		}
		if person.Role == models.RoleChild {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Child deletion not allowed. Select only parents."})
			return
		}
		persons = append(persons, person)
	}

	for _, parent := range persons {
		if err := ph.deleteParentCascade(parent); err != nil {
			log.Printf("Failed to delete parent %d: %v", parent.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete persons"})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// deleteParentCascade removes a parent, the children attested only through
// that parent's files, and the files themselves with their stored objects
func (ph *PersonHandler) deleteParentCascade(parent *models.Person) error {
	children, err := ph.PersonRepo.ListChildrenViaFiles(parent.ID)
	if err != nil {
		return err
	}
	for i := range children {
		childFiles, err := ph.PersonRepo.ListFiles(children[i].ID)
		if err != nil {
			return err
		}
		if err := ph.PersonRepo.Delete(children[i].ID); err != nil {
			return err
		}
		if err := ph.deleteOrphanedFiles(childFiles); err != nil {
			return err
		}
	}

	parentFiles, err := ph.PersonRepo.ListFiles(parent.ID)
	if err != nil {
		return err
	}
	if err := ph.PersonRepo.Delete(parent.ID); err != nil {
		return err
	}
	return ph.deleteOrphanedFiles(parentFiles)
}

// deleteOrphanedFiles removes files no longer attesting anyone, storage
// object included
func (ph *PersonHandler) deleteOrphanedFiles(files []models.UploadedFile) error {
	for _, file := range files {
		remaining, err := ph.FileRepo.ListPersons(file.ID)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			continue
		}
		if _, err := ph.Store.Delete(file.FilePath); err != nil {
			log.Printf("Warning: failed to delete stored file %s: %v", file.FilePath, err)
		}
		if err := ph.FileRepo.Delete(file.ID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	return nil
}
