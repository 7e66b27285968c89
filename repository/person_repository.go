package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/genomatch/dnalabbackend/models"
)

// PersonRepository handles database operations for Person entities and their
// loci and file links
type PersonRepository struct {
	DB *gorm.DB
}

// NewPersonRepository creates a new instance of PersonRepository
func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: db}
}

// Create creates a new person record in the database
func (r *PersonRepository) Create(person *models.Person) error {
	now := time.Now().Unix()
	if person.CreatedAt == 0 {
		person.CreatedAt = now
	}
	if person.UpdatedAt == 0 {
		person.UpdatedAt = now
	}

	err := r.DB.Create(person).Error
	if err != nil {
		return fmt.Errorf("failed to create person %s: %w", person.Name, err)
	}
	return nil
}

// GetByID retrieves a person by their ID, preloading Loci and Files
func (r *PersonRepository) GetByID(id uint) (*models.Person, error) {
	var person models.Person
	err := r.DB.Preload("Loci").Preload("Files").First(&person, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get person by ID %d: %w", id, err)
	}
	return &person, nil
}

// ListByRoles retrieves all people with one of the given roles, loci
// preloaded, in insertion order
func (r *PersonRepository) ListByRoles(roles []string) ([]models.Person, error) {
	var people []models.Person
	err := r.DB.Preload("Loci").Where("role IN ?", roles).Order("id ASC").Find(&people).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list people by roles %v: %w", roles, err)
	}
	return people, nil
}

// Update updates an existing person's name and role
func (r *PersonRepository) Update(person *models.Person) error {
	person.UpdatedAt = time.Now().Unix()
	result := r.DB.Model(&models.Person{ID: person.ID}).Updates(models.Person{
		Name:      person.Name,
		Role:      person.Role,
		UpdatedAt: person.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update person ID %d: %w", person.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a person by their ID along with their loci and file links
func (r *PersonRepository) Delete(id uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("person_id = ?", id).Delete(&models.DNALocus{}).Error; err != nil {
			return err
		}
		if err := tx.Where("person_id = ?", id).Delete(&models.PersonFile{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Person{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete person ID %d: %w", id, err)
	}
	return nil
}

// RecountLoci recomputes loci_count from the live rows and stores it.
// The cache is never incremented heuristically.
func (r *PersonRepository) RecountLoci(personID uint) (int, error) {
	var count int64
	if err := r.DB.Model(&models.DNALocus{}).Where("person_id = ?", personID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count loci for person ID %d: %w", personID, err)
	}
	err := r.DB.Model(&models.Person{}).Where("id = ?", personID).Updates(map[string]interface{}{
		"loci_count": count,
		"updated_at": time.Now().Unix(),
	}).Error
	if err != nil {
		return 0, fmt.Errorf("failed to store loci count for person ID %d: %w", personID, err)
	}
	return int(count), nil
}

// LinkFile attests the person by the given uploaded file, ignoring an
// already-existing link
func (r *PersonRepository) LinkFile(personID, fileID uint) error {
	link := models.PersonFile{PersonID: personID, UploadedFileID: fileID}
	err := r.DB.Where(&link).FirstOrCreate(&link).Error
	if err != nil {
		return fmt.Errorf("failed to link person %d to file %d: %w", personID, fileID, err)
	}
	return nil
}

// ListFiles retrieves the uploaded files attesting a person, newest first
func (r *PersonRepository) ListFiles(personID uint) ([]models.UploadedFile, error) {
	var files []models.UploadedFile
	err := r.DB.
		Joins("JOIN person_files ON person_files.uploaded_file_id = uploaded_files.id").
		Where("person_files.person_id = ?", personID).
		Order("uploaded_files.uploaded_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files for person ID %d: %w", personID, err)
	}
	return files, nil
}

// ListChildrenViaFiles retrieves the distinct children linked to any file
// that also attests the given parent, loci preloaded
func (r *PersonRepository) ListChildrenViaFiles(parentID uint) ([]models.Person, error) {
	var fileIDs []uint
	err := r.DB.Model(&models.PersonFile{}).
		Where("person_id = ?", parentID).
		Pluck("uploaded_file_id", &fileIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files for parent ID %d: %w", parentID, err)
	}
	if len(fileIDs) == 0 {
		return []models.Person{}, nil
	}

	var children []models.Person
	err = r.DB.Preload("Loci").
		Joins("JOIN person_files ON person_files.person_id = people.id").
		Where("person_files.uploaded_file_id IN ?", fileIDs).
		Where("people.role = ?", models.RoleChild).
		Distinct("people.*").
		Order("people.id ASC").
		Find(&children).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list children for parent ID %d: %w", parentID, err)
	}
	return children, nil
}
