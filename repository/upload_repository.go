package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/genomatch/dnalabbackend/models"
)

// UploadedFileRepository handles database operations for UploadedFile
// entities and their person links
type UploadedFileRepository struct {
	DB *gorm.DB
}

// NewUploadedFileRepository creates a new instance of UploadedFileRepository
func NewUploadedFileRepository(db *gorm.DB) *UploadedFileRepository {
	return &UploadedFileRepository{DB: db}
}

// Create creates a new uploaded file record
func (r *UploadedFileRepository) Create(file *models.UploadedFile) error {
	if file.UploadedAt == 0 {
		file.UploadedAt = time.Now().Unix()
	}
	err := r.DB.Create(file).Error
	if err != nil {
		return fmt.Errorf("failed to create uploaded file %s: %w", file.OriginalName, err)
	}
	return nil
}

// GetByID retrieves an uploaded file by its ID, persons preloaded
func (r *UploadedFileRepository) GetByID(id uint) (*models.UploadedFile, error) {
	var file models.UploadedFile
	err := r.DB.Preload("Persons").First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get uploaded file by ID %d: %w", id, err)
	}
	return &file, nil
}

// Delete removes an uploaded file record and its person links. Loci
// attributed to the file keep their rows; attribution is historical.
func (r *UploadedFileRepository) Delete(id uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("uploaded_file_id = ?", id).Delete(&models.PersonFile{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.UploadedFile{}, id)
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
		return fmt.Errorf("failed to delete uploaded file ID %d: %w", id, err)
	}
	return nil
}

// ListPersons retrieves the persons attested by a file
func (r *UploadedFileRepository) ListPersons(fileID uint) ([]models.Person, error) {
	var persons []models.Person
	err := r.DB.
		Joins("JOIN person_files ON person_files.person_id = people.id").
		Where("person_files.uploaded_file_id = ?", fileID).
		Order("people.id ASC").
		Find(&persons).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list persons for file ID %d: %w", fileID, err)
	}
	return persons, nil
}

// CountOtherFiles reports how many files other than fileID still attest the person
func (r *UploadedFileRepository) CountOtherFiles(personID, fileID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&models.PersonFile{}).
		Where("person_id = ? AND uploaded_file_id <> ?", personID, fileID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count other files for person ID %d: %w", personID, err)
	}
	return count, nil
}

// Unlink removes the person links between the file and the given persons
func (r *UploadedFileRepository) Unlink(fileID uint, personIDs []uint) error {
	if len(personIDs) == 0 {
		return nil
	}
	err := r.DB.Where("uploaded_file_id = ? AND person_id IN ?", fileID, personIDs).
		Delete(&models.PersonFile{}).Error
	if err != nil {
		return fmt.Errorf("failed to unlink persons from file ID %d: %w", fileID, err)
	}
	return nil
}
