package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/genomatch/dnalabbackend/models"
)

// LocusRepository handles database operations for DNALocus entities
type LocusRepository struct {
	DB *gorm.DB
}

// NewLocusRepository creates a new instance of LocusRepository
func NewLocusRepository(db *gorm.DB) *LocusRepository {
	return &LocusRepository{DB: db}
}

// ListByPersonID retrieves all loci stored for a person
func (r *LocusRepository) ListByPersonID(personID uint) ([]models.DNALocus, error) {
	var loci []models.DNALocus
	err := r.DB.Where("person_id = ?", personID).Order("locus_name ASC").Find(&loci).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list loci for person ID %d: %w", personID, err)
	}
	return loci, nil
}

// UpsertByName creates or replaces the reading for (person, locus_name).
// Used by the manual correction path only; the save pipeline never
// overwrites existing readings.
func (r *LocusRepository) UpsertByName(personID uint, locusName, allele1, allele2 string) error {
	locus := models.DNALocus{
		PersonID:  personID,
		LocusName: locusName,
		Allele1:   allele1,
		Allele2:   allele2,
	}
	err := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "person_id"}, {Name: "locus_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"allele_1", "allele_2"}),
	}).Create(&locus).Error
	if err != nil {
		return fmt.Errorf("failed to upsert locus %s for person ID %d: %w", locusName, personID, err)
	}
	return nil
}

// DeleteByName removes the reading for (person, locus_name) if present
func (r *LocusRepository) DeleteByName(personID uint, locusName string) error {
	err := r.DB.Where("person_id = ? AND locus_name = ?", personID, locusName).
		Delete(&models.DNALocus{}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to delete locus %s for person ID %d: %w", locusName, personID, err)
	}
	return nil
}
