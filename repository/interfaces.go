package repository

import (
	"github.com/genomatch/dnalabbackend/models"
)

// PersonRepositoryInterface defines the methods for person data operations
type PersonRepositoryInterface interface {
	Create(person *models.Person) error
	GetByID(id uint) (*models.Person, error)
	ListByRoles(roles []string) ([]models.Person, error)
	Update(person *models.Person) error
	Delete(id uint) error
	RecountLoci(personID uint) (int, error)
	LinkFile(personID, fileID uint) error
	ListFiles(personID uint) ([]models.UploadedFile, error)
	// ListChildrenViaFiles returns the distinct children attested by any file
	// that also attests the given parent.
	ListChildrenViaFiles(parentID uint) ([]models.Person, error)
}

// LocusRepositoryInterface defines the methods for STR locus data operations
type LocusRepositoryInterface interface {
	ListByPersonID(personID uint) ([]models.DNALocus, error)
	UpsertByName(personID uint, locusName, allele1, allele2 string) error
	DeleteByName(personID uint, locusName string) error
}

// UploadedFileRepositoryInterface defines the methods for uploaded file data operations
type UploadedFileRepositoryInterface interface {
	Create(file *models.UploadedFile) error
	GetByID(id uint) (*models.UploadedFile, error)
	Delete(id uint) error
	ListPersons(fileID uint) ([]models.Person, error)
	// CountOtherFiles reports how many files other than fileID still attest
	// the person; zero means the person has no remaining attestation.
	CountOtherFiles(personID, fileID uint) (int64, error)
	Unlink(fileID uint, personIDs []uint) error
}
