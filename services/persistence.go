package services

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/genomatch/dnalabbackend/dna"
	"github.com/genomatch/dnalabbackend/models"
	"github.com/genomatch/dnalabbackend/repository"
	"github.com/genomatch/dnalabbackend/storage"
)

// SaveStatus is the outcome of a persisted upload.
type SaveStatus string

const (
	StatusNew      SaveStatus = "new"
	StatusEnriched SaveStatus = "enriched"
)

// SaveResult describes a successfully persisted upload.
type SaveResult struct {
	Status         SaveStatus `json:"status"`
	UploadedFileID uint       `json:"uploaded_file_id"`
	PersonIDs      []uint     `json:"person_ids"`
	Links          []CrossRef `json:"links"`
}

// PersisterConfig carries the validation thresholds the orchestrator applies
// before writing anything.
type PersisterConfig struct {
	MinValidLoci  int
	MinConfidence float64
}

// Persister wraps one upload's resolver verdict in a single atomic database
// transaction: create, merge in place, or reject.
type Persister struct {
	db       *gorm.DB
	store    storage.Store
	resolver *Resolver
	cfg      PersisterConfig
}

// NewPersister creates a new persistence orchestrator
func NewPersister(db *gorm.DB, store storage.Store, resolver *Resolver, cfg PersisterConfig) *Persister {
	return &Persister{db: db, store: store, resolver: resolver, cfg: cfg}
}

// ResolveAndPersist runs the full save path for one extracted upload:
// duplicate resolution, validation, then the write, all inside one immediate
// transaction. On rejection it returns a typed error (*ValidationError or
// *DuplicateError) and performs no writes; storage or transaction failures
// surface as *PersistenceFault with the cause retained in logs only.
//
// Resolution shares the write transaction so two concurrent uploads of the
// same new person serialize: the second writer resolves after the first
// commit and lands on the duplicate or enrichment path instead of inserting
// a twin.
func (p *Persister) ResolveAndPersist(result *dna.ExtractionResult, filename string, document []byte, scannedAt *int64) (*SaveResult, error) {
	log.Printf("persister: starting database save for %s", filename)

	result.Normalize()

	hasParent := result.HasParent()
	var parentLoci []dna.LocusReading
	if hasParent {
		parentLoci = result.Parent.Loci
	}

	if !hasParent && len(result.Children) == 0 {
		return nil, &ValidationError{Reasons: []string{"no DNA data found in file"}}
	}
	if !hasParent {
		log.Printf("persister: child-only upload detected: %s (no parent in file)", filename)
	}

	saveResult := &SaveResult{Status: StatusNew}
	var storedPath string

	txErr := p.db.Transaction(func(tx *gorm.DB) error {
		resolver := p.resolver.WithPersons(repository.NewPersonRepository(tx))
		resolution, err := resolver.Resolve(result)
		if err != nil {
			log.Printf("persister: duplicate resolution failed for %s: %v", filename, err)
			return &PersistenceFault{Err: err}
		}

		// Reject before validating: a resubmission of records already on
		// file is a duplicate regardless of its scan quality.
		if resolution.ParentExists && len(resolution.NewChildren) == 0 {
			if len(resolution.DuplicateChildren) > 0 {
				return p.duplicateChildrenError(resolution)
			}
			if len(result.Children) == 0 {
				newCount := dna.CountValidLoci(parentLoci)
				existing := resolution.ExistingParent
				if newCount > existing.LociCount {
					log.Printf("persister: accepting parent-only upload: %s (%d->%d loci)",
						existing.Name, existing.LociCount, newCount)
				} else {
					return &DuplicateError{
						Message: fmt.Sprintf(
							"duplicate parent: %s already has %d loci (uploaded file has %d)",
							existing.Name, existing.LociCount, newCount),
						Links: []CrossRef{{PersonID: existing.ID, Name: existing.Name, Role: existing.Role}},
					}
				}
			}
		}

		if reasons := p.validate(result, hasParent, parentLoci); len(reasons) > 0 {
			log.Printf("persister: validation failed for %s: %v", filename, reasons)
			return &ValidationError{Reasons: reasons}
		}

		return p.persist(tx, result, resolution, filename, document, scannedAt, saveResult, &storedPath)
	})

	if txErr != nil {
		if storedPath != "" {
			if _, delErr := p.store.Delete(storedPath); delErr != nil {
				log.Printf("persister: failed to remove stored file %s after rollback: %v", storedPath, delErr)
			}
		}
		switch txErr.(type) {
		case *ValidationError, *DuplicateError, *PersistenceFault:
			return nil, txErr
		}
		log.Printf("persister: database save failed for %s: %v", filename, txErr)
		return nil, &PersistenceFault{Err: txErr}
	}

	log.Printf("persister: successfully saved %s: upload ID %d (%s)",
		filename, saveResult.UploadedFileID, saveResult.Status)
	return saveResult, nil
}

// validate evaluates every rule and reports all problems together.
func (p *Persister) validate(result *dna.ExtractionResult, hasParent bool, parentLoci []dna.LocusReading) []string {
	var reasons []string

	if hasParent {
		reasons = append(reasons, dna.ValidateRecordCounts(parentLoci, p.cfg.MinValidLoci, "parent")...)
		reasons = append(reasons, dna.ValidateLociConfidence(parentLoci, p.cfg.MinConfidence, "parent")...)
	}
	for idx, child := range result.Children {
		label := fmt.Sprintf("child %d", idx+1)
		reasons = append(reasons, dna.ValidateRecordCounts(child.Loci, p.cfg.MinValidLoci, label)...)
		reasons = append(reasons, dna.ValidateLociConfidence(child.Loci, p.cfg.MinConfidence, label)...)
	}
	reasons = append(reasons, dna.ValidateOverallQuality(result.OverallQuality, p.cfg.MinConfidence)...)

	return reasons
}

func (p *Persister) duplicateChildrenError(resolution *Resolution) *DuplicateError {
	parent := resolution.ExistingParent
	links := []CrossRef{{PersonID: parent.ID, Name: parent.Name, Role: parent.Role}}
	names := make([]string, 0, len(resolution.DuplicateChildren))
	for _, dup := range resolution.DuplicateChildren {
		links = append(links, CrossRef{
			PersonID: dup.ExistingPerson.ID,
			Name:     dup.ExistingPerson.Name,
			Role:     dup.ExistingPerson.Role,
		})
		names = append(names, dup.Name)
	}

	msg := fmt.Sprintf("duplicate detected: %s and %s already exist in database",
		parent.Name, strings.Join(names, ", "))
	log.Printf("persister: %s", msg)
	return &DuplicateError{Message: msg, Links: links}
}

// persist performs the write inside tx. The stored file is created in the
// transaction scope: if any later step fails, the transaction rolls back and
// the caller removes the stored object so no rows exist without a backing
// file.
func (p *Persister) persist(tx *gorm.DB, result *dna.ExtractionResult, resolution *Resolution, filename string, document []byte, scannedAt *int64, saveResult *SaveResult, storedPath *string) error {
	path, err := p.store.Save(bytes.NewReader(document), filename)
	if err != nil {
		return persistenceFault("failed to upload file to storage: %w", err)
	}
	*storedPath = path
	log.Printf("persister: file uploaded: %s", path)

	uploadedFile := models.UploadedFile{
		FilePath:       path,
		OriginalName:   filename,
		UploadedAt:     time.Now().Unix(),
		ScannedAt:      scannedAt,
		OverallQuality: result.OverallQuality,
	}
	if err := tx.Create(&uploadedFile).Error; err != nil {
		return persistenceFault("failed to create uploaded file record: %w", err)
	}
	saveResult.UploadedFileID = uploadedFile.ID

	if result.HasParent() {
		if resolution.ParentExists {
			if err := p.enrichParent(tx, resolution.ExistingParent, result.Parent.Loci, filename, uploadedFile.ID); err != nil {
				return err
			}
			saveResult.Status = StatusEnriched
			p.addPerson(saveResult, resolution.ExistingParent.ID, resolution.ExistingParent.Name, resolution.ExistingParent.Role)
		} else {
			person, err := p.createParent(tx, result, filename, uploadedFile.ID)
			if err != nil {
				return err
			}
			p.addPerson(saveResult, person.ID, person.Name, person.Role)
		}
	}

	for idx, child := range resolution.NewChildren {
		name := child.Name
		if name == "" {
			name = fmt.Sprintf("Unknown Child %d", idx+1)
		}
		person, err := p.createPerson(tx, models.RoleChild, name, child.Loci, filename, uploadedFile.ID)
		if err != nil {
			return err
		}
		log.Printf("persister: saved new child %s with %d STR loci", name, person.LociCount)
		p.addPerson(saveResult, person.ID, person.Name, person.Role)
	}

	return nil
}

// createParent resolves the parent's role and creates the person with its
// loci.
func (p *Persister) createParent(tx *gorm.DB, result *dna.ExtractionResult, filename string, fileID uint) (*models.Person, error) {
	role := dna.InferParentRole(result.ParentRole, result.Parent)
	name := result.Parent.Name
	if name == "" {
		name = "Unknown"
	}

	person, err := p.createPerson(tx, role, name, result.Parent.Loci, filename, fileID)
	if err != nil {
		return nil, err
	}
	log.Printf("persister: created new parent %s (%s) with %d STR loci", name, role, person.LociCount)
	return person, nil
}

// createPerson creates a person and bulk-inserts its prepared loci.
// Unknown-after-normalization locus names abort the transaction.
func (p *Persister) createPerson(tx *gorm.DB, role, name string, loci []dna.LocusReading, filename string, fileID uint) (*models.Person, error) {
	prepared, skipped, unknown := dna.PrepareLoci(loci)
	if len(unknown) > 0 {
		return nil, unknownLociError(unknown, filename)
	}
	if len(skipped) > 0 {
		log.Printf("persister: skipped %d untested loci for %s", len(skipped), name)
	}

	now := time.Now().Unix()
	person := models.Person{Role: role, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := tx.Create(&person).Error; err != nil {
		return nil, persistenceFault("failed to create person %s: %w", name, err)
	}

	seen := make(map[string]dna.AllelePair, len(prepared))
	saved := 0
	for _, locus := range prepared {
		pair := dna.NewAllelePair(locus.Allele1, locus.Allele2)
		if prev, ok := seen[locus.LocusName]; ok {
			if prev != pair {
				log.Printf("persister: conflicting repeat reading of %s for %s in %s: existing=%v new=%v, keeping first",
					locus.LocusName, name, filename, prev, pair)
			}
			continue
		}
		seen[locus.LocusName] = pair

		row := models.DNALocus{
			PersonID:     person.ID,
			LocusName:    locus.LocusName,
			Allele1:      locus.Allele1,
			Allele2:      locus.Allele2,
			SourceFileID: &fileID,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, persistenceFault("failed to save locus %s for %s: %w", locus.LocusName, name, err)
		}
		saved++
	}

	person.LociCount = saved
	if err := tx.Model(&models.Person{}).Where("id = ?", person.ID).Update("loci_count", saved).Error; err != nil {
		return nil, persistenceFault("failed to store loci count for %s: %w", name, err)
	}
	if err := linkPersonFile(tx, person.ID, fileID); err != nil {
		return nil, err
	}
	return &person, nil
}

// enrichParent merges incoming loci into an existing parent. Existing
// readings always win; mismatches are logged as conflicts with the original
// source file preserved.
func (p *Persister) enrichParent(tx *gorm.DB, parent *models.Person, loci []dna.LocusReading, filename string, fileID uint) error {
	var rows []models.DNALocus
	if err := tx.Where("person_id = ?", parent.ID).Find(&rows).Error; err != nil {
		return persistenceFault("failed to load existing loci for %s: %w", parent.Name, err)
	}

	existing := make([]dna.StoredLocus, 0, len(rows))
	for _, row := range rows {
		existing = append(existing, dna.StoredLocus{
			LocusName: row.LocusName,
			Allele1:   row.Allele1,
			Allele2:   row.Allele2,
		})
	}

	added, conflicts, unknown := dna.MergeLoci(existing, loci)
	if len(unknown) > 0 {
		return unknownLociError(unknown, filename)
	}
	for _, conflict := range conflicts {
		log.Printf("persister: allele mismatch for %s locus %s: existing=%v, new=%v (from %s), keeping existing version",
			parent.Name, conflict.LocusName, conflict.Existing, conflict.Incoming, filename)
	}

	for _, locus := range added {
		row := models.DNALocus{
			PersonID:     parent.ID,
			LocusName:    locus.LocusName,
			Allele1:      locus.Allele1,
			Allele2:      locus.Allele2,
			SourceFileID: &fileID,
		}
		if err := tx.Create(&row).Error; err != nil {
			return persistenceFault("failed to save locus %s for %s: %w", locus.LocusName, parent.Name, err)
		}
		log.Printf("persister: added new locus %s to existing person %s (from %s)",
			locus.LocusName, parent.Name, filename)
	}

	if err := linkPersonFile(tx, parent.ID, fileID); err != nil {
		return err
	}

	var count int64
	if err := tx.Model(&models.DNALocus{}).Where("person_id = ?", parent.ID).Count(&count).Error; err != nil {
		return persistenceFault("failed to recount loci for %s: %w", parent.Name, err)
	}
	err := tx.Model(&models.Person{}).Where("id = ?", parent.ID).Updates(map[string]interface{}{
		"loci_count": count,
		"updated_at": time.Now().Unix(),
	}).Error
	if err != nil {
		return persistenceFault("failed to store loci count for %s: %w", parent.Name, err)
	}
	parent.LociCount = int(count)

	log.Printf("persister: linked existing parent %s to %s and added %d new loci (total now: %d)",
		parent.Name, filename, len(added), count)
	return nil
}

func (p *Persister) addPerson(saveResult *SaveResult, id uint, name, role string) {
	saveResult.PersonIDs = append(saveResult.PersonIDs, id)
	saveResult.Links = append(saveResult.Links, CrossRef{PersonID: id, Name: name, Role: role})
}

func linkPersonFile(tx *gorm.DB, personID, fileID uint) error {
	link := models.PersonFile{PersonID: personID, UploadedFileID: fileID}
	if err := tx.Where(&link).FirstOrCreate(&link).Error; err != nil {
		return persistenceFault("failed to link person %d to file %d: %w", personID, fileID, err)
	}
	return nil
}

func unknownLociError(unknown []string, filename string) *ValidationError {
	reasons := make([]string, 0, len(unknown))
	for _, name := range unknown {
		reasons = append(reasons, fmt.Sprintf("invalid locus name: %s; please re-upload a clearer document", name))
	}
	log.Printf("persister: invalid locus names %v in %s, aborting", unknown, filename)
	return &ValidationError{Reasons: reasons}
}
