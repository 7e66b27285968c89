package models

// DNALocus holds one STR marker reading for a person. Alleles are kept as
// strings so microvariant values like "9.3" survive round trips untouched.
// (person_id, locus_name) is unique: a second reading of the same locus is
// either a verified match or a logged conflict, never an overwrite.
// It corresponds to the 'dna_loci' table.
type DNALocus struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID     uint   `gorm:"not null;uniqueIndex:idx_person_locus" json:"person_id"`
	LocusName    string `gorm:"not null;uniqueIndex:idx_person_locus;index" json:"locus_name"`
	Allele1      string `gorm:"column:allele_1;not null" json:"allele_1"`
	Allele2      string `gorm:"column:allele_2;not null" json:"allele_2"`
	SourceFileID *uint  `gorm:"index" json:"source_file_id,omitempty"` // file that contributed this reading

	Person     *Person       `gorm:"foreignKey:PersonID" json:"-"`
	SourceFile *UploadedFile `gorm:"foreignKey:SourceFileID" json:"-"`
}

// TableName explicitly sets the table name for GORM.
func (DNALocus) TableName() string {
	return "dna_loci"
}
