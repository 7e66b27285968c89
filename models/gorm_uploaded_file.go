package models

// UploadedFile is an immutable record of one submitted lab report. The stored
// object is addressed by FilePath relative to the storage root. A person may
// outlive the file that created it as long as other files still attest it.
// It corresponds to the 'uploaded_files' table.
type UploadedFile struct {
	ID             uint     `gorm:"primaryKey;autoIncrement" json:"id"`
	FilePath       string   `gorm:"not null" json:"file_path"`
	OriginalName   string   `gorm:"not null" json:"original_name"`
	UploadedAt     int64    `gorm:"not null;index" json:"uploaded_at"` // Unix timestamp
	ScannedAt      *int64   `gorm:"" json:"scanned_at,omitempty"`      // from scan EXIF when present
	OverallQuality *float64 `gorm:"" json:"overall_quality,omitempty"` // aggregate extraction confidence

	Persons []Person `gorm:"many2many:person_files;" json:"persons,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (UploadedFile) TableName() string {
	return "uploaded_files"
}

// PersonFile is the join table linking persons to the files that attest them.
// It is a first-class relation with its own lifecycle: deleting a file removes
// its rows here without touching persons still attested elsewhere.
type PersonFile struct {
	PersonID       uint `gorm:"primaryKey" json:"person_id"`
	UploadedFileID uint `gorm:"primaryKey" json:"uploaded_file_id"`

	Person       Person       `gorm:"foreignKey:PersonID" json:"-"`
	UploadedFile UploadedFile `gorm:"foreignKey:UploadedFileID" json:"-"`
}

// TableName overrides the table name for PersonFile to be `person_files`
func (PersonFile) TableName() string {
	return "person_files"
}
