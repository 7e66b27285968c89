package models

// Person role values. Role carries the biological meaning of a record and is
// only ever corrected, never reinterpreted.
const (
	RoleFather = "father"
	RoleMother = "mother"
	RoleChild  = "child"
)

// ParentRoles lists the roles a parent record may carry.
var ParentRoles = []string{RoleFather, RoleMother}

// IsValidRole reports whether role is one of the persistable role values.
func IsValidRole(role string) bool {
	return role == RoleFather || role == RoleMother || role == RoleChild
}

// Person represents one role-tagged individual attested by one or more
// uploaded lab reports. It corresponds to the 'people' table.
type Person struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Role      string `gorm:"not null;index" json:"role"`
	Name      string `gorm:"not null" json:"name"`
	LociCount int    `gorm:"not null;default:0" json:"loci_count"` // cache, recomputed from live rows on every change
	CreatedAt int64  `gorm:"not null" json:"created_at"`           // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt int64  `gorm:"not null" json:"updated_at"`           // Stored as INTEGER in SQLite, Unix timestamp

	// Relationships
	Loci  []DNALocus     `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE" json:"loci,omitempty"`
	Files []UploadedFile `gorm:"many2many:person_files;" json:"files,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "people"
}
