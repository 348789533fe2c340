package repository

// Record is the row model of a single table.
// Records are plain GORM models; the domain objects built from them live
// in the identity map and never reach GORM directly.
type Record interface {
	// TableName returns the database table name for this record
	TableName() string

	// GetPrimaryKeyValue returns the row id, zero before the row is inserted
	GetPrimaryKeyValue() int64
}

// Mapping converts between a domain entity E (a pointer type) and its row
// record R. Each entity type supplies one Mapping; GenericRepository drives
// the row lifecycle and identity map through it.
type Mapping[E any, R Record] struct {
	// Entity names the domain type in errors and logs, e.g. "employee"
	Entity string

	// ToRecord snapshots the entity's persisted fields
	ToRecord func(e E) R

	// FromRecord constructs a fresh entity from a row. The id is assigned
	// by the repository afterwards.
	FromRecord func(r R) (E, error)

	// Refresh overwrites the entity's fields in place from a row
	Refresh func(e E, r R) error

	// ID returns the entity id, zero while unsaved
	ID func(e E) int64

	// SetID assigns or clears (zero) the entity id
	SetID func(e E, id int64)

	// Validate re-checks field invariants before a write; optional
	Validate func(e E) error
}
