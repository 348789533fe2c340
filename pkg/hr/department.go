package hr

import (
	"context"
	"fmt"

	"github.com/ammar0144/staffdb/pkg/db"
	"github.com/ammar0144/staffdb/pkg/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Department is a unit employees belong to
type Department struct {
	id       int64
	name     string
	location string
}

// ID returns the row id, zero until the department is saved
func (d *Department) ID() int64 { return d.id }

// IsPersisted reports whether the department has a row
func (d *Department) IsPersisted() bool { return d.id != 0 }

func (d *Department) Name() string { return d.name }

// SetName sets the name; it must not be blank
func (d *Department) SetName(name string) error {
	if err := checkName(entityDepartment, name); err != nil {
		return err
	}
	d.name = name
	return nil
}

func (d *Department) Location() string { return d.location }

func (d *Department) SetLocation(location string) error {
	if err := check(entityDepartment, "location", location, validation.RuneLength(0, maxTextLength)); err != nil {
		return err
	}
	d.location = location
	return nil
}

func (d *Department) String() string {
	return fmt.Sprintf("<Department %d: %s, %s>", d.id, d.name, d.location)
}

func (d *Department) validate() error {
	if err := checkName(entityDepartment, d.name); err != nil {
		return err
	}
	return check(entityDepartment, "location", d.location, validation.RuneLength(0, maxTextLength))
}

func (d *Department) load(r departmentRecord) {
	d.id = r.ID
	d.name = r.Name
	d.location = r.Location
}

// departmentRecord is the departments table row
type departmentRecord struct {
	ID       int64  `gorm:"primaryKey"`
	Name     string `gorm:"size:255;not null"`
	Location string `gorm:"size:255;not null"`
}

func (departmentRecord) TableName() string { return "departments" }

func (r departmentRecord) GetPrimaryKeyValue() int64 { return r.ID }

func departmentMapping() repository.Mapping[*Department, departmentRecord] {
	return repository.Mapping[*Department, departmentRecord]{
		Entity: entityDepartment,
		ToRecord: func(d *Department) departmentRecord {
			return departmentRecord{ID: d.id, Name: d.name, Location: d.location}
		},
		FromRecord: func(r departmentRecord) (*Department, error) {
			d := &Department{}
			d.load(r)
			return d, nil
		},
		Refresh: func(d *Department, r departmentRecord) error {
			d.load(r)
			return nil
		},
		ID:       func(d *Department) int64 { return d.id },
		SetID:    func(d *Department, id int64) { d.id = id },
		Validate: func(d *Department) error { return d.validate() },
	}
}

// Departments is the repository for the departments table
type Departments struct {
	*repository.GenericRepository[*Department, departmentRecord]
}

var _ repository.Repository[*Department] = (*Departments)(nil)

// NewDepartments creates the departments repository
func NewDepartments(m *db.Manager, opts repository.Options) *Departments {
	return &Departments{
		GenericRepository: repository.NewGenericRepository(m, departmentMapping(), opts),
	}
}

// New builds an unsaved department
func (r *Departments) New(name, location string) (*Department, error) {
	d := &Department{}
	if err := d.SetName(name); err != nil {
		return nil, err
	}
	if err := d.SetLocation(location); err != nil {
		return nil, err
	}
	return d, nil
}

// Create builds and saves a department
func (r *Departments) Create(ctx context.Context, name, location string) (*Department, error) {
	d, err := r.New(name, location)
	if err != nil {
		return nil, err
	}
	if err := r.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// FindByName returns the first department with exactly this name, or nil
func (r *Departments) FindByName(ctx context.Context, name string) (*Department, error) {
	return r.First(ctx, "name = ?", name)
}
