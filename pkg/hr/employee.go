package hr

import (
	"context"
	"errors"
	"fmt"

	"github.com/ammar0144/staffdb/pkg/db"
	"github.com/ammar0144/staffdb/pkg/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var errMissingReference = errors.New("does not exist")

// Employee works in one department
type Employee struct {
	id           int64
	name         string
	jobTitle     string
	departmentID int64
}

// ID returns the row id, zero until the employee is saved
func (e *Employee) ID() int64 { return e.id }

// IsPersisted reports whether the employee has a row
func (e *Employee) IsPersisted() bool { return e.id != 0 }

func (e *Employee) Name() string { return e.name }

// SetName sets the name; it must not be blank
func (e *Employee) SetName(name string) error {
	if err := checkName(entityEmployee, name); err != nil {
		return err
	}
	e.name = name
	return nil
}

func (e *Employee) JobTitle() string { return e.jobTitle }

func (e *Employee) SetJobTitle(jobTitle string) error {
	if err := check(entityEmployee, "job_title", jobTitle, validation.RuneLength(0, maxTextLength)); err != nil {
		return err
	}
	e.jobTitle = jobTitle
	return nil
}

func (e *Employee) DepartmentID() int64 { return e.departmentID }

// SetDepartment points the employee at a saved department
func (e *Employee) SetDepartment(d *Department) error {
	if d == nil {
		return repository.NewValidationError(entityEmployee, "department_id", nil, validation.ErrRequired)
	}
	if !d.IsPersisted() {
		return repository.NewValidationError(entityEmployee, "department_id", d.name, errNotPersisted)
	}
	e.departmentID = d.id
	return nil
}

func (e *Employee) String() string {
	return fmt.Sprintf("<Employee %d: %s, %s>", e.id, e.name, e.jobTitle)
}

func (e *Employee) validate() error {
	if err := checkName(entityEmployee, e.name); err != nil {
		return err
	}
	if err := check(entityEmployee, "job_title", e.jobTitle, validation.RuneLength(0, maxTextLength)); err != nil {
		return err
	}
	return checkReference(entityEmployee, "department_id", e.departmentID)
}

func (e *Employee) load(r employeeRecord) {
	e.id = r.ID
	e.name = r.Name
	e.jobTitle = r.JobTitle
	e.departmentID = r.DepartmentID
}

// employeeRecord is the employees table row
type employeeRecord struct {
	ID           int64             `gorm:"primaryKey"`
	Name         string            `gorm:"size:255;not null"`
	JobTitle     string            `gorm:"size:255;not null"`
	DepartmentID int64             `gorm:"not null"`
	Department   *departmentRecord `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" msgpack:"-"`
}

func (employeeRecord) TableName() string { return "employees" }

func (r employeeRecord) GetPrimaryKeyValue() int64 { return r.ID }

func employeeMapping() repository.Mapping[*Employee, employeeRecord] {
	return repository.Mapping[*Employee, employeeRecord]{
		Entity: entityEmployee,
		ToRecord: func(e *Employee) employeeRecord {
			return employeeRecord{
				ID:           e.id,
				Name:         e.name,
				JobTitle:     e.jobTitle,
				DepartmentID: e.departmentID,
			}
		},
		FromRecord: func(r employeeRecord) (*Employee, error) {
			e := &Employee{}
			e.load(r)
			return e, nil
		},
		Refresh: func(e *Employee, r employeeRecord) error {
			e.load(r)
			return nil
		},
		ID:       func(e *Employee) int64 { return e.id },
		SetID:    func(e *Employee, id int64) { e.id = id },
		Validate: func(e *Employee) error { return e.validate() },
	}
}

// DepartmentChecker reports whether a department row exists.
// *Departments implements it.
type DepartmentChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Employees is the repository for the employees table
type Employees struct {
	*repository.GenericRepository[*Employee, employeeRecord]
	departments DepartmentChecker
}

var _ repository.Repository[*Employee] = (*Employees)(nil)

// NewEmployees creates the employees repository. Department references
// are checked against departments.
func NewEmployees(m *db.Manager, departments DepartmentChecker, opts repository.Options) *Employees {
	if departments == nil {
		panic("hr: nil department checker")
	}
	return &Employees{
		GenericRepository: repository.NewGenericRepository(m, employeeMapping(), opts),
		departments:       departments,
	}
}

// New builds an unsaved employee of an existing department
func (r *Employees) New(ctx context.Context, name, jobTitle string, departmentID int64) (*Employee, error) {
	e := &Employee{}
	if err := e.SetName(name); err != nil {
		return nil, err
	}
	if err := e.SetJobTitle(jobTitle); err != nil {
		return nil, err
	}
	if err := r.SetDepartmentID(ctx, e, departmentID); err != nil {
		return nil, err
	}
	return e, nil
}

// Create builds and saves an employee
func (r *Employees) Create(ctx context.Context, name, jobTitle string, departmentID int64) (*Employee, error) {
	e, err := r.New(ctx, name, jobTitle, departmentID)
	if err != nil {
		return nil, err
	}
	if err := r.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SetDepartmentID points e at the department with id after checking it exists
func (r *Employees) SetDepartmentID(ctx context.Context, e *Employee, id int64) error {
	if err := checkReference(entityEmployee, "department_id", id); err != nil {
		return err
	}
	ok, err := r.departments.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check department %d: %w", id, err)
	}
	if !ok {
		return repository.NewValidationError(entityEmployee, "department_id", id, errMissingReference)
	}
	e.departmentID = id
	return nil
}

// FindByName returns the first employee with exactly this name, or nil
func (r *Employees) FindByName(ctx context.Context, name string) (*Employee, error) {
	return r.First(ctx, "name = ?", name)
}

// ForDepartment lists the employees of d in id order
func (r *Employees) ForDepartment(ctx context.Context, d *Department) ([]*Employee, error) {
	if d == nil || !d.IsPersisted() {
		return nil, &repository.StateError{Entity: entityDepartment, Op: "list employees of", Err: repository.ErrNotPersisted}
	}
	return r.FindWhere(ctx, "department_id = ?", d.id)
}
