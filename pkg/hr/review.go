package hr

import (
	"context"
	"fmt"

	"github.com/ammar0144/staffdb/pkg/db"
	"github.com/ammar0144/staffdb/pkg/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Review is a yearly performance review of one employee
type Review struct {
	id         int64
	year       int
	summary    string
	employeeID int64
}

// ID returns the row id, zero until the review is saved
func (r *Review) ID() int64 { return r.id }

// IsPersisted reports whether the review has a row
func (r *Review) IsPersisted() bool { return r.id != 0 }

func (r *Review) Year() int { return r.year }

// SetYear sets the review year; it must be 2000 or later
func (r *Review) SetYear(year int) error {
	if err := checkYear(year); err != nil {
		return err
	}
	r.year = year
	return nil
}

func (r *Review) Summary() string { return r.summary }

// SetSummary sets the summary; it must not be blank
func (r *Review) SetSummary(summary string) error {
	if err := check(entityReview, "summary", summary, notBlank); err != nil {
		return err
	}
	r.summary = summary
	return nil
}

func (r *Review) EmployeeID() int64 { return r.employeeID }

// SetEmployee points the review at a saved employee
func (r *Review) SetEmployee(e *Employee) error {
	if e == nil {
		return repository.NewValidationError(entityReview, "employee_id", nil, validation.ErrRequired)
	}
	if !e.IsPersisted() {
		return repository.NewValidationError(entityReview, "employee_id", e.name, errNotPersisted)
	}
	r.employeeID = e.id
	return nil
}

func (r *Review) String() string {
	return fmt.Sprintf("<Review %d: %d, %s, Employee: %d>", r.id, r.year, r.summary, r.employeeID)
}

func checkYear(year int) error {
	return check(entityReview, "year", year, validation.Required, validation.Min(minReviewYear))
}

func (r *Review) validate() error {
	if err := checkYear(r.year); err != nil {
		return err
	}
	if err := check(entityReview, "summary", r.summary, notBlank); err != nil {
		return err
	}
	return checkReference(entityReview, "employee_id", r.employeeID)
}

func (r *Review) load(rec reviewRecord) {
	r.id = rec.ID
	r.year = rec.Year
	r.summary = rec.Summary
	r.employeeID = rec.EmployeeID
}

// reviewRecord is the reviews table row
type reviewRecord struct {
	ID         int64           `gorm:"primaryKey"`
	Year       int             `gorm:"not null"`
	Summary    string          `gorm:"type:text;not null"`
	EmployeeID int64           `gorm:"not null"`
	Employee   *employeeRecord `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" msgpack:"-"`
}

func (reviewRecord) TableName() string { return "reviews" }

func (rec reviewRecord) GetPrimaryKeyValue() int64 { return rec.ID }

func reviewMapping() repository.Mapping[*Review, reviewRecord] {
	return repository.Mapping[*Review, reviewRecord]{
		Entity: entityReview,
		ToRecord: func(r *Review) reviewRecord {
			return reviewRecord{
				ID:         r.id,
				Year:       r.year,
				Summary:    r.summary,
				EmployeeID: r.employeeID,
			}
		},
		FromRecord: func(rec reviewRecord) (*Review, error) {
			r := &Review{}
			r.load(rec)
			return r, nil
		},
		Refresh: func(r *Review, rec reviewRecord) error {
			r.load(rec)
			return nil
		},
		ID:       func(r *Review) int64 { return r.id },
		SetID:    func(r *Review, id int64) { r.id = id },
		Validate: func(r *Review) error { return r.validate() },
	}
}

// EmployeeChecker reports whether an employee row exists.
// *Employees implements it.
type EmployeeChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Reviews is the repository for the reviews table
type Reviews struct {
	*repository.GenericRepository[*Review, reviewRecord]
	employees EmployeeChecker
}

var _ repository.Repository[*Review] = (*Reviews)(nil)

// NewReviews creates the reviews repository. Employee references are
// checked against employees.
func NewReviews(m *db.Manager, employees EmployeeChecker, opts repository.Options) *Reviews {
	if employees == nil {
		panic("hr: nil employee checker")
	}
	return &Reviews{
		GenericRepository: repository.NewGenericRepository(m, reviewMapping(), opts),
		employees:         employees,
	}
}

// New builds an unsaved review of an existing employee
func (rs *Reviews) New(ctx context.Context, year int, summary string, employeeID int64) (*Review, error) {
	r := &Review{}
	if err := r.SetYear(year); err != nil {
		return nil, err
	}
	if err := r.SetSummary(summary); err != nil {
		return nil, err
	}
	if err := rs.SetEmployeeID(ctx, r, employeeID); err != nil {
		return nil, err
	}
	return r, nil
}

// Create builds and saves a review
func (rs *Reviews) Create(ctx context.Context, year int, summary string, employeeID int64) (*Review, error) {
	r, err := rs.New(ctx, year, summary, employeeID)
	if err != nil {
		return nil, err
	}
	if err := rs.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetEmployeeID points r at the employee with id after checking it exists
func (rs *Reviews) SetEmployeeID(ctx context.Context, r *Review, id int64) error {
	if err := checkReference(entityReview, "employee_id", id); err != nil {
		return err
	}
	ok, err := rs.employees.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check employee %d: %w", id, err)
	}
	if !ok {
		return repository.NewValidationError(entityReview, "employee_id", id, errMissingReference)
	}
	r.employeeID = id
	return nil
}

// ForEmployee lists the reviews of e in id order
func (rs *Reviews) ForEmployee(ctx context.Context, e *Employee) ([]*Review, error) {
	if e == nil || !e.IsPersisted() {
		return nil, &repository.StateError{Entity: entityEmployee, Op: "list reviews of", Err: repository.ErrNotPersisted}
	}
	return rs.FindWhere(ctx, "employee_id = ?", e.id)
}
