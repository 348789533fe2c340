package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// ErrForeignKeyViolation is returned when a statement would leave a dangling foreign key
var ErrForeignKeyViolation = errors.New("foreign key constraint violated")

// MySQL server error numbers for foreign key failures
const (
	mysqlErrRowIsReferenced = 1451
	mysqlErrNoReferencedRow = 1452
)

// IsForeignKeyViolation reports whether err was caused by a foreign key constraint
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrForeignKeyViolation) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrRowIsReferenced || myErr.Number == mysqlErrNoReferencedRow
	}

	// Dialects without an error translator still carry the message.
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// TranslateError maps driver specific failures onto the package sentinels
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if IsForeignKeyViolation(err) && !errors.Is(err, ErrForeignKeyViolation) {
		return errors.Join(ErrForeignKeyViolation, err)
	}
	return err
}
