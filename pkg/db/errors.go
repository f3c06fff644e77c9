package db

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrDuplicateKey indicates a unique or primary key collision
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrForeignKeyViolation indicates a referential integrity failure
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
)

// MySQL server error numbers the executor classifies
const (
	mysqlErrDuplicateEntry   = 1062
	mysqlErrRowIsReferenced  = 1451
	mysqlErrNoReferencedRow  = 1452
	mysqlErrNoReferencedRow2 = 1216
)

// IsDuplicateKey checks if the error is a duplicate key error
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsForeignKeyViolation checks if the error is a referential integrity error
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// classify maps driver errors onto the package sentinels while keeping
// the original error in the chain
func classify(err error) error {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}
	switch mysqlErr.Number {
	case mysqlErrDuplicateEntry:
		return errors.Join(ErrDuplicateKey, err)
	case mysqlErrRowIsReferenced, mysqlErrNoReferencedRow, mysqlErrNoReferencedRow2:
		return errors.Join(ErrForeignKeyViolation, err)
	default:
		return err
	}
}
