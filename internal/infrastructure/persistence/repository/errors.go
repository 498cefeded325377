package repository

import (
	"errors"
	"fmt"

	"github.com/garyjia/invoice-reconciler/internal/application/port"
	"github.com/mattn/go-sqlite3"
)

// wrapWriteError maps uniqueness violations to port.ErrDuplicate
func wrapWriteError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return fmt.Errorf("%s: %w", op, port.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
