// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow the service layer to
// distinguish between different failure scenarios. Missing rows are
// reported with sql.ErrNoRows, as database/sql does.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicate is returned when an insert or update violates a
// unique key (email, ISBN, category name, copy number).
var ErrDuplicate = errors.New("duplicate key")

// mysqlDuplicateEntry is the server error number for ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the sentinels above.
func translate(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return ErrDuplicate
	}
	return err
}
