package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// mysqlDupEntry is the MySQL error number for a unique-key violation.
const mysqlDupEntry = 1062

// IsDuplicateEntry reports whether an error is a MySQL unique-key
// violation.  The idempotent verification path relies on this to detect a
// concurrent insert for the same checkout session and fall back to
// re-reading the existing row.
func IsDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDupEntry
}
