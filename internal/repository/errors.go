// Package repository implements the negotiation persistence ports on MySQL
// and in memory.  Driver failures are wrapped in
// negotiation.ErrStoreUnavailable so that callers can tell them apart from
// domain errors; the original error stays reachable with errors.As.
package repository

import (
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/marketplace-negotiation/internal/negotiation"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// ErrCorruptRow is returned when a stored row cannot be decoded into a
// domain value, e.g. an amount that no longer parses as money.
var ErrCorruptRow = errors.New("corrupt row")

// unavailable wraps a driver error as negotiation.ErrStoreUnavailable.
func unavailable(op string, err error) error {
    return fmt.Errorf("%s: %w: %w", op, negotiation.ErrStoreUnavailable, err)
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error.
func isDuplicateKey(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
