// Package repository defines the MySQL data access layer and the error
// values shared across repositories.  These sentinel values allow higher
// layers such as the lease service to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrDuplicateReservation is returned by Insert when the unique key on
// (tenant_id, portfolio_id) rejects the row.  The lease service treats it
// as the authoritative "someone else won the race" signal.
var ErrDuplicateReservation = errors.New("reservation already exists for portfolio")

// ErrReservationNotFound is returned when no live reservation matches.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrPortfolioNotFound is returned when a portfolio does not exist in the
// requested tenant.
var ErrPortfolioNotFound = errors.New("portfolio not found")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate-key error.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	// Proxies sometimes flatten the driver error into text.
	return strings.Contains(err.Error(), "1062")
}
