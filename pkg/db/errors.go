package db

import (
	"slices"
	"strings"

	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
)

const uniqueViolationCode = "23505"

// sqliteUniqueMarker prefixes SQLite unique failures, which carry no code and
// name the violated columns as "table.column".
const sqliteUniqueMarker = "UNIQUE constraint failed"

// IsUniqueViolation reports whether err is a unique constraint violation.
// With names the violation must match one of them: Postgres reports the index
// name and SQLite the "table.column" pair, so callers pass both forms.
func IsUniqueViolation(err error, names ...string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.Postgres(err); ok {
		return pg.Code == uniqueViolationCode && anyName(names, func(name string) bool { return name == pg.Constraint })
	}
	msg := err.Error()
	if !strings.Contains(msg, sqliteUniqueMarker) {
		return false
	}
	return anyName(names, func(name string) bool { return strings.Contains(msg, name) })
}

func anyName(names []string, match func(string) bool) bool {
	if len(names) == 0 {
		return true
	}
	return slices.ContainsFunc(names, func(name string) bool {
		return name == "" || match(name)
	})
}
