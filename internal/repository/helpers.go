package repository

import (
	"github.com/lib/pq"
)

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (error code 23505).
func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// pqStringArray adapts a []string for use as an ANY($n) parameter.
func pqStringArray(v []string) interface{} {
	return pq.Array(v)
}
