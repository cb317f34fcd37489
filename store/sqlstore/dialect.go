/*
Package sqlstore holds the SQL shared by the SQLite and PostgreSQL stores.

PURPOSE:
  Every inventory.Store method is one query function over an executor
  (*sql.DB or *sql.Tx). The backends differ only in what Dialect covers:

  Placeholders: "?" for SQLite, "$n" for PostgreSQL (queries are written
                with "?" and rebound)
  Row locks:    " FOR UPDATE" on PostgreSQL; SQLite locks the database
  Constraints:  how a unique violation is recognised

SCHEMA:
  Each backend owns its DDL (store/sqlite migrate(), store/postgres
  migrations/). Both must provide the same tables and the partial unique
  index idx_one_open_session on access_sessions(employee_id) WHERE
  status = 'open'.

TIMESTAMPS:
  Written as fixed-width UTC text (see encodeTime) so SQLite compares
  them lexically; PostgreSQL parses the same text into TIMESTAMPTZ.
*/
package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the per-backend differences.
type Dialect struct {
	Name string

	// Numbered placeholders ($1, $2, ...) instead of "?".
	Numbered bool

	// ForUpdate is appended to Lock* queries.
	ForUpdate string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool
}

// Rebind rewrites "?" placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d Dialect) uniqueViolation(err error) bool {
	return d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}
