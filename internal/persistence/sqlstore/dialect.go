package sqlstore

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver registered as "pgx"
	_ "modernc.org/sqlite"             // sqlite driver
)

// Dialect selects the SQL flavour spoken to the database.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect accepts the configured driver name.
func ParseDialect(value string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(value))); d {
	case DialectSQLite, DialectMySQL, DialectPostgres:
		return d, nil
	case "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", value)
	}
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return string(d)
}

// rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inString = !inString
			b.WriteByte(c)
		case c == '?' && !inString:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// serialPrimaryKey is the column definition of an auto-incrementing key.
func (d Dialect) serialPrimaryKey() string {
	switch d {
	case DialectMySQL:
		return "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	case DialectPostgres:
		return "BIGSERIAL PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

// lockRoomQuery takes a write lock on one room row. SQLite has no row locks,
// so a no-op update promotes the transaction to the database write lock.
func (d Dialect) lockRoomQuery() string {
	if d == DialectSQLite {
		return "UPDATE rooms SET id = id WHERE id = ?"
	}
	return "SELECT id FROM rooms WHERE id = ? FOR UPDATE"
}

// auditHeadQuery reads a room's chain head from the row lockRoomQuery locks,
// so the head adds no lock beyond the room's own.
func (d Dialect) auditHeadQuery() string {
	return "SELECT audit_head FROM rooms WHERE id = ?" + d.forUpdate()
}

func (d Dialect) forUpdate() string {
	if d == DialectSQLite {
		return ""
	}
	return " FOR UPDATE"
}
