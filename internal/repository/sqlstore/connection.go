// Package sqlstore implements the member registry on database/sql for
// both file-backed SQLite and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/dtroode/memberpass/database"
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

const sqliteBusyTimeoutMS = 5000

type Connection struct {
	*sql.DB
	driver  string
	dialect string
	lock    *FileLock
}

// NewConnection opens the registry database, applies migrations, and
// binds the advisory lock that serializes writers.
func NewConnection(ctx context.Context, driver, dsn, lockPath string) (*Connection, error) {
	var dialect string
	switch driver {
	case DriverSQLite:
		dialect = "sqlite3"
		if path := sqlitePath(dsn); path != "" && path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = sqliteDSN(dsn)
	case DriverPgx:
		dialect = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// one connection keeps in-memory databases consistent
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Connection{
		DB:      db,
		driver:  driver,
		dialect: dialect,
		lock:    NewFileLock(lockPath),
	}, nil
}

// sqliteDSN adds the busy timeout pragma to dsn so every connection the
// pool opens applies it. An explicit busy_timeout in dsn is kept.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(" + strconv.Itoa(sqliteBusyTimeoutMS) + ")"
}

// Driver returns the database/sql driver name in use.
func (c *Connection) Driver() string {
	return c.driver
}

// SchemaVersion returns the applied migration version.
func (c *Connection) SchemaVersion(ctx context.Context) (int64, error) {
	return database.Version(ctx, c.DB, c.dialect)
}

func (c *Connection) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// rebind rewrites ? placeholders into $N for PostgreSQL.
func (c *Connection) rebind(query string) string {
	if c.driver != DriverPgx {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlitePath extracts the filesystem path from a sqlite DSN.
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}
