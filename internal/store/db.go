package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection for a session's nexus.db.
type DB struct {
	*sql.DB
	readOnly bool
}

// Open opens (creating if needed) the session database in WAL mode. Only the
// session lock holder should open it for writing.
func Open(path string) (*DB, error) {
	return open(path, url.Values{
		"_journal_mode": {"WAL"},
		"_busy_timeout": {"5000"},
	}, false)
}

// OpenReadOnly opens an existing database without write access, so it can be
// read while another process holds the session lock.
func OpenReadOnly(path string) (*DB, error) {
	return open(path, url.Values{
		"mode":          {"ro"},
		"_busy_timeout": {"5000"},
	}, true)
}

func open(path string, params url.Values, readOnly bool) (*DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{DB: db, readOnly: readOnly}, nil
}

// OpenMigrated opens the database for writing and applies pending migrations.
func OpenMigrated(path string) (*DB, *MigrateResult, error) {
	db, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, result, nil
}
