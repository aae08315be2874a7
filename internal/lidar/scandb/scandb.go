// Package scandb stores scan sessions, revolutions and their points in
// SQLite.
package scandb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/rplidar.report/internal/monitoring"
)

// dsnPragmas are applied by the driver to every pooled connection.
const dsnPragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)"

type ScanDB struct {
	*sql.DB
	path string
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string) (*ScanDB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?%s", path, dsnPragmas))
	if err != nil {
		return nil, err
	}

	sdb := &ScanDB{DB: db, path: path}
	if err := sdb.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	version, _, err := sdb.MigrateVersion()
	if err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("scan database %s at schema version %d", path, version)
	return sdb, nil
}

// Path returns the file the database was opened from.
func (db *ScanDB) Path() string {
	return db.path
}
