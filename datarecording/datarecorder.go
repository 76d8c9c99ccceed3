// Package datarecording stores simulation records, such as traced events,
// in SQLite tables, and reads them back.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/structs"
	"github.com/pkg/errors"

	// Pure Go SQLite driver, registered as "sqlite".
	_ "github.com/glebarez/go-sqlite"
	// Cgo SQLite driver, registered as "sqlite3".
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// Driver names that New and NewWithDriver accept.
const (
	DriverCgo    = "sqlite3"
	DriverPureGo = "sqlite"
)

// FileExtension is appended to the names given to New and NewWithDriver.
const FileExtension = ".sqlite3"

const defaultBatchSize = 100000

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table with one column per exported field of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the created tables in name order.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// New creates a DataRecorder that writes to name.sqlite3 with the cgo
// driver. An empty name picks a unique one.
func New(name string) DataRecorder {
	return NewWithDriver(name, DriverCgo)
}

// NewWithDriver creates a DataRecorder on a new database file, opened with
// the given database/sql driver. It panics if the file already exists.
func NewWithDriver(name, driver string) DataRecorder {
	if name == "" {
		name = "sparta_record_" + xid.New().String()
	}

	file := name + FileExtension

	if _, err := os.Stat(file); err == nil {
		panic(fmt.Errorf("recording database %s already exists", file))
	}

	db, err := sql.Open(driver, file)
	if err != nil {
		panic(errors.Wrapf(err, "opening %s", file))
	}

	fmt.Fprintf(os.Stderr, "Recording into %s\n", file)

	return newRecorder(db)
}

// NewWithDB creates a DataRecorder on an open database. Close closes db.
func NewWithDB(db *sql.DB) DataRecorder {
	return newRecorder(db)
}

func newRecorder(db *sql.DB) *sqliteRecorder {
	r := &sqliteRecorder{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*recordTable),
	}

	atexit.Register(r.Flush)

	return r
}

// A recordTable holds the rows that wait for the next flush.
type recordTable struct {
	schema *schema
	rows   [][]any
}

type sqliteRecorder struct {
	db        *sql.DB
	tables    map[string]*recordTable
	batchSize int
	pending   int
	closed    bool
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	s, err := schemaOf(tableName, sampleEntry)
	if err != nil {
		panic(err)
	}

	if _, err := r.db.Exec(s.createSQL()); err != nil {
		panic(errors.Wrapf(err, "creating table %s", tableName))
	}

	r.tables[tableName] = &recordTable{schema: s}
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	t, exists := r.tables[tableName]
	if !exists {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if !t.schema.holds(entry) {
		panic(fmt.Sprintf("table %s holds %s, got %T",
			tableName, t.schema.typ, entry))
	}

	t.rows = append(t.rows, structs.Values(entry))

	r.pending++
	if r.pending >= r.batchSize {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *sqliteRecorder) Flush() {
	if r.pending == 0 || r.closed {
		return
	}

	if err := r.writePending(); err != nil {
		panic(err)
	}
}

// writePending inserts every buffered row in one transaction. The buffers
// are only dropped once the transaction commits.
func (r *sqliteRecorder) writePending() error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting a recording transaction")
	}

	for _, name := range r.ListTables() {
		t := r.tables[name]
		if len(t.rows) == 0 {
			continue
		}

		if err := insertRows(tx, t); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing recorded rows")
	}

	for _, t := range r.tables {
		t.rows = nil
	}

	r.pending = 0

	return nil
}

func insertRows(tx *sql.Tx, t *recordTable) error {
	stmt, err := tx.Prepare(t.schema.insertSQL())
	if err != nil {
		return errors.Wrapf(err, "preparing inserts into %s", t.schema.table)
	}
	defer stmt.Close()

	for _, row := range t.rows {
		if _, err := stmt.Exec(row...); err != nil {
			return errors.Wrapf(err, "inserting into %s", t.schema.table)
		}
	}

	return nil
}

func (r *sqliteRecorder) Close() error {
	if r.closed {
		return nil
	}

	r.Flush()
	r.closed = true

	return r.db.Close()
}
