package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// A Condition keeps the rows whose column compares to Value with Op.
type Condition struct {
	Column string
	Op     string
	Value  any
}

var validOps = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"LIKE": true,
}

// Eq keeps the rows where column equals v.
func Eq(column string, v any) Condition { return Condition{column, "=", v} }

// Ge keeps the rows where column is at least v.
func Ge(column string, v any) Condition { return Condition{column, ">=", v} }

// Lt keeps the rows where column is below v.
func Lt(column string, v any) Condition { return Condition{column, "<", v} }

// Like keeps the rows where column matches an SQL LIKE pattern.
func Like(column, pattern string) Condition {
	return Condition{column, "LIKE", pattern}
}

// A Query selects rows of a table. Rows come back in insertion order unless
// OrderBy names columns; a column prefixed with "-" sorts descending. A zero
// Limit returns every row.
type Query struct {
	Where   []Condition
	OrderBy []string
	Limit   int
	Offset  int
}

// A Reader reads the tables that a DataRecorder wrote.
type Reader struct {
	db *sql.DB
}

// OpenReader opens a database file with the cgo driver.
func OpenReader(file string) (*Reader, error) {
	return OpenReaderWithDriver(file, DriverCgo)
}

// OpenReaderWithDriver opens a database file with the given driver.
func OpenReaderWithDriver(file, driver string) (*Reader, error) {
	db, err := sql.Open(driver, file)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", file)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "opening %s", file)
	}

	return &Reader{db: db}, nil
}

// NewReaderWithDB creates a Reader on an open database.
func NewReaderWithDB(db *sql.DB) *Reader {
	return &Reader{db: db}
}

// Tables returns the names of the tables in the database, in name order.
func (r *Reader) Tables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "listing tables")
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}

		names = append(names, name)
	}

	return names, rows.Err()
}

// Close closes the database.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Select reads rows of a table into records of type T, whose exported fields
// name the columns to read. It also returns how many rows match before Limit
// and Offset apply.
func Select[T any](ctx context.Context, r *Reader, table string, q Query) (
	[]T, int, error,
) {
	var zero T

	s, err := schemaOf(table, zero)
	if err != nil {
		return nil, 0, err
	}

	where, args, err := s.whereClause(q.Where)
	if err != nil {
		return nil, 0, err
	}

	order, err := s.orderClause(q.OrderBy)
	if err != nil {
		return nil, 0, err
	}

	var total int

	err = r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+table+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "counting rows of %s", table)
	}

	stmt := "SELECT " + strings.Join(s.columnNames(), ", ") +
		" FROM " + table + where + order

	if q.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d OFFSET %d", q.Limit, q.Offset)
	} else if q.Offset > 0 {
		stmt += fmt.Sprintf(" LIMIT -1 OFFSET %d", q.Offset)
	}

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s", table)
	}
	defer rows.Close()

	records, err := scanRecords[T](rows, s)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s", table)
	}

	return records, total, nil
}

func scanRecords[T any](rows *sql.Rows, s *schema) ([]T, error) {
	var records []T

	targets := make([]any, len(s.columns))

	for rows.Next() {
		var rec T

		v := reflect.ValueOf(&rec).Elem()
		for i, c := range s.columns {
			targets[i] = v.FieldByName(c.name).Addr().Interface()
		}

		if err := rows.Scan(targets...); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}

func (s *schema) whereClause(conds []Condition) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	terms := make([]string, len(conds))
	args := make([]any, len(conds))

	for i, c := range conds {
		if !s.hasColumn(c.Column) {
			return "", nil, fmt.Errorf("table %s has no column %q", s.table, c.Column)
		}

		op := strings.ToUpper(c.Op)
		if !validOps[op] {
			return "", nil, fmt.Errorf("unsupported operator %q", c.Op)
		}

		terms[i] = c.Column + " " + op + " ?"
		args[i] = c.Value
	}

	return " WHERE " + strings.Join(terms, " AND "), args, nil
}

func (s *schema) orderClause(columns []string) (string, error) {
	if len(columns) == 0 {
		return " ORDER BY rowid", nil
	}

	terms := make([]string, len(columns))

	for i, c := range columns {
		name, dir := c, " ASC"
		if strings.HasPrefix(c, "-") {
			name, dir = c[1:], " DESC"
		}

		if !s.hasColumn(name) {
			return "", fmt.Errorf("table %s has no column %q", s.table, name)
		}

		terms[i] = name + dir
	}

	return " ORDER BY " + strings.Join(terms, ", "), nil
}
