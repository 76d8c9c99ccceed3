package datarecording

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/fatih/structs"
)

type column struct {
	name    string
	sqlType string
}

// A schema maps a record struct onto a table. Each exported field is a
// column of the same name.
type schema struct {
	table   string
	typ     reflect.Type
	columns []column
}

func schemaOf(table string, sample any) (*schema, error) {
	if !isIdentifier(table) {
		return nil, fmt.Errorf("%q is not a valid table name", table)
	}

	typ := reflect.TypeOf(sample)
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("table %s: entry of type %v is not a struct",
			table, typ)
	}

	s := &schema{table: table, typ: typ}

	for _, f := range structs.Fields(sample) {
		sqlType, ok := sqlTypeOf(f.Kind())
		if !ok {
			return nil, fmt.Errorf("table %s: field %s of kind %s cannot be recorded",
				table, f.Name(), f.Kind())
		}

		s.columns = append(s.columns, column{name: f.Name(), sqlType: sqlType})
	}

	if len(s.columns) == 0 {
		return nil, fmt.Errorf("table %s: %s has no exported fields", table, typ)
	}

	return s, nil
}

func sqlTypeOf(k reflect.Kind) (string, bool) {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "INTEGER", true
	case reflect.Float32, reflect.Float64:
		return "REAL", true
	case reflect.String:
		return "TEXT", true
	default:
		return "", false
	}
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}

	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}

func (s *schema) holds(entry any) bool {
	return reflect.TypeOf(entry) == s.typ
}

func (s *schema) hasColumn(name string) bool {
	for _, c := range s.columns {
		if c.name == name {
			return true
		}
	}

	return false
}

func (s *schema) columnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.name
	}

	return names
}

func (s *schema) createSQL() string {
	defs := make([]string, len(s.columns))
	for i, c := range s.columns {
		defs[i] = c.name + " " + c.sqlType
	}

	return "CREATE TABLE " + s.table + " (" + strings.Join(defs, ", ") + ")"
}

func (s *schema) insertSQL() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(s.columns)), ", ")

	return "INSERT INTO " + s.table +
		" (" + strings.Join(s.columnNames(), ", ") + ") VALUES (" + marks + ")"
}
