package param

import (
	"fmt"
	"strconv"
	"strings"
)

// Value lists the types a parameter can hold.
type Value interface {
	bool | int64 | uint64 | float64 | string |
		[]string | []int64 | []uint64 | [][]string
}

// Kind is the type tag of a parameter.
type Kind int

// The parameter kinds. The table of codecs below has one entry per kind.
const (
	KindBool Kind = iota
	KindInt64
	KindUint64
	KindFloat64
	KindString
	KindStringList
	KindInt64List
	KindUint64List
	KindStringTable
)

type codec struct {
	name   string
	parse  func(string) (any, error)
	format func(any) string
}

var codecs = [...]codec{
	KindBool: {
		name:   "bool",
		parse:  func(s string) (any, error) { return strconv.ParseBool(s) },
		format: func(v any) string { return strconv.FormatBool(v.(bool)) },
	},
	KindInt64: {
		name:   "int64",
		parse:  func(s string) (any, error) { return strconv.ParseInt(s, 0, 64) },
		format: func(v any) string { return strconv.FormatInt(v.(int64), 10) },
	},
	KindUint64: {
		name:   "uint64",
		parse:  func(s string) (any, error) { return strconv.ParseUint(s, 0, 64) },
		format: func(v any) string { return strconv.FormatUint(v.(uint64), 10) },
	},
	KindFloat64: {
		name:  "float64",
		parse: func(s string) (any, error) { return strconv.ParseFloat(s, 64) },
		format: func(v any) string {
			return strconv.FormatFloat(v.(float64), 'g', -1, 64)
		},
	},
	KindString: {
		name:   "string",
		parse:  func(s string) (any, error) { return unquote(s), nil },
		format: func(v any) string { return v.(string) },
	},
	KindStringList: {
		name: "[]string",
		parse: func(s string) (any, error) {
			return parseList(s, func(e string) (string, error) {
				return unquote(e), nil
			})
		},
		format: func(v any) string { return formatList(v.([]string), identity) },
	},
	KindInt64List: {
		name: "[]int64",
		parse: func(s string) (any, error) {
			return parseList(s, func(e string) (int64, error) {
				return strconv.ParseInt(e, 0, 64)
			})
		},
		format: func(v any) string {
			return formatList(v.([]int64), func(i int64) string {
				return strconv.FormatInt(i, 10)
			})
		},
	},
	KindUint64List: {
		name: "[]uint64",
		parse: func(s string) (any, error) {
			return parseList(s, func(e string) (uint64, error) {
				return strconv.ParseUint(e, 0, 64)
			})
		},
		format: func(v any) string {
			return formatList(v.([]uint64), func(i uint64) string {
				return strconv.FormatUint(i, 10)
			})
		},
	},
	KindStringTable: {
		name:   "[][]string",
		parse:  func(s string) (any, error) { return parseTable(s) },
		format: func(v any) string { return formatTable(v.([][]string)) },
	},
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(codecs) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return codecs[k].name
}

// KindOf returns the kind of a value type.
func KindOf[T Value]() Kind {
	var zero T

	switch any(zero).(type) {
	case bool:
		return KindBool
	case int64:
		return KindInt64
	case uint64:
		return KindUint64
	case float64:
		return KindFloat64
	case string:
		return KindString
	case []string:
		return KindStringList
	case []int64:
		return KindInt64List
	case []uint64:
		return KindUint64List
	default:
		return KindStringTable
	}
}

// Parse converts a string to a value of the given type.
func Parse[T Value](s string) (T, error) {
	v, err := codecs[KindOf[T]()].parse(strings.TrimSpace(s))
	if err != nil {
		var zero T
		return zero, err
	}

	return v.(T), nil
}

// Format converts a value to its string form. Parse accepts the result.
func Format[T Value](v T) string {
	return codecs[KindOf[T]()].format(v)
}

func identity(s string) string { return s }

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}

	return s
}

func stripBrackets(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return "", fmt.Errorf("unbalanced brackets in %q", s)
		}

		s = s[1 : len(s)-1]
	}

	return strings.TrimSpace(s), nil
}

func parseList[E any](s string, parseElem func(string) (E, error)) ([]E, error) {
	inner, err := stripBrackets(s)
	if err != nil {
		return nil, err
	}

	list := []E{}
	if inner == "" {
		return list, nil
	}

	for _, field := range strings.Split(inner, ",") {
		e, err := parseElem(strings.TrimSpace(field))
		if err != nil {
			return nil, err
		}

		list = append(list, e)
	}

	return list, nil
}

func formatList[E any](list []E, formatElem func(E) string) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = formatElem(e)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

func parseTable(s string) ([][]string, error) {
	inner, err := stripBrackets(s)
	if err != nil {
		return nil, err
	}

	table := [][]string{}

	for inner != "" {
		if inner[0] != '[' {
			return nil, fmt.Errorf("expected a row in %q", inner)
		}

		end := strings.IndexByte(inner, ']')
		if end < 0 {
			return nil, fmt.Errorf("unbalanced brackets in %q", inner)
		}

		row, err := parseList(inner[:end+1], func(e string) (string, error) {
			return unquote(e), nil
		})
		if err != nil {
			return nil, err
		}

		table = append(table, row)

		inner = strings.TrimSpace(inner[end+1:])
		inner = strings.TrimSpace(strings.TrimPrefix(inner, ","))
	}

	return table, nil
}

func formatTable(table [][]string) string {
	return formatList(table, func(row []string) string {
		return formatList(row, identity)
	})
}
