package scoreboard

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/sparta/sim"
)

// NoForwarding marks a producer and consumer pair without a forwarding
// path. In text it is written as "-", "none" or "-1".
const NoForwarding = sim.Cycle(1<<64 - 1)

// A LatencyMatrix holds the forwarding latency, in consumer cycles, from
// every producer unit (row) to every consumer unit (column).
type LatencyMatrix struct {
	units []string
	index map[string]int
	lat   [][]sim.Cycle
}

// NewLatencyMatrix creates a matrix from unit names and a square table.
func NewLatencyMatrix(units []string, lat [][]sim.Cycle) (*LatencyMatrix, error) {
	m := &LatencyMatrix{
		units: append([]string(nil), units...),
		index: make(map[string]int, len(units)),
	}

	for i, u := range units {
		if u == "" {
			return nil, badMatrix("empty unit name in column %d", i+1)
		}

		if _, dup := m.index[u]; dup {
			return nil, badMatrix("unit %s appears twice", u)
		}

		m.index[u] = i
	}

	if len(lat) != len(units) {
		return nil, badMatrix("%d rows for %d units", len(lat), len(units))
	}

	for i, row := range lat {
		if len(row) != len(units) {
			return nil, badMatrix("row %s has %d columns, want %d",
				units[i], len(row), len(units))
		}

		m.lat = append(m.lat, append([]sim.Cycle(nil), row...))
	}

	return m, nil
}

func badMatrix(format string, args ...any) error {
	return &ScoreboardError{Kind: BadMatrix, Detail: fmt.Sprintf(format, args...)}
}

// ParseTable reads a matrix whose first row is a header of unit names after
// an empty corner cell, and whose first column names the producer of each
// row. Row and column names must come in the same order.
func ParseTable(table [][]string) (*LatencyMatrix, error) {
	if len(table) == 0 {
		return nil, badMatrix("empty table")
	}

	header := table[0]
	if len(header) < 2 {
		return nil, badMatrix("header has no units")
	}

	units := make([]string, 0, len(header)-1)
	for _, h := range header[1:] {
		units = append(units, strings.TrimSpace(h))
	}

	if len(table)-1 != len(units) {
		return nil, badMatrix("%d rows for %d units", len(table)-1, len(units))
	}

	lat := make([][]sim.Cycle, 0, len(units))

	for i, row := range table[1:] {
		if len(row) != len(header) {
			return nil, badMatrix("row %d has %d cells, want %d",
				i+1, len(row), len(header))
		}

		if name := strings.TrimSpace(row[0]); name != units[i] {
			return nil, badMatrix("row %d is %s, column %d is %s",
				i+1, name, i+1, units[i])
		}

		values := make([]sim.Cycle, 0, len(units))

		for j, cell := range row[1:] {
			v, err := parseLatency(cell)
			if err != nil {
				return nil, badMatrix("%s -> %s: %v", units[i], units[j], err)
			}

			values = append(values, v)
		}

		lat = append(lat, values)
	}

	return NewLatencyMatrix(units, lat)
}

func parseLatency(cell string) (sim.Cycle, error) {
	switch s := strings.TrimSpace(cell); s {
	case "-", "none", "-1":
		return NoForwarding, nil
	default:
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil || sim.Cycle(v) == NoForwarding {
			return 0, fmt.Errorf("bad latency %q", cell)
		}

		return sim.Cycle(v), nil
	}
}

// ParseYAML reads a matrix written as a YAML list of rows.
func ParseYAML(r io.Reader) (*LatencyMatrix, error) {
	var table [][]string
	if err := yaml.NewDecoder(r).Decode(&table); err != nil {
		return nil, errors.Wrap(err, "scoreboard: reading YAML latency matrix")
	}

	return ParseTable(table)
}

// ParseCSV reads a matrix written as comma separated rows.
func ParseCSV(r io.Reader) (*LatencyMatrix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	table, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "scoreboard: reading CSV latency matrix")
	}

	return ParseTable(table)
}

// Units returns the unit names in matrix order.
func (m *LatencyMatrix) Units() []string {
	return m.units
}

// Has tells if the matrix knows the unit.
func (m *LatencyMatrix) Has(unit string) bool {
	_, found := m.index[unit]
	return found
}

// Latency returns the forwarding latency from producer to consumer. The
// bool is false when either unit is unknown or there is no forwarding path.
func (m *LatencyMatrix) Latency(producer, consumer string) (sim.Cycle, bool) {
	p, found := m.index[producer]
	if !found {
		return 0, false
	}

	c, found := m.index[consumer]
	if !found {
		return 0, false
	}

	l := m.lat[p][c]

	return l, l != NoForwarding
}

// Table returns the matrix in the layout that ParseTable reads.
func (m *LatencyMatrix) Table() [][]string {
	table := [][]string{append([]string{""}, m.units...)}

	for i, u := range m.units {
		row := []string{u}

		for _, l := range m.lat[i] {
			if l == NoForwarding {
				row = append(row, "-")
			} else {
				row = append(row, strconv.FormatUint(uint64(l), 10))
			}
		}

		table = append(table, row)
	}

	return table
}
