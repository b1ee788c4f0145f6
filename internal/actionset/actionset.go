// Package actionset names the bits of the action set field.
package actionset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Entry associates a bit position of the action set with its identifier.
type Entry struct {
	Bit  int
	Name string
}

// Table is the ordered list of known action bits.
type Table struct {
	entries []Entry
	known   map[int]bool
}

// NewTable builds a table from entries kept in the given order.
func NewTable(entries []Entry) *Table {
	t := &Table{entries: append([]Entry(nil), entries...), known: make(map[int]bool, len(entries))}
	for _, e := range entries {
		t.known[e.Bit] = true
	}
	return t
}

// Entries returns the table rows in file order.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// LoadFile reads a table from a CSV file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Load reads a CSV table whose header names a "bit" and a "name" column.
// Without such a header the first two columns are used.
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read action table: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("action table is empty")
	}
	bitCol, nameCol := 0, 1
	if b, n, ok := headerColumns(rows[0]); ok {
		bitCol, nameCol = b, n
		rows = rows[1:]
	}
	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		if len(row) <= bitCol || len(row) <= nameCol {
			return nil, fmt.Errorf("row %d: expected at least %d columns", i+1, max(bitCol, nameCol)+1)
		}
		bit, err := strconv.Atoi(strings.TrimSpace(row[bitCol]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bit index: %w", i+1, err)
		}
		if bit < 0 {
			return nil, fmt.Errorf("row %d: negative bit index %d", i+1, bit)
		}
		entries = append(entries, Entry{Bit: bit, Name: strings.TrimSpace(row[nameCol])})
	}
	return NewTable(entries), nil
}

func headerColumns(row []string) (int, int, bool) {
	bitCol, nameCol := -1, -1
	for i, h := range row {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "bit", "index", "bit_index":
			bitCol = i
		case "name", "id", "identifier":
			nameCol = i
		}
	}
	return bitCol, nameCol, bitCol >= 0 && nameCol >= 0
}

// Flag is one table entry with the value read from the bitfield.
type Flag struct {
	Bit  int    `json:"bit"`
	Name string `json:"name"`
	Set  bool   `json:"set"`
}

// Result is the outcome of Decode.
type Result struct {
	All []Flag `json:"all"`
	// Set lists the identifiers of the set bits in table order.
	Set []string `json:"set"`
	// Undecoded lists set bits that have no table entry.
	Undecoded []int `json:"undecoded,omitempty"`
	// OutOfRange lists table entries that point past the bitfield.
	OutOfRange []int `json:"out_of_range,omitempty"`
}

// Decode reads every table entry from bitfield, a string of '0' and '1'
// characters indexed from its first character.
func (t *Table) Decode(bitfield string) Result {
	res := Result{All: make([]Flag, 0, len(t.entries)), Set: []string{}}
	for _, e := range t.entries {
		if e.Bit >= len(bitfield) {
			res.OutOfRange = append(res.OutOfRange, e.Bit)
			continue
		}
		set := bitfield[e.Bit] == '1'
		res.All = append(res.All, Flag{Bit: e.Bit, Name: e.Name, Set: set})
		if set {
			res.Set = append(res.Set, e.Name)
		}
	}
	for i := 0; i < len(bitfield); i++ {
		if bitfield[i] == '1' && !t.known[i] {
			res.Undecoded = append(res.Undecoded, i)
		}
	}
	return res
}
