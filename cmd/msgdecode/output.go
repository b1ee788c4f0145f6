package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/yanndanielou/yanndan-programmation-sub001/internal/schema"
	"github.com/yanndanielou/yanndan-programmation-sub001/pkg/msgdecode"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type lineJSON struct {
	Line   int               `json:"line"`
	Kind   string            `json:"kind,omitempty"`
	ID     string            `json:"id,omitempty"`
	Error  string            `json:"error,omitempty"`
	Result *msgdecode.Result `json:"result,omitempty"`
}

// writeJSONLines writes one object per decoded SQLARCH line and per line
// that failed. Skipped record kinds are left out.
func writeJSONLines(w io.Writer, lines []msgdecode.LineResult) error {
	enc := json.NewEncoder(w)
	for _, l := range lines {
		if l.Result == nil && l.Err == nil {
			continue
		}
		out := lineJSON{Line: l.Line, Kind: string(l.Kind), ID: l.ID, Result: l.Result}
		if l.Err != nil {
			out.Error = l.Err.Error()
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

var csvHeader = []string{"line", "id", "message", "name", "outcome", "report", "timestamp", "failures", "actions", "fields", "error"}

func writeCSV(w io.Writer, lines []msgdecode.LineResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, l := range lines {
		if l.Result == nil && l.Err == nil {
			continue
		}
		row, err := csvRow(l)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(l msgdecode.LineResult) ([]string, error) {
	row := make([]string, len(csvHeader))
	if l.Line > 0 {
		row[0] = strconv.Itoa(l.Line)
	}
	row[1] = l.ID
	if l.Err != nil {
		row[10] = l.Err.Error()
		return row, nil
	}
	r := l.Result
	row[2] = strconv.Itoa(r.Number)
	row[3] = r.Name
	row[4] = r.Outcome.String()
	row[5] = r.Report()
	if r.Timestamp != nil {
		row[6] = r.Timestamp.Format(msgdecode.TimestampLayout)
	}
	if r.Message != nil {
		row[7] = strings.Join(r.Message.Failures, ";")
		fields, err := json.Marshal(r.Message.Fields())
		if err != nil {
			return nil, err
		}
		row[9] = string(fields)
	}
	if r.Actions != nil {
		row[8] = strings.Join(r.Actions.Set, ";")
	}
	return row, nil
}

func printSchema(w io.Writer, s *schema.Schema) error {
	if _, err := fmt.Fprintf(w, "message %d %s\n", s.Number, s.Name); err != nil {
		return err
	}
	for _, f := range s.Fields() {
		line := fmt.Sprintf("  %-40s %3d bits  %-6s", f.Path, f.Field.Bits, f.Field.Kind)
		if f.Field.Dimension > 1 {
			line += fmt.Sprintf("  x%d", f.Field.Dimension)
		}
		if f.Repeat > 1 {
			line += fmt.Sprintf("  repeated %d", f.Repeat)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	total, fixed := s.TotalBits()
	if fixed {
		_, err := fmt.Fprintf(w, "total %d bits (%d bytes)\n", total, (total+7)/8)
		return err
	}
	_, err := fmt.Fprintln(w, "variable length (selector)")
	return err
}
