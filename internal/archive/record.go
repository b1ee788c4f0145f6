// Package archive reads the line-oriented telemetry archive: one JSON record
// per line, whose first tag names the record kind and the nested object
// carrying its data.
package archive

import (
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/yanndanielou/yanndan-programmation-sub001/internal/options"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Kind classifies an archive record.
type Kind string

const (
	KindVersions Kind = "VERSIONS"
	KindSQLArch  Kind = "SQLARCH"
	KindSPMQ     Kind = "SPMQ"
	KindAlarm    Kind = "ALARM"
)

var (
	ErrNoTags      = errors.New("record has no tags")
	ErrUnknownKind = errors.New("unknown record kind")
)

// Record is one parsed archive line.
type Record struct {
	Line int
	Kind Kind
	Tags []string
	// Body is the raw kind-named object.
	Body jsoniter.RawMessage
}

// ParseLine classifies one archive line.
func ParseLine(line []byte) (Record, error) {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Record{}, fmt.Errorf("parse record: %w", err)
	}
	var rec Record
	if tags, ok := raw["tags"]; ok {
		if err := json.Unmarshal(tags, &rec.Tags); err != nil {
			return Record{}, fmt.Errorf("parse tags: %w", err)
		}
	}
	if len(rec.Tags) == 0 {
		return rec, ErrNoTags
	}
	rec.Kind = Kind(rec.Tags[0])
	switch rec.Kind {
	case KindVersions, KindSQLArch, KindSPMQ, KindAlarm:
	default:
		return rec, fmt.Errorf("%w %q", ErrUnknownKind, rec.Tags[0])
	}
	body, ok := raw[string(rec.Kind)]
	if !ok {
		return rec, fmt.Errorf("%s record without %s object", rec.Kind, rec.Kind)
	}
	rec.Body = body
	return rec, nil
}

// Decode unmarshals the kind-named object into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// SQLArch is the body of a SQLARCH record.
type SQLArch struct {
	ID    string `json:"id"`
	NewSt string `json:"newSt"`
}

// SQLArch returns the SQLARCH body.
func (r Record) SQLArch() (SQLArch, error) {
	if r.Kind != KindSQLArch {
		return SQLArch{}, fmt.Errorf("record is %s, not %s", r.Kind, KindSQLArch)
	}
	var s SQLArch
	if err := r.Decode(&s); err != nil {
		return SQLArch{}, fmt.Errorf("parse %s body: %w", KindSQLArch, err)
	}
	if s.ID == "" {
		return SQLArch{}, fmt.Errorf("%s body without id", KindSQLArch)
	}
	return s, nil
}

// Payload decodes the hex byte string held in newSt.
func (s SQLArch) Payload() ([]byte, error) {
	return options.ParsePayloadHex(s.NewSt)
}

// Numberer maps a message identifier to its message number.
type Numberer interface {
	Number(id string) (int, bool)
}

// IDMap is a static identifier to message number table.
type IDMap map[string]int

// Number implements Numberer.
func (m IDMap) Number(id string) (int, bool) {
	n, ok := m[id]
	return n, ok
}

// LoadIDMap reads a YAML mapping of identifier to message number.
func LoadIDMap(path string) (IDMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := IDMap{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
