package msgdecode

import (
	"fmt"

	"github.com/yanndanielou/yanndan-programmation-sub001/internal/decoder"
)

// FieldSet offers typed helpers on top of the decoded values.
type FieldSet struct {
	msg *decoder.Message
}

// FieldSet returns a FieldSet wrapper for the result's fields.
func (r Result) FieldSet() FieldSet {
	return FieldSet{msg: r.Message}
}

// Map exposes the values keyed by name, for callers that do not care about
// decode order.
func (fs FieldSet) Map() map[string]any {
	if fs.msg == nil {
		return nil
	}
	return fs.msg.Fields().Map()
}

// Raw returns the stored value without conversions.
func (fs FieldSet) Raw(key string) (decoder.Value, bool) {
	if fs.msg == nil {
		return nil, false
	}
	return fs.msg.Get(key)
}

func (fs FieldSet) lookup(key string) (decoder.Value, error) {
	v, ok := fs.Raw(key)
	if !ok {
		if fs.msg != nil && fs.msg.Failed(key) {
			return nil, fmt.Errorf("field %q failed to decode", key)
		}
		return nil, fmt.Errorf("field %q missing", key)
	}
	return v, nil
}

// Int returns an Integer field.
func (fs FieldSet) Int(key string) (uint64, error) {
	v, err := fs.lookup(key)
	if err != nil {
		return 0, err
	}
	n, ok := v.(decoder.Int)
	if !ok {
		return 0, fmt.Errorf("field %q has unsupported type %T", key, v)
	}
	return uint64(n), nil
}

// String returns a character field, or the textual form of any other value.
func (fs FieldSet) String(key string) (string, error) {
	v, err := fs.lookup(key)
	if err != nil {
		return "", err
	}
	if s, ok := v.(decoder.ASCII); ok {
		return string(s), nil
	}
	return fmt.Sprint(v), nil
}

// Bits returns a BitSet field as a string of '0' and '1'.
func (fs FieldSet) Bits(key string) (string, error) {
	v, err := fs.lookup(key)
	if err != nil {
		return "", err
	}
	b, ok := v.(decoder.BitString)
	if !ok {
		return "", fmt.Errorf("field %q has unsupported type %T", key, v)
	}
	return string(b), nil
}

// List returns the aggregate of a repeated field.
func (fs FieldSet) List(key string) (decoder.List, error) {
	v, err := fs.lookup(key)
	if err != nil {
		return nil, err
	}
	l, ok := v.(decoder.List)
	if !ok {
		return nil, fmt.Errorf("field %q has unsupported type %T", key, v)
	}
	return l, nil
}
