package decoder

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Value is one of Int, BitString, ASCII or List.
type Value interface {
	decodedValue()
}

// Int is an unsigned integer field.
type Int uint64

// BitString keeps the raw bits of a bitset field, most significant bit first.
type BitString string

// ASCII is a character field, or the trimmed concatenation of a repeated one.
type ASCII string

// List holds the elements of a repeated non-character field in order.
type List []Value

func (Int) decodedValue()       {}
func (BitString) decodedValue() {}
func (ASCII) decodedValue()     {}
func (List) decodedValue()      {}

func (v Int) String() string       { return fmt.Sprintf("%d", uint64(v)) }
func (v BitString) String() string { return string(v) }
func (v ASCII) String() string     { return string(v) }

// Entry is a named decoded value.
type Entry struct {
	Name  string
	Value Value
}

// Fields is an ordered list of decoded values. It marshals to a JSON object
// that keeps the decode order.
type Fields []Entry

// MarshalJSON implements json.Marshaler.
func (f Fields) MarshalJSON() ([]byte, error) {
	cfg := jsoniter.ConfigCompatibleWithStandardLibrary
	stream := cfg.BorrowStream(nil)
	defer cfg.ReturnStream(stream)
	stream.WriteObjectStart()
	for i, e := range f {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(e.Name)
		stream.WriteVal(e.Value)
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// Map flattens the fields into a map for callers that do not need ordering.
func (f Fields) Map() map[string]any {
	out := make(map[string]any, len(f))
	for _, e := range f {
		out[e.Name] = e.Value
	}
	return out
}
