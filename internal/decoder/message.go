package decoder

import (
	"go.uber.org/multierr"
)

// Message is the result of one Decode call.
type Message struct {
	Number int
	Raw    []byte
	// Cursor is the bit index reached when decoding finished.
	Cursor int
	// Failures lists, once each and in order, the plain names of fields that
	// could not be decoded.
	Failures []string
	// Errors holds a *FieldError per failed field element and a
	// *SelectorError per skipped selector.
	Errors []error

	entries Fields
	index   map[string]int
	failed  map[string]bool
	// seq holds, per name, the write counter value of its latest write.
	seq    map[string]int
	writes int
}

func newMessage(number int, raw []byte) *Message {
	return &Message{
		Number: number,
		Raw:    raw,
		index:  make(map[string]int),
		failed: make(map[string]bool),
		seq:    make(map[string]int),
	}
}

// set stores v under name. An overwritten name keeps its original position.
func (m *Message) set(name string, v Value) {
	m.writes++
	m.seq[name] = m.writes
	if i, ok := m.index[name]; ok {
		m.entries[i].Value = v
		return
	}
	m.index[name] = len(m.entries)
	m.entries = append(m.entries, Entry{Name: name, Value: v})
}

// unset drops name, so that a plain name never outlives a later failed
// decode of the same field.
func (m *Message) unset(name string) {
	i, ok := m.index[name]
	if !ok {
		return
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	delete(m.index, name)
	delete(m.seq, name)
	for j := i; j < len(m.entries); j++ {
		m.index[m.entries[j].Name] = j
	}
}

// writtenSince reports whether name was written after the write counter
// reached mark.
func (m *Message) writtenSince(name string, mark int) bool {
	return m.seq[name] > mark
}

func (m *Message) fail(name string, err error) {
	m.Errors = append(m.Errors, err)
	if m.failed[name] {
		return
	}
	m.failed[name] = true
	m.Failures = append(m.Failures, name)
}

// Get returns the value decoded under name.
func (m *Message) Get(name string) (Value, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.entries[i].Value, true
}

// Uint returns an integer field.
func (m *Message) Uint(name string) (uint64, bool) {
	v, ok := m.Get(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(Int)
	return uint64(n), ok
}

// Failed reports whether name is in the failure set.
func (m *Message) Failed(name string) bool {
	return m.failed[name]
}

// Fields returns a copy of the decoded values in decode order.
func (m *Message) Fields() Fields {
	out := make(Fields, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len returns the number of decoded names.
func (m *Message) Len() int {
	return len(m.entries)
}

// Complete reports whether every field and selector decoded.
func (m *Message) Complete() bool {
	return len(m.Failures) == 0 && len(m.Errors) == 0
}

// Err combines every recorded error, or returns nil.
func (m *Message) Err() error {
	return multierr.Combine(m.Errors...)
}
