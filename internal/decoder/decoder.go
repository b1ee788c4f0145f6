// Package decoder walks a schema over a raw payload and collects every field
// it describes.
//
// Decoding never aborts: a field whose bits are missing or cannot be
// converted is recorded in the failure set and the cursor still advances by
// its declared size, so the fields after it stay aligned. Decode is
// reentrant; the schema is only read and all state lives in the returned
// Message.
//
// Naming: inside a record with dimension N, each repetition i appends "[i]"
// to the names of the fields decoded beneath it, and the plain name is
// written as well, so after the loop it holds the last repetition. A field
// that fails in a later repetition removes the plain name instead of leaving
// an older repetition's value behind. Elements of a field with dimension N
// are also stored as name[k] next to the aggregate stored under name.
package decoder

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yanndanielou/yanndan-programmation-sub001/internal/bits"
	"github.com/yanndanielou/yanndan-programmation-sub001/internal/schema"
)

// Decode decodes raw according to s.
func Decode(s *schema.Schema, raw []byte) *Message {
	w := walker{schema: s, msg: newMessage(s.Number, raw)}
	w.node(s.Root, "")
	return w.msg
}

type walker struct {
	schema *schema.Schema
	msg    *Message
	// marks holds the write counter at the start of each enclosing
	// repetition, innermost last.
	marks []int
}

func (w *walker) node(id schema.NodeID, sfx string) {
	switch n := w.schema.Node(id).(type) {
	case *schema.Record:
		w.record(n, sfx)
	case *schema.Field:
		w.field(n, sfx)
	case *schema.Selector:
		w.selector(n, sfx)
	}
}

func (w *walker) record(r *schema.Record, sfx string) {
	if r.Dimension == 1 {
		for _, c := range r.Children {
			w.node(c, sfx)
		}
		return
	}
	for i := 0; i < r.Dimension; i++ {
		rep := fmt.Sprintf("%s[%d]", sfx, i)
		w.marks = append(w.marks, w.msg.writes)
		for _, c := range r.Children {
			w.node(c, rep)
		}
		w.marks = w.marks[:len(w.marks)-1]
	}
}

func (w *walker) field(f *schema.Field, sfx string) {
	values := make([]Value, 0, f.Dimension)
	complete := true
	for k := 0; k < f.Dimension; k++ {
		pos := w.msg.Cursor
		v, err := w.read(f, pos)
		w.msg.Cursor += f.Bits
		if err != nil {
			complete = false
			w.msg.fail(f.ID, &FieldError{Name: f.ID + sfx + elem(f, k), Offset: pos, Bits: f.Bits, Err: err})
			w.msg.unset(f.ID + elem(f, k))
			continue
		}
		values = append(values, v)
		if f.Dimension > 1 {
			w.put(f.ID, sfx, elem(f, k), v)
		}
	}
	if !complete {
		w.msg.unset(f.ID)
		return
	}
	switch {
	case f.Dimension == 1:
		w.put(f.ID, sfx, "", values[0])
	case f.Kind == schema.AsciiChar:
		var b strings.Builder
		for _, v := range values {
			b.WriteString(string(v.(ASCII)))
		}
		w.put(f.ID, sfx, "", ASCII(strings.TrimSpace(b.String())))
	default:
		w.put(f.ID, sfx, "", List(values))
	}
}

func elem(f *schema.Field, k int) string {
	if f.Dimension == 1 {
		return ""
	}
	return fmt.Sprintf("[%d]", k)
}

// put writes v under base+sfx+tail and, inside a repeated record, under the
// plain base+tail as well.
func (w *walker) put(base, sfx, tail string, v Value) {
	if sfx != "" {
		w.msg.set(base+sfx+tail, v)
	}
	w.msg.set(base+tail, v)
}

func (w *walker) read(f *schema.Field, pos int) (Value, error) {
	s, err := bits.Extract(w.msg.Raw, pos, f.Bits)
	if err != nil {
		return nil, err
	}
	switch f.Kind {
	case schema.BitSet:
		return BitString(s), nil
	case schema.Integer:
		n, err := bits.ParseUint(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		return Int(n), nil
	case schema.AsciiChar:
		n, err := bits.ParseUint(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		if n > utf8.MaxRune || !utf8.ValidRune(rune(n)) {
			return nil, fmt.Errorf("%w: invalid code point %#x", ErrConversion, n)
		}
		return ASCII(string(rune(n))), nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %v", ErrConversion, f.Kind)
	}
}

func (w *walker) selector(sel *schema.Selector, sfx string) {
	v, ok := w.lookup(sel.Discriminant, sfx)
	if !ok {
		w.msg.Errors = append(w.msg.Errors, &SelectorError{Discriminant: sel.Discriminant, Err: ErrDiscriminantMissing})
		return
	}
	key, err := discriminant(v)
	if err != nil {
		w.msg.Errors = append(w.msg.Errors, &SelectorError{Discriminant: sel.Discriminant, Err: err})
		return
	}
	for _, b := range sel.Branches {
		if b.Value == key {
			w.node(b.Record, sfx)
			return
		}
	}
}

// lookup prefers the discriminant decoded in the current repetition, then
// the latest value of the plain name. A same-suffixed name left by another
// repeated record is not part of the current repetition and is ignored.
func (w *walker) lookup(name, sfx string) (Value, bool) {
	if sfx != "" && len(w.marks) > 0 {
		scoped := name + sfx
		if v, ok := w.msg.Get(scoped); ok && w.msg.writtenSince(scoped, w.marks[len(w.marks)-1]) {
			return v, true
		}
	}
	return w.msg.Get(name)
}

func discriminant(v Value) (uint64, error) {
	switch d := v.(type) {
	case Int:
		return uint64(d), nil
	case BitString:
		n, err := bits.ParseUint(string(d))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		return n, nil
	case ASCII:
		if utf8.RuneCountInString(string(d)) != 1 {
			return 0, fmt.Errorf("%w: string discriminant %q", ErrConversion, string(d))
		}
		r, _ := utf8.DecodeRuneInString(string(d))
		return uint64(r), nil
	default:
		return 0, fmt.Errorf("%w: discriminant of type %T", ErrConversion, v)
	}
}
