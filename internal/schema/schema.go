// Package schema holds the in-memory layout description of one message type.
//
// A Schema is a tree of Record, Field and Selector nodes stored in an arena
// and addressed by NodeID, so that a record definition reused at several
// sites (or repeated through its dimension) is only materialised once.
// Schemas are immutable once loaded and may be shared between goroutines.
package schema

import (
	"fmt"
	"strings"
)

// Kind selects how the bits of a Field are interpreted.
type Kind int

const (
	Integer Kind = iota + 1
	BitSet
	AsciiChar
)

func (k Kind) String() string {
	switch k {
	case Integer:
		return "integer"
	case BitSet:
		return "bitset"
	case AsciiChar:
		return "ascii"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps the textual kind used in schema files to a Kind. An empty
// string means Integer.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "integer", "int", "uint":
		return Integer, nil
	case "bitset", "bits":
		return BitSet, nil
	case "ascii", "asciichar", "char":
		return AsciiChar, nil
	default:
		return 0, fmt.Errorf("unknown field kind %q", s)
	}
}

// NodeID indexes a node inside its Schema's arena.
type NodeID int

// Node is one of *Record, *Field or *Selector.
type Node interface {
	schemaNode()
}

// Record groups child nodes. The children are traversed Dimension times.
type Record struct {
	ID        string
	Dimension int
	Children  []NodeID
}

// Field is a leaf value of Bits bits, repeated Dimension times.
type Field struct {
	ID        string
	Dimension int
	Bits      int
	Kind      Kind
}

// Branch is one arm of a Selector.
type Branch struct {
	Value  uint64
	Record NodeID
}

// Selector decodes the first branch whose Value equals the already decoded
// Discriminant field.
type Selector struct {
	Discriminant string
	Branches     []Branch
}

func (*Record) schemaNode()   {}
func (*Field) schemaNode()    {}
func (*Selector) schemaNode() {}

// Schema describes the layout of one message number.
type Schema struct {
	Number int
	Name   string
	Root   NodeID
	nodes  []Node
}

// Node returns the node stored at id.
func (s *Schema) Node(id NodeID) Node {
	return s.nodes[id]
}

// RootRecord returns the top-level record.
func (s *Schema) RootRecord() *Record {
	return s.nodes[s.Root].(*Record)
}

// Len returns the number of nodes in the arena.
func (s *Schema) Len() int {
	return len(s.nodes)
}

func (s *Schema) add(n Node) NodeID {
	s.nodes = append(s.nodes, n)
	return NodeID(len(s.nodes) - 1)
}

// FieldInfo describes a field reached by a static walk of the schema.
type FieldInfo struct {
	Path   string
	Field  *Field
	Repeat int
}

// Fields lists every field in declaration order, descending into records and
// into every selector branch. Repeat is the product of the enclosing record
// dimensions.
func (s *Schema) Fields() []FieldInfo {
	var out []FieldInfo
	var walk func(id NodeID, prefix string, repeat int)
	walk = func(id NodeID, prefix string, repeat int) {
		switch n := s.nodes[id].(type) {
		case *Record:
			for _, c := range n.Children {
				walk(c, prefix, repeat*n.Dimension)
			}
		case *Field:
			out = append(out, FieldInfo{Path: prefix + n.ID, Field: n, Repeat: repeat})
		case *Selector:
			for _, b := range n.Branches {
				walk(b.Record, fmt.Sprintf("%s%s=%d/", prefix, n.Discriminant, b.Value), repeat)
			}
		}
	}
	walk(s.Root, "", 1)
	return out
}

// TotalBits returns the number of bits a message occupies. The boolean is
// false when the schema contains a selector, whose size depends on the data.
func (s *Schema) TotalBits() (int, bool) {
	var count func(id NodeID) (int, bool)
	count = func(id NodeID) (int, bool) {
		switch n := s.nodes[id].(type) {
		case *Record:
			total := 0
			for _, c := range n.Children {
				sub, ok := count(c)
				if !ok {
					return 0, false
				}
				total += sub
			}
			return total * n.Dimension, true
		case *Field:
			return n.Bits * n.Dimension, true
		default:
			return 0, false
		}
	}
	return count(s.Root)
}
