package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	maxIntegerBits = 64
	maxCharBits    = 32
)

type fileSchema struct {
	Number  int                   `yaml:"number"`
	Name    string                `yaml:"name"`
	Records map[string]fileRecord `yaml:"records"`
	Fields  []fileNode            `yaml:"fields"`
}

type fileRecord struct {
	Fields []fileNode `yaml:"fields"`
}

// fileNode is a field, a record or a selector depending on which of Name,
// Record or Selector is set.
type fileNode struct {
	Name      string     `yaml:"name"`
	Bits      int        `yaml:"bits"`
	Kind      string     `yaml:"kind"`
	Dimension int        `yaml:"dimension"`
	Record    string     `yaml:"record"`
	Ref       string     `yaml:"ref"`
	Fields    []fileNode `yaml:"fields"`
	Selector  string     `yaml:"selector"`
	Cases     []fileCase `yaml:"cases"`
}

type fileCase struct {
	Value  uint64     `yaml:"value"`
	Name   string     `yaml:"name"`
	Ref    string     `yaml:"ref"`
	Fields []fileNode `yaml:"fields"`
}

// Load reads and compiles a YAML schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse compiles a YAML schema document.
func Parse(data []byte) (*Schema, error) {
	var fs fileSchema
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	c := compiler{
		schema:  &Schema{Number: fs.Number, Name: fs.Name},
		defs:    fs.Records,
		defined: make(map[string][]NodeID),
		active:  make(map[string]bool),
	}
	children, err := c.nodes(fs.Fields, "fields")
	if err != nil {
		return nil, err
	}
	name := fs.Name
	if name == "" {
		name = fmt.Sprintf("message_%d", fs.Number)
	}
	c.schema.Root = c.schema.add(&Record{ID: name, Dimension: 1, Children: children})
	return c.schema, nil
}

type compiler struct {
	schema  *Schema
	defs    map[string]fileRecord
	defined map[string][]NodeID
	active  map[string]bool
}

func (c *compiler) nodes(in []fileNode, path string) ([]NodeID, error) {
	out := make([]NodeID, 0, len(in))
	for i, n := range in {
		id, err := c.node(n, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (c *compiler) node(n fileNode, path string) (NodeID, error) {
	dim := n.Dimension
	if dim == 0 {
		dim = 1
	}
	if dim < 0 {
		return 0, fmt.Errorf("%s: negative dimension %d", path, n.Dimension)
	}
	switch {
	case n.Selector != "":
		return c.selector(n, path)
	case n.Record != "" || n.Ref != "":
		name := n.Record
		if name == "" {
			name = n.Ref
		}
		children, err := c.body(n.Ref, n.Fields, path+"("+name+")")
		if err != nil {
			return 0, err
		}
		return c.schema.add(&Record{ID: name, Dimension: dim, Children: children}), nil
	case n.Name != "":
		kind, err := ParseKind(n.Kind)
		if err != nil {
			return 0, fmt.Errorf("%s (%s): %w", path, n.Name, err)
		}
		if n.Bits <= 0 {
			return 0, fmt.Errorf("%s (%s): bit size must be positive, got %d", path, n.Name, n.Bits)
		}
		if kind == Integer && n.Bits > maxIntegerBits {
			return 0, fmt.Errorf("%s (%s): integer fields are limited to %d bits", path, n.Name, maxIntegerBits)
		}
		if kind == AsciiChar && n.Bits > maxCharBits {
			return 0, fmt.Errorf("%s (%s): character fields are limited to %d bits", path, n.Name, maxCharBits)
		}
		return c.schema.add(&Field{ID: n.Name, Dimension: dim, Bits: n.Bits, Kind: kind}), nil
	default:
		return 0, fmt.Errorf("%s: node needs one of name, record, ref or selector", path)
	}
}

func (c *compiler) selector(n fileNode, path string) (NodeID, error) {
	if len(n.Cases) == 0 {
		return 0, fmt.Errorf("%s: selector on %s has no cases", path, n.Selector)
	}
	sel := &Selector{Discriminant: n.Selector}
	for i, cs := range n.Cases {
		casePath := fmt.Sprintf("%s.cases[%d]", path, i)
		children, err := c.body(cs.Ref, cs.Fields, casePath)
		if err != nil {
			return 0, err
		}
		name := cs.Name
		if name == "" {
			name = cs.Ref
		}
		if name == "" {
			name = fmt.Sprintf("%s_%d", n.Selector, cs.Value)
		}
		rec := c.schema.add(&Record{ID: name, Dimension: 1, Children: children})
		sel.Branches = append(sel.Branches, Branch{Value: cs.Value, Record: rec})
	}
	return c.schema.add(sel), nil
}

// body resolves the children of a record site, either inline or through a
// named definition that is compiled once and shared.
func (c *compiler) body(ref string, inline []fileNode, path string) ([]NodeID, error) {
	if ref == "" {
		return c.nodes(inline, path)
	}
	if len(inline) > 0 {
		return nil, fmt.Errorf("%s: ref %q cannot be combined with inline fields", path, ref)
	}
	if ids, ok := c.defined[ref]; ok {
		return ids, nil
	}
	def, ok := c.defs[ref]
	if !ok {
		return nil, fmt.Errorf("%s: unknown record %q", path, ref)
	}
	if c.active[ref] {
		return nil, fmt.Errorf("%s: record %q references itself", path, ref)
	}
	c.active[ref] = true
	ids, err := c.nodes(def.Fields, "records."+ref)
	delete(c.active, ref)
	if err != nil {
		return nil, err
	}
	c.defined[ref] = ids
	return ids, nil
}
