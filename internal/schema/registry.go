package schema

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
)

// ErrNotFound is returned when no schema is known for a message number.
var ErrNotFound = errors.New("schema not found")

// Registry resolves a message number to its schema.
type Registry interface {
	Lookup(number int) (*Schema, error)
}

// MemoryRegistry keeps every schema in memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	schemas map[int]*Schema
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{schemas: make(map[int]*Schema)}
}

// Register stores s under its message number, replacing any previous entry.
func (r *MemoryRegistry) Register(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Number] = s
}

// Lookup returns the schema registered for number.
func (r *MemoryRegistry) Lookup(number int) (*Schema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.schemas[number]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w for message %d", ErrNotFound, number)
}

// Numbers lists the registered message numbers in ascending order.
func (r *MemoryRegistry) Numbers() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.schemas))
	for n := range r.schemas {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// LoadDir registers every *.yaml / *.yml schema found in dir. Files that fail
// to load are reported together; the others are still registered. A schema
// without a number takes it from a numeric file name.
func (r *MemoryRegistry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs error
	for _, e := range entries {
		if e.IsDir() || !isSchemaFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		s, err := Load(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if s.Number == 0 {
			n, ok := numberFromFile(e.Name())
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("%s: schema has no message number", path))
				continue
			}
			s.Number = n
		}
		r.Register(s)
	}
	return errs
}

// DirRegistry loads schemas on demand from <dir>/<number>.yaml and keeps the
// most recently used ones parsed. Missing files are cached too; a file that
// fails to load is read again on the next lookup.
type DirRegistry struct {
	dir   string
	cache *lru.Cache[int, dirEntry]
}

type dirEntry struct {
	schema *Schema
	err    error
}

// NewDirRegistry returns a lazy registry caching up to size schemas.
func NewDirRegistry(dir string, size int) (*DirRegistry, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[int, dirEntry](size)
	if err != nil {
		return nil, err
	}
	return &DirRegistry{dir: dir, cache: cache}, nil
}

// Lookup returns the schema for number, loading it on first use.
func (r *DirRegistry) Lookup(number int) (*Schema, error) {
	if e, ok := r.cache.Get(number); ok {
		return e.schema, e.err
	}
	e := r.load(number)
	if e.err == nil || errors.Is(e.err, ErrNotFound) {
		r.cache.Add(number, e)
	}
	return e.schema, e.err
}

func (r *DirRegistry) load(number int) dirEntry {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(r.dir, strconv.Itoa(number)+ext)
		s, err := Load(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return dirEntry{err: err}
		}
		if s.Number == 0 {
			s.Number = number
		}
		if s.Number != number {
			return dirEntry{err: fmt.Errorf("%s declares message %d", path, s.Number)}
		}
		return dirEntry{schema: s}
	}
	return dirEntry{err: fmt.Errorf("%w for message %d in %s", ErrNotFound, number, r.dir)}
}

func isSchemaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func numberFromFile(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	n, err := strconv.Atoi(stem)
	return n, err == nil
}
