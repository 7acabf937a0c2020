// Completion: 100% - Resolver complete
package hostrt

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is wrapped by sources that do not know a name.
var ErrNotFound = errors.New("symbol not found")

// Source looks up the address of a named host symbol.
type Source interface {
	Lookup(name string) (uintptr, error)
}

// MapSource is a Source backed by a fixed name to address map.
type MapSource map[string]uintptr

func (m MapSource) Lookup(name string) (uintptr, error) {
	addr, ok := m[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return addr, nil
}

// UnresolvedError reports a symbol the source could not provide.
type UnresolvedError struct {
	Symbol Symbol
	Name   string
	Err    error
}

func (e *UnresolvedError) Error() string {
	if e.Name != e.Symbol.DefaultName() {
		return fmt.Sprintf("cannot resolve %s (as %s): %v", e.Symbol, e.Name, e.Err)
	}
	return fmt.Sprintf("cannot resolve %s: %v", e.Symbol, e.Err)
}

func (e *UnresolvedError) Unwrap() error {
	return e.Err
}

// Resolver turns symbols into addresses once, on first use, and hands out
// the same table afterwards. It is safe for concurrent use.
type Resolver struct {
	source    Source
	overrides map[Symbol]string

	once  sync.Once
	table *Table
	err   error
}

// NewResolver creates a resolver over src. overrides replaces the host name
// looked up for individual symbols and may be nil.
func NewResolver(src Source, overrides map[Symbol]string) *Resolver {
	o := make(map[Symbol]string, len(overrides))
	for s, name := range overrides {
		o[s] = name
	}
	return &Resolver{source: src, overrides: o}
}

// NameOf returns the host name the resolver looks up for s.
func (r *Resolver) NameOf(s Symbol) string {
	if name, ok := r.overrides[s]; ok {
		return name
	}
	return s.DefaultName()
}

// Table resolves every symbol on the first call. A failed resolution is
// remembered and returned on every later call.
func (r *Resolver) Table() (*Table, error) {
	r.once.Do(func() {
		t := &Table{}
		for _, s := range Symbols() {
			name := r.NameOf(s)
			addr, err := r.source.Lookup(name)
			if err == nil && addr == 0 {
				err = fmt.Errorf("%s resolved to address 0", name)
			}
			if err != nil {
				r.err = &UnresolvedError{Symbol: s, Name: name, Err: err}
				return
			}
			t.addrs[s] = addr
			t.names[s] = name
		}
		r.table = t
	})
	return r.table, r.err
}
