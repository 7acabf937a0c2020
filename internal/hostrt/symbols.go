// Completion: 100% - Host symbol table complete
package hostrt

import "fmt"

// Symbol is one host runtime entry point or singleton the generated code
// needs an address for.
type Symbol int

const (
	GetAttr      Symbol = iota // getattr(obj, name) -> new reference or NULL
	SetAttr                    // setattr(obj, name, value) -> int status
	IsTrue                     // istrue(obj) -> int, negative on error
	LoadGlobal                 // loadglobal(globals, builtins, name) -> borrowed reference or NULL
	Call                       // call(pp_stack, argc, kwnames) -> new reference or NULL
	Dealloc                    // dealloc(obj), called when a refcount drops to zero
	NameError                  // name_error(name), raises NameError unless an error is already set
	UnboundLocal               // unbound_local(index), raises UnboundLocalError
	True                       // the True singleton
	False                      // the False singleton

	numSymbols
)

var defaultNames = [numSymbols]string{
	GetAttr:      "PyObject_GetAttr",
	SetAttr:      "PyObject_SetAttr",
	IsTrue:       "PyObject_IsTrue",
	LoadGlobal:   "_PyDict_LoadGlobal",
	Call:         "cinder_call_function",
	Dealloc:      "_Py_Dealloc",
	NameError:    "cinder_raise_name_error",
	UnboundLocal: "cinder_raise_unbound_local",
	True:         "_Py_TrueStruct",
	False:        "_Py_FalseStruct",
}

// Symbols lists every symbol in declaration order.
func Symbols() []Symbol {
	all := make([]Symbol, numSymbols)
	for i := range all {
		all[i] = Symbol(i)
	}
	return all
}

// DefaultName is the host's exported name for s.
func (s Symbol) DefaultName() string {
	if s < 0 || s >= numSymbols {
		return ""
	}
	return defaultNames[s]
}

func (s Symbol) String() string {
	if name := s.DefaultName(); name != "" {
		return name
	}
	return fmt.Sprintf("<symbol %d>", int(s))
}

// IsData reports whether s names an object rather than a function.
func (s Symbol) IsData() bool {
	return s == True || s == False
}

// ParseSymbol finds a symbol by its default host name.
func ParseSymbol(name string) (Symbol, bool) {
	for i, n := range defaultNames {
		if n == name {
			return Symbol(i), true
		}
	}
	return 0, false
}

// Table holds one resolved address per symbol. It is read-only once built.
type Table struct {
	addrs [numSymbols]uintptr
	names [numSymbols]string
}

// Address returns the resolved address of s.
func (t *Table) Address(s Symbol) uintptr {
	return t.addrs[s]
}

// Name returns the name s was resolved under.
func (t *Table) Name(s Symbol) string {
	return t.names[s]
}
