// Completion: 100% - Function description complete
package codegen

import "fmt"

// NamespaceKind describes the object a function uses for globals or
// builtins.
type NamespaceKind int

const (
	// Mapping is a plain key/value dictionary.
	Mapping NamespaceKind = iota
	// ModuleLike is an object that exposes a mapping, such as a module.
	ModuleLike
	// Other is anything else; it cannot be compiled against.
	Other
)

func (k NamespaceKind) String() string {
	switch k {
	case Mapping:
		return "mapping"
	case ModuleLike:
		return "module"
	case Other:
		return "other"
	}
	return fmt.Sprintf("<namespace kind %d>", int(k))
}

// Namespace describes a globals or builtins namespace. The address of the
// mapping itself is supplied at link time through Bindings.
type Namespace struct {
	Kind NamespaceKind
}

// Function is what the generator needs to know about the code object being
// compiled besides its CFG.
type Function struct {
	Name      string
	ArgCount  int // leading variables filled from the argument array
	NLocals   int // all variables, arguments included
	NumConsts int
	NumNames  int
	Globals   Namespace
	Builtins  Namespace
}
