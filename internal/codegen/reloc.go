// Completion: 100% - Relocation and linking complete
package codegen

import (
	"encoding/binary"
	"fmt"

	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/x64"
)

// TargetKind says which table a relocation is resolved against.
type TargetKind int

const (
	ConstTarget TargetKind = iota
	NameTarget
	GlobalsTarget
	BuiltinsTarget
	SymbolTarget
)

// Target is what a 64-bit immediate in generated code refers to.
type Target struct {
	Kind   TargetKind
	Index  int
	Symbol hostrt.Symbol
}

func Const(i int) Target            { return Target{Kind: ConstTarget, Index: i} }
func Name(i int) Target             { return Target{Kind: NameTarget, Index: i} }
func Globals() Target               { return Target{Kind: GlobalsTarget} }
func Builtins() Target              { return Target{Kind: BuiltinsTarget} }
func Symbol(s hostrt.Symbol) Target { return Target{Kind: SymbolTarget, Symbol: s} }

func (t Target) String() string {
	switch t.Kind {
	case ConstTarget:
		return fmt.Sprintf("const[%d]", t.Index)
	case NameTarget:
		return fmt.Sprintf("name[%d]", t.Index)
	case GlobalsTarget:
		return "globals"
	case BuiltinsTarget:
		return "builtins"
	case SymbolTarget:
		return t.Symbol.String()
	}
	return fmt.Sprintf("<target %d>", int(t.Kind))
}

// Relocation is an 8-byte immediate at Offset in Artifact.Code.
type Relocation struct {
	Offset int
	Target Target
}

// Bindings supplies the per-function addresses: the objects in the constant
// and name tables and the two namespaces. For a module-like builtins
// namespace, Builtins is the address of the mapping it exposes.
//
// Linked code embeds these addresses. The objects must stay alive and must
// not move while the code can run, and replacing the constant table does not
// update code that was already linked.
type Bindings struct {
	Consts   []uintptr
	Names    []uintptr
	Globals  uintptr
	Builtins uintptr
}

// Artifact is the unlinked output of Generate.
type Artifact struct {
	Name        string
	Code        []byte
	Relocations []Relocation

	FrameSlots      int // variable slots below the saved registers
	BlockStackDepth int // block stack slots below the variables
}

// LinkError reports a relocation that cannot be resolved.
type LinkError struct {
	Function string
	Target   Target
	Reason   string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s: %s: %s", e.Function, e.Target, e.Reason)
}

func (a *Artifact) resolve(table *hostrt.Table, b Bindings, t Target) (uintptr, error) {
	fail := func(reason string) error {
		return &LinkError{Function: a.Name, Target: t, Reason: reason}
	}
	var addr uintptr
	switch t.Kind {
	case ConstTarget:
		if t.Index >= len(b.Consts) {
			return 0, fail(fmt.Sprintf("only %d constants bound", len(b.Consts)))
		}
		addr = b.Consts[t.Index]
	case NameTarget:
		if t.Index >= len(b.Names) {
			return 0, fail(fmt.Sprintf("only %d names bound", len(b.Names)))
		}
		addr = b.Names[t.Index]
	case GlobalsTarget:
		addr = b.Globals
	case BuiltinsTarget:
		addr = b.Builtins
	case SymbolTarget:
		if table == nil {
			return 0, fail("no symbol table")
		}
		addr = table.Address(t.Symbol)
	default:
		return 0, fail("unknown target kind")
	}
	if addr == 0 {
		return 0, fail("bound to NULL")
	}
	return addr, nil
}

// Link returns a copy of the code with every relocation patched. The
// artifact itself is not modified and can be linked again.
func (a *Artifact) Link(table *hostrt.Table, b Bindings) ([]byte, error) {
	code := make([]byte, len(a.Code))
	copy(code, a.Code)
	for _, r := range a.Relocations {
		addr, err := a.resolve(table, b, r.Target)
		if err != nil {
			return nil, err
		}
		if r.Offset < 0 || r.Offset+8 > len(code) {
			return nil, &LinkError{Function: a.Name, Target: r.Target, Reason: fmt.Sprintf("offset %d outside the code", r.Offset)}
		}
		binary.LittleEndian.PutUint64(code[r.Offset:], uint64(addr))
	}
	return code, nil
}

// Disassemble lists the unlinked code, marking each relocated immediate.
func (a *Artifact) Disassemble() (string, error) {
	relocs := make([]x64.Relocation, len(a.Relocations))
	for i, r := range a.Relocations {
		relocs[i] = x64.Relocation{Offset: r.Offset, Target: r.Target}
	}
	return x64.Disassemble(a.Code, relocs)
}
