// Completion: 100% - Validation pass complete
package codegen

import (
	"fmt"

	"github.com/xyproto/cinder/internal/ir"
)

// ValidationError names the construct that keeps a function from being
// compiled.
type ValidationError struct {
	Function string
	Label    ir.Label
	HasLabel bool
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.HasLabel {
		return fmt.Sprintf("cannot compile %s: %s: %s", e.Function, e.Label, e.Reason)
	}
	return fmt.Sprintf("cannot compile %s: %s", e.Function, e.Reason)
}

func (fn *Function) invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Function: fn.Name, Reason: fmt.Sprintf(format, args...)}
}

func (fn *Function) invalidAt(l ir.Label, format string, args ...any) *ValidationError {
	return &ValidationError{Function: fn.Name, Label: l, HasLabel: true, Reason: fmt.Sprintf(format, args...)}
}

// Validate rejects everything the generator cannot lower. It runs before
// any code is emitted.
func Validate(g *ir.ControlFlowGraph, fn *Function) error {
	if fn.Globals.Kind != Mapping {
		return fn.invalid("globals must be a mapping, not %s", fn.Globals.Kind)
	}
	if fn.Builtins.Kind != Mapping && fn.Builtins.Kind != ModuleLike {
		return fn.invalid("builtins must be a mapping or a module, not %s", fn.Builtins.Kind)
	}
	if fn.ArgCount < 0 || fn.ArgCount > fn.NLocals {
		return fn.invalid("%d arguments but %d variables", fn.ArgCount, fn.NLocals)
	}
	if g.Len() == 0 {
		return fn.invalid("no code")
	}
	last := g.Blocks[g.Len()-1]
	if last.TerminatorKind() == ir.Fallthrough {
		return fn.invalidAt(last.Label, "control falls off the end of the function")
	}

	for _, b := range g.Blocks {
		for _, instr := range b.Instructions {
			if err := fn.validateInstruction(b.Label, instr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fn *Function) validateInstruction(l ir.Label, instr ir.Instruction) error {
	switch in := instr.(type) {
	case ir.LoadRef:
		switch in.Pool {
		case ir.Locals:
			if in.Index < 0 || in.Index >= fn.NLocals {
				return fn.invalidAt(l, "%s: variable index out of range (%d variables)", in, fn.NLocals)
			}
		case ir.Constants:
			if in.Index < 0 || in.Index >= fn.NumConsts {
				return fn.invalidAt(l, "%s: constant index out of range (%d constants)", in, fn.NumConsts)
			}
		default:
			return fn.invalidAt(l, "%s: unknown pool", in)
		}
	case ir.Store:
		if in.Index < 0 || in.Index >= fn.NLocals {
			return fn.invalidAt(l, "%s: variable index out of range (%d variables)", in, fn.NLocals)
		}
	case ir.LoadAttr:
		return fn.checkName(l, in, in.NameIndex)
	case ir.StoreAttr:
		return fn.checkName(l, in, in.NameIndex)
	case ir.LoadGlobal:
		return fn.checkName(l, in, in.NameIndex)
	case ir.UnaryOperation:
		if in.Op != ir.Not {
			return fn.invalidAt(l, "unsupported unary operation %s", in.Op)
		}
	case ir.Compare:
		if !in.Predicate.Valid() {
			return fn.invalidAt(l, "unknown comparison %d", int(in.Predicate))
		}
		if in.Predicate != ir.Is && in.Predicate != ir.IsNot {
			return fn.invalidAt(l, "unsupported comparison %q, only \"is\" and \"is not\" are compiled", in.Predicate)
		}
	case ir.Call:
		if in.NumArgs < 0 {
			return fn.invalidAt(l, "%s: negative argument count", in)
		}
	case ir.PopTop, ir.Branch, ir.ConditionalBranch, ir.ReturnValue, ir.SetupLoop, ir.PopBlock:
	default:
		return fn.invalidAt(l, "unsupported instruction %s", instr)
	}
	return nil
}

func (fn *Function) checkName(l ir.Label, instr ir.Instruction, index int) error {
	if index < 0 || index >= fn.NumNames {
		return fn.invalidAt(l, "%s: name index out of range (%d names)", instr, fn.NumNames)
	}
	return nil
}
