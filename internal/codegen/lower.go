// Completion: 100% - Instruction lowering complete
package codegen

import (
	"fmt"

	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/ir"
	"github.com/xyproto/cinder/internal/x64"
)

func (gen *generator) instruction(b *ir.BasicBlock, instr ir.Instruction) error {
	switch in := instr.(type) {
	case ir.LoadRef:
		gen.loadRef(in)
	case ir.Store:
		gen.store(in.Index)
	case ir.LoadAttr:
		gen.loadAttr(in.NameIndex)
	case ir.StoreAttr:
		gen.storeAttr(in.NameIndex)
	case ir.LoadGlobal:
		gen.loadGlobal(in.NameIndex)
	case ir.UnaryOperation:
		if in.Op != ir.Not {
			return fmt.Errorf("unary operation %s", in.Op)
		}
		gen.unaryNot()
	case ir.Compare:
		switch in.Predicate {
		case ir.Is:
			gen.identity(true)
		case ir.IsNot:
			gen.identity(false)
		default:
			return fmt.Errorf("comparison %s", in.Predicate)
		}
	case ir.Call:
		gen.call(in.NumArgs)
	case ir.PopTop:
		gen.popDecref()
	case ir.Branch:
		gen.out.Jump(in.Target.String())
	case ir.ConditionalBranch:
		gen.conditional(b, in)
	case ir.ReturnValue:
		gen.out.PopReg(blockReg)
		gen.out.Jump(gen.exit)
	case ir.SetupLoop:
		gen.setupLoop()
	case ir.PopBlock:
		gen.popBlock()
	default:
		return fmt.Errorf("unsupported instruction %s", instr)
	}
	return nil
}

func (gen *generator) loadRef(in ir.LoadRef) {
	o := gen.out
	switch in.Pool {
	case ir.Locals:
		o.MovMemToReg("rdi", localsReg, slot(in.Index))
		if in.Index >= gen.fn.ArgCount {
			// Read before any store.
			bound := o.NewLabel("bound")
			o.CmpRegToImm("rdi", 0)
			o.JumpIf(x64.JumpNotEqual, bound)
			o.MovImmToReg("rdi", int32(in.Index))
			gen.callHost(hostrt.UnboundLocal)
			o.Jump(gen.errorExit)
			o.Label(bound)
		}
	case ir.Constants:
		o.MovRelocToReg("rdi", Const(in.Index))
	}
	gen.incref("rdi")
	o.PushReg("rdi")
}

// store moves the reference on top of the stack into a variable and
// releases what the variable held before.
func (gen *generator) store(i int) {
	o := gen.out
	o.MovMemToReg("rdi", localsReg, slot(i))
	o.PopReg("rax")
	o.MovRegToMem("rax", localsReg, slot(i))
	gen.xdecref()
}

func (gen *generator) loadAttr(name int) {
	o := gen.out
	o.MovMemToReg("rdi", "rsp", 0)
	o.MovRelocToReg("rsi", Name(name))
	gen.callHost(hostrt.GetAttr)
	o.CmpRegToImm("rax", 0)
	o.JumpIf(x64.JumpEqual, gen.errorExit)
	o.MovMemToReg("rdi", "rsp", 0)
	o.MovRegToMem("rax", "rsp", 0)
	gen.decref()
}

// storeAttr sets TOS.name = TOS1 and drops both. The status is parked in
// the owner's slot while the two references are released.
func (gen *generator) storeAttr(name int) {
	o := gen.out
	o.MovMemToReg("rdi", "rsp", 0)
	o.MovRelocToReg("rsi", Name(name))
	o.MovMemToReg("rdx", "rsp", 8)
	gen.callHost(hostrt.SetAttr)
	o.Movsxd("rax", "eax")
	o.MovMemToReg("rdi", "rsp", 0)
	o.MovRegToMem("rax", "rsp", 0)
	gen.decref()
	o.MovMemToReg("rdi", "rsp", 8)
	gen.decref()
	o.PopReg("rax")
	o.AddImmToReg("rsp", 8)
	o.CmpRegToImm("rax", 0)
	o.JumpIf(x64.JumpLess, gen.errorExit)
}

func (gen *generator) loadGlobal(name int) {
	o := gen.out
	o.MovRelocToReg("rdi", Globals())
	o.MovRelocToReg("rsi", Builtins())
	o.MovRelocToReg("rdx", Name(name))
	gen.callHost(hostrt.LoadGlobal)
	found := o.NewLabel("found")
	o.CmpRegToImm("rax", 0)
	o.JumpIf(x64.JumpNotEqual, found)
	// A missing name comes back as NULL with no error set.
	o.MovRelocToReg("rdi", Name(name))
	gen.callHost(hostrt.NameError)
	o.Jump(gen.errorExit)
	o.Label(found)
	gen.incref("rax")
	o.PushReg("rax")
}

// boolean leaves a new reference to True or False in rax: True when the
// flags say equal and whenEqual is set, or not equal and it is clear.
func (gen *generator) boolean(whenEqual bool) {
	o := gen.out
	other := o.NewLabel("bool")
	done := o.NewLabel("bool")
	first, second := hostrt.True, hostrt.False
	if !whenEqual {
		first, second = second, first
	}
	o.JumpIf(x64.JumpNotEqual, other)
	o.MovRelocToReg("rax", Symbol(first))
	o.Jump(done)
	o.Label(other)
	o.MovRelocToReg("rax", Symbol(second))
	o.Label(done)
	gen.incref("rax")
}

func (gen *generator) unaryNot() {
	o := gen.out
	o.MovMemToReg("rdi", "rsp", 0)
	gen.callHost(hostrt.IsTrue)
	o.Movsxd("rax", "eax")
	o.CmpRegToImm("rax", 0)
	o.JumpIf(x64.JumpLess, gen.errorExit)
	// not x is True exactly when istrue(x) == 0
	gen.boolean(true)
	o.MovMemToReg("rdi", "rsp", 0)
	o.MovRegToMem("rax", "rsp", 0)
	gen.decref()
}

// identity lowers "is" (is == true) and "is not" by comparing pointers.
func (gen *generator) identity(is bool) {
	o := gen.out
	o.MovMemToReg("rax", "rsp", 8)
	o.CmpRegToMem("rax", "rsp", 0)
	gen.boolean(is)
	o.MovMemToReg("rdi", "rsp", 8)
	o.MovRegToMem("rax", "rsp", 8)
	gen.decref()
	gen.popDecref()
}

// call copies the callable and its n arguments below the stack in
// ascending order, passes a pointer to their end, and lets the host
// consume all n+1 references.
func (gen *generator) call(n int) {
	o := gen.out
	items := n + 1
	for k := range items {
		o.PushMem("rsp", 16*k)
	}
	o.LeaMemToReg("rdi", "rsp", 8*items)
	o.PushReg("rdi")
	o.MovRegToReg("rdi", "rsp")
	o.MovImmToReg("rsi", int32(n))
	o.MovImmToReg("rdx", 0)
	gen.callHost(hostrt.Call)
	o.AddImmToReg("rsp", int32(8*(1+2*items)))
	o.CmpRegToImm("rax", 0)
	o.JumpIf(x64.JumpEqual, gen.errorExit)
	o.PushReg("rax")
}
