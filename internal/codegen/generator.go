// Completion: 100% - Code generator complete
package codegen

import (
	"fmt"

	"github.com/xyproto/cinder/internal/ir"
	"github.com/xyproto/cinder/internal/x64"
)

// Frame layout, from the frame base down:
//
//	[rbp+24]  saved rbp
//	[rbp+16]  saved r12
//	[rbp+8]   saved r13
//	[rbp]     saved rbx
//	[rbp-8]   variable 0
//	...       variable NLocals-1
//	...       block stack, MaxLoopDepth slots, growing down from r13
//	...       value stack, growing down from rsp
//
// The generated function has the signature
//
//	func(args *[ArgCount]*object) *object
//
// and returns a new reference, or NULL when a host primitive failed.
type generator struct {
	out *x64.Out
	g   *ir.ControlFlowGraph
	fn  *Function

	depth     int // block stack slots
	errorExit string
	exit      string
}

// Generate validates g against fn and lowers it to x86-64. The code is
// position independent except for the 64-bit immediates listed in the
// artifact's relocations.
func Generate(g *ir.ControlFlowGraph, fn *Function) (*Artifact, error) {
	if err := Validate(g, fn); err != nil {
		return nil, err
	}
	gen := &generator{
		out:       x64.NewOut(),
		g:         g,
		fn:        fn,
		depth:     g.MaxLoopDepth(),
		errorExit: "error_exit",
		exit:      "exit",
	}

	gen.prologue()
	for _, b := range g.Blocks {
		if err := gen.block(b); err != nil {
			return nil, err
		}
	}
	gen.epilogue()

	code, relocs, err := gen.out.Finish()
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", fn.Name, err)
	}
	a := &Artifact{
		Name:            fn.Name,
		Code:            code,
		FrameSlots:      fn.NLocals,
		BlockStackDepth: gen.depth,
	}
	for _, r := range relocs {
		t, ok := r.Target.(Target)
		if !ok {
			return nil, fmt.Errorf("generate %s: relocation at %d has foreign target %s", fn.Name, r.Offset, r.Target)
		}
		a.Relocations = append(a.Relocations, Relocation{Offset: r.Offset, Target: t})
	}
	return a, nil
}

// slot is the frame offset of variable i.
func slot(i int) int {
	return -8 * (i + 1)
}

// stackBase is where the value stack starts.
func (gen *generator) stackBase() int {
	return -8 * (gen.fn.NLocals + gen.depth)
}

// prologue saves the callee-saved registers it uses, reserves the frame,
// takes a reference to every argument and clears the other variables.
func (gen *generator) prologue() {
	o := gen.out
	o.PushReg("rbp")
	o.PushReg(argsReg)
	o.PushReg(blockReg)
	o.PushReg(savedSP)
	o.MovRegToReg(argsReg, "rdi")
	o.MovRegToReg(localsReg, "rsp")
	o.LeaMemToReg(blockReg, localsReg, -8*gen.fn.NLocals)
	if size := gen.fn.NLocals + gen.depth; size > 0 {
		o.SubImmFromReg("rsp", int32(8*size))
	}
	for i := range gen.fn.ArgCount {
		o.MovMemToReg("rdi", argsReg, 8*i)
		gen.incref("rdi")
		o.MovRegToMem("rdi", localsReg, slot(i))
	}
	for i := gen.fn.ArgCount; i < gen.fn.NLocals; i++ {
		o.MovImmToMem(0, localsReg, slot(i))
	}
}

// epilogue emits the two exits. Both release whatever is still on the
// value stack and every variable; the error exit returns NULL.
func (gen *generator) epilogue() {
	o := gen.out
	o.Label(gen.errorExit)
	o.MovImmToReg(blockReg, 0)

	o.Label(gen.exit)
	loop := o.NewLabel("unwind")
	done := o.NewLabel("unwound")
	o.Label(loop)
	o.LeaMemToReg("rax", localsReg, gen.stackBase())
	o.CmpRegToReg("rsp", "rax")
	o.JumpIf(x64.JumpEqual, done)
	gen.popDecref()
	o.Jump(loop)
	o.Label(done)

	for i := range gen.fn.NLocals {
		o.MovMemToReg("rdi", localsReg, slot(i))
		gen.xdecref()
	}

	o.MovRegToReg("rax", blockReg)
	o.MovRegToReg("rsp", localsReg)
	o.PopReg(savedSP)
	o.PopReg(blockReg)
	o.PopReg(argsReg)
	o.PopReg("rbp")
	o.Ret()
}

func (gen *generator) block(b *ir.BasicBlock) error {
	gen.out.Label(b.Label.String())
	for _, instr := range b.Instructions {
		if err := gen.instruction(b, instr); err != nil {
			return fmt.Errorf("generate %s: %s: %w", gen.fn.Name, b.Label, err)
		}
	}
	return nil
}
