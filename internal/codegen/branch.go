// Completion: 100% - Branch and loop lowering complete
package codegen

import (
	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/ir"
	"github.com/xyproto/cinder/internal/x64"
)

// conditional tests the truth of the top of the stack. True and False are
// recognised by address; anything else goes through the host's truth test.
// The value is released on every path that consumes it. A variant that
// keeps the value when jumping leaves it on the stack for the target.
func (gen *generator) conditional(b *ir.BasicBlock, in ir.ConditionalBranch) {
	o := gen.out
	jumpTarget := in.JumpTarget().String()
	fallTarget := in.FallTarget()

	jumpWhen, fallWhen := hostrt.True, hostrt.False
	if !in.JumpWhenTrue {
		jumpWhen, fallWhen = fallWhen, jumpWhen
	}

	jump := jumpTarget
	if in.PopBeforeEval {
		jump = o.NewLabel("taken")
	}
	fall := o.NewLabel("not_taken")

	o.MovMemToReg("rdi", "rsp", 0)
	o.MovRelocToReg("rax", Symbol(jumpWhen))
	o.CmpRegToReg("rdi", "rax")
	o.JumpIf(x64.JumpEqual, jump)
	o.MovRelocToReg("rax", Symbol(fallWhen))
	o.CmpRegToReg("rdi", "rax")
	o.JumpIf(x64.JumpEqual, fall)

	gen.callHost(hostrt.IsTrue)
	o.Movsxd("rax", "eax")
	o.CmpRegToImm("rax", 0)
	o.JumpIf(x64.JumpLess, gen.errorExit)
	if in.JumpWhenTrue {
		o.JumpIf(x64.JumpEqual, fall)
	} else {
		o.JumpIf(x64.JumpNotEqual, fall)
	}
	if in.PopBeforeEval {
		o.Label(jump)
		gen.popDecref()
	}
	o.Jump(jumpTarget)

	o.Label(fall)
	gen.popDecref()
	if next := gen.g.Next(b.Label); next == nil || next.Label != fallTarget {
		o.Jump(fallTarget.String())
	}
}

// setupLoop records the value stack height on the block stack. Back edges
// target the loop body, which starts after this.
func (gen *generator) setupLoop() {
	gen.out.SubImmFromReg(blockReg, 8)
	gen.out.MovRegToMem("rsp", blockReg, 0)
}

// popBlock discards everything pushed since the innermost loop started and
// pops its block stack entry.
func (gen *generator) popBlock() {
	o := gen.out
	loop := o.NewLabel("pop_block")
	done := o.NewLabel("popped")
	o.Label(loop)
	o.CmpRegToMem("rsp", blockReg, 0)
	o.JumpIf(x64.JumpEqual, done)
	gen.popDecref()
	o.Jump(loop)
	o.Label(done)
	o.AddImmToReg(blockReg, 8)
}
