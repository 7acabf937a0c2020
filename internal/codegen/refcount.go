// Completion: 100% - Reference counting helpers complete
package codegen

import (
	"github.com/xyproto/cinder/internal/hostrt"
	"github.com/xyproto/cinder/internal/x64"
)

// Registers with a fixed role for the whole function.
const (
	argsReg   = "r12" // argument array base
	blockReg  = "r13" // block stack top; holds the return value on exit
	localsReg = "rbp" // frame base, variables below it
	savedSP   = "rbx" // rsp across an aligned host call
)

// refcount is at offset 0 of every object.
const refcountOffset = 0

// callHost calls a host primitive with rsp aligned to 16 bytes. Arguments
// must already be in rdi, rsi and rdx. Only rbx, rbp and r12-r15 survive.
func (gen *generator) callHost(s hostrt.Symbol) {
	gen.out.MovRelocToReg("rax", Symbol(s))
	gen.out.MovRegToReg(savedSP, "rsp")
	gen.out.AndImmToReg("rsp", -16)
	gen.out.CallRegister("rax")
	gen.out.MovRegToReg("rsp", savedSP)
}

func (gen *generator) incref(reg string) {
	gen.out.AddImmToMem(reg, refcountOffset, 1)
}

// decref releases the reference in rdi and deallocates the object when the
// count reaches zero.
func (gen *generator) decref() {
	skip := gen.out.NewLabel("decref")
	gen.out.SubImmFromMem("rdi", refcountOffset, 1)
	gen.out.JumpIf(x64.JumpNotEqual, skip)
	gen.callHost(hostrt.Dealloc)
	gen.out.Label(skip)
}

// xdecref is decref for a reference that may be NULL.
func (gen *generator) xdecref() {
	skip := gen.out.NewLabel("xdecref")
	gen.out.CmpRegToImm("rdi", 0)
	gen.out.JumpIf(x64.JumpEqual, skip)
	gen.out.SubImmFromMem("rdi", refcountOffset, 1)
	gen.out.JumpIf(x64.JumpNotEqual, skip)
	gen.callHost(hostrt.Dealloc)
	gen.out.Label(skip)
}

// popDecref drops the top of the value stack.
func (gen *generator) popDecref() {
	gen.out.PopReg("rdi")
	gen.decref()
}
