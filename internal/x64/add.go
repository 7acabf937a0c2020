// Completion: 100% - Instruction implementation complete
package x64

import (
	"fmt"
	"os"
)

// Group 1 arithmetic (ADD /0, AND /4, SUB /5, CMP /7) with an immediate.
// Stack frame sizes, stack alignment and reference counts all go through
// these.

type group1 struct {
	name string
	ext  uint8
}

var (
	opAdd = group1{"add", 0}
	opAnd = group1{"and", 4}
	opSub = group1{"sub", 5}
	opCmp = group1{"cmp", 7}
)

func (o *Out) group1Imm(op group1, base Register, imm int32, mem bool, disp int) {
	o.rex(true, 0, base.Encoding)
	if imm >= -128 && imm < 128 {
		o.Write(0x83) // r/m64, imm8
	} else {
		o.Write(0x81) // r/m64, imm32
	}
	if mem {
		o.writeModRMMem(op.ext, base, disp)
	} else {
		o.Write(0xC0 | (op.ext << 3) | (base.Encoding & 7))
	}
	if imm >= -128 && imm < 128 {
		o.Write(uint8(int8(imm)))
	} else {
		o.WriteUnsigned(uint(uint32(imm)))
	}
}

func (o *Out) regImm(op group1, dst string, imm int32) {
	reg, ok := o.reg(dst)
	if !ok {
		return
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "%s %s, %d:", op.name, dst, imm)
	}
	o.group1Imm(op, reg, imm, false, 0)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

func (o *Out) memImm(op group1, base string, disp int, imm int32) {
	reg, ok := o.reg(base)
	if !ok {
		return
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "%s qword %s, %d:", op.name, memString(base, disp), imm)
	}
	o.group1Imm(op, reg, imm, true, disp)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// AddImmToReg generates add dst, imm
func (o *Out) AddImmToReg(dst string, imm int32) {
	o.regImm(opAdd, dst, imm)
}

// AddImmToMem generates add qword [base+disp], imm
func (o *Out) AddImmToMem(base string, disp int, imm int32) {
	o.memImm(opAdd, base, disp, imm)
}
