// Completion: 100% - Module complete
package x64

import (
	"fmt"
	"os"
)

// Memory operands are [base+disp] with a 64-bit base register. rbp/r13 as a
// base always need a displacement and rsp/r12 always need a SIB byte.

func memString(base string, disp int) string {
	switch {
	case disp == 0:
		return fmt.Sprintf("[%s]", base)
	case disp < 0:
		return fmt.Sprintf("[%s-%d]", base, -disp)
	}
	return fmt.Sprintf("[%s+%d]", base, disp)
}

// writeModRMMem writes ModR/M, SIB and displacement for [base+disp] with reg
// in the ModR/M reg field (a register number or an opcode extension).
func (o *Out) writeModRMMem(reg uint8, base Register, disp int) {
	rm := base.Encoding & 7
	switch {
	case disp == 0 && rm != 5: // rbp/r13 needs displacement
		o.Write(((reg & 7) << 3) | rm)
		if rm == 4 { // rsp/r12 needs SIB
			o.Write(0x24)
		}
	case disp >= -128 && disp < 128:
		o.Write(0x40 | ((reg & 7) << 3) | rm)
		if rm == 4 {
			o.Write(0x24)
		}
		o.Write(uint8(int8(disp)))
	default:
		o.Write(0x80 | ((reg & 7) << 3) | rm)
		if rm == 4 {
			o.Write(0x24)
		}
		o.WriteUnsigned(uint(uint32(int32(disp))))
	}
}

// MovRegToMem - Store register to memory [base+disp]
func (o *Out) MovRegToMem(src, base string, disp int) {
	srcReg, ok1 := o.reg(src)
	baseReg, ok2 := o.reg(base)
	if !ok1 || !ok2 {
		return
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov %s, %s:", memString(base, disp), src)
	}
	o.rex(true, srcReg.Encoding, baseReg.Encoding)
	o.Write(0x89) // MOV r/m64, r64
	o.writeModRMMem(srcReg.Encoding, baseReg, disp)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovMemToReg - Load from memory [base+disp] to register
func (o *Out) MovMemToReg(dst, base string, disp int) {
	dstReg, ok1 := o.reg(dst)
	baseReg, ok2 := o.reg(base)
	if !ok1 || !ok2 {
		return
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov %s, %s:", dst, memString(base, disp))
	}
	o.rex(true, dstReg.Encoding, baseReg.Encoding)
	o.Write(0x8B) // MOV r64, r/m64
	o.writeModRMMem(dstReg.Encoding, baseReg, disp)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovImmToMem stores a sign-extended 32-bit immediate to qword [base+disp]
func (o *Out) MovImmToMem(imm int32, base string, disp int) {
	baseReg, ok := o.reg(base)
	if !ok {
		return
	}
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov qword %s, %d:", memString(base, disp), imm)
	}
	o.rex(true, 0, baseReg.Encoding)
	o.Write(0xC7) // MOV r/m64, imm32
	o.writeModRMMem(0, baseReg, disp)
	o.WriteUnsigned(uint(uint32(imm)))
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
