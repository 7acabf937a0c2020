// Completion: 100% - Instruction implementation complete
package x64

import (
	"fmt"
	"os"
)

// MovRegToReg generates a register-to-register move instruction
func (o *Out) MovRegToReg(dst, src string) {
	dstReg, ok1 := o.reg(dst)
	srcReg, ok2 := o.reg(src)
	if !ok1 || !ok2 {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov %s, %s:", dst, src)
	}

	o.rex(dstReg.Size == 64 || srcReg.Size == 64, srcReg.Encoding, dstReg.Encoding)

	// MOV r/m64, r64 (0x89)
	o.Write(0x89)

	// ModR/M byte: 11|reg|r/m
	o.Write(0xC0 | ((srcReg.Encoding & 7) << 3) | (dstReg.Encoding & 7))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovImmToReg loads a sign-extended 32-bit immediate
func (o *Out) MovImmToReg(dst string, imm int32) {
	dstReg, ok := o.reg(dst)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov %s, %d:", dst, imm)
	}

	o.rex(true, 0, dstReg.Encoding)
	o.Write(0xC7) // MOV r/m64, imm32
	o.Write(0xC0 | (dstReg.Encoding & 7))
	o.WriteUnsigned(uint(uint32(imm)))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// MovRelocToReg loads a 64-bit address that is filled in at link time
func (o *Out) MovRelocToReg(dst string, target fmt.Stringer) {
	dstReg, ok := o.reg(dst)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "mov %s, <%s>:", dst, target)
	}

	o.rex(true, 0, dstReg.Encoding)
	o.Write(0xB8 + (dstReg.Encoding & 7))
	o.writeReloc(target)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// Movsxd sign-extends a 32-bit register into a 64-bit register
func (o *Out) Movsxd(dst, src string) {
	dstReg, ok1 := o.reg(dst)
	srcReg, ok2 := o.reg(src)
	if !ok1 || !ok2 {
		return
	}
	if dstReg.Size != 64 || srcReg.Size != 32 {
		o.fail("x64: movsxd %s, %s needs a 64-bit destination and a 32-bit source", dst, src)
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "movsxd %s, %s:", dst, src)
	}

	o.rex(true, dstReg.Encoding, srcReg.Encoding)
	o.Write(0x63) // MOVSXD r64, r/m32
	o.Write(0xC0 | ((dstReg.Encoding & 7) << 3) | (srcReg.Encoding & 7))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
