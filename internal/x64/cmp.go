// Completion: 100% - Instruction implementation complete
package x64

import (
	"fmt"
	"os"
)

// CMP sets the flags consumed by the conditional jumps:
//   - NULL checks on host results
//   - identity tests against the True/False singletons
//   - loop unwinding down to a saved stack pointer

// CmpRegToReg compares src1 with src2 (computes src1 - src2 and sets flags)
func (o *Out) CmpRegToReg(src1, src2 string) {
	src1Reg, ok1 := o.reg(src1)
	src2Reg, ok2 := o.reg(src2)
	if !ok1 || !ok2 {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "cmp %s, %s:", src1, src2)
	}

	// CMP r/m64, r64 (0x39): r/m is src1, reg is src2
	o.rex(true, src2Reg.Encoding, src1Reg.Encoding)
	o.Write(0x39)
	o.Write(0xC0 | ((src2Reg.Encoding & 7) << 3) | (src1Reg.Encoding & 7))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// CmpRegToImm compares a register with a sign-extended immediate
func (o *Out) CmpRegToImm(reg string, imm int32) {
	o.regImm(opCmp, reg, imm)
}

// CmpRegToMem compares reg with qword [base+disp]
func (o *Out) CmpRegToMem(reg, base string, disp int) {
	r, ok1 := o.reg(reg)
	baseReg, ok2 := o.reg(base)
	if !ok1 || !ok2 {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "cmp %s, %s:", reg, memString(base, disp))
	}

	// CMP r64, r/m64 (0x3B)
	o.rex(true, r.Encoding, baseReg.Encoding)
	o.Write(0x3B)
	o.writeModRMMem(r.Encoding, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
