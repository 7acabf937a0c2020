// Completion: 100% - Instruction implementation complete
package x64

import (
	"fmt"
	"os"
)

// PUSH/POP instructions for the evaluation stack:
//   - Function prologue/epilogue
//   - Pushing object references
//   - Re-ordering call arguments from memory

// PushReg pushes a register value onto the stack
func (o *Out) PushReg(reg string) {
	regInfo, ok := o.reg(reg)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "push %s:", reg)
	}

	// PUSH uses compact encoding: 0x50 + reg
	o.rex(false, 0, regInfo.Encoding)
	o.Write(0x50 + (regInfo.Encoding & 7))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// PopReg pops a value from the stack into a register
func (o *Out) PopReg(reg string) {
	regInfo, ok := o.reg(reg)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "pop %s:", reg)
	}

	o.rex(false, 0, regInfo.Encoding)
	o.Write(0x58 + (regInfo.Encoding & 7))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// PushMem pushes qword [base+disp]
func (o *Out) PushMem(base string, disp int) {
	baseReg, ok := o.reg(base)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "push qword %s:", memString(base, disp))
	}

	o.rex(false, 0, baseReg.Encoding)
	o.Write(0xFF) // PUSH r/m64 is FF /6
	o.writeModRMMem(6, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
