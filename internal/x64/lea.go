// Completion: 100% - Instruction implementation complete
package x64

import (
	"fmt"
	"os"
)

// LeaMemToReg generates lea dst, [base+disp]
func (o *Out) LeaMemToReg(dst, base string, disp int) {
	dstReg, ok1 := o.reg(dst)
	baseReg, ok2 := o.reg(base)
	if !ok1 || !ok2 {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "lea %s, %s:", dst, memString(base, disp))
	}

	o.rex(true, dstReg.Encoding, baseReg.Encoding)
	o.Write(0x8D)
	o.writeModRMMem(dstReg.Encoding, baseReg, disp)

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
