// Completion: 100% - Module complete
package x64

import (
	"fmt"
	"os"
)

// CallRegister generates a CALL to address in register (indirect call).
// Host primitives are always reached this way, through an absolute address
// loaded into a scratch register.
func (o *Out) CallRegister(reg string) {
	regInfo, ok := o.reg(reg)
	if !ok {
		return
	}

	if VerboseMode {
		fmt.Fprintf(os.Stderr, "call %s:", reg)
	}

	o.rex(false, 0, regInfo.Encoding)
	o.Write(0xFF) // CALL r/m64 is FF /2
	o.Write(0xD0 | (regInfo.Encoding & 7))

	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}

// Ret generates a return instruction
func (o *Out) Ret() {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "ret:")
	}
	o.Write(0xC3)
	if VerboseMode {
		fmt.Fprintln(os.Stderr)
	}
}
